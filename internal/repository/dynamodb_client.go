package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"strategy-advisor/internal/domain"
)

const (
	pkPrefixOwner  = "OWNER#"
	skPrefixAdvice = "ADVICE#"
	ttlDuration    = 90 * 24 * time.Hour // 90-day TTL
	defaultLimit   = 10
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Client wraps a DynamoDB table holding finished advice invocations.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

func ownerPK(owner string) string {
	return pkPrefixOwner + owner
}

func adviceSK(ts time.Time) string {
	return skPrefixAdvice + ts.UTC().Format(time.RFC3339Nano)
}

// NewAdviceRecord builds the record for a finished display state.
func NewAdviceRecord(owner string, state domain.DisplayState, sessionID string, now time.Time) domain.AdviceRecord {
	return domain.AdviceRecord{
		PK:        ownerPK(owner),
		SK:        adviceSK(now),
		Owner:     owner,
		LifeStage: state.LifeStage,
		Phase:     state.Phase,
		Text:      state.Text,
		SessionID: sessionID,
		CreatedAt: now.UTC().Format(time.RFC3339),
		TTL:       now.Add(ttlDuration).Unix(),
	}
}

// RecordAdvice stores a terminal display state for owner.
func (c *Client) RecordAdvice(ctx context.Context, owner string, state domain.DisplayState, sessionID string) error {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return errors.New("repository: RecordAdvice: owner is required")
	}
	if !state.Phase.Terminal() {
		return fmt.Errorf("repository: RecordAdvice: phase %q is not terminal", state.Phase)
	}
	return c.SaveAdvice(ctx, NewAdviceRecord(owner, state, sessionID, c.now()))
}

// SaveAdvice writes rec, refusing to overwrite an existing item.
func (c *Client) SaveAdvice(ctx context.Context, rec domain.AdviceRecord) error {
	if rec.PK == "" || rec.SK == "" {
		return errors.New("repository: SaveAdvice: PK and SK are required")
	}
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                adviceItem(rec),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: SaveAdvice: %w", err)
	}
	return nil
}

// RecentAdvice returns up to limit records for owner, newest first.
func (c *Client) RecentAdvice(ctx context.Context, owner string, limit int) ([]domain.AdviceRecord, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: ownerPK(owner)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixAdvice},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: RecentAdvice query: %w", err)
	}

	recs := make([]domain.AdviceRecord, 0, len(out.Items))
	for _, item := range out.Items {
		rec, err := itemToAdvice(item)
		if err != nil {
			return nil, fmt.Errorf("repository: RecentAdvice unmarshal: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func adviceItem(rec domain.AdviceRecord) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: rec.PK},
		"SK":        &types.AttributeValueMemberS{Value: rec.SK},
		"owner":     &types.AttributeValueMemberS{Value: rec.Owner},
		"lifeStage": &types.AttributeValueMemberS{Value: string(rec.LifeStage)},
		"state":     &types.AttributeValueMemberS{Value: string(rec.Phase)},
		"text":      &types.AttributeValueMemberS{Value: rec.Text},
		"sessionId": &types.AttributeValueMemberS{Value: rec.SessionID},
		"createdAt": &types.AttributeValueMemberS{Value: rec.CreatedAt},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.TTL, 10)},
	}
}

func itemToAdvice(item map[string]types.AttributeValue) (domain.AdviceRecord, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.AdviceRecord{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.AdviceRecord{}, err
	}
	stage, err := strAttr(item, "lifeStage")
	if err != nil {
		return domain.AdviceRecord{}, err
	}
	state, err := strAttr(item, "state")
	if err != nil {
		return domain.AdviceRecord{}, err
	}
	text, _ := strAttr(item, "text")           // allow empty
	sessionID, _ := strAttr(item, "sessionId") // allow empty
	createdAt, _ := strAttr(item, "createdAt") // allow empty
	ttl, _ := int64Attr(item, "ttl")           // allow empty

	return domain.AdviceRecord{
		PK:        pk,
		SK:        sk,
		Owner:     strings.TrimPrefix(pk, pkPrefixOwner),
		LifeStage: domain.LifeStage(stage),
		Phase:     domain.Phase(state),
		Text:      text,
		SessionID: sessionID,
		CreatedAt: createdAt,
		TTL:       ttl,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func int64Attr(item map[string]types.AttributeValue, key string) (int64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
