package agentcore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"

	"strategy-advisor/internal/domain"
)

const contentSHA256Header = "X-Amz-Content-Sha256"

// ErrMissingCredentials is returned by Sign when the credentials carry no
// access key id.
var ErrMissingCredentials = errors.New("agentcore: missing credentials")

// Signer builds SigV4-signed invocation requests. It performs no I/O.
type Signer struct {
	cfg Config
	v4  *v4.Signer
	now func() time.Time
}

type SignerOption func(*Signer)

// WithClock fixes the signing time source.
func WithClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		s.now = now
	}
}

// RequestOption adds headers before the request is signed, so they are
// covered by the signature.
type RequestOption func(*http.Request)

// WithSessionID sets the runtime session header.
func WithSessionID(id string) RequestOption {
	return func(r *http.Request) {
		if id = strings.TrimSpace(id); id != "" {
			r.Header.Set(SessionIDHeader, id)
		}
	}
}

func NewSigner(cfg Config, opts ...SignerOption) (*Signer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s := &Signer{
		cfg: cfg,
		v4:  v4.NewSigner(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the normalized configuration.
func (s *Signer) Config() Config {
	return s.cfg
}

// Sign serializes payload as JSON and returns a POST to the runtime's
// invocation path signed for the configured service and region.
func (s *Signer) Sign(ctx context.Context, creds domain.Credentials, payload any, opts ...RequestOption) (*http.Request, error) {
	if strings.TrimSpace(creds.AccessKeyID) == "" {
		return nil, ErrMissingCredentials
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("agentcore: marshal payload: %w", err)
	}
	sum := sha256.Sum256(body)
	payloadHash := hex.EncodeToString(sum[:])

	u := s.cfg.invocationURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("agentcore: create request: %w", err)
	}
	// net/http sends req.Host as the Host header; the signer reads it too.
	req.Host = u.Host
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(contentSHA256Header, payloadHash)
	for _, opt := range opts {
		opt(req)
	}

	awsCreds := aws.Credentials{
		AccessKeyID:     creds.AccessKeyID,
		SecretAccessKey: creds.SecretKey,
		SessionToken:    creds.SessionToken,
		Source:          "strategy-advisor",
		CanExpire:       !creds.Expiration.IsZero(),
		Expires:         creds.Expiration,
	}
	if err := s.v4.SignHTTP(ctx, awsCreds, req, payloadHash, s.cfg.Service, s.cfg.Region, s.now()); err != nil {
		return nil, fmt.Errorf("agentcore: sign request: %w", err)
	}
	return req, nil
}
