package cognito

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"

	"strategy-advisor/internal/domain"
)

// identityAPI is the minimal Cognito identity-pool interface used here.
// *cognitoidentity.Client satisfies it.
type identityAPI interface {
	GetId(ctx context.Context, in *cognitoidentity.GetIdInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetIdOutput, error)
	GetCredentialsForIdentity(ctx context.Context, in *cognitoidentity.GetCredentialsForIdentityInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetCredentialsForIdentityOutput, error)
}

// IdentityPool exchanges user-pool ID tokens for temporary AWS credentials.
type IdentityPool struct {
	api          identityAPI
	poolID       string
	providerName string
	now          func() time.Time
}

// NewIdentityPool binds an identity pool to the user pool that issues the
// ID tokens it accepts.
func NewIdentityPool(api identityAPI, region, identityPoolID, userPoolID string) (*IdentityPool, error) {
	if api == nil {
		return nil, errors.New("cognito: identity api must not be nil")
	}
	region = strings.TrimSpace(region)
	identityPoolID = strings.TrimSpace(identityPoolID)
	userPoolID = strings.TrimSpace(userPoolID)
	if region == "" || identityPoolID == "" || userPoolID == "" {
		return nil, errors.New("cognito: region, identity pool id and user pool id are required")
	}
	return &IdentityPool{
		api:          api,
		poolID:       identityPoolID,
		providerName: fmt.Sprintf("cognito-idp.%s.amazonaws.com/%s", region, userPoolID),
		now:          time.Now,
	}, nil
}

// Session returns a credential provider for one signed-in user.
func (p *IdentityPool) Session(idToken string) *Session {
	return &Session{pool: p, idToken: strings.TrimSpace(idToken)}
}

// Session vends credentials for one ID token. The identity id is resolved
// once; credentials are reused only when the caller does not force a
// refresh and they have not expired.
type Session struct {
	pool    *IdentityPool
	idToken string

	mu         sync.Mutex
	identityID string
	cached     domain.Credentials
}

// GetCredentials returns temporary credentials for the session's identity.
func (s *Session) GetCredentials(ctx context.Context, forceRefresh bool) (domain.Credentials, error) {
	if s.idToken == "" {
		return domain.Credentials{}, fmt.Errorf("%w: not signed in", domain.ErrNoCredentials)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !forceRefresh && s.cached.AccessKeyID != "" && !s.cached.Expired(s.pool.now()) {
		return s.cached, nil
	}

	logins := map[string]string{s.pool.providerName: s.idToken}
	if s.identityID == "" {
		out, err := s.pool.api.GetId(ctx, &cognitoidentity.GetIdInput{
			IdentityPoolId: aws.String(s.pool.poolID),
			Logins:         logins,
		})
		if err != nil {
			return domain.Credentials{}, fmt.Errorf("cognito: get identity id: %w", err)
		}
		if out == nil || aws.ToString(out.IdentityId) == "" {
			return domain.Credentials{}, errors.New("cognito: get identity id: empty identity id")
		}
		s.identityID = aws.ToString(out.IdentityId)
	}

	out, err := s.pool.api.GetCredentialsForIdentity(ctx, &cognitoidentity.GetCredentialsForIdentityInput{
		IdentityId: aws.String(s.identityID),
		Logins:     logins,
	})
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("cognito: get credentials for identity: %w", err)
	}
	if out == nil || out.Credentials == nil || aws.ToString(out.Credentials.AccessKeyId) == "" {
		return domain.Credentials{}, domain.ErrNoCredentials
	}

	s.cached = domain.Credentials{
		AccessKeyID:  aws.ToString(out.Credentials.AccessKeyId),
		SecretKey:    aws.ToString(out.Credentials.SecretKey),
		SessionToken: aws.ToString(out.Credentials.SessionToken),
		Expiration:   aws.ToTime(out.Credentials.Expiration),
	}
	return s.cached, nil
}
