package cognito

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

// userPoolAPI is the minimal Cognito user-pool interface used here.
type userPoolAPI interface {
	InitiateAuth(ctx context.Context, in *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	GlobalSignOut(ctx context.Context, in *cip.GlobalSignOutInput, optFns ...func(*cip.Options)) (*cip.GlobalSignOutOutput, error)
}

// ChallengeError is returned when the pool answers sign-in with a challenge
// (new password, MFA) this client does not handle.
type ChallengeError struct {
	Challenge string
}

func (e *ChallengeError) Error() string {
	return fmt.Sprintf("cognito: sign-in requires unsupported challenge %s", e.Challenge)
}

// Tokens are the user-pool tokens of a signed-in user.
type Tokens struct {
	Username     string
	IDToken      string
	AccessToken  string
	RefreshToken string
}

// UserPool signs users in with username and password.
type UserPool struct {
	api      userPoolAPI
	clientID string
}

func NewUserPool(api userPoolAPI, clientID string) (*UserPool, error) {
	if api == nil {
		return nil, errors.New("cognito: user pool api must not be nil")
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, errors.New("cognito: user pool client id must not be empty")
	}
	return &UserPool{api: api, clientID: clientID}, nil
}

// SignIn runs the USER_PASSWORD_AUTH flow.
func (p *UserPool) SignIn(ctx context.Context, username, password string) (Tokens, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Tokens{}, errors.New("cognito: username and password are required")
	}
	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(p.clientID),
		AuthParameters: map[string]string{
			"USERNAME": username,
			"PASSWORD": password,
		},
	})
	if err != nil {
		return Tokens{}, fmt.Errorf("cognito: sign in: %w", err)
	}
	if out.ChallengeName != "" {
		return Tokens{}, &ChallengeError{Challenge: string(out.ChallengeName)}
	}
	if out.AuthenticationResult == nil || aws.ToString(out.AuthenticationResult.IdToken) == "" {
		return Tokens{}, errors.New("cognito: sign in: no tokens in response")
	}
	res := out.AuthenticationResult
	return Tokens{
		Username:     username,
		IDToken:      aws.ToString(res.IdToken),
		AccessToken:  aws.ToString(res.AccessToken),
		RefreshToken: aws.ToString(res.RefreshToken),
	}, nil
}

// SignOut revokes the user's tokens.
func (p *UserPool) SignOut(ctx context.Context, tokens Tokens) error {
	if tokens.AccessToken == "" {
		return nil
	}
	if _, err := p.api.GlobalSignOut(ctx, &cip.GlobalSignOutInput{AccessToken: aws.String(tokens.AccessToken)}); err != nil {
		return fmt.Errorf("cognito: sign out: %w", err)
	}
	return nil
}
