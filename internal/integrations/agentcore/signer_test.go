package agentcore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"strategy-advisor/internal/domain"
)

const testARN = "arn:aws:bedrock-agentcore:us-east-1:123456789012:runtime/advisor-Xy12"

var signingTime = time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)

func testCreds() domain.Credentials {
	return domain.Credentials{
		AccessKeyID:  "ASIAEXAMPLE",
		SecretKey:    "secret",
		SessionToken: "session-token",
		Expiration:   signingTime.Add(time.Hour),
	}
}

func newTestSigner(t *testing.T, cfg Config) *Signer {
	t.Helper()
	s, err := NewSigner(cfg, WithClock(func() time.Time { return signingTime }))
	require.NoError(t, err)
	return s
}

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

func TestNewSigner_Validation(t *testing.T) {
	_, err := NewSigner(Config{RuntimeARN: testARN})
	require.Error(t, err)
	require.Contains(t, err.Error(), "region")

	_, err = NewSigner(Config{Region: "us-east-1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "runtime ARN")

	_, err = NewSigner(Config{Region: "us-east-1", RuntimeARN: testARN, Endpoint: "localhost"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "scheme and host")
}

func TestConfig_Defaults(t *testing.T) {
	s := newTestSigner(t, Config{Region: " eu-west-1 ", RuntimeARN: testARN})
	cfg := s.Config()
	require.Equal(t, DefaultService, cfg.Service)
	require.Equal(t, DefaultDomainSuffix, cfg.DomainSuffix)
	require.Equal(t, "bedrock-agentcore.eu-west-1.amazonaws.com", cfg.Hostname())
}

func TestInvocationURL_EncodesARNAsOneSegment(t *testing.T) {
	s := newTestSigner(t, Config{Region: "us-east-1", RuntimeARN: testARN})
	require.Equal(t,
		"https://bedrock-agentcore.us-east-1.amazonaws.com/runtimes/arn%3Aaws%3Abedrock-agentcore%3Aus-east-1%3A123456789012%3Aruntime%2Fadvisor-Xy12/invocations",
		s.cfg.invocationURL().String(),
	)
}

func TestEncodeURIComponent(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"a:b/c", "a%3Ab%2Fc"},
		{"with space", "with%20space"},
		{"keep-_.~", "keep-_.~"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, encodeURIComponent(tc.in), "in=%q", tc.in)
	}
}

// ---------------------------------------------------------------------------
// Sign
// ---------------------------------------------------------------------------

func TestSign_BuildsSignedRequest(t *testing.T) {
	s := newTestSigner(t, Config{Region: "us-east-1", RuntimeARN: testARN})

	req, err := s.Sign(context.Background(), testCreds(), domain.Payload{Prompt: "hi"})
	require.NoError(t, err)

	require.Equal(t, http.MethodPost, req.Method)
	require.Equal(t, "bedrock-agentcore.us-east-1.amazonaws.com", req.Host)
	require.Equal(t, "https", req.URL.Scheme)
	require.Equal(t, "/runtimes/arn%3Aaws%3Abedrock-agentcore%3Aus-east-1%3A123456789012%3Aruntime%2Fadvisor-Xy12/invocations", req.URL.EscapedPath())
	require.Equal(t, "application/json", req.Header.Get("Content-Type"))
	require.Equal(t, "20260115T100000Z", req.Header.Get("X-Amz-Date"))
	require.Equal(t, "session-token", req.Header.Get("X-Amz-Security-Token"))
	require.Len(t, req.Header.Get(contentSHA256Header), 64)

	auth := req.Header.Get("Authorization")
	require.Contains(t, auth, "AWS4-HMAC-SHA256 Credential=ASIAEXAMPLE/20260115/us-east-1/bedrock-agentcore/aws4_request")
	require.Contains(t, auth, "SignedHeaders=")
	require.Contains(t, auth, "content-type")
	require.Contains(t, auth, "host")
	require.Contains(t, auth, "x-amz-date")
	require.Contains(t, auth, "x-amz-security-token")
	require.Contains(t, auth, "Signature=")

	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"prompt":"hi"}`, string(body))
}

func TestSign_IsDeterministicForFixedClock(t *testing.T) {
	s := newTestSigner(t, Config{Region: "us-east-1", RuntimeARN: testARN})

	a, err := s.Sign(context.Background(), testCreds(), domain.Payload{Prompt: "same"})
	require.NoError(t, err)
	b, err := s.Sign(context.Background(), testCreds(), domain.Payload{Prompt: "same"})
	require.NoError(t, err)
	require.Equal(t, a.Header.Get("Authorization"), b.Header.Get("Authorization"))

	c, err := s.Sign(context.Background(), testCreds(), domain.Payload{Prompt: "different"})
	require.NoError(t, err)
	require.NotEqual(t, a.Header.Get("Authorization"), c.Header.Get("Authorization"))
}

func TestSign_SessionHeaderIsSigned(t *testing.T) {
	s := newTestSigner(t, Config{Region: "us-east-1", RuntimeARN: testARN})

	req, err := s.Sign(context.Background(), testCreds(), domain.Payload{Prompt: "hi"}, WithSessionID("session-0123456789-0123456789-0123456789"))
	require.NoError(t, err)
	require.Equal(t, "session-0123456789-0123456789-0123456789", req.Header.Get(SessionIDHeader))
	require.Contains(t, req.Header.Get("Authorization"), "x-amzn-bedrock-agentcore-runtime-session-id")
}

func TestSign_MissingAccessKey(t *testing.T) {
	s := newTestSigner(t, Config{Region: "us-east-1", RuntimeARN: testARN})

	creds := testCreds()
	creds.AccessKeyID = ""
	req, err := s.Sign(context.Background(), creds, domain.Payload{Prompt: "hi"})
	require.Nil(t, req)
	require.True(t, errors.Is(err, ErrMissingCredentials))
}

func TestSign_EndpointOverride(t *testing.T) {
	s := newTestSigner(t, Config{Region: "us-east-1", RuntimeARN: testARN, Endpoint: "http://127.0.0.1:9000/"})

	req, err := s.Sign(context.Background(), testCreds(), domain.Payload{Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "http", req.URL.Scheme)
	require.Equal(t, "127.0.0.1:9000", req.Host)
}

func TestSign_UnserializablePayload(t *testing.T) {
	s := newTestSigner(t, Config{Region: "us-east-1", RuntimeARN: testARN})

	_, err := s.Sign(context.Background(), testCreds(), map[string]any{"bad": make(chan int)})
	require.Error(t, err)
	require.Contains(t, err.Error(), "marshal payload")
}
