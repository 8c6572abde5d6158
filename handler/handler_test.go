package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/require"

	"strategy-advisor/internal/domain"
	"strategy-advisor/internal/integrations/agentcore"
	"strategy-advisor/internal/usecase"
)

type stubCreds struct {
	creds domain.Credentials
	err   error
}

func (s *stubCreds) GetCredentials(_ context.Context, _ bool) (domain.Credentials, error) {
	return s.creds, s.err
}

type stubAgent struct {
	text    string
	err     error
	payload any
}

func (s *stubAgent) Invoke(_ context.Context, _ domain.Credentials, payload any) (*agentcore.Invocation, error) {
	s.payload = payload
	if s.err != nil {
		return nil, s.err
	}
	return &agentcore.Invocation{SessionID: "sess-1", Body: io.NopCloser(strings.NewReader(s.text))}, nil
}

type stubHistory struct {
	recorded []domain.DisplayState
	owners   []string
	recs     []domain.AdviceRecord
	err      error
}

func (s *stubHistory) RecordAdvice(_ context.Context, owner string, state domain.DisplayState, _ string) error {
	s.owners = append(s.owners, owner)
	s.recorded = append(s.recorded, state)
	return nil
}

func (s *stubHistory) RecentAdvice(_ context.Context, _ string, _ int) ([]domain.AdviceRecord, error) {
	return s.recs, s.err
}

func credsFor(p usecase.CredentialProvider, tokens *[]string) CredentialsFunc {
	return func(idToken string) usecase.CredentialProvider {
		if tokens != nil {
			*tokens = append(*tokens, idToken)
		}
		return p
	}
}

func validCreds() *stubCreds {
	return &stubCreds{creds: domain.Credentials{AccessKeyID: "ASIA", SecretKey: "secret"}}
}

func makeEvent(method, path, body string) events.APIGatewayProxyRequest {
	return events.APIGatewayProxyRequest{
		HTTPMethod: method,
		Path:       path,
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer id-token",
		},
		Body: body,
		RequestContext: events.APIGatewayProxyRequestContext{
			Authorizer: map[string]interface{}{
				"claims": map[string]interface{}{"sub": "user-123"},
			},
		},
	}
}

func parseBody[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(body), &v))
	return v
}

func TestNewHandler_ValidatesDependencies(t *testing.T) {
	_, err := NewHandler(nil, &stubAgent{})
	require.Error(t, err)
	_, err = NewHandler(credsFor(validCreds(), nil), nil)
	require.Error(t, err)
}

func TestHandle_Strategies_HappyPath(t *testing.T) {
	var tokens []string
	agent := &stubAgent{text: `{"content":"Build an emergency fund."}`}
	h, err := NewHandler(credsFor(validCreds(), &tokens), agent)
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/strategies", `{"lifeStage":"older"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"id-token"}, tokens)
	require.Equal(t, usecase.BuildPayload(domain.LifeStageOlder), agent.payload)

	out := parseBody[domain.DisplayState](t, resp.Body)
	require.Equal(t, domain.PhaseResult, out.Phase)
	require.Equal(t, domain.LifeStageOlder, out.LifeStage)
	require.Equal(t, "Build an emergency fund.", out.Text)
	require.NotEmpty(t, resp.Headers["X-Correlation-Id"])
}

func TestHandle_Strategies_InvalidInput(t *testing.T) {
	h, err := NewHandler(credsFor(validCreds(), nil), &stubAgent{})
	require.NoError(t, err)

	for _, body := range []string{`not-json`, `{"lifeStage":"toddler"}`, `{}`} {
		resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/strategies", body))
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		require.Equal(t, "INVALID_INPUT", parseBody[errorResponse](t, resp.Body).Error)
	}
}

func TestHandle_Strategies_MissingToken(t *testing.T) {
	agent := &stubAgent{}
	h, err := NewHandler(credsFor(validCreds(), nil), agent)
	require.NoError(t, err)

	event := makeEvent(http.MethodPost, "/strategies", `{"lifeStage":"young"}`)
	delete(event.Headers, "Authorization")
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Nil(t, agent.payload)
}

func TestHandle_Strategies_MapsPipelineErrors(t *testing.T) {
	cases := []struct {
		name   string
		creds  *stubCreds
		agent  *stubAgent
		status int
		text   string
	}{
		{
			name:   "missing credentials",
			creds:  &stubCreds{err: domain.ErrNoCredentials},
			agent:  &stubAgent{},
			status: http.StatusUnauthorized,
			text:   "Error: No AWS credentials received from Cognito.",
		},
		{
			name:   "upstream status",
			creds:  validCreds(),
			agent:  &stubAgent{err: &agentcore.HTTPStatusError{StatusCode: 403, Body: "Forbidden"}},
			status: http.StatusBadGateway,
			text:   "Error: HTTP 403: Forbidden",
		},
		{
			name:   "transport",
			creds:  validCreds(),
			agent:  &stubAgent{err: agentcore.ErrTransport},
			status: http.StatusBadGateway,
		},
		{
			name:   "unexpected",
			creds:  validCreds(),
			agent:  &stubAgent{err: errors.New("signer misconfigured")},
			status: http.StatusInternalServerError,
			text:   "Error: signer misconfigured",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := NewHandler(credsFor(tc.creds, nil), tc.agent)
			require.NoError(t, err)

			resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/strategies", `{"lifeStage":"young"}`))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			out := parseBody[domain.DisplayState](t, resp.Body)
			require.Equal(t, domain.PhaseError, out.Phase)
			if tc.text != "" {
				require.Equal(t, tc.text, out.Text)
			}
		})
	}
}

func TestHandle_Strategies_RecordsHistory(t *testing.T) {
	hist := &stubHistory{}
	h, err := NewHandler(credsFor(validCreds(), nil), &stubAgent{text: "Rebalance yearly."}, WithHistory(hist))
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodPost, "/strategies", `{"lifeStage":"retirement"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []string{"user-123"}, hist.owners)
	require.Equal(t, "Rebalance yearly.", hist.recorded[0].Text)
}

func TestHandle_History(t *testing.T) {
	hist := &stubHistory{recs: []domain.AdviceRecord{{
		Owner:     "user-123",
		LifeStage: domain.LifeStageYoung,
		Phase:     domain.PhaseResult,
		Text:      "Start early.",
		SessionID: "sess-1",
		CreatedAt: "2026-01-15T10:00:00Z",
	}}}
	h, err := NewHandler(credsFor(validCreds(), nil), &stubAgent{}, WithHistory(hist))
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/strategies/history", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := parseBody[historyResponse](t, resp.Body)
	require.Len(t, out.Items, 1)
	require.Equal(t, "Start early.", out.Items[0].Text)
	require.Equal(t, domain.PhaseResult, out.Items[0].State)
}

func TestHandle_History_Disabled(t *testing.T) {
	h, err := NewHandler(credsFor(validCreds(), nil), &stubAgent{})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/strategies/history", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandle_History_StoreFailure(t *testing.T) {
	hist := &stubHistory{err: errors.New("throttled")}
	h, err := NewHandler(credsFor(validCreds(), nil), &stubAgent{}, WithHistory(hist))
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodGet, "/strategies/history", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHandle_UnknownRoute(t *testing.T) {
	h, err := NewHandler(credsFor(validCreds(), nil), &stubAgent{})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background(), makeEvent(http.MethodDelete, "/strategies", ""))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandle_UsesProvidedCorrelationID_CaseInsensitive(t *testing.T) {
	h, err := NewHandler(credsFor(validCreds(), nil), &stubAgent{text: "ok."})
	require.NoError(t, err)

	event := makeEvent(http.MethodPost, "/strategies", `{"lifeStage":"young"}`)
	event.Headers["x-correlation-id"] = "corr-123"
	resp, err := h.Handle(context.Background(), event)
	require.NoError(t, err)
	require.Equal(t, "corr-123", resp.Headers["X-Correlation-Id"])
}

func TestBearerToken(t *testing.T) {
	require.Equal(t, "abc", bearerToken(map[string]string{"authorization": "Bearer abc"}))
	require.Equal(t, "abc", bearerToken(map[string]string{"Authorization": "abc"}))
	require.Empty(t, bearerToken(map[string]string{}))
}
