package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"strategy-advisor/internal/domain"
	"strategy-advisor/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	historyLimit      = 20
)

// CredentialsFunc returns a credential provider bound to the caller's
// Cognito ID token.
type CredentialsFunc func(idToken string) usecase.CredentialProvider

// History stores and lists finished invocations. It is optional.
type History interface {
	usecase.AdviceRecorder
	RecentAdvice(ctx context.Context, owner string, limit int) ([]domain.AdviceRecord, error)
}

type Handler struct {
	credentials CredentialsFunc
	agent       usecase.AgentInvoker
	history     History
	logger      *slog.Logger
}

type Option func(*Handler)

func WithHistory(h History) Option {
	return func(hd *Handler) {
		hd.history = h
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(hd *Handler) {
		if logger != nil {
			hd.logger = logger
		}
	}
}

func NewHandler(credentials CredentialsFunc, agent usecase.AgentInvoker, opts ...Option) (*Handler, error) {
	if credentials == nil {
		return nil, errors.New("handler: credentials func must not be nil")
	}
	if agent == nil {
		return nil, errors.New("handler: agent invoker must not be nil")
	}
	h := &Handler{credentials: credentials, agent: agent, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type strategyRequest struct {
	LifeStage string `json:"lifeStage"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type historyItem struct {
	LifeStage domain.LifeStage `json:"lifeStage"`
	State     domain.Phase     `json:"state"`
	Text      string           `json:"text"`
	SessionID string           `json:"sessionId,omitempty"`
	CreatedAt string           `json:"createdAt"`
}

type historyResponse struct {
	Items []historyItem `json:"items"`
}

func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := header(event.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	logger := h.logger.With("correlationId", correlationID, "method", event.HTTPMethod, "path", event.Path)

	switch {
	case event.HTTPMethod == http.MethodPost && strings.HasSuffix(event.Path, "/strategies"):
		return h.strategies(ctx, logger, correlationID, event), nil
	case event.HTTPMethod == http.MethodGet && strings.HasSuffix(event.Path, "/strategies/history"):
		return h.recent(ctx, logger, correlationID, event), nil
	default:
		return respond(http.StatusNotFound, correlationID, errorResponse{Error: "NOT_FOUND"}), nil
	}
}

func (h *Handler) strategies(ctx context.Context, logger *slog.Logger, correlationID string, event events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	var req strategyRequest
	if err := json.Unmarshal([]byte(event.Body), &req); err != nil {
		logger.Warn("invalid request body", "err", err)
		return respond(http.StatusBadRequest, correlationID, errorResponse{Error: "INVALID_INPUT", Message: "body must be JSON"})
	}
	stage, err := domain.ParseLifeStage(req.LifeStage)
	if err != nil {
		return respond(http.StatusBadRequest, correlationID, errorResponse{Error: "INVALID_INPUT", Message: err.Error()})
	}

	token := bearerToken(event.Headers)
	if token == "" {
		return respond(http.StatusUnauthorized, correlationID, errorResponse{Error: string(usecase.ErrorMissingCredentials), Message: "missing Authorization token"})
	}

	opts := []usecase.ControllerOption{usecase.WithLogger(logger)}
	if h.history != nil {
		opts = append(opts, usecase.WithRecorder(h.history, owner(event)))
	}
	c, err := usecase.NewController(h.credentials(token), h.agent, opts...)
	if err != nil {
		logger.Error("failed to create controller", "err", err)
		return respond(http.StatusInternalServerError, correlationID, errorResponse{Error: string(usecase.ErrorInternal)})
	}
	c.Select(stage)
	state := c.Invoke(ctx)

	status := http.StatusOK
	if state.Phase == domain.PhaseError {
		status = statusFor(usecase.KindOf(c.Err()))
	}
	return respond(status, correlationID, state)
}

func (h *Handler) recent(ctx context.Context, logger *slog.Logger, correlationID string, event events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	if h.history == nil {
		return respond(http.StatusNotFound, correlationID, errorResponse{Error: "NOT_FOUND", Message: "history is not enabled"})
	}
	who := owner(event)
	if who == "" {
		return respond(http.StatusUnauthorized, correlationID, errorResponse{Error: string(usecase.ErrorMissingCredentials), Message: "missing caller identity"})
	}
	recs, err := h.history.RecentAdvice(ctx, who, historyLimit)
	if err != nil {
		logger.Error("failed to load history", "err", err)
		return respond(http.StatusInternalServerError, correlationID, errorResponse{Error: string(usecase.ErrorInternal)})
	}
	out := historyResponse{Items: make([]historyItem, 0, len(recs))}
	for _, r := range recs {
		out.Items = append(out.Items, historyItem{
			LifeStage: r.LifeStage,
			State:     r.Phase,
			Text:      r.Text,
			SessionID: r.SessionID,
			CreatedAt: r.CreatedAt,
		})
	}
	return respond(http.StatusOK, correlationID, out)
}

func statusFor(kind usecase.ErrorKind) int {
	switch kind {
	case usecase.ErrorMissingCredentials:
		return http.StatusUnauthorized
	case usecase.ErrorHTTP, usecase.ErrorStreamRead, usecase.ErrorNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respond(status int, correlationID string, body any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(b),
	}
}

// header looks a name up case-insensitively; API Gateway passes headers
// through as the client sent them.
func header(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func bearerToken(headers map[string]string) string {
	v := header(headers, "Authorization")
	if len(v) > 7 && strings.EqualFold(v[:7], "Bearer ") {
		v = v[7:]
	}
	return strings.TrimSpace(v)
}

// owner is the user pool subject the authorizer resolved for the caller.
func owner(event events.APIGatewayProxyRequest) string {
	claims, ok := event.RequestContext.Authorizer["claims"].(map[string]interface{})
	if !ok {
		return ""
	}
	sub, _ := claims["sub"].(string)
	return sub
}
