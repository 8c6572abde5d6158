package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"strategy-advisor/internal/domain"
	"strategy-advisor/internal/integrations/agentcore"
	"strategy-advisor/internal/stream"
)

const (
	ConnectingText    = "Connecting to your AI advisor..."
	EmptyResponseText = "Received empty response."
	ErrorPrefix       = "Error: "
)

type CredentialProvider interface {
	GetCredentials(ctx context.Context, forceRefresh bool) (domain.Credentials, error)
}

type AgentInvoker interface {
	Invoke(ctx context.Context, creds domain.Credentials, payload any) (*agentcore.Invocation, error)
}

type AdviceRecorder interface {
	RecordAdvice(ctx context.Context, owner string, state domain.DisplayState, sessionID string) error
}

// Controller owns the display state of one page and sequences an advice
// invocation: credentials, signed call, stream assembly, unwrapping.
type Controller struct {
	creds    CredentialProvider
	agent    AgentInvoker
	recorder AdviceRecorder
	owner    string
	logger   *slog.Logger
	observe  func(domain.DisplayState)

	mu      sync.RWMutex
	state   domain.DisplayState
	lastErr error
}

type ControllerOption func(*Controller)

// WithRecorder stores every finished invocation under owner.
func WithRecorder(rec AdviceRecorder, owner string) ControllerOption {
	return func(c *Controller) {
		c.recorder = rec
		c.owner = strings.TrimSpace(owner)
	}
}

func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver receives every published state, including each stream
// flush while loading. It is called without the controller lock held.
func WithObserver(fn func(domain.DisplayState)) ControllerOption {
	return func(c *Controller) {
		c.observe = fn
	}
}

func NewController(creds CredentialProvider, agent AgentInvoker, opts ...ControllerOption) (*Controller, error) {
	if creds == nil {
		return nil, errors.New("usecase: credential provider must not be nil")
	}
	if agent == nil {
		return nil, errors.New("usecase: agent invoker must not be nil")
	}
	c := &Controller{
		creds:  creds,
		agent:  agent,
		logger: slog.Default(),
		state: domain.DisplayState{
			Phase:     domain.PhaseIdle,
			LifeStage: domain.LifeStageYoung,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// State returns a snapshot of the display state.
func (c *Controller) State() domain.DisplayState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Err returns the failure behind the last error state, or nil. It is a
// *Error; use KindOf to classify it.
func (c *Controller) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Select changes the life stage. It is refused while loading.
func (c *Controller) Select(stage domain.LifeStage) bool {
	_ = stage.Descriptor() // undeclared stages are a programming error

	c.mu.Lock()
	if c.state.Phase == domain.PhaseLoading {
		c.mu.Unlock()
		return false
	}
	c.state.LifeStage = stage
	c.mu.Unlock()
	c.publish()
	return true
}

// Invoke runs one advice request and returns the terminal state. While an
// invocation is loading, further calls return the current state unchanged.
func (c *Controller) Invoke(ctx context.Context) domain.DisplayState {
	c.mu.Lock()
	if c.state.Phase == domain.PhaseLoading {
		s := c.state
		c.mu.Unlock()
		return s
	}
	c.state.Phase = domain.PhaseLoading
	c.state.Text = ConnectingText
	stage := c.state.LifeStage
	c.mu.Unlock()
	c.publish()

	text, sessionID, err := c.run(ctx, stage)

	c.mu.Lock()
	c.lastErr = err
	if err != nil {
		c.state.Phase = domain.PhaseError
		c.state.Text = ErrorPrefix + err.Error()
	} else {
		c.state.Phase = domain.PhaseResult
		c.state.Text = text
		if text == "" {
			c.state.Text = EmptyResponseText
		}
	}
	final := c.state
	c.mu.Unlock()
	c.publish()

	if err != nil {
		c.logger.Warn("advice invocation failed", "lifeStage", stage, "kind", KindOf(err), "sessionId", sessionID, "err", err)
	} else {
		c.logger.Info("advice invocation complete", "lifeStage", stage, "sessionId", sessionID, "chars", len(text))
	}
	c.record(ctx, final, sessionID)
	return final
}

func (c *Controller) run(ctx context.Context, stage domain.LifeStage) (string, string, error) {
	creds, err := c.creds.GetCredentials(ctx, true)
	if err != nil {
		return "", "", credentialsError(err)
	}

	inv, err := c.agent.Invoke(ctx, creds, BuildPayload(stage))
	if err != nil {
		return "", "", invokeError(err)
	}
	defer func() { _ = inv.Body.Close() }()
	c.logger.Debug("advice stream opened", "sessionId", inv.SessionID, "contentType", inv.ContentType)

	asm := stream.NewAssembler(c.progress)
	full, err := asm.Consume(inv.Body)
	if err != nil {
		c.logger.Debug("discarding partial response", "sessionId", inv.SessionID, "partial", asm.Text())
		return "", inv.SessionID, streamError(err)
	}
	return stream.Unwrap(full), inv.SessionID, nil
}

func (c *Controller) progress(text string) {
	c.mu.Lock()
	if c.state.Phase != domain.PhaseLoading {
		c.mu.Unlock()
		return
	}
	c.state.Text = text
	c.mu.Unlock()
	c.publish()
}

func (c *Controller) publish() {
	if c.observe == nil {
		return
	}
	c.observe(c.State())
}

func (c *Controller) record(ctx context.Context, final domain.DisplayState, sessionID string) {
	if c.recorder == nil || c.owner == "" {
		return
	}
	if err := c.recorder.RecordAdvice(ctx, c.owner, final, sessionID); err != nil {
		c.logger.Warn("failed to record advice", "owner", c.owner, "err", err)
	}
}
