// Package tui renders the advisor page in the terminal: a sign-in form,
// the life-stage selector, the trigger and the streaming response panel.
package tui

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"strategy-advisor/internal/domain"
	"strategy-advisor/internal/integrations/cognito"
	"strategy-advisor/internal/usecase"
)

// Authenticator signs users in and out of the user pool.
type Authenticator interface {
	SignIn(ctx context.Context, username, password string) (cognito.Tokens, error)
	SignOut(ctx context.Context, tokens cognito.Tokens) error
}

// SessionFunc binds a credential provider to a signed-in user's ID token.
type SessionFunc func(idToken string) usecase.CredentialProvider

type Deps struct {
	Auth     Authenticator
	Sessions SessionFunc
	Agent    usecase.AgentInvoker
	Logger   *slog.Logger
}

type screen int

const (
	screenSignIn screen = iota
	screenAdvisor
)

const (
	fieldUsername = iota
	fieldPassword
)

type (
	signedInMsg     struct{ tokens cognito.Tokens }
	signInFailedMsg struct{ err error }
	signedOutMsg    struct{}
	stateMsg        struct {
		state   domain.DisplayState
		updates <-chan domain.DisplayState
	}
	invocationDoneMsg struct{}
)

// relay forwards controller states to the running invocation's channel.
// Progress is dropped when the UI falls behind; terminal states are not,
// unless ctx ends first.
type relay struct {
	ctx context.Context
	mu  sync.Mutex
	ch  chan domain.DisplayState
}

func (r *relay) open() chan domain.DisplayState {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ch = make(chan domain.DisplayState, 32)
	return r.ch
}

func (r *relay) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch != nil {
		close(r.ch)
		r.ch = nil
	}
}

func (r *relay) send(s domain.DisplayState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch == nil {
		return
	}
	if s.Phase.Terminal() {
		select {
		case r.ch <- s:
		case <-r.ctx.Done():
		}
		return
	}
	select {
	case r.ch <- s:
	default:
	}
}

type Model struct {
	ctx    context.Context
	deps   Deps
	logger *slog.Logger

	screen    screen
	inputs    [2]textinput.Model
	focus     int
	signingIn bool
	authErr   string

	tokens     cognito.Tokens
	controller *usecase.Controller
	relay      *relay
	state      domain.DisplayState

	spinner  spinner.Model
	viewport viewport.Model
}

func New(ctx context.Context, deps Deps) (Model, error) {
	if deps.Auth == nil {
		return Model{}, errors.New("tui: authenticator must not be nil")
	}
	if deps.Sessions == nil {
		return Model{}, errors.New("tui: session func must not be nil")
	}
	if deps.Agent == nil {
		return Model{}, errors.New("tui: agent invoker must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	username := textinput.New()
	username.Placeholder = "username"
	username.CharLimit = 128
	username.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.CharLimit = 256
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	return Model{
		ctx:      ctx,
		deps:     deps,
		logger:   logger,
		screen:   screenSignIn,
		inputs:   [2]textinput.Model{username, password},
		relay:    &relay{ctx: ctx},
		state:    domain.DisplayState{Phase: domain.PhaseIdle, LifeStage: domain.LifeStageYoung},
		spinner:  sp,
		viewport: viewport.New(74, 16),
	}, nil
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = max(msg.Width-6, 20)
		m.viewport.Height = max(msg.Height-chromeHeight, 3)
		m.refreshPanel()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.screen == screenSignIn {
			return m.updateSignIn(msg)
		}
		return m.updateAdvisor(msg)

	case signedInMsg:
		return m.signedIn(msg.tokens)

	case signInFailedMsg:
		m.signingIn = false
		m.authErr = msg.err.Error()
		m.logger.Warn("sign-in failed", "err", msg.err)
		return m, nil

	case signedOutMsg:
		return m.resetToSignIn(), nil

	case stateMsg:
		m.state = msg.state
		m.refreshPanel()
		if msg.state.Phase.Terminal() {
			return m, nil
		}
		return m, waitForState(msg.updates)

	case invocationDoneMsg:
		return m, nil

	case spinner.TickMsg:
		if !m.state.Loading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateSignIn(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.signingIn {
		return m, nil
	}
	switch msg.Type {
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		return m.focusField((m.focus + 1) % len(m.inputs)), nil
	case tea.KeyEnter:
		if m.focus == fieldUsername {
			return m.focusField(fieldPassword), nil
		}
		username := strings.TrimSpace(m.inputs[fieldUsername].Value())
		password := m.inputs[fieldPassword].Value()
		if username == "" || password == "" {
			m.authErr = "Enter your username and password."
			return m, nil
		}
		m.signingIn = true
		m.authErr = ""
		return m, m.signIn(username, password)
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m Model) focusField(i int) Model {
	m.inputs[m.focus].Blur()
	m.focus = i
	m.inputs[m.focus].Focus()
	return m
}

func (m Model) updateAdvisor(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "left", "h":
		return m.selectStage(-1), nil
	case "right", "l":
		return m.selectStage(1), nil
	case "1", "2", "3":
		stages := domain.LifeStages()
		return m.selectExact(stages[int(msg.String()[0]-'1')]), nil
	case "enter", " ":
		return m.trigger()
	case "o":
		if m.state.Loading() {
			return m, nil
		}
		return m, m.signOut()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) selectStage(delta int) Model {
	stages := domain.LifeStages()
	i := 0
	for j, s := range stages {
		if s == m.state.LifeStage {
			i = j
		}
	}
	return m.selectExact(stages[(i+delta+len(stages))%len(stages)])
}

func (m Model) selectExact(stage domain.LifeStage) Model {
	if m.controller == nil || m.state.Loading() || !m.controller.Select(stage) {
		return m
	}
	m.state = m.controller.State()
	return m
}

// trigger starts an invocation unless one is running; the trigger is
// disabled for the whole loading phase.
func (m Model) trigger() (tea.Model, tea.Cmd) {
	if m.controller == nil || m.state.Loading() {
		return m, nil
	}
	m.state.Phase = domain.PhaseLoading
	m.state.Text = usecase.ConnectingText
	m.viewport.GotoTop()
	m.refreshPanel()

	updates := m.relay.open()
	c, r, ctx := m.controller, m.relay, m.ctx
	run := func() tea.Msg {
		c.Invoke(ctx)
		r.close()
		return invocationDoneMsg{}
	}
	return m, tea.Batch(run, waitForState(updates), m.spinner.Tick)
}

func waitForState(updates <-chan domain.DisplayState) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-updates
		if !ok {
			return invocationDoneMsg{}
		}
		return stateMsg{state: s, updates: updates}
	}
}

func (m Model) signIn(username, password string) tea.Cmd {
	auth, ctx := m.deps.Auth, m.ctx
	return func() tea.Msg {
		tokens, err := auth.SignIn(ctx, username, password)
		if err != nil {
			return signInFailedMsg{err: err}
		}
		return signedInMsg{tokens: tokens}
	}
}

func (m Model) signedIn(tokens cognito.Tokens) (tea.Model, tea.Cmd) {
	m.signingIn = false
	c, err := usecase.NewController(
		m.deps.Sessions(tokens.IDToken),
		m.deps.Agent,
		usecase.WithLogger(m.logger),
		usecase.WithObserver(m.relay.send),
	)
	if err != nil {
		m.authErr = err.Error()
		return m, nil
	}
	m.tokens = tokens
	m.controller = c
	m.state = c.State()
	m.screen = screenAdvisor
	m.authErr = ""
	m.inputs[fieldPassword].SetValue("")
	m.logger.Info("signed in", "username", tokens.Username)
	return m, nil
}

func (m Model) signOut() tea.Cmd {
	auth, ctx, tokens, logger := m.deps.Auth, m.ctx, m.tokens, m.logger
	return func() tea.Msg {
		if err := auth.SignOut(ctx, tokens); err != nil {
			logger.Warn("sign-out failed", "username", tokens.Username, "err", err)
		}
		return signedOutMsg{}
	}
}

func (m Model) resetToSignIn() Model {
	m.tokens = cognito.Tokens{}
	m.controller = nil
	m.state = domain.DisplayState{Phase: domain.PhaseIdle, LifeStage: domain.LifeStageYoung}
	m.screen = screenSignIn
	m.viewport.SetContent("")
	return m.focusField(fieldUsername)
}

func (m *Model) refreshPanel() {
	m.viewport.SetContent(panelText(m.state.Text, m.viewport.Width))
}
