package domain

// Phase is the view controller state.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseResult  Phase = "result"
	PhaseError   Phase = "error"
)

// Terminal reports whether the phase ends an invocation.
func (p Phase) Terminal() bool {
	return p == PhaseResult || p == PhaseError
}

// DisplayState is everything the page renders.
type DisplayState struct {
	Phase     Phase     `json:"state"`
	LifeStage LifeStage `json:"lifeStage"`
	Text      string    `json:"text"`
}

// Loading reports whether the trigger must be disabled.
func (s DisplayState) Loading() bool {
	return s.Phase == PhaseLoading
}
