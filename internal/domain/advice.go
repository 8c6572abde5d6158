package domain

// Payload is the JSON body sent to the agent runtime.
type Payload struct {
	Prompt string `json:"prompt"`
}

// AdviceRecord is one finished invocation kept in the history table.
type AdviceRecord struct {
	PK        string
	SK        string
	Owner     string
	LifeStage LifeStage
	Phase     Phase
	Text      string
	SessionID string
	CreatedAt string
	TTL       int64
}
