package game

import "encoding/json"

// Envelope WS envelope: {"type":"...","payload":{...}}
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// StatePayload is the externally observable instance state. It is the body
// of the state endpoint and of every WS state push. Target is populated
// only once the instance is terminal.
type StatePayload struct {
	InstanceID   string    `json:"instanceId"`
	RoundID      uint64    `json:"roundId"`
	Participant  string    `json:"participant"`
	Outcome      string    `json:"outcome"` // in_progress|won|lost
	AttemptCount int       `json:"attemptCount"`
	MaxAttempts  int       `json:"maxAttempts"`
	WordLength   int       `json:"wordLength"`
	Attempts     []Attempt `json:"attempts"`
	Attested     bool      `json:"attested"`
	Target       string    `json:"target,omitempty"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
