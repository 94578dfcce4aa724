package model

import (
	"encoding/json"
	"time"
)

// ResultKind distinguishes persisted result payloads.
type ResultKind string

const (
	ResultKindAssessment ResultKind = "assessment"
	ResultKindModes      ResultKind = "modes"
)

// ResultRecord is a persisted assessment or mode-scoring output. Payload is
// the JSON of the output as returned to the caller.
type ResultRecord struct {
	ID        string          `json:"id"`
	Kind      ResultKind      `json:"kind"`
	Label     string          `json:"label,omitempty"`
	Summary   string          `json:"summary,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
