package model

// SchemaCandidate is a schema's aggregate over its normalized items.
type SchemaCandidate struct {
	ClinicalID  SchemaID `json:"clinical_id"`
	TScore      float64  `json:"tscore"`
	Reliability float64  `json:"reliability"`
	ItemCount   int      `json:"item_count"`
	Instrument  string   `json:"instrument"`
}

// SelectionResult is the outcome of schema selection. Primary is nil when no
// schema reaches the primary threshold.
type SelectionResult struct {
	Primary            *SchemaCandidate  `json:"primary,omitempty"`
	Secondary          *SchemaCandidate  `json:"secondary,omitempty"`
	Tertiary           *SchemaCandidate  `json:"tertiary,omitempty"`
	Confidence         float64           `json:"confidence"`
	MaxObservedTScore  float64           `json:"max_observed_tscore"`
	SelectionNotes     []string          `json:"selection_notes"`
	TieBreakersApplied []string          `json:"tie_breakers_applied"`
	Ranked             []SchemaCandidate `json:"ranked"`

	// Exploratory is set only by a caller-side fallback policy that promoted
	// a sub-threshold schema to Primary.
	Exploratory bool `json:"exploratory,omitempty"`
}

// HasPrimary reports whether a schema cleared the primary threshold or was
// promoted by a fallback policy.
func (r *SelectionResult) HasPrimary() bool {
	return r != nil && r.Primary != nil
}
