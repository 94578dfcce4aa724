package model

// Assessment is a normalized and selected item batch, optionally chained
// into mode scoring.
type Assessment struct {
	Instrument string           `json:"instrument"`
	Items      []NormalizedItem `json:"items"`
	Failures   []ItemFailure    `json:"failures,omitempty"`
	Selection  *SelectionResult `json:"selection"`
	Policy     string           `json:"policy"`
	Modes      *ScoringOutput   `json:"modes,omitempty"`
}
