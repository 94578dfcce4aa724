package model

// CopingEstimate holds the raw family totals and their softmax
// probabilities. S+A+O sums to 1.
type CopingEstimate struct {
	RawS float64 `json:"raw_s"`
	RawA float64 `json:"raw_a"`
	RawO float64 `json:"raw_o"`
	S    float64 `json:"c_s"`
	A    float64 `json:"c_a"`
	O    float64 `json:"c_o"`
}

// Prob returns the probability for a coping family.
func (c CopingEstimate) Prob(f Family) float64 {
	switch f {
	case FamilySurrender:
		return c.S
	case FamilyAvoidance:
		return c.A
	case FamilyOvercompensation:
		return c.O
	}
	return 0
}

// Contribution is a signed weight·z term of a mode logit.
type Contribution struct {
	SchemaID SchemaID `json:"schema_id"`
	Value    float64  `json:"value"`
}

// CopingLift breaks the coping term of a mode logit into its families.
type CopingLift struct {
	S float64 `json:"s"`
	A float64 `json:"a"`
	O float64 `json:"o"`
}

// Total returns the sum of the three family lifts.
func (l CopingLift) Total() float64 {
	return l.S + l.A + l.O
}

// ModeResult is one mode's probability with its explanation.
type ModeResult struct {
	Mode          ModeID         `json:"mode"`
	Probability   float64        `json:"probability"`
	Logit         float64        `json:"logit"`
	Contributions []Contribution `json:"top_contributions"`
	CopingLift    CopingLift     `json:"coping_lift"`
	GateLift      float64        `json:"gate_lift"`
}

// ScoringOutput is the full mode-scoring response.
type ScoringOutput struct {
	Coping  CopingEstimate `json:"coping"`
	Modes   []ModeResult   `json:"modes"`
	Tau     float64        `json:"tau"`
	Entropy float64        `json:"entropy"`
	Top2Gap float64        `json:"top2_gap"`
}
