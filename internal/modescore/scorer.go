package modescore

import (
	"math"
	"sort"

	"github.com/sells-group/schema-engine/internal/model"
	"github.com/sells-group/schema-engine/internal/registry"
	"github.com/sells-group/schema-engine/internal/scoreerr"
)

// Request is a mode-scoring query. Z is keyed by schema id and Gates by gate
// name; both are normalized before validation. Tau overrides the configured
// temperature when set.
type Request struct {
	Z     map[string]float64 `json:"z"`
	Gates map[string]float64 `json:"gates,omitempty"`
	Tau   *float64           `json:"tau,omitempty"`
}

// Scorer computes mode distributions from an immutable Config. It is safe
// for concurrent use.
type Scorer struct {
	cfg *Config
}

// NewScorer returns a Scorer over cfg.
func NewScorer(cfg *Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Config returns the scorer's configuration.
func (s *Scorer) Config() *Config {
	return s.cfg
}

// Score validates the request and returns the full distribution. Any
// validation failure rejects the whole request.
func (s *Scorer) Score(req Request) (*model.ScoringOutput, error) {
	z, gates, tau, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	cfg := s.cfg

	coping := EstimateCoping(z, cfg.copingMap, cfg.opts.CopingTau, cfg.opts.ClipNegative)
	for i, raw := range []float64{coping.RawS, coping.RawA, coping.RawO} {
		if !isFinite(raw) {
			return nil, scoreerr.Validation(scoreerr.InvalidZScore, string(model.Families[i]),
				"coping total overflows for the given z-scores")
		}
	}

	results := make([]model.ModeResult, len(cfg.modes))
	logits := make([]float64, len(cfg.modes))
	for i, mw := range cfg.modes {
		logit := mw.Bias
		for _, schema := range cfg.schemaOrder[mw.Mode] {
			logit += mw.Weights[schema] * z[schema]
		}

		l := cfg.lifts[mw.Mode]
		lift := model.CopingLift{S: l.S * coping.S, A: l.A * coping.A, O: l.O * coping.O}
		logit += lift.Total()

		var gateLift float64
		for _, g := range cfg.gateOrder[mw.Mode] {
			gateLift += cfg.gates[mw.Mode][g] * gates[g]
		}
		logit += gateLift
		if !isFinite(logit) {
			return nil, scoreerr.Validation(scoreerr.InvalidZScore, string(mw.Mode),
				"mode logit overflows for the given z-scores")
		}

		logits[i] = logit
		results[i] = model.ModeResult{
			Mode:          mw.Mode,
			Logit:         logit,
			Contributions: topContributions(mw.Weights, z),
			CopingLift:    lift,
			GateLift:      gateLift,
		}
	}

	probs := Softmax(logits, tau)
	for i := range results {
		results[i].Probability = probs[i]
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Probability != results[j].Probability {
			return results[i].Probability > results[j].Probability
		}
		return results[i].Mode < results[j].Mode
	})

	return &model.ScoringOutput{
		Coping:  coping,
		Modes:   results,
		Tau:     tau,
		Entropy: Entropy(probs),
		Top2Gap: Top2Gap(probs),
	}, nil
}

func (s *Scorer) validate(req Request) (map[model.SchemaID]float64, map[model.Gate]float64, float64, error) {
	tau := s.cfg.opts.Tau
	if req.Tau != nil {
		tau = *req.Tau
		if !(tau > 0) || math.IsInf(tau, 0) {
			return nil, nil, 0, scoreerr.Validation(scoreerr.InvalidTemperature, "tau", "tau %g must be positive", tau)
		}
	}

	z := make(map[model.SchemaID]float64, len(req.Z))
	for raw, v := range req.Z {
		id, ok := s.cfg.knownSchemas.Lookup(raw)
		if !ok {
			return nil, nil, 0, scoreerr.Validation(scoreerr.UnknownIdentifier, raw, "schema is not in the schema registry")
		}
		if !isFinite(v) {
			return nil, nil, 0, scoreerr.Validation(scoreerr.InvalidZScore, raw, "z-score %g is not finite", v)
		}
		if _, dup := z[id]; dup {
			return nil, nil, 0, scoreerr.Validation(scoreerr.InvalidZScore, raw, "z-score for %s given twice", id)
		}
		z[id] = v
	}

	gates := make(map[model.Gate]float64, len(req.Gates))
	for raw, v := range req.Gates {
		g := model.Gate(registry.NormalizeID(raw))
		if _, ok := s.cfg.gateNames[g]; !ok {
			return nil, nil, 0, scoreerr.Validation(scoreerr.UnknownIdentifier, raw, "gate is not configured")
		}
		if !(v >= 0 && v <= 1) {
			return nil, nil, 0, scoreerr.Validation(scoreerr.OutOfRangeGate, raw, "gate value %g outside [0,1]", v)
		}
		gates[g] = v
	}

	return z, gates, tau, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
