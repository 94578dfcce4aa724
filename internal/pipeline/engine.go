// Package pipeline loads every startup table once and exposes the scoring
// core as an immutable Engine shared by the CLI and the HTTP server.
package pipeline

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/schema-engine/internal/config"
	"github.com/sells-group/schema-engine/internal/model"
	"github.com/sells-group/schema-engine/internal/modescore"
	"github.com/sells-group/schema-engine/internal/normalize"
	"github.com/sells-group/schema-engine/internal/scoreerr"
	"github.com/sells-group/schema-engine/internal/selector"
)

// Engine bundles the normalizer, selector, fallback policy and mode scorer.
// Nothing in it is mutated after construction, so one Engine serves any
// number of goroutines.
type Engine struct {
	normalizer *normalize.Normalizer
	selector   *selector.Selector
	policy     selector.FallbackPolicy
	scorer     *modescore.Scorer
}

// New assembles an Engine from already-built parts. A nil policy means
// strict.
func New(n *normalize.Normalizer, sel *selector.Selector, policy selector.FallbackPolicy, scorer *modescore.Scorer) *Engine {
	if policy == nil {
		policy = selector.StrictPolicy{}
	}
	return &Engine{normalizer: n, selector: sel, policy: policy, scorer: scorer}
}

// Load reads every table named in cfg and builds the Engine. Any table
// problem is fatal and returned as a configuration error.
func Load(cfg *config.Config) (*Engine, error) {
	start := time.Now()

	mcfg, err := modescore.LoadConfig(cfg.Tables.TableFiles, cfg.Modes.Options)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load mode scoring config")
	}

	tbls, err := normalize.LoadTables(cfg.Tables.InstrumentsPath())
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load instrument tables")
	}

	policy, err := selector.PolicyByName(cfg.Selector.Fallback)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: resolve fallback policy")
	}

	e := New(
		normalize.New(tbls, mcfg.Schemas()),
		selector.New(cfg.Selector.Thresholds, tbls.Priorities()),
		policy,
		modescore.NewScorer(mcfg),
	)

	zap.L().Info("pipeline: engine ready",
		zap.String("tables_dir", cfg.Tables.Dir),
		zap.String("fallback", policy.Name()),
		zap.Int("modes", len(mcfg.Modes())),
		zap.Duration("elapsed", time.Since(start)),
	)
	return e, nil
}

// Policy returns the configured fallback policy.
func (e *Engine) Policy() selector.FallbackPolicy { return e.policy }

// Scorer returns the mode scorer.
func (e *Engine) Scorer() *modescore.Scorer { return e.scorer }

// NormalizeRequest is a batch of item responses for one instrument.
type NormalizeRequest struct {
	Instrument model.Instrument        `json:"instrument"`
	Items      []model.RawItemResponse `json:"items"`
}

// Normalize converts item responses to T-scores. On NoValidItems the
// partial result with every failure is returned with the error.
func (e *Engine) Normalize(req NormalizeRequest) (*normalize.Result, error) {
	return e.normalizer.Normalize(req.Items, req.Instrument)
}

// AssessRequest normalizes and selects, optionally chaining into mode
// scoring with z-scores derived from the ranked schema candidates.
type AssessRequest struct {
	NormalizeRequest
	ScoreModes bool               `json:"score_modes,omitempty"`
	Gates      map[string]float64 `json:"gates,omitempty"`
	Tau        *float64           `json:"tau,omitempty"`
}

// Assess runs normalization, selection and the fallback policy. An empty
// item list yields a result without a primary; a non-empty list where no
// item normalizes fails with NoValidItems.
func (e *Engine) Assess(req AssessRequest) (*model.Assessment, error) {
	norm, err := e.normalizer.Normalize(req.Items, req.Instrument)
	if err != nil && !(len(req.Items) == 0 && scoreerr.HasCode(err, scoreerr.NoValidItems)) {
		return nil, err
	}

	sel := e.policy.Apply(e.selector.Select(norm.Items))
	out := &model.Assessment{
		Instrument: norm.Instrument,
		Items:      norm.Items,
		Failures:   norm.Failures,
		Selection:  sel,
		Policy:     e.policy.Name(),
	}

	if req.ScoreModes {
		scored, err := e.scorer.Score(modescore.Request{
			Z:     modescore.ZFromCandidates(sel.Ranked),
			Gates: req.Gates,
			Tau:   req.Tau,
		})
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: score modes")
		}
		out.Modes = scored
	}

	zap.L().Debug("pipeline: assessment complete",
		zap.String("instrument", out.Instrument),
		zap.Int("items", len(out.Items)),
		zap.Int("failures", len(out.Failures)),
		zap.Bool("has_primary", sel.HasPrimary()),
		zap.Float64("confidence", sel.Confidence),
	)
	return out, nil
}

// ScoreModes scores a mode request directly.
func (e *Engine) ScoreModes(req modescore.Request) (*model.ScoringOutput, error) {
	return e.scorer.Score(req)
}
