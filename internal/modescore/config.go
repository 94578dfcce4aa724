// Package modescore estimates coping style and a probability distribution
// over modes from schema z-scores and context gates.
package modescore

import (
	"math"
	"sort"

	"github.com/sells-group/schema-engine/internal/model"
	"github.com/sells-group/schema-engine/internal/registry"
	"github.com/sells-group/schema-engine/internal/scoreerr"
)

// Default temperatures.
const (
	DefaultTau       = 1.5
	DefaultCopingTau = 1.25
)

// ModeWeights is one mode's linear model over schema z-scores.
type ModeWeights struct {
	Mode    model.ModeID
	Bias    float64
	Weights map[model.SchemaID]float64
}

// CopingRow maps a schema into a coping family with a weight.
type CopingRow struct {
	Family model.Family
	Schema model.SchemaID
	Weight float64
}

// Options are the scalar scoring settings.
type Options struct {
	Tau          float64 `mapstructure:"tau"`
	CopingTau    float64 `mapstructure:"coping_tau"`
	ClipNegative bool    `mapstructure:"clip_negative"`
}

// DefaultOptions returns the standard temperatures with negative z clipped
// in the coping estimate.
func DefaultOptions() Options {
	return Options{Tau: DefaultTau, CopingTau: DefaultCopingTau, ClipNegative: true}
}

// Config is the immutable mode-scoring model. Build it with NewConfig or
// LoadConfig; it is safe to share between goroutines.
type Config struct {
	opts      Options
	modes     []ModeWeights
	lifts     map[model.ModeID]model.CopingLift
	gates     map[model.ModeID]map[model.Gate]float64
	copingMap []CopingRow

	knownSchemas *registry.Schemas
	knownModes   *registry.Modes
	gateNames    map[model.Gate]struct{}

	// schemaOrder and gateOrder fix the summation order per mode so logits
	// are bit-for-bit reproducible.
	schemaOrder map[model.ModeID][]model.SchemaID
	gateOrder   map[model.ModeID][]model.Gate
}

// Spec is the raw material for a Config.
type Spec struct {
	Options      Options
	Modes        []ModeWeights
	Lifts        map[model.ModeID]model.CopingLift
	Gates        map[model.ModeID]map[model.Gate]float64
	CopingMap    []CopingRow
	KnownSchemas *registry.Schemas
	KnownModes   *registry.Modes
}

// NewConfig validates a Spec. Every failure is a configuration error.
func NewConfig(spec Spec) (*Config, error) {
	if !(spec.Options.Tau > 0) || math.IsInf(spec.Options.Tau, 0) {
		return nil, scoreerr.Configuration(scoreerr.InvalidTemperature, "tau", "tau %g must be positive", spec.Options.Tau)
	}
	if !(spec.Options.CopingTau > 0) || math.IsInf(spec.Options.CopingTau, 0) {
		return nil, scoreerr.Configuration(scoreerr.InvalidTemperature, "coping_tau", "coping tau %g must be positive", spec.Options.CopingTau)
	}
	if len(spec.Modes) == 0 {
		return nil, scoreerr.Configuration(scoreerr.MissingWeightTable, "mode_weights", "no modes configured")
	}
	if len(spec.CopingMap) == 0 {
		return nil, scoreerr.Configuration(scoreerr.MissingWeightTable, "coping_map", "no coping map rows configured")
	}

	c := &Config{
		opts:         spec.Options,
		lifts:        make(map[model.ModeID]model.CopingLift, len(spec.Lifts)),
		gates:        make(map[model.ModeID]map[model.Gate]float64, len(spec.Gates)),
		knownSchemas: spec.KnownSchemas,
		knownModes:   spec.KnownModes,
		gateNames:    make(map[model.Gate]struct{}),
		schemaOrder:  make(map[model.ModeID][]model.SchemaID, len(spec.Modes)),
		gateOrder:    make(map[model.ModeID][]model.Gate, len(spec.Gates)),
	}

	seen := make(map[model.ModeID]bool, len(spec.Modes))
	for _, mw := range spec.Modes {
		if !c.knownModes.Contains(mw.Mode) {
			return nil, scoreerr.Configuration(scoreerr.UnknownIdentifier, string(mw.Mode), "mode is not in the mode registry")
		}
		if seen[mw.Mode] {
			return nil, scoreerr.Configuration(scoreerr.MalformedTableRow, string(mw.Mode), "mode configured twice")
		}
		seen[mw.Mode] = true

		weights := make(map[model.SchemaID]float64, len(mw.Weights))
		for s, w := range mw.Weights {
			if !c.knownSchemas.Contains(s) {
				return nil, scoreerr.Configuration(scoreerr.UnknownIdentifier, string(s),
					"mode %s weights an unknown schema", mw.Mode)
			}
			weights[s] = w
			c.schemaOrder[mw.Mode] = append(c.schemaOrder[mw.Mode], s)
		}
		sortIDs(c.schemaOrder[mw.Mode])
		c.modes = append(c.modes, ModeWeights{Mode: mw.Mode, Bias: mw.Bias, Weights: weights})
	}
	sort.Slice(c.modes, func(i, j int) bool { return c.modes[i].Mode < c.modes[j].Mode })

	for m, l := range spec.Lifts {
		if !seen[m] {
			return nil, scoreerr.Configuration(scoreerr.UnknownIdentifier, string(m), "coping lift for a mode without weights")
		}
		c.lifts[m] = l
	}
	for m, deltas := range spec.Gates {
		if !seen[m] {
			return nil, scoreerr.Configuration(scoreerr.UnknownIdentifier, string(m), "gate delta for a mode without weights")
		}
		copied := make(map[model.Gate]float64, len(deltas))
		for g, d := range deltas {
			copied[g] = d
			c.gateNames[g] = struct{}{}
			c.gateOrder[m] = append(c.gateOrder[m], g)
		}
		sortIDs(c.gateOrder[m])
		c.gates[m] = copied
	}

	for _, row := range spec.CopingMap {
		switch row.Family {
		case model.FamilySurrender, model.FamilyAvoidance, model.FamilyOvercompensation:
		default:
			return nil, scoreerr.Configuration(scoreerr.MalformedTableRow, string(row.Schema), "unknown coping family %q", row.Family)
		}
		if !c.knownSchemas.Contains(row.Schema) {
			return nil, scoreerr.Configuration(scoreerr.UnknownIdentifier, string(row.Schema), "coping map references an unknown schema")
		}
		c.copingMap = append(c.copingMap, row)
	}

	return c, nil
}

// Options returns the scalar settings.
func (c *Config) Options() Options { return c.opts }

// Modes returns the configured mode ids in sorted order.
func (c *Config) Modes() []model.ModeID {
	out := make([]model.ModeID, len(c.modes))
	for i, m := range c.modes {
		out[i] = m.Mode
	}
	return out
}

// Gates returns the gate vocabulary in sorted order.
func (c *Config) Gates() []model.Gate {
	out := make([]model.Gate, 0, len(c.gateNames))
	for g := range c.gateNames {
		out = append(out, g)
	}
	sortIDs(out)
	return out
}

func sortIDs[T ~string](ids []T) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// Schemas returns the schema registry the config was validated against.
func (c *Config) Schemas() *registry.Schemas { return c.knownSchemas }
