// Package normalize converts raw item responses into standardized T-scores.
package normalize

import (
	"math"

	"github.com/sells-group/schema-engine/internal/model"
	"github.com/sells-group/schema-engine/internal/registry"
	"github.com/sells-group/schema-engine/internal/scoreerr"
)

// Result is the outcome of normalizing a batch of item responses.
type Result struct {
	Instrument string                 `json:"instrument"`
	Items      []model.NormalizedItem `json:"items"`
	Failures   []model.ItemFailure    `json:"failures,omitempty"`
}

// Normalizer converts item responses using read-only conversion tables. It
// holds no mutable state and is safe for concurrent use.
type Normalizer struct {
	tables  *Tables
	schemas *registry.Schemas
}

// New returns a Normalizer. A nil schema registry means the canonical one.
func New(tables *Tables, schemas *registry.Schemas) *Normalizer {
	if schemas == nil {
		schemas = registry.Canonical()
	}
	return &Normalizer{tables: tables, schemas: schemas}
}

// Normalize converts every item it can and reports the rest as failures. The
// call fails with NoValidItems only when no item normalizes; the partial
// result is returned alongside that error so callers can report per item.
func (n *Normalizer) Normalize(items []model.RawItemResponse, inst model.Instrument) (*Result, error) {
	label := model.Instrument{Name: registry.NormalizeID(inst.Name), Version: registry.NormalizeID(inst.Version)}.Label()
	table := n.tables.Instrument(inst)

	res := &Result{Instrument: label, Items: make([]model.NormalizedItem, 0, len(items))}
	for _, item := range items {
		ni, err := n.normalizeItem(item, table, label)
		if err != nil {
			res.Failures = append(res.Failures, failureFor(item, err))
			continue
		}
		res.Items = append(res.Items, ni)
	}

	if len(res.Items) == 0 {
		return res, scoreerr.Validation(scoreerr.NoValidItems, label,
			"none of %d items could be normalized", len(items))
	}
	return res, nil
}

func (n *Normalizer) normalizeItem(item model.RawItemResponse, table *InstrumentTable, label string) (model.NormalizedItem, error) {
	schemaID, ok := n.schemas.Lookup(item.SchemaID)
	if !ok {
		return model.NormalizedItem{}, scoreerr.Validation(scoreerr.InvalidSchemaID, item.ID,
			"schema %q is not in the canonical registry", item.SchemaID)
	}

	weight := 1.0
	if item.Weight != nil {
		weight = *item.Weight
		if math.IsNaN(weight) || math.IsInf(weight, 0) || weight <= 0 {
			return model.NormalizedItem{}, scoreerr.Validation(scoreerr.InvalidWeight, item.ID,
				"weight %g must be a positive finite number", weight)
		}
	}

	var (
		tscore float64
		method model.ConversionMethod
	)
	switch {
	case item.TScore != nil:
		tscore = *item.TScore
		if !(tscore >= model.MinTScore && tscore <= model.MaxTScore) {
			return model.NormalizedItem{}, scoreerr.Validation(scoreerr.OutOfRangeTScore, item.ID,
				"tscore %g outside [%g,%g]", tscore, model.MinTScore, model.MaxTScore)
		}
		method = model.MethodTScoreProvided

	case item.Raw != nil:
		raw := *item.Raw
		if math.IsNaN(raw) || math.IsInf(raw, 0) {
			return model.NormalizedItem{}, scoreerr.Validation(scoreerr.InvalidRawScore, item.ID,
				"raw score %g is not finite", raw)
		}
		tscore = RawToTScore(table, raw)
		method = model.MethodRawToTScore

	case item.Percentile != nil:
		p := *item.Percentile
		if !(p >= 1 && p <= 99) {
			return model.NormalizedItem{}, scoreerr.Validation(scoreerr.InvalidPercentile, item.ID,
				"percentile %g outside [1,99]", p)
		}
		tscore = interpolate(n.tables.Percentile(), p)
		method = model.MethodPercentileToTScore

	default:
		return model.NormalizedItem{}, scoreerr.Validation(scoreerr.NoConversionPath, item.ID,
			"item has none of tscore, raw or percentile")
	}

	if item.Reverse {
		tscore = 100 - tscore
	}
	clamped := false
	if tscore < model.MinTScore || tscore > model.MaxTScore {
		tscore = clamp(tscore, model.MinTScore, model.MaxTScore)
		clamped = true
	}

	return model.NormalizedItem{
		ItemID:     item.ID,
		SchemaID:   schemaID,
		TScore:     tscore,
		Method:     method,
		Instrument: label,
		Weight:     weight,
		Reversed:   item.Reverse,
		Clamped:    clamped,
	}, nil
}

// RawToTScore converts a raw score through an instrument table, or through
// the generic 1–5 Likert mapping when table is nil.
func RawToTScore(table *InstrumentTable, raw float64) float64 {
	if table == nil || len(table.Points) == 0 {
		raw = clamp(raw, 1, 5)
		return 20 + (raw-1)/4*60
	}
	return interpolate(table.Points, raw)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func failureFor(item model.RawItemResponse, err error) model.ItemFailure {
	f := model.ItemFailure{ItemID: item.ID, SchemaID: item.SchemaID, Message: err.Error()}
	if se, ok := scoreerr.As(err); ok {
		f.Code = string(se.Code)
		f.Message = se.Err.Error()
	}
	return f
}
