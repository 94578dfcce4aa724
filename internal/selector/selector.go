// Package selector ranks schemas by their aggregated T-scores and picks the
// primary, secondary and tertiary schemas through a deterministic tie-break
// chain.
package selector

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sells-group/schema-engine/internal/model"
)

const thresholdTolerance = 1e-9

// Thresholds controls pool membership. All bounds are inclusive.
type Thresholds struct {
	PrimaryMin        float64 `json:"primary_min" mapstructure:"primary_min"`
	SecondaryMin      float64 `json:"secondary_min" mapstructure:"secondary_min"`
	TertiaryMin       float64 `json:"tertiary_min" mapstructure:"tertiary_min"`
	MaxSecondaryDelta float64 `json:"max_secondary_delta" mapstructure:"max_secondary_delta"`
	MaxTertiaryDelta  float64 `json:"max_tertiary_delta" mapstructure:"max_tertiary_delta"`
	TieWindow         float64 `json:"tie_window" mapstructure:"tie_window"`
}

// DefaultThresholds returns the standard clinical thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		PrimaryMin:        60,
		SecondaryMin:      50,
		TertiaryMin:       50,
		MaxSecondaryDelta: 12,
		MaxTertiaryDelta:  15,
		TieWindow:         0.5,
	}
}

// Selector picks salient schemas from normalized items. It is immutable and
// safe for concurrent use.
type Selector struct {
	th       Thresholds
	priority map[string]int
	rules    []Rule
}

// New returns a Selector. instrumentPriority may be nil; instruments are
// looked up by label and then by the name before any '@'.
func New(th Thresholds, instrumentPriority map[string]int) *Selector {
	s := &Selector{th: th, priority: make(map[string]int, len(instrumentPriority))}
	for k, v := range instrumentPriority {
		s.priority[k] = v
	}
	s.rules = Chain(th.TieWindow, s.instrumentPriority)
	return s
}

// Thresholds returns the selector's thresholds.
func (s *Selector) Thresholds() Thresholds {
	return s.th
}

func (s *Selector) instrumentPriority(instrument string) int {
	if p, ok := s.priority[instrument]; ok {
		return p
	}
	if name, _, found := strings.Cut(instrument, "@"); found {
		return s.priority[name]
	}
	return 0
}

// Aggregate groups items by schema and returns candidates ranked by
// descending T-score, ties ordered by id.
func Aggregate(items []model.NormalizedItem) []model.SchemaCandidate {
	type acc struct {
		weighted    float64
		weight      float64
		count       int
		instruments map[string]int
	}
	groups := make(map[model.SchemaID]*acc)
	for _, it := range items {
		a, ok := groups[it.SchemaID]
		if !ok {
			a = &acc{instruments: make(map[string]int)}
			groups[it.SchemaID] = a
		}
		a.weighted += it.Weight * it.TScore
		a.weight += it.Weight
		a.count++
		a.instruments[it.Instrument]++
	}

	out := make([]model.SchemaCandidate, 0, len(groups))
	for id, a := range groups {
		out = append(out, model.SchemaCandidate{
			ClinicalID:  id,
			TScore:      a.weighted / a.weight,
			Reliability: math.Min(float64(a.count)/3, 1),
			ItemCount:   a.count,
			Instrument:  modalInstrument(a.instruments),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TScore != out[j].TScore {
			return out[i].TScore > out[j].TScore
		}
		return out[i].ClinicalID < out[j].ClinicalID
	})
	return out
}

func modalInstrument(counts map[string]int) string {
	best, bestN := "", -1
	for inst, n := range counts {
		if n > bestN || (n == bestN && inst < best) {
			best, bestN = inst, n
		}
	}
	return best
}

// Select runs the single deterministic selection pass. A result without a
// primary is valid and carries the maximum observed T-score.
func (s *Selector) Select(items []model.NormalizedItem) *model.SelectionResult {
	ranked := Aggregate(items)
	res := &model.SelectionResult{
		Ranked:             ranked,
		SelectionNotes:     []string{s.thresholdNote()},
		TieBreakersApplied: []string{},
	}
	if len(ranked) > 0 {
		res.MaxObservedTScore = ranked[0].TScore
	}

	primaryPool := filter(ranked, func(c model.SchemaCandidate) bool {
		return c.TScore >= s.th.PrimaryMin-thresholdTolerance
	})
	if len(primaryPool) == 0 {
		res.SelectionNotes = append(res.SelectionNotes, fmt.Sprintf(
			"no schema reached primary threshold %.1f (max observed %.2f across %d schemas)",
			s.th.PrimaryMin, res.MaxObservedTScore, len(ranked)))
		return res
	}

	primary := s.pick(res, "primary", primaryPool)
	res.Primary = &primary

	secondaryPool := filter(ranked, func(c model.SchemaCandidate) bool {
		return c.ClinicalID != primary.ClinicalID &&
			c.TScore >= s.th.SecondaryMin-thresholdTolerance &&
			primary.TScore-c.TScore <= s.th.MaxSecondaryDelta+thresholdTolerance
	})
	if len(secondaryPool) > 0 {
		secondary := s.pick(res, "secondary", secondaryPool)
		res.Secondary = &secondary
	} else {
		res.SelectionNotes = append(res.SelectionNotes, fmt.Sprintf(
			"secondary: none at or above %.1f within %.1f of primary", s.th.SecondaryMin, s.th.MaxSecondaryDelta))
	}

	tertiaryPool := filter(ranked, func(c model.SchemaCandidate) bool {
		if c.ClinicalID == primary.ClinicalID {
			return false
		}
		if res.Secondary != nil && c.ClinicalID == res.Secondary.ClinicalID {
			return false
		}
		return c.TScore >= s.th.TertiaryMin-thresholdTolerance &&
			primary.TScore-c.TScore <= s.th.MaxTertiaryDelta+thresholdTolerance
	})
	if len(tertiaryPool) > 0 {
		tertiary := s.pick(res, "tertiary", tertiaryPool)
		res.Tertiary = &tertiary
	} else {
		res.SelectionNotes = append(res.SelectionNotes, fmt.Sprintf(
			"tertiary: none at or above %.1f within %.1f of primary", s.th.TertiaryMin, s.th.MaxTertiaryDelta))
	}

	res.Confidence = Confidence(primary, res.Secondary)
	return res
}

func (s *Selector) pick(res *model.SelectionResult, slot string, pool []model.SchemaCandidate) model.SchemaCandidate {
	winner, applied := Resolve(pool, s.rules)

	note := fmt.Sprintf("%s: %s (T=%.2f) from pool of %d", slot, winner.ClinicalID, winner.TScore, len(pool))
	if len(applied) > 0 {
		note += "; tie-breakers: " + strings.Join(applied, ", ")
	}
	res.SelectionNotes = append(res.SelectionNotes, note)

	for _, name := range applied {
		if !contains(res.TieBreakersApplied, name) {
			res.TieBreakersApplied = append(res.TieBreakersApplied, name)
		}
	}
	return winner
}

func (s *Selector) thresholdNote() string {
	return fmt.Sprintf("thresholds: primary>=%.1f, secondary>=%.1f (delta<=%.1f), tertiary>=%.1f (delta<=%.1f), tie window %.2f",
		s.th.PrimaryMin, s.th.SecondaryMin, s.th.MaxSecondaryDelta, s.th.TertiaryMin, s.th.MaxTertiaryDelta, s.th.TieWindow)
}

func filter(in []model.SchemaCandidate, keep func(model.SchemaCandidate) bool) []model.SchemaCandidate {
	var out []model.SchemaCandidate
	for _, c := range in {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
