package selector

import (
	"strings"

	"github.com/sells-group/schema-engine/internal/model"
)

// Tie-break rule names, in chain order.
const (
	RuleHighestTScore      = "highest_tscore"
	RuleHighestReliability = "highest_reliability"
	RuleHighestItemCount   = "highest_item_count"
	RuleInstrumentPriority = "instrument_priority"
	RuleLexicographicID    = "lexicographic_canonical_id"
	reliabilityTolerance   = 1e-9
)

// Rule narrows a candidate pool to its arg-max subset.
type Rule struct {
	Name   string
	Narrow func(pool []model.SchemaCandidate) []model.SchemaCandidate
}

// Chain returns the ordered tie-break rules. The last rule always leaves a
// single candidate since canonical ids are unique.
func Chain(tieWindow float64, priority func(instrument string) int) []Rule {
	if priority == nil {
		priority = func(string) int { return 0 }
	}
	return []Rule{
		{Name: RuleHighestTScore, Narrow: func(pool []model.SchemaCandidate) []model.SchemaCandidate {
			return argMax(pool, func(c model.SchemaCandidate) float64 { return c.TScore }, tieWindow)
		}},
		{Name: RuleHighestReliability, Narrow: func(pool []model.SchemaCandidate) []model.SchemaCandidate {
			return argMax(pool, func(c model.SchemaCandidate) float64 { return c.Reliability }, reliabilityTolerance)
		}},
		{Name: RuleHighestItemCount, Narrow: func(pool []model.SchemaCandidate) []model.SchemaCandidate {
			return argMax(pool, func(c model.SchemaCandidate) float64 { return float64(c.ItemCount) }, 0)
		}},
		{Name: RuleInstrumentPriority, Narrow: func(pool []model.SchemaCandidate) []model.SchemaCandidate {
			return argMax(pool, func(c model.SchemaCandidate) float64 { return float64(priority(c.Instrument)) }, 0)
		}},
		{Name: RuleLexicographicID, Narrow: lexicographicMin},
	}
}

// Resolve applies rules left to right until one candidate remains. It
// returns the winner and the names of the rules that removed candidates.
// pool must not be empty.
func Resolve(pool []model.SchemaCandidate, rules []Rule) (model.SchemaCandidate, []string) {
	var applied []string
	for _, r := range rules {
		if len(pool) <= 1 {
			break
		}
		next := r.Narrow(pool)
		if len(next) > 0 && len(next) < len(pool) {
			applied = append(applied, r.Name)
			pool = next
		}
	}
	if len(pool) > 1 {
		pool = lexicographicMin(pool)
	}
	return pool[0], applied
}

// argMax keeps candidates whose key is within tol of the maximum.
func argMax(pool []model.SchemaCandidate, key func(model.SchemaCandidate) float64, tol float64) []model.SchemaCandidate {
	if len(pool) == 0 {
		return pool
	}
	best := key(pool[0])
	for _, c := range pool[1:] {
		if v := key(c); v > best {
			best = v
		}
	}
	out := make([]model.SchemaCandidate, 0, len(pool))
	for _, c := range pool {
		if key(c) >= best-tol {
			out = append(out, c)
		}
	}
	return out
}

func lexicographicMin(pool []model.SchemaCandidate) []model.SchemaCandidate {
	if len(pool) == 0 {
		return pool
	}
	best := pool[0]
	for _, c := range pool[1:] {
		if strings.Compare(string(c.ClinicalID), string(best.ClinicalID)) < 0 {
			best = c
		}
	}
	return []model.SchemaCandidate{best}
}
