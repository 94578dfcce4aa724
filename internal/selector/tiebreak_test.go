package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/schema-engine/internal/model"
)

func cand(id string, tscore, reliability float64, count int, instrument string) model.SchemaCandidate {
	return model.SchemaCandidate{
		ClinicalID:  model.SchemaID(id),
		TScore:      tscore,
		Reliability: reliability,
		ItemCount:   count,
		Instrument:  instrument,
	}
}

func TestChain_Order(t *testing.T) {
	rules := Chain(0.5, nil)
	var names []string
	for _, r := range rules {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{
		RuleHighestTScore,
		RuleHighestReliability,
		RuleHighestItemCount,
		RuleInstrumentPriority,
		RuleLexicographicID,
	}, names)
}

func TestChain_RulesIndependently(t *testing.T) {
	priority := func(inst string) int {
		if inst == "smi" {
			return 2
		}
		return 0
	}
	rules := Chain(0.5, priority)

	pool := []model.SchemaCandidate{
		cand("b", 70, 1, 3, "ysq"),
		cand("a", 69.6, 2.0/3, 5, "smi"),
		cand("c", 69.4, 1, 4, "smi"),
	}

	tests := []struct {
		rule int
		want []model.SchemaID
	}{
		{0, []model.SchemaID{"b", "a"}},
		{1, []model.SchemaID{"b", "c"}},
		{2, []model.SchemaID{"a"}},
		{3, []model.SchemaID{"a", "c"}},
		{4, []model.SchemaID{"a"}},
	}

	for _, tt := range tests {
		t.Run(rules[tt.rule].Name, func(t *testing.T) {
			var got []model.SchemaID
			for _, c := range rules[tt.rule].Narrow(pool) {
				got = append(got, c.ClinicalID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve(t *testing.T) {
	rules := Chain(0.5, nil)

	tests := []struct {
		name    string
		pool    []model.SchemaCandidate
		want    model.SchemaID
		applied []string
	}{
		{
			"single candidate applies nothing",
			[]model.SchemaCandidate{cand("failure", 61, 1, 3, "")},
			"failure", nil,
		},
		{
			"tscore decides",
			[]model.SchemaCandidate{cand("a", 61, 1, 3, ""), cand("b", 70, 1, 3, "")},
			"b", []string{RuleHighestTScore},
		},
		{
			"full tie falls through to id",
			[]model.SchemaCandidate{cand("z", 65, 1, 3, ""), cand("m", 65, 1, 3, "")},
			"m", []string{RuleLexicographicID},
		},
		{
			"tscore then reliability",
			[]model.SchemaCandidate{
				cand("a", 60, 1, 3, ""),
				cand("b", 70, 1.0/3, 1, ""),
				cand("c", 69.8, 1, 3, ""),
			},
			"c", []string{RuleHighestTScore, RuleHighestReliability},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, applied := Resolve(tt.pool, rules)
			assert.Equal(t, tt.want, got.ClinicalID)
			assert.Equal(t, tt.applied, applied)
		})
	}
}
