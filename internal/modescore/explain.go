package modescore

import (
	"math"
	"sort"

	"github.com/sells-group/schema-engine/internal/model"
)

// maxContributions is how many schema terms each mode explanation keeps.
const maxContributions = 5

// topContributions returns the non-zero weight·z terms of a mode ordered by
// descending magnitude, ties by schema id, truncated to maxContributions.
func topContributions(weights map[model.SchemaID]float64, z map[model.SchemaID]float64) []model.Contribution {
	out := make([]model.Contribution, 0, len(weights))
	for s, w := range weights {
		v := w * z[s]
		if v == 0 {
			continue
		}
		out = append(out, model.Contribution{SchemaID: s, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].Value), math.Abs(out[j].Value)
		if ai != aj {
			return ai > aj
		}
		return out[i].SchemaID < out[j].SchemaID
	})
	if len(out) > maxContributions {
		out = out[:maxContributions]
	}
	return out
}
