package modescore

import "github.com/sells-group/schema-engine/internal/model"

// ZFromT converts a T-score to a z-score.
func ZFromT(t float64) float64 {
	return (t - 50) / 10
}

// ZFromCandidates builds a request z vector from aggregated schema
// candidates, so a selection can be chained into mode scoring.
func ZFromCandidates(cands []model.SchemaCandidate) map[string]float64 {
	z := make(map[string]float64, len(cands))
	for _, c := range cands {
		z[string(c.ClinicalID)] = ZFromT(c.TScore)
	}
	return z
}
