package modescore

import (
	"math"

	"github.com/sells-group/schema-engine/internal/model"
)

// EstimateCoping accumulates weight·z per coping family and passes the three
// totals through a temperature-scaled softmax. With clip set, negative z
// contributes nothing.
func EstimateCoping(z map[model.SchemaID]float64, rows []CopingRow, tau float64, clip bool) model.CopingEstimate {
	var est model.CopingEstimate
	for _, row := range rows {
		v := z[row.Schema]
		if clip {
			v = math.Max(0, v)
		}
		switch row.Family {
		case model.FamilySurrender:
			est.RawS += row.Weight * v
		case model.FamilyAvoidance:
			est.RawA += row.Weight * v
		case model.FamilyOvercompensation:
			est.RawO += row.Weight * v
		}
	}

	p := Softmax([]float64{est.RawS, est.RawA, est.RawO}, tau)
	est.S, est.A, est.O = p[0], p[1], p[2]
	return est
}
