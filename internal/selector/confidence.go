package selector

import (
	"math"

	"github.com/sells-group/schema-engine/internal/model"
)

// Confidence scores how clearly the primary schema stands out. secondary may
// be nil.
func Confidence(primary model.SchemaCandidate, secondary *model.SchemaCandidate) float64 {
	var c float64

	switch {
	case primary.TScore >= 70:
		c += 0.5
	case primary.TScore >= 65:
		c += 0.4
	case primary.TScore >= 60:
		c += 0.3
	}

	if secondary == nil {
		c += 0.2
	} else {
		gap := primary.TScore - secondary.TScore
		switch {
		case gap >= 5:
			c += 0.2
		case gap >= 3:
			c += 0.1
		}
	}

	switch {
	case primary.Reliability >= 0.8:
		c += 0.2
	case primary.Reliability >= 0.6:
		c += 0.1
	}

	if primary.ItemCount >= 5 {
		c += 0.1
	}

	return math.Max(0, math.Min(1, c))
}
