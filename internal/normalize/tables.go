package normalize

import (
	"math"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat/distuv"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/schema-engine/internal/model"
	"github.com/sells-group/schema-engine/internal/registry"
	"github.com/sells-group/schema-engine/internal/scoreerr"
)

// Point is one knot of a conversion table: input value X maps to T.
type Point struct {
	X float64
	T float64
}

// InstrumentTable is an instrument's raw-score to T-score table.
type InstrumentTable struct {
	Name     string
	Version  string
	Priority int
	Points   []Point
}

// Label returns the instrument label items are tagged with.
func (t *InstrumentTable) Label() string {
	return model.Instrument{Name: t.Name, Version: t.Version}.Label()
}

// Tables holds every conversion table. It is immutable after construction
// and safe for concurrent use.
type Tables struct {
	instruments map[string]*InstrumentTable
	percentile  []Point
}

// FileSpec is the YAML layout of the instrument tables file.
type FileSpec struct {
	Instruments []InstrumentSpec    `yaml:"instruments"`
	Percentiles map[float64]float64 `yaml:"percentiles"`
}

// InstrumentSpec is one instrument entry in the tables file.
type InstrumentSpec struct {
	Name     string              `yaml:"name"`
	Version  string              `yaml:"version"`
	Priority int                 `yaml:"priority"`
	Table    map[float64]float64 `yaml:"table"`
}

// LoadTables reads instrument and percentile tables from a YAML file. A
// missing file yields tables with no instruments and the default percentile
// table.
func LoadTables(path string) (*Tables, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewTables(FileSpec{})
	}
	if err != nil {
		return nil, eris.Wrapf(err, "normalize: read tables %s", path)
	}

	var spec FileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, &scoreerr.Error{
			Kind:    scoreerr.KindConfiguration,
			Code:    scoreerr.MalformedTableRow,
			Subject: path,
			Err:     eris.Wrap(err, "normalize: parse tables"),
		}
	}
	return NewTables(spec)
}

// NewTables validates a tables spec. Instruments with an empty table are a
// MissingWeightTable error; duplicate instrument labels are malformed.
func NewTables(spec FileSpec) (*Tables, error) {
	t := &Tables{instruments: make(map[string]*InstrumentTable, len(spec.Instruments)*2)}
	seen := make(map[string]bool, len(spec.Instruments))

	for _, is := range spec.Instruments {
		name := registry.NormalizeID(is.Name)
		if name == "" {
			return nil, scoreerr.Configuration(scoreerr.MalformedTableRow, "instruments", "instrument without a name")
		}
		if len(is.Table) == 0 {
			return nil, scoreerr.Configuration(scoreerr.MissingWeightTable, name, "instrument has an empty conversion table")
		}
		it := &InstrumentTable{
			Name:     name,
			Version:  registry.NormalizeID(is.Version),
			Priority: is.Priority,
			Points:   toPoints(is.Table),
		}
		label := it.Label()
		if seen[label] {
			return nil, scoreerr.Configuration(scoreerr.MalformedTableRow, label, "duplicate instrument")
		}
		seen[label] = true
		t.instruments[label] = it
		// The first entry for a name doubles as the version-less fallback.
		if _, ok := t.instruments[name]; !ok {
			t.instruments[name] = it
		}
	}

	if len(spec.Percentiles) > 0 {
		t.percentile = toPoints(spec.Percentiles)
	} else {
		t.percentile = DefaultPercentileTable()
	}
	for _, p := range t.percentile {
		if p.X < 1 || p.X > 99 {
			return nil, scoreerr.Configuration(scoreerr.MalformedTableRow, "percentiles",
				"percentile knot %g outside [1,99]", p.X)
		}
	}
	return t, nil
}

// Instrument returns the conversion table for an instrument, matching
// name@version first and then name alone. It returns nil when none exists.
func (t *Tables) Instrument(inst model.Instrument) *InstrumentTable {
	if t == nil {
		return nil
	}
	norm := model.Instrument{Name: registry.NormalizeID(inst.Name), Version: registry.NormalizeID(inst.Version)}
	if it, ok := t.instruments[norm.Label()]; ok {
		return it
	}
	return t.instruments[norm.Name]
}

// Priorities returns instrument priorities keyed by both label and name.
func (t *Tables) Priorities() map[string]int {
	out := make(map[string]int)
	if t == nil {
		return out
	}
	for key, it := range t.instruments {
		out[key] = it.Priority
	}
	return out
}

// Percentile returns the percentile to T-score table.
func (t *Tables) Percentile() []Point {
	if t == nil || len(t.percentile) == 0 {
		return DefaultPercentileTable()
	}
	return t.percentile
}

// defaultPercentileKnots are the percentiles in the default lookup table.
var defaultPercentileKnots = []float64{1, 2, 5, 10, 16, 20, 25, 30, 40, 50, 60, 70, 75, 80, 84, 90, 95, 98, 99}

// DefaultPercentileTable returns the standard-normal percentile to T-score
// table, rounded to one decimal.
func DefaultPercentileTable() []Point {
	out := make([]Point, len(defaultPercentileKnots))
	for i, p := range defaultPercentileKnots {
		tscore := 50 + 10*distuv.UnitNormal.Quantile(p/100)
		out[i] = Point{X: p, T: math.Round(tscore*10) / 10}
	}
	return out
}

func toPoints(m map[float64]float64) []Point {
	pts := make([]Point, 0, len(m))
	for x, tscore := range m {
		pts = append(pts, Point{X: x, T: tscore})
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].X < pts[j].X })
	return pts
}

// interpolate maps x through a sorted table. Exact knots are returned as is,
// values between knots are linearly interpolated and values outside the
// domain clamp to the nearest boundary T-score.
func interpolate(pts []Point, x float64) float64 {
	n := len(pts)
	if n == 0 {
		return math.NaN()
	}
	if x <= pts[0].X {
		return pts[0].T
	}
	if x >= pts[n-1].X {
		return pts[n-1].T
	}

	i := sort.Search(n, func(i int) bool { return pts[i].X >= x })
	if pts[i].X == x {
		return pts[i].T
	}
	lo, hi := pts[i-1], pts[i]
	frac := (x - lo.X) / (hi.X - lo.X)
	return lo.T + frac*(hi.T-lo.T)
}
