package modescore

import (
	"path/filepath"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/schema-engine/internal/model"
	"github.com/sells-group/schema-engine/internal/registry"
	"github.com/sells-group/schema-engine/internal/scoreerr"
	"github.com/sells-group/schema-engine/internal/tables"
)

// biasKey is the reserved schema_id in mode_weights rows that carries the
// mode's intercept.
const biasKey = "_bias_"

// TableFiles locates the startup tables. Relative file names resolve
// against Dir.
type TableFiles struct {
	Dir         string `mapstructure:"dir"`
	Delimiter   string `mapstructure:"delimiter"`
	Schemas     string `mapstructure:"schemas"`
	Modes       string `mapstructure:"modes"`
	ModeWeights string `mapstructure:"mode_weights"`
	CopingLifts string `mapstructure:"coping_lifts"`
	GateDeltas  string `mapstructure:"gate_deltas"`
	CopingMap   string `mapstructure:"coping_map"`
}

// DefaultTableFiles returns the standard file names under dir.
func DefaultTableFiles(dir string) TableFiles {
	return TableFiles{
		Dir:         dir,
		Delimiter:   ",",
		Schemas:     "schemas.csv",
		Modes:       "modes.csv",
		ModeWeights: "mode_weights.csv",
		CopingLifts: "coping_lifts.csv",
		GateDeltas:  "gate_deltas.csv",
		CopingMap:   "coping_map.csv",
	}
}

// Path resolves a table file name against Dir.
func (f TableFiles) Path(name string) string {
	if name == "" || filepath.IsAbs(name) || f.Dir == "" {
		return name
	}
	return filepath.Join(f.Dir, name)
}

// Delim returns the delimiter rune, defaulting to ','.
func (f TableFiles) Delim() rune {
	if f.Delimiter == "" {
		return ','
	}
	if f.Delimiter == `\t` || f.Delimiter == "tab" {
		return '\t'
	}
	return []rune(f.Delimiter)[0]
}

// ValidateDelimiter rejects a delimiter encoding/csv cannot use: more than
// one character (other than "tab"), a line break or a quote.
func (f TableFiles) ValidateDelimiter() error {
	switch {
	case f.Delimiter == "", f.Delimiter == `\t`, f.Delimiter == "tab":
		return nil
	case utf8.RuneCountInString(f.Delimiter) != 1:
		return scoreerr.Configuration(scoreerr.InvalidDelimiter, f.Delimiter,
			"table delimiter must be a single character or tab")
	case f.Delimiter == "\n" || f.Delimiter == "\r" || f.Delimiter == `"` || f.Delimiter == string(utf8.RuneError):
		return scoreerr.Configuration(scoreerr.InvalidDelimiter, f.Delimiter,
			"table delimiter %q is not usable", f.Delimiter)
	}
	return nil
}

// LoadConfig reads every mode-scoring table once and validates it against
// the schema and mode registries. Any failure is fatal.
func LoadConfig(files TableFiles, opts Options) (*Config, error) {
	if err := files.ValidateDelimiter(); err != nil {
		return nil, err
	}
	delim := files.Delim()

	schemas, err := registry.LoadSchemasFromFile(files.Path(files.Schemas), delim)
	if err != nil {
		return nil, eris.Wrap(err, "modescore: load schema registry")
	}
	modes, err := registry.LoadModesFromFile(files.Path(files.Modes), delim)
	if err != nil {
		return nil, eris.Wrap(err, "modescore: load mode registry")
	}

	spec := Spec{Options: opts, KnownSchemas: schemas, KnownModes: modes}

	if spec.Modes, err = loadModeWeights(files.Path(files.ModeWeights), delim, schemas, modes); err != nil {
		return nil, eris.Wrap(err, "modescore: load mode weights")
	}
	if spec.Lifts, err = loadCopingLifts(files.Path(files.CopingLifts), delim, modes); err != nil {
		return nil, eris.Wrap(err, "modescore: load coping lifts")
	}
	if spec.Gates, err = loadGateDeltas(files.Path(files.GateDeltas), delim, modes); err != nil {
		return nil, eris.Wrap(err, "modescore: load gate deltas")
	}
	if spec.CopingMap, err = loadCopingMap(files.Path(files.CopingMap), delim, schemas); err != nil {
		return nil, eris.Wrap(err, "modescore: load coping map")
	}

	cfg, err := NewConfig(spec)
	if err != nil {
		return nil, eris.Wrap(err, "modescore: validate config")
	}

	zap.L().Info("modescore: config loaded",
		zap.Int("modes", len(cfg.modes)),
		zap.Int("schemas", schemas.Len()),
		zap.Int("gates", len(cfg.gateNames)),
		zap.Int("coping_rows", len(cfg.copingMap)),
		zap.Float64("tau", opts.Tau),
		zap.Float64("coping_tau", opts.CopingTau),
	)
	return cfg, nil
}

func lookupMode(row tables.Row, modes *registry.Modes) (model.ModeID, error) {
	raw := row.Get("mode_id")
	id, ok := modes.Lookup(raw)
	if id == "" {
		return "", row.Malformed("empty mode_id")
	}
	if !ok {
		return "", scoreerr.Configuration(scoreerr.UnknownIdentifier, raw, "mode is not in the mode registry")
	}
	return id, nil
}

func lookupSchema(row tables.Row, schemas *registry.Schemas) (model.SchemaID, error) {
	raw := row.Get("schema_id")
	id, ok := schemas.Lookup(raw)
	if id == "" {
		return "", row.Malformed("empty schema_id")
	}
	if !ok {
		return "", scoreerr.Configuration(scoreerr.UnknownIdentifier, raw, "schema is not in the schema registry")
	}
	return id, nil
}

func loadModeWeights(path string, delim rune, schemas *registry.Schemas, modes *registry.Modes) ([]ModeWeights, error) {
	tbl, err := tables.Read(path, tables.Options{Delimiter: delim, Required: []string{"mode_id", "schema_id", "weight"}})
	if err != nil {
		return nil, err
	}

	byMode := make(map[model.ModeID]*ModeWeights)
	var order []model.ModeID
	for _, row := range tbl.Rows {
		mode, err := lookupMode(row, modes)
		if err != nil {
			return nil, err
		}
		w, err := row.Float("weight")
		if err != nil {
			return nil, err
		}
		mw, ok := byMode[mode]
		if !ok {
			mw = &ModeWeights{Mode: mode, Weights: make(map[model.SchemaID]float64)}
			byMode[mode] = mw
			order = append(order, mode)
		}

		if registry.NormalizeID(row.Get("schema_id")) == biasKey {
			mw.Bias = w
			continue
		}
		schema, err := lookupSchema(row, schemas)
		if err != nil {
			return nil, err
		}
		if _, dup := mw.Weights[schema]; dup {
			return nil, row.Malformed("duplicate weight for %s/%s", mode, schema)
		}
		mw.Weights[schema] = w
	}

	out := make([]ModeWeights, 0, len(order))
	for _, m := range order {
		out = append(out, *byMode[m])
	}
	return out, nil
}

func loadCopingLifts(path string, delim rune, modes *registry.Modes) (map[model.ModeID]model.CopingLift, error) {
	tbl, err := tables.Read(path, tables.Options{Delimiter: delim, Required: []string{"mode_id", "lift_s", "lift_a", "lift_o"}})
	if err != nil {
		return nil, err
	}

	out := make(map[model.ModeID]model.CopingLift, len(tbl.Rows))
	for _, row := range tbl.Rows {
		mode, err := lookupMode(row, modes)
		if err != nil {
			return nil, err
		}
		var lift model.CopingLift
		if lift.S, err = row.Float("lift_s"); err != nil {
			return nil, err
		}
		if lift.A, err = row.Float("lift_a"); err != nil {
			return nil, err
		}
		if lift.O, err = row.Float("lift_o"); err != nil {
			return nil, err
		}
		if _, dup := out[mode]; dup {
			return nil, row.Malformed("duplicate coping lift for %s", mode)
		}
		out[mode] = lift
	}
	return out, nil
}

func loadGateDeltas(path string, delim rune, modes *registry.Modes) (map[model.ModeID]map[model.Gate]float64, error) {
	tbl, err := tables.Read(path, tables.Options{Delimiter: delim, Required: []string{"mode_id", "gate", "delta"}})
	if err != nil {
		return nil, err
	}

	out := make(map[model.ModeID]map[model.Gate]float64)
	for _, row := range tbl.Rows {
		mode, err := lookupMode(row, modes)
		if err != nil {
			return nil, err
		}
		gate := model.Gate(registry.NormalizeID(row.Get("gate")))
		if gate == "" {
			return nil, row.Malformed("empty gate")
		}
		d, err := row.Float("delta")
		if err != nil {
			return nil, err
		}
		if out[mode] == nil {
			out[mode] = make(map[model.Gate]float64)
		}
		if _, dup := out[mode][gate]; dup {
			return nil, row.Malformed("duplicate gate delta for %s/%s", mode, gate)
		}
		out[mode][gate] = d
	}
	return out, nil
}

func loadCopingMap(path string, delim rune, schemas *registry.Schemas) ([]CopingRow, error) {
	tbl, err := tables.Read(path, tables.Options{Delimiter: delim, Required: []string{"family", "schema_id", "weight"}})
	if err != nil {
		return nil, err
	}

	out := make([]CopingRow, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		fam, ok := ParseFamily(row.Get("family"))
		if !ok {
			return nil, row.Malformed("unknown coping family %q", row.Get("family"))
		}
		schema, err := lookupSchema(row, schemas)
		if err != nil {
			return nil, err
		}
		w, err := row.Float("weight")
		if err != nil {
			return nil, err
		}
		out = append(out, CopingRow{Family: fam, Schema: schema, Weight: w})
	}
	return out, nil
}

// ParseFamily accepts a family letter or its full name.
func ParseFamily(s string) (model.Family, bool) {
	switch registry.NormalizeID(s) {
	case "s", "surrender":
		return model.FamilySurrender, true
	case "a", "avoidance":
		return model.FamilyAvoidance, true
	case "o", "overcompensation":
		return model.FamilyOvercompensation, true
	}
	return "", false
}
