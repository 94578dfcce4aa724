package registry

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/schema-engine/internal/model"
	"github.com/sells-group/schema-engine/internal/tables"
)

// LoadSchemasFromFile reads a schema registry table with a schema_id column.
// When the file does not exist the canonical registry is returned.
func LoadSchemasFromFile(path string, delim rune) (*Schemas, error) {
	tbl, err := tables.ReadOptional(path, tables.Options{Delimiter: delim, Required: []string{"schema_id"}})
	if err != nil {
		return nil, eris.Wrap(err, "registry: read schemas table")
	}
	if tbl == nil {
		return Canonical(), nil
	}

	reg := New[model.SchemaID](column(tbl, "schema_id"))
	if reg.Len() != len(model.CanonicalSchemaIDs) {
		zap.L().Warn("registry: schema table differs in size from the canonical vocabulary",
			zap.String("path", path),
			zap.Int("schemas", reg.Len()),
			zap.Int("canonical", len(model.CanonicalSchemaIDs)),
		)
	}
	return reg, nil
}

// LoadModesFromFile reads a mode registry table with a mode_id column. A
// missing file yields a nil (open-world) registry.
func LoadModesFromFile(path string, delim rune) (*Modes, error) {
	tbl, err := tables.ReadOptional(path, tables.Options{Delimiter: delim, Required: []string{"mode_id"}})
	if err != nil {
		return nil, eris.Wrap(err, "registry: read modes table")
	}
	if tbl == nil {
		return nil, nil
	}
	return New[model.ModeID](column(tbl, "mode_id")), nil
}

func column(tbl *tables.Table, col string) []string {
	out := make([]string, 0, len(tbl.Rows))
	for _, row := range tbl.Rows {
		out = append(out, row.Get(col))
	}
	return out
}
