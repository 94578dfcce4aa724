package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/schema-engine/internal/model"
)

// readJSON decodes the file at path into v; "-" reads stdin. Unknown
// fields are rejected.
func readJSON(path string, v any) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return eris.Wrapf(err, "open %s", path)
		}
		defer f.Close() //nolint:errcheck
		r = f
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return eris.Wrapf(err, "decode %s", path)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}

// assessmentSummary is the one-line description stored with a result.
func assessmentSummary(a *model.Assessment) string {
	if a == nil || a.Selection == nil || a.Selection.Primary == nil {
		return "no_primary"
	}
	return string(a.Selection.Primary.ClinicalID)
}

func modesSummary(out *model.ScoringOutput) string {
	if out == nil || len(out.Modes) == 0 {
		return ""
	}
	return string(out.Modes[0].Mode)
}
