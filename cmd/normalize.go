package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/schema-engine/internal/model"
	"github.com/sells-group/schema-engine/internal/pipeline"
)

var (
	normalizeItems      string
	normalizeInstrument string
	normalizeVersion    string
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Convert item responses to T-scores",
	Long:  "Reads a JSON array of item responses and prints each normalized item together with per-item failures.",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEngine(cmd.Context(), cfg, "score", false)
		if err != nil {
			return err
		}
		defer env.Close()

		return runNormalize(env.Engine, normalizeItems,
			model.Instrument{Name: normalizeInstrument, Version: normalizeVersion}, os.Stdout)
	},
}

func init() {
	normalizeCmd.Flags().StringVar(&normalizeItems, "items", "-", "JSON file with item responses (- for stdin)")
	normalizeCmd.Flags().StringVar(&normalizeInstrument, "instrument", "", "instrument name")
	normalizeCmd.Flags().StringVar(&normalizeVersion, "version", "", "instrument version")
	rootCmd.AddCommand(normalizeCmd)
}

// runNormalize prints the normalization result. When no item normalizes the
// partial result with its failures is still printed before the error.
func runNormalize(eng *pipeline.Engine, path string, inst model.Instrument, out io.Writer) error {
	var items []model.RawItemResponse
	if err := readJSON(path, &items); err != nil {
		return err
	}

	res, err := eng.Normalize(pipeline.NormalizeRequest{Instrument: inst, Items: items})
	if res != nil {
		if werr := writeJSON(out, res); werr != nil {
			return werr
		}
	}
	return err
}
