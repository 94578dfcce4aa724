package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/schema-engine/internal/model"
	"github.com/sells-group/schema-engine/internal/pipeline"
	"github.com/sells-group/schema-engine/internal/store"
)

var (
	assessInput string
	assessSave  bool
	assessLabel string
	assessModes bool
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Normalize item responses and select primary, secondary and tertiary schemas",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEngine(ctx, cfg, "score", assessSave)
		if err != nil {
			return err
		}
		defer env.Close()

		var req pipeline.AssessRequest
		if err := readJSON(assessInput, &req); err != nil {
			return err
		}
		if assessModes {
			req.ScoreModes = true
		}
		return runAssess(ctx, env, req, assessLabel, os.Stdout)
	},
}

func init() {
	assessCmd.Flags().StringVar(&assessInput, "input", "-", "JSON assessment request (- for stdin)")
	assessCmd.Flags().BoolVar(&assessSave, "save", false, "persist the result to the configured store")
	assessCmd.Flags().StringVar(&assessLabel, "label", "", "label stored with the result")
	assessCmd.Flags().BoolVar(&assessModes, "modes", false, "also score modes from the selected schemas")
	rootCmd.AddCommand(assessCmd)
}

func runAssess(ctx context.Context, env *engineEnv, req pipeline.AssessRequest, label string, out io.Writer) error {
	res, err := env.Engine.Assess(req)
	if err != nil {
		return err
	}
	if env.Store != nil {
		rec, err := store.NewRecord(model.ResultKindAssessment, label, assessmentSummary(res), res)
		if err != nil {
			return err
		}
		if err := env.Store.SaveResult(ctx, rec); err != nil {
			return eris.Wrap(err, "assess: save result")
		}
		fmt.Fprintf(os.Stderr, "saved result %s\n", rec.ID)
	}
	return writeJSON(out, res)
}
