package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/schema-engine/internal/model"
	"github.com/sells-group/schema-engine/internal/modescore"
	"github.com/sells-group/schema-engine/internal/store"
)

var (
	modesRequest string
	modesTau     float64
	modesSave    bool
	modesLabel   string
)

var modesCmd = &cobra.Command{
	Use:   "modes",
	Short: "Score a probability distribution over modes from schema z-scores and gates",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEngine(ctx, cfg, "score", modesSave)
		if err != nil {
			return err
		}
		defer env.Close()

		var req modescore.Request
		if err := readJSON(modesRequest, &req); err != nil {
			return err
		}
		if cmd.Flags().Changed("tau") {
			req.Tau = &modesTau
		}
		return runModes(ctx, env, req, modesLabel, os.Stdout)
	},
}

func init() {
	modesCmd.Flags().StringVar(&modesRequest, "request", "-", "JSON scoring request (- for stdin)")
	modesCmd.Flags().Float64Var(&modesTau, "tau", modescore.DefaultTau, "softmax temperature override")
	modesCmd.Flags().BoolVar(&modesSave, "save", false, "persist the result to the configured store")
	modesCmd.Flags().StringVar(&modesLabel, "label", "", "label stored with the result")
	rootCmd.AddCommand(modesCmd)
}

func runModes(ctx context.Context, env *engineEnv, req modescore.Request, label string, out io.Writer) error {
	res, err := env.Engine.ScoreModes(req)
	if err != nil {
		return err
	}
	if env.Store != nil {
		rec, err := store.NewRecord(model.ResultKindModes, label, modesSummary(res), res)
		if err != nil {
			return err
		}
		if err := env.Store.SaveResult(ctx, rec); err != nil {
			return eris.Wrap(err, "modes: save result")
		}
		fmt.Fprintf(os.Stderr, "saved result %s\n", rec.ID)
	}
	return writeJSON(out, res)
}
