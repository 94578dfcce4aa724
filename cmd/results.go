package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/schema-engine/internal/model"
	"github.com/sells-group/schema-engine/internal/store"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Inspect persisted assessment and mode-scoring results",
}

// -- results list --

var resultsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted results, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		kind, _ := cmd.Flags().GetString("kind")
		label, _ := cmd.Flags().GetString("label")
		limit, _ := cmd.Flags().GetInt("limit")

		recs, err := st.ListResults(ctx, store.ResultFilter{
			Kind:  model.ResultKind(kind),
			Label: label,
			Limit: limit,
		})
		if err != nil {
			return eris.Wrap(err, "results list")
		}

		if len(recs) == 0 {
			fmt.Fprintln(os.Stderr, "No results found.")
			return nil
		}

		formatResultsList(os.Stdout, recs)
		return nil
	},
}

// -- results get --

var resultsGetCmd = &cobra.Command{
	Use:   "get <result-id>",
	Short: "Print the full payload of a result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.GetResult(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "results get")
		}
		return writeJSON(os.Stdout, rec)
	},
}

func init() {
	resultsListCmd.Flags().String("kind", "", "filter by kind (assessment, modes)")
	resultsListCmd.Flags().String("label", "", "filter by label")
	resultsListCmd.Flags().Int("limit", 20, "max results to show")

	resultsCmd.AddCommand(resultsListCmd)
	resultsCmd.AddCommand(resultsGetCmd)
	rootCmd.AddCommand(resultsCmd)
}

func formatResultsList(out io.Writer, recs []model.ResultRecord) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tLABEL\tSUMMARY\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t-------\t-------")

	for _, r := range recs {
		label := r.Label
		if len(label) > 30 {
			label = label[:27] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.Kind,
			label,
			r.Summary,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
