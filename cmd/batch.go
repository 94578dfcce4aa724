package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"sync/atomic"
	"syscall"

	"github.com/montanaflynn/stats"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/schema-engine/internal/model"
	"github.com/sells-group/schema-engine/internal/pipeline"
	"github.com/sells-group/schema-engine/internal/scoreerr"
	"github.com/sells-group/schema-engine/internal/store"
)

var (
	batchInput       string
	batchSave        bool
	batchConcurrency int
	batchModes       bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Assess every JSON request in a directory concurrently",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if batchConcurrency > 0 {
			cfg.Batch.Concurrency = batchConcurrency
		}
		env, err := initEngine(ctx, cfg, "batch", batchSave)
		if err != nil {
			return err
		}
		defer env.Close()

		files, err := filepath.Glob(filepath.Join(batchInput, "*.json"))
		if err != nil {
			return eris.Wrap(err, "batch: list input")
		}
		sort.Strings(files)

		report, err := processBatch(ctx, env.Engine, files, cfg.Batch.Concurrency, batchModes)
		if err != nil {
			return err
		}
		if env.Store != nil {
			if err := saveBatch(ctx, env.Store, report); err != nil {
				return err
			}
		}
		return writeJSON(os.Stdout, report)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchInput, "input", ".", "directory of JSON assessment requests")
	batchCmd.Flags().BoolVar(&batchSave, "save", false, "persist every assessment to the configured store")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max concurrent assessments (default from config)")
	batchCmd.Flags().BoolVar(&batchModes, "modes", false, "also score modes for every assessment")
	rootCmd.AddCommand(batchCmd)
}

// batchItem is the outcome for one input file.
type batchItem struct {
	File       string            `json:"file"`
	Assessment *model.Assessment `json:"assessment,omitempty"`
	Error      string            `json:"error,omitempty"`
	Code       string            `json:"code,omitempty"`
}

// batchSummary aggregates confidence over the assessments with a primary.
type batchSummary struct {
	Files            int            `json:"files"`
	Succeeded        int            `json:"succeeded"`
	Failed           int            `json:"failed"`
	WithPrimary      int            `json:"with_primary"`
	ConfidenceMean   float64        `json:"confidence_mean"`
	ConfidenceMedian float64        `json:"confidence_median"`
	ConfidenceP90    float64        `json:"confidence_p90"`
	Primaries        map[string]int `json:"primaries"`
}

type batchReport struct {
	Items   []batchItem  `json:"items"`
	Summary batchSummary `json:"summary"`
}

// processBatch assesses files concurrently. Individual failures are
// recorded in the report and never abort the batch.
func processBatch(ctx context.Context, eng *pipeline.Engine, files []string, concurrency int, scoreModes bool) (*batchReport, error) {
	report := &batchReport{Items: make([]batchItem, len(files))}
	if len(files) == 0 {
		zap.L().Info("batch: no input files found")
		report.Summary = summarize(report.Items)
		return report, nil
	}

	zap.L().Info("batch: processing",
		zap.Int("files", len(files)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			item := batchItem{File: filepath.Base(file)}
			log := zap.L().With(zap.String("file", item.File))

			var req pipeline.AssessRequest
			err := readJSON(file, &req)
			if err == nil {
				req.ScoreModes = req.ScoreModes || scoreModes
				item.Assessment, err = eng.Assess(req)
			}
			if err != nil {
				failed.Add(1)
				item.Error = err.Error()
				item.Code = string(scoreerr.CodeOf(err))
				log.Warn("batch: assessment failed", zap.Error(err))
			} else {
				succeeded.Add(1)
				log.Debug("batch: assessment complete", zap.String("primary", assessmentSummary(item.Assessment)))
			}
			report.Items[i] = item
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}

	report.Summary = summarize(report.Items)
	zap.L().Info("batch: complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Int("with_primary", report.Summary.WithPrimary),
	)
	return report, nil
}

func summarize(items []batchItem) batchSummary {
	sum := batchSummary{Files: len(items), Primaries: make(map[string]int)}
	var conf stats.Float64Data
	for _, it := range items {
		if it.Assessment == nil {
			sum.Failed++
			continue
		}
		sum.Succeeded++
		sel := it.Assessment.Selection
		if sel == nil || sel.Primary == nil || sel.Exploratory {
			continue
		}
		sum.WithPrimary++
		sum.Primaries[string(sel.Primary.ClinicalID)]++
		conf = append(conf, sel.Confidence)
	}
	if len(conf) == 0 {
		return sum
	}
	sum.ConfidenceMean, _ = conf.Mean()
	sum.ConfidenceMedian, _ = conf.Median()
	sum.ConfidenceP90, _ = conf.Percentile(90)
	return sum
}

func saveBatch(ctx context.Context, st store.Store, report *batchReport) error {
	var recs []*model.ResultRecord
	for _, it := range report.Items {
		if it.Assessment == nil {
			continue
		}
		rec, err := store.NewRecord(model.ResultKindAssessment, it.File, assessmentSummary(it.Assessment), it.Assessment)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
	}
	if err := st.SaveResults(ctx, recs); err != nil {
		return eris.Wrap(err, "batch: save results")
	}
	zap.L().Info("batch: results saved", zap.Int("records", len(recs)))
	return nil
}
