package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ocrlab/ocreval/internal/dataset"
	"github.com/ocrlab/ocreval/internal/engine"
	"github.com/ocrlab/ocreval/internal/export"
	"github.com/ocrlab/ocreval/internal/metrics"
	"github.com/ocrlab/ocreval/internal/model"
)

var (
	batchDir      string
	batchManifest string
	batchEngine   string
	batchJSON     bool
	batchSave     bool
	batchOut      string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Evaluate a dataset of ground-truth / predicted pairs",
	Long:  "Loads items from a directory of .gt.txt/.pred.txt pairs or a CSV/XLSX manifest and scores each one. Manifest rows naming an image instead of predicted text are recognized with an OCR engine first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		items, err := loadBatchItems()
		if err != nil {
			return err
		}

		results, err := runBatch(ctx, items)
		if err != nil {
			return err
		}

		evals := make([]model.Evaluation, 0, len(results))
		for _, r := range results {
			if r.Err == nil {
				evals = append(evals, r.Evaluation)
			}
		}

		if batchSave {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			for i, ev := range evals {
				created, err := st.CreateEvaluation(ctx, ev)
				if err != nil {
					return eris.Wrap(err, "save batch evaluation")
				}
				evals[i] = *created
			}
		}

		if batchOut != "" {
			if err := export.Evaluations(evals, batchOut); err != nil {
				return err
			}
			zap.L().Info("batch report written", zap.String("path", batchOut))
		}

		report := buildBatchReport(results)

		if batchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		formatBatchReport(os.Stdout, results, report)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchDir, "dir", "", "directory of <name>.gt.txt / <name>.pred.txt pairs")
	batchCmd.Flags().StringVar(&batchManifest, "manifest", "", "CSV or XLSX manifest file")
	batchCmd.Flags().StringVar(&batchEngine, "engine", "", "engine for manifest rows with images (default first configured)")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "output report as JSON")
	batchCmd.Flags().BoolVar(&batchSave, "save", false, "persist each evaluation to the store")
	batchCmd.Flags().StringVar(&batchOut, "out", "", "write a CSV or XLSX report to this path")
	batchCmd.MarkFlagsMutuallyExclusive("dir", "manifest")
	batchCmd.MarkFlagsOneRequired("dir", "manifest")
	rootCmd.AddCommand(batchCmd)
}

func loadBatchItems() ([]dataset.Item, error) {
	if batchDir != "" {
		return dataset.LoadDir(batchDir)
	}
	return dataset.LoadManifest(batchManifest)
}

// batchResult pairs one dataset item with its outcome. Err is set when the
// item needed OCR and the engine failed.
type batchResult struct {
	Item       dataset.Item     `json:"item"`
	Evaluation model.Evaluation `json:"evaluation,omitempty"`
	Err        error            `json:"-"`
}

// runBatch scores all items, running OCR where needed, bounded by the
// configured concurrency. Results keep item order.
func runBatch(ctx context.Context, items []dataset.Item) ([]batchResult, error) {
	needOCR := false
	for _, item := range items {
		if item.Predicted == "" && item.Image != "" {
			needOCR = true
			break
		}
	}

	var ocrEngine engine.Engine
	if needOCR {
		engines, err := engine.FromConfig(cfg.Engines)
		if err != nil {
			return nil, err
		}
		ocrEngine = engines[0]
		if batchEngine != "" {
			ocrEngine, err = engine.ByName(engines, batchEngine)
			if err != nil {
				return nil, err
			}
		}
	}

	results := make([]batchResult, len(items))

	limit := cfg.Batch.Concurrency
	if limit <= 0 {
		limit = 4
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			if err := checkTextLimit(item.GroundTruth, item.Predicted); err != nil {
				results[i] = batchResult{Item: item, Err: err}
				return nil
			}

			predicted := item.Predicted
			engineName := ""
			// Empty predicted text with no image is a valid degenerate
			// input scoring accuracy 0; only an image triggers OCR.
			if predicted == "" && item.Image != "" {
				text, err := ocrEngine.Recognize(gctx, item.Image)
				if err != nil {
					zap.L().Warn("batch item failed",
						zap.String("label", item.Label),
						zap.Error(err),
					)
					results[i] = batchResult{Item: item, Err: err}
					return nil
				}
				predicted = text
				engineName = ocrEngine.Name()
			}

			m := metrics.Detailed(item.GroundTruth, predicted)
			results[i] = batchResult{
				Item: item,
				Evaluation: model.Evaluation{
					Source:      model.SourceBatch,
					Engine:      engineName,
					Label:       item.Label,
					GroundTruth: item.GroundTruth,
					Predicted:   predicted,
					Metrics:     m,
					Tier:        metrics.Rating(m.CharacterAccuracy),
				},
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // goroutines always return nil

	return results, nil
}

// batchReport aggregates a batch run for output.
type batchReport struct {
	Total                 int                  `json:"total"`
	Failed                int                  `json:"failed"`
	MeanCharacterAccuracy float64              `json:"mean_character_accuracy"`
	MeanWordAccuracy      float64              `json:"mean_word_accuracy"`
	TierCounts            map[metrics.Tier]int `json:"tier_counts"`
	Results               []batchResult        `json:"results"`
}

func buildBatchReport(results []batchResult) batchReport {
	report := batchReport{
		Total:      len(results),
		TierCounts: make(map[metrics.Tier]int),
		Results:    results,
	}

	var charSum, wordSum float64
	var scored int
	for _, r := range results {
		if r.Err != nil {
			report.Failed++
			continue
		}
		scored++
		charSum += r.Evaluation.Metrics.CharacterAccuracy
		wordSum += r.Evaluation.Metrics.WordAccuracy
		report.TierCounts[r.Evaluation.Tier]++
	}
	if scored > 0 {
		report.MeanCharacterAccuracy = charSum / float64(scored)
		report.MeanWordAccuracy = wordSum / float64(scored)
	}
	return report
}

// formatBatchReport writes the per-item table and aggregate summary to w.
func formatBatchReport(out io.Writer, results []batchResult, report batchReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LABEL\tCHAR_ACC\tWORD_ACC\tDIST\tRATING")
	_, _ = fmt.Fprintln(w, "-----\t--------\t--------\t----\t------")

	for _, r := range results {
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "%s\tFAILED: %v\t\t\t\n", r.Item.Label, r.Err)
			continue
		}
		m := r.Evaluation.Metrics
		_, _ = fmt.Fprintf(w, "%s\t%.2f%%\t%.2f%%\t%d\t%s\n",
			r.Item.Label, m.CharacterAccuracy, m.WordAccuracy, m.LevenshteinDistance, r.Evaluation.Tier)
	}
	_ = w.Flush()

	fmt.Fprintf(out, "\nItems: %d (%d failed)\n", report.Total, report.Failed)
	fmt.Fprintf(out, "Mean character accuracy: %.2f%%\n", report.MeanCharacterAccuracy)
	fmt.Fprintf(out, "Mean word accuracy: %.2f%%\n", report.MeanWordAccuracy)
}
