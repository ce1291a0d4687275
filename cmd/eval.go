package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ocrlab/ocreval/internal/dataset"
	"github.com/ocrlab/ocreval/internal/metrics"
	"github.com/ocrlab/ocreval/internal/model"
)

var (
	evalGroundTruth     string
	evalGroundTruthFile string
	evalPredicted       string
	evalPredictedFile   string
	evalLabel           string
	evalJSON            bool
	evalSave            bool
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate predicted text against ground truth",
	Long:  "Computes Levenshtein distance, character/word accuracy, and error rates for a single ground-truth / predicted pair.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		groundTruth, err := readTextArg(cmd, "gt", evalGroundTruth, evalGroundTruthFile)
		if err != nil {
			return err
		}
		predicted, err := readTextArg(cmd, "pred", evalPredicted, evalPredictedFile)
		if err != nil {
			return err
		}
		if err := checkTextLimit(groundTruth, predicted); err != nil {
			return err
		}

		m := metrics.Detailed(groundTruth, predicted)
		tier := metrics.Rating(m.CharacterAccuracy)

		if evalSave {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			_, err = st.CreateEvaluation(ctx, model.Evaluation{
				Source:      model.SourceManual,
				Label:       evalLabel,
				GroundTruth: groundTruth,
				Predicted:   predicted,
				Metrics:     m,
				Tier:        tier,
			})
			if err != nil {
				return eris.Wrap(err, "save evaluation")
			}
		}

		if evalJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Metrics metrics.Result `json:"metrics"`
				Rating  metrics.Tier   `json:"rating"`
			}{m, tier})
		}

		formatMetrics(os.Stdout, m, tier)
		return nil
	},
}

func init() {
	evalCmd.Flags().StringVar(&evalGroundTruth, "gt", "", "ground truth text")
	evalCmd.Flags().StringVar(&evalGroundTruthFile, "gt-file", "", "file containing ground truth text")
	evalCmd.Flags().StringVar(&evalPredicted, "pred", "", "predicted text")
	evalCmd.Flags().StringVar(&evalPredictedFile, "pred-file", "", "file containing predicted text")
	evalCmd.Flags().StringVar(&evalLabel, "label", "", "label stored with the evaluation")
	evalCmd.Flags().BoolVar(&evalJSON, "json", false, "output metrics as JSON")
	evalCmd.Flags().BoolVar(&evalSave, "save", false, "persist the evaluation to the store")
	rootCmd.AddCommand(evalCmd)
}

// readTextArg resolves a text input from either an inline flag or a file
// flag. An explicitly set empty inline value is valid input; setting neither
// flag is an error.
func readTextArg(cmd *cobra.Command, flag, inline, filePath string) (string, error) {
	if filePath != "" {
		return dataset.ReadTextFile(filePath)
	}
	if !cmd.Flags().Changed(flag) {
		return "", eris.Errorf("missing input: --%s or --%s-file is required", flag, flag)
	}
	return inline, nil
}

// checkTextLimit rejects inputs past the configured code-point bound before
// they reach the quadratic distance computation.
func checkTextLimit(texts ...string) error {
	limit := cfg.Limits.MaxTextLen
	if limit <= 0 {
		return nil
	}
	for _, s := range texts {
		if n := utf8.RuneCountInString(s); n > limit {
			return eris.Errorf("input of %d characters exceeds the %d character limit", n, limit)
		}
	}
	return nil
}

// formatMetrics writes a tabular metrics summary to w.
func formatMetrics(out io.Writer, m metrics.Result, tier metrics.Tier) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Character accuracy:\t%.2f%%\n", m.CharacterAccuracy)
	_, _ = fmt.Fprintf(w, "Word accuracy:\t%.2f%%\n", m.WordAccuracy)
	_, _ = fmt.Fprintf(w, "Character error rate:\t%.2f%%\n", m.CharacterErrorRate)
	_, _ = fmt.Fprintf(w, "Word error rate:\t%.2f%%\n", m.WordErrorRate)
	_, _ = fmt.Fprintf(w, "Levenshtein distance:\t%d\n", m.LevenshteinDistance)
	_, _ = fmt.Fprintf(w, "Ground truth:\t%d chars, %d words\n", m.GroundTruthLength, m.GroundTruthWordCount)
	_, _ = fmt.Fprintf(w, "Predicted:\t%d chars, %d words\n", m.PredictedLength, m.PredictedWordCount)
	_, _ = fmt.Fprintf(w, "Rating:\t%s\n", tier)
	_ = w.Flush()
}
