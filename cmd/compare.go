package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ocrlab/ocreval/internal/engine"
	"github.com/ocrlab/ocreval/internal/metrics"
	"github.com/ocrlab/ocreval/internal/model"
)

var (
	compareGroundTruth     string
	compareGroundTruthFile string
	compareImage           string
	compareEngines         []string
	compareJSON            bool
	compareSave            bool
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Run all configured OCR engines against an image and rank them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		groundTruth, err := readTextArg(cmd, "gt", compareGroundTruth, compareGroundTruthFile)
		if err != nil {
			return err
		}
		if err := checkTextLimit(groundTruth); err != nil {
			return err
		}

		engines, err := engine.FromConfig(cfg.Engines)
		if err != nil {
			return err
		}
		engines, err = selectEngines(engines, compareEngines)
		if err != nil {
			return err
		}

		zap.L().Info("comparing engines",
			zap.Int("engines", len(engines)),
			zap.String("image", compareImage),
		)

		results := engine.RunAll(ctx, engines, compareImage)
		ranked := metrics.CompareEngines(groundTruth, results)

		if compareSave {
			st, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			_, err = st.CreateComparison(ctx, model.ComparisonRun{
				GroundTruth: groundTruth,
				Image:       compareImage,
				Entries:     ranked,
			})
			if err != nil {
				return eris.Wrap(err, "save comparison")
			}
		}

		if compareJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(ranked)
		}

		formatComparison(os.Stdout, ranked)
		return nil
	},
}

func init() {
	compareCmd.Flags().StringVar(&compareGroundTruth, "gt", "", "ground truth text")
	compareCmd.Flags().StringVar(&compareGroundTruthFile, "gt-file", "", "file containing ground truth text")
	compareCmd.Flags().StringVar(&compareImage, "image", "", "image file to recognize (required)")
	compareCmd.Flags().StringSliceVar(&compareEngines, "engines", nil, "restrict to named engines (default all configured)")
	compareCmd.Flags().BoolVar(&compareJSON, "json", false, "output ranking as JSON")
	compareCmd.Flags().BoolVar(&compareSave, "save", false, "persist the comparison run to the store")
	_ = compareCmd.MarkFlagRequired("image")
	rootCmd.AddCommand(compareCmd)
}

// selectEngines filters engines to the requested names, preserving the
// configured order. Empty names means all engines.
func selectEngines(engines []engine.Engine, names []string) ([]engine.Engine, error) {
	if len(names) == 0 {
		return engines, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if _, err := engine.ByName(engines, name); err != nil {
			return nil, err
		}
		wanted[name] = true
	}
	selected := make([]engine.Engine, 0, len(wanted))
	for _, e := range engines {
		if wanted[e.Name()] {
			selected = append(selected, e)
		}
	}
	return selected, nil
}

// formatComparison writes the ranked engine table to w.
func formatComparison(out io.Writer, ranked []metrics.Comparison) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tENGINE\tCHAR_ACC\tWORD_ACC\tRATING\tERROR")
	_, _ = fmt.Fprintln(w, "----\t------\t--------\t--------\t------\t-----")

	for i, entry := range ranked {
		if !entry.OK {
			_, _ = fmt.Fprintf(w, "%d\t%s\t-\t-\t-\t%s\n", i+1, entry.Engine, entry.Error)
			continue
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%.2f%%\t%.2f%%\t%s\t\n",
			i+1,
			entry.Engine,
			entry.Metrics.CharacterAccuracy,
			entry.Metrics.WordAccuracy,
			metrics.Rating(entry.Metrics.CharacterAccuracy),
		)
	}
	_ = w.Flush()
}
