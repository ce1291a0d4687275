package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ocrlab/ocreval/internal/export"
	"github.com/ocrlab/ocreval/internal/metrics"
	"github.com/ocrlab/ocreval/internal/model"
	"github.com/ocrlab/ocreval/internal/store"
)

var (
	exportOut    string
	exportSource string
	exportEngine string
	exportTier   string
	exportLimit  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored evaluations to a CSV or XLSX file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		evals, err := st.ListEvaluations(ctx, store.EvalFilter{
			Source: model.EvalSource(exportSource),
			Engine: exportEngine,
			Tier:   metrics.Tier(exportTier),
			Limit:  exportLimit,
		})
		if err != nil {
			return eris.Wrap(err, "export: list evaluations")
		}

		if err := export.Evaluations(evals, exportOut); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("path", exportOut),
			zap.Int("evaluations", len(evals)),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path ending in .csv or .xlsx (required)")
	exportCmd.Flags().StringVar(&exportSource, "source", "", "filter by source (manual, engine, batch)")
	exportCmd.Flags().StringVar(&exportEngine, "engine", "", "filter by engine name")
	exportCmd.Flags().StringVar(&exportTier, "tier", "", "filter by rating tier")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "max evaluations to export (0 = all)")
	_ = exportCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(exportCmd)
}
