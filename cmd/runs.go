package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ocrlab/ocreval/internal/metrics"
	"github.com/ocrlab/ocreval/internal/model"
	"github.com/ocrlab/ocreval/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect evaluation history",
	Long:  "Commands for listing, viewing, summarizing, and pruning stored evaluations and comparison runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored evaluations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		source, _ := cmd.Flags().GetString("source")
		engineName, _ := cmd.Flags().GetString("engine")
		tier, _ := cmd.Flags().GetString("tier")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.EvalFilter{
			Source: model.EvalSource(source),
			Engine: engineName,
			Tier:   metrics.Tier(tier),
			Limit:  limit,
		}

		evals, err := st.ListEvaluations(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(evals) == 0 {
			fmt.Fprintln(os.Stderr, "No evaluations found.")
			return nil
		}

		formatEvalList(os.Stdout, evals)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show full details of an evaluation or comparison run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if ev, err := st.GetEvaluation(ctx, args[0]); err == nil {
			return enc.Encode(ev)
		}

		run, err := st.GetComparison(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		return enc.Encode(run)
	},
}

// -- runs comparisons --

var runsComparisonsCmd = &cobra.Command{
	Use:   "comparisons",
	Short: "List stored multi-engine comparison runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListComparisons(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs comparisons")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No comparison runs found.")
			return nil
		}

		formatComparisonList(os.Stdout, runs)
		return nil
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate evaluation statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		summary, err := st.Summarize(ctx)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatSummary(os.Stdout, summary)
		return nil
	},
}

// -- runs purge --

var runsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete evaluations older than a cutoff",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		olderThan, _ := cmd.Flags().GetDuration("older-than")
		n, err := st.PurgeEvaluations(ctx, olderThan)
		if err != nil {
			return eris.Wrap(err, "runs purge")
		}

		fmt.Fprintf(os.Stdout, "Purged %d evaluations.\n", n)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("source", "", "filter by source (manual, engine, batch)")
	runsListCmd.Flags().String("engine", "", "filter by engine name")
	runsListCmd.Flags().String("tier", "", "filter by rating tier (excellent, good, fair, poor, bad)")
	runsListCmd.Flags().Int("limit", 50, "max number of evaluations to display")

	runsComparisonsCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsPurgeCmd.Flags().Duration("older-than", 30*24*time.Hour, "delete evaluations older than this (e.g. 24h, 720h)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsComparisonsCmd)
	runsCmd.AddCommand(runsStatsCmd)
	runsCmd.AddCommand(runsPurgeCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatEvalList writes a tabular list of evaluations to w.
func formatEvalList(out io.Writer, evals []model.Evaluation) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tENGINE\tLABEL\tCHAR_ACC\tRATING\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t-----\t--------\t------\t-------")

	for _, ev := range evals {
		label := ev.Label
		if r := []rune(label); len(r) > 30 {
			label = string(r[:27]) + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f%%\t%s\t%s\n",
			truncateID(ev.ID),
			ev.Source,
			ev.Engine,
			label,
			ev.Metrics.CharacterAccuracy,
			ev.Tier,
			ev.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatComparisonList writes a tabular list of comparison runs to w.
func formatComparisonList(out io.Writer, runs []model.ComparisonRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tIMAGE\tENGINES\tBEST\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-----\t-------\t----\t-------")

	for _, run := range runs {
		best := ""
		if len(run.Entries) > 0 && run.Entries[0].OK {
			best = fmt.Sprintf("%s (%.2f%%)", run.Entries[0].Engine, run.Entries[0].Metrics.CharacterAccuracy)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			truncateID(run.ID),
			run.Image,
			len(run.Entries),
			best,
			run.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatSummary writes aggregate stats to w.
func formatSummary(out io.Writer, s *model.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total evaluations:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Mean character accuracy:\t%.2f%%\n", s.MeanCharacterAccuracy)
	_, _ = fmt.Fprintf(w, "Mean word accuracy:\t%.2f%%\n", s.MeanWordAccuracy)
	for _, tier := range []metrics.Tier{metrics.TierExcellent, metrics.TierGood, metrics.TierFair, metrics.TierPoor, metrics.TierBad} {
		if n := s.TierCounts[tier]; n > 0 {
			_, _ = fmt.Fprintf(w, "  %s:\t%d\n", tier, n)
		}
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
