// Package export writes stored evaluations to CSV or XLSX files for
// downstream analysis.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/ocrlab/ocreval/internal/model"
)

// evalColumns defines the ordered output columns for evaluation exports.
var evalColumns = []string{
	"ID",
	"Source",
	"Engine",
	"Label",
	"Character Accuracy",
	"Word Accuracy",
	"Character Error Rate",
	"Word Error Rate",
	"Levenshtein Distance",
	"Rating",
	"Created At",
}

// Evaluations writes evaluations to the given path, choosing the format by
// file extension (.csv or .xlsx).
func Evaluations(evals []model.Evaluation, outputPath string) error {
	switch strings.ToLower(filepath.Ext(outputPath)) {
	case ".csv":
		return writeCSV(evals, outputPath)
	case ".xlsx":
		return writeXLSX(evals, outputPath)
	default:
		return eris.Errorf("export: unsupported format %q", filepath.Ext(outputPath))
	}
}

func writeCSV(evals []model.Evaluation, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return eris.Wrap(err, "export: create file")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(evalColumns); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, ev := range evals {
		if err := w.Write(buildRow(ev)); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "export: flush")
	}
	return nil
}

func writeXLSX(evals []model.Evaluation, outputPath string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Evaluations")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range evalColumns {
		header.AddCell().SetString(col)
	}
	for _, ev := range evals {
		row := sheet.AddRow()
		for _, v := range buildRow(ev) {
			row.AddCell().SetString(v)
		}
	}

	if err := f.Save(outputPath); err != nil {
		return eris.Wrap(err, "export: save file")
	}
	return nil
}

// buildRow maps an Evaluation to an export row.
func buildRow(ev model.Evaluation) []string {
	return []string{
		ev.ID,
		string(ev.Source),
		ev.Engine,
		ev.Label,
		formatPct(ev.Metrics.CharacterAccuracy),
		formatPct(ev.Metrics.WordAccuracy),
		formatPct(ev.Metrics.CharacterErrorRate),
		formatPct(ev.Metrics.WordErrorRate),
		fmt.Sprintf("%d", ev.Metrics.LevenshteinDistance),
		string(ev.Tier),
		ev.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
	}
}

func formatPct(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
