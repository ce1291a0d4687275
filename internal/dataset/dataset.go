// Package dataset loads evaluation inputs for batch runs: paired text files
// in a directory, or CSV/XLSX manifests. All text is normalized to UTF-8
// with any leading byte-order mark stripped, since ground-truth files often
// come out of Windows editors.
package dataset

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	groundTruthSuffix = ".gt.txt"
	predictedSuffix   = ".pred.txt"
)

// Item is one evaluation input. Either Predicted holds the candidate text
// directly, or Image names a file an OCR engine should recognize first.
type Item struct {
	Label       string `json:"label"`
	GroundTruth string `json:"ground_truth"`
	Predicted   string `json:"predicted,omitempty"`
	Image       string `json:"image,omitempty"`
}

// ReadTextFile reads a UTF-8 text file, stripping a leading BOM if present.
func ReadTextFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	data, err := io.ReadAll(transform.NewReader(f, unicode.UTF8BOM.NewDecoder()))
	if err != nil {
		return "", eris.Wrapf(err, "dataset: read %s", path)
	}
	return string(data), nil
}

// LoadDir scans a directory for <name>.gt.txt / <name>.pred.txt pairs and
// returns one Item per pair, sorted by label. A ground-truth file without a
// matching prediction is an error; stray prediction files are ignored.
func LoadDir(dir string) ([]Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read dir %s", dir)
	}

	var items []Item
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), groundTruthSuffix) {
			continue
		}
		label := strings.TrimSuffix(entry.Name(), groundTruthSuffix)

		groundTruth, err := ReadTextFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		predPath := filepath.Join(dir, label+predictedSuffix)
		predicted, err := ReadTextFile(predPath)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: %s has no matching %s%s", entry.Name(), label, predictedSuffix)
		}

		items = append(items, Item{
			Label:       label,
			GroundTruth: groundTruth,
			Predicted:   predicted,
		})
	}

	if len(items) == 0 {
		return nil, eris.Errorf("dataset: no %s files found in %s", groundTruthSuffix, dir)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items, nil
}

// LoadManifest loads items from a CSV or XLSX manifest, dispatching on the
// file extension.
func LoadManifest(path string) ([]Item, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return loadCSVManifest(path)
	case ".xlsx":
		return loadXLSXManifest(path)
	default:
		return nil, eris.Errorf("dataset: unsupported manifest format %q", filepath.Ext(path))
	}
}

// itemsFromRows converts header + data rows into Items. Recognized columns:
// label, ground_truth, predicted, image. Rows must carry a ground truth and
// either predicted text or an image path.
func itemsFromRows(path string, rows [][]string) ([]Item, error) {
	if len(rows) < 2 {
		return nil, eris.Errorf("dataset: manifest %s needs a header row and at least one data row", path)
	}

	cols := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	gtCol, ok := cols["ground_truth"]
	if !ok {
		return nil, eris.Errorf("dataset: manifest %s has no ground_truth column", path)
	}

	cell := func(row []string, col int, ok bool) string {
		if !ok || col >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[col])
	}

	labelCol, hasLabel := cols["label"]
	predCol, hasPred := cols["predicted"]
	imageCol, hasImage := cols["image"]

	items := make([]Item, 0, len(rows)-1)
	for n, row := range rows[1:] {
		item := Item{
			Label:       cell(row, labelCol, hasLabel),
			GroundTruth: cell(row, gtCol, true),
			Predicted:   cell(row, predCol, hasPred),
			Image:       cell(row, imageCol, hasImage),
		}
		if item.Predicted == "" && item.Image == "" {
			return nil, eris.Errorf("dataset: manifest %s row %d has neither predicted text nor an image", path, n+2)
		}
		items = append(items, item)
	}
	return items, nil
}
