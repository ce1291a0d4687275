package dataset

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

func loadCSVManifest(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open manifest %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(transform.NewReader(f, unicode.UTF8BOM.NewDecoder()))
	r.FieldsPerRecord = -1 // rows may omit trailing optional columns

	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: parse manifest %s", path)
	}
	return itemsFromRows(path, rows)
}

func loadXLSXManifest(path string) ([]Item, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open manifest %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("dataset: manifest %s has no sheets", path)
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return itemsFromRows(path, rows)
}
