package fetcher

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/rigsight/wellscan-cli/internal/model"
)

// LoadXLSX reads the first sheet of an XLSX listing into records. The
// first row is the header.
func LoadXLSX(ctx context.Context, path string, opts Options) ([]model.FileRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("fetcher: %s has no sheets", path)
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	idx, err := indexColumns(rowToStrings(sheet.Rows[0]), opts)
	if err != nil {
		return nil, err
	}
	source := sourceFor(path, opts)

	var records []model.FileRecord
	for _, row := range sheet.Rows[1:] {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "fetcher: read xlsx")
		}
		if rec, ok := rowToRecord(rowToStrings(row), idx, source); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
