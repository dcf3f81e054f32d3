package calendarfeed

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/campusnote/termcycle/internal/domain/calendar"
)

// ParseXLSX reads the same four columns as ParseCSV from a workbook sheet.
// An empty sheet name selects the first sheet.
func ParseXLSX(r io.Reader, sheet string) ([]calendar.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, nil
		}
		sheet = sheets[0]
	}

	cells, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	rows := make([]calendar.Row, 0, len(cells))
	for _, record := range cells {
		if row, ok := rowFromCells(record); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}
