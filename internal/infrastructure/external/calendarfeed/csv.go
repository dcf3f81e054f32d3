package calendarfeed

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/campusnote/termcycle/internal/domain/calendar"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV reads year,month,day,label rows. Rows with fewer than four
// columns are skipped and extra columns are ignored. Field contents are
// not validated here; calendar.Ingest skips malformed dates.
func ParseCSV(r io.Reader) ([]calendar.Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true

	var rows []calendar.Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		if row, ok := rowFromCells(record); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func rowFromCells(cells []string) (calendar.Row, bool) {
	if len(cells) < 4 {
		return calendar.Row{}, false
	}
	return calendar.Row{
		Year:  strings.TrimSpace(cells[0]),
		Month: strings.TrimSpace(cells[1]),
		Day:   strings.TrimSpace(cells[2]),
		Label: strings.TrimSpace(cells[3]),
	}, true
}
