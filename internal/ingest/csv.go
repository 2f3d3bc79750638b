package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/shplep/homecontentslistpro-sub000/internal/core/importer"
)

// DecodeCSV reads a header row followed by data rows. Columns with a blank
// header are dropped; short rows simply lack the trailing columns. Cells
// are cleaned of Excel formula wrappers and surrounding space.
func DecodeCSV(r io.Reader, limits Limits) ([]importer.RawRow, error) {
	cr := csv.NewReader(textReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	record, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	header := make([]string, len(record))
	named := 0
	for i, h := range record {
		header[i] = importer.CleanCell(h)
		if header[i] != "" {
			named++
		}
	}
	if named == 0 {
		return nil, ErrNoHeader
	}

	var rows []importer.RawRow
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		if err := limits.check(len(rows) + 1); err != nil {
			return nil, err
		}

		row := make(importer.RawRow, len(header))
		for i, cell := range record {
			if i >= len(header) || header[i] == "" {
				continue
			}
			row[header[i]] = importer.CleanCell(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
