package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shplep/homecontentslistpro-sub000/internal/core/importer"
)

// DecodeJSON accepts either an array of objects or {"rows": [...]}.
// Numbers are kept as json.Number so prices keep their precision.
func DecodeJSON(r io.Reader, limits Limits) ([]importer.RawRow, error) {
	data, err := io.ReadAll(textReader(r))
	if err != nil {
		return nil, fmt.Errorf("read json: %w", err)
	}
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Rows json.RawMessage `json:"rows"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		data = wrapped.Rows
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var rows []importer.RawRow
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode json rows: %w", err)
	}
	if err := limits.check(len(rows)); err != nil {
		return nil, err
	}
	for i, row := range rows {
		if row == nil {
			rows[i] = importer.RawRow{}
		}
	}
	return rows, nil
}
