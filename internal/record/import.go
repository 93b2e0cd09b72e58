package record

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ppiankov/docscrape/internal/model"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadCSV reads a CSV file whose first row is the header of raw field names.
// Short rows yield only the cells present; cells past the header get an empty name.
func ReadCSV(path string) ([]Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCSV(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
}

// ParseCSV reads rows from r; see ReadCSV
func ParseCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var rows []Row
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}

		row := make(Row, 0, len(fields))
		for i, v := range fields {
			var name string
			if i < len(header) {
				name = header[i]
			}
			row = append(row, Cell{Name: name, Value: v})
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Import reads a CSV file and maps every row into a canonical record
func Import(path string, m *Mapper) ([]model.Record, error) {
	rows, err := ReadCSV(path)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}

	if len(rows) > 0 {
		if unmapped := m.Unmapped(rows[0]); len(unmapped) > 0 {
			slog.Debug("columns without alias", "file", path, "field", model.OtherField, "columns", unmapped)
		}
	}

	records := make([]model.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, m.Map(row))
	}
	return records, nil
}
