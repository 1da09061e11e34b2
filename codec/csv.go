package codec

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteCSV writes a table in the staged dataset exchange format: a header
// row of column names followed by one record per row. Numeric cells are
// rendered with the shortest exact representation.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(t.Columns))
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
		for j, cell := range row {
			switch c := cell.(type) {
			case float64:
				record[j] = strconv.FormatFloat(c, 'g', -1, 64)
			case string:
				record[j] = c
			default:
				return fmt.Errorf("row %d col %d: unsupported cell type %T", i, j, cell)
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a staged dataset back into a table. Cells that parse as
// numbers become float64, everything else stays a string.
func ReadCSV(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)

	records, err := cr.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("failed to read dataset: %w", err)
	}
	if len(records) == 0 {
		return Table{}, fmt.Errorf("dataset has no header row")
	}

	t := Table{Columns: records[0]}
	for _, record := range records[1:] {
		row := make([]any, len(record))
		for j, cell := range record {
			if f, perr := strconv.ParseFloat(cell, 64); perr == nil {
				row[j] = f
			} else {
				row[j] = cell
			}
		}
		t.Rows = append(t.Rows, row)
	}

	return t, nil
}
