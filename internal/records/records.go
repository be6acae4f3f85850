// Package records reads and maintains the birthday workbook: the birthday
// list, the wishes column and the sent-message log.
package records

import (
	"context"
	"errors"
)

var (
	ErrCredentialsMissing = errors.New("spreadsheet access key missing")
	ErrTabNotFound        = errors.New("worksheet not found")
)

// Table is one worksheet. Rows and columns are 1-based like the sheet UI;
// row 1 is the header.
type Table interface {
	Name() string
	// Values returns every non-empty row from the top, header included.
	Values(ctx context.Context) ([][]string, error)
	// DeleteRow removes a row and shifts the rows below it up.
	DeleteRow(ctx context.Context, row int) error
	// WriteColumn clears col from fromRow through clearTo, then writes
	// values downward from fromRow.
	WriteColumn(ctx context.Context, col, fromRow int, values []string, clearTo int) error
	// AppendRows writes rows starting at the first row after the data.
	AppendRows(ctx context.Context, rows [][]string) error
}

type Workbook interface {
	Table(ctx context.Context, name string) (Table, error)
	Close() error
}

// Record is one data row keyed by header text.
type Record struct {
	Row    int
	Fields map[string]string
}

// Get returns the first non-empty value among the given header spellings.
func (r Record) Get(names ...string) string {
	for _, name := range names {
		if v := r.Fields[name]; v != "" {
			return v
		}
	}
	return ""
}

// Records maps rows under the header row, skipping fully blank rows.
func Records(values [][]string) []Record {
	if len(values) == 0 {
		return nil
	}
	header := values[0]
	var out []Record
	for i, row := range values[1:] {
		rec := Record{Row: i + 2, Fields: make(map[string]string, len(header))}
		blank := true
		for c, name := range header {
			if c < len(row) {
				rec.Fields[name] = row[c]
				if row[c] != "" {
					blank = false
				}
			}
		}
		if blank {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Column returns one column below the header with trailing blanks trimmed.
func Column(values [][]string, col int) []string {
	var out []string
	for _, row := range values {
		if col-1 < len(row) {
			out = append(out, row[col-1])
		} else {
			out = append(out, "")
		}
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}
