// Package table decodes uploaded transaction exports into scoring tables.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dvloznov/auditor-agent/internal/scoring"
)

const utf8BOM = "\ufeff"

// FormatError reports input that is not a well-formed CSV table.
type FormatError struct {
	Line int // 1-based, 0 when not tied to a line
	Err  error
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("malformed CSV at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("malformed CSV: %v", e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Read decodes a CSV document with a header row. Header names are trimmed
// and a leading byte-order mark is dropped; cell values are kept verbatim.
// Every record must have as many fields as the header.
func Read(r io.Reader) (scoring.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return scoring.Table{}, &FormatError{Err: errors.New("no header row")}
	}
	if err != nil {
		return scoring.Table{}, csvError(err)
	}

	columns := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		name = strings.TrimSpace(name)
		if seen[name] {
			return scoring.Table{}, &FormatError{Line: 1, Err: fmt.Errorf("duplicate column %q", name)}
		}
		seen[name] = true
		columns[i] = name
	}

	t := scoring.Table{Columns: columns}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return scoring.Table{}, csvError(err)
		}

		row := make(map[string]string, len(columns))
		for i, v := range rec {
			row[columns[i]] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &FormatError{Line: pe.Line, Err: pe.Err}
	}
	return fmt.Errorf("read CSV: %w", err)
}
