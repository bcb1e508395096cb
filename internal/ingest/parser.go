package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrInvalidCSV is returned when the upload is not parseable as CSV.
	ErrInvalidCSV = errors.New("invalid CSV")

	// ErrEmptyFile is returned when the upload has no data rows.
	ErrEmptyFile = errors.New("CSV file is empty or invalid")
)

// feedbackColumnHints are matched, in order, against each header.
var feedbackColumnHints = []string{"feedback", "comment", "text", "message"}

// MissingColumnError reports that no header looks like a feedback column.
type MissingColumnError struct {
	Available []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("no feedback column found (available: %s)", strings.Join(e.Available, ", "))
}

// Table is a parsed CSV upload. Headers are trimmed and lowercased; rows are
// keyed by position and may be shorter or longer than the header.
type Table struct {
	Headers []string
	Rows    [][]string
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseCSV reads a whole CSV document with a header row.
func ParseCSV(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
	}

	t := &Table{Headers: make([]string, len(header))}
	for i, h := range header {
		t.Headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCSV, err)
		}
		t.Rows = append(t.Rows, record)
	}

	if len(t.Rows) == 0 {
		return nil, ErrEmptyFile
	}
	return t, nil
}

// FindFeedbackColumn returns the index of the first header containing one of
// the feedback hints.
func FindFeedbackColumn(headers []string) (int, error) {
	for i, h := range headers {
		for _, hint := range feedbackColumnHints {
			if strings.Contains(h, hint) {
				return i, nil
			}
		}
	}
	available := make([]string, len(headers))
	copy(available, headers)
	return -1, &MissingColumnError{Available: available}
}

// Value returns the trimmed cell at col, or "" when the row is too short.
func (t *Table) Value(row, col int) string {
	record := t.Rows[row]
	if col < 0 || col >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[col])
}
