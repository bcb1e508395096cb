package feedback

import (
	"encoding/csv"
	"io"
	"strings"
	"time"
)

var exportHeader = []string{"id", "created_at", "source", "topic", "sentiment", "summary", "keywords", "project_id", "feedback"}

// CSVWriter writes feedback records in the same column layout the upload
// endpoint accepts, so an export can be re-imported.
type CSVWriter struct {
	w    *csv.Writer
	rows int
}

func NewCSVWriter(w io.Writer) (*CSVWriter, error) {
	cw := &CSVWriter{w: csv.NewWriter(w)}
	if err := cw.w.Write(exportHeader); err != nil {
		return nil, err
	}
	return cw, nil
}

func (cw *CSVWriter) Write(f Feedback) error {
	project := ""
	if f.ProjectID != nil {
		project = f.ProjectID.String()
	}
	cw.rows++
	return cw.w.Write([]string{
		f.ID.String(),
		f.CreatedAt.UTC().Format(time.RFC3339),
		f.Source,
		f.Topic,
		string(f.Sentiment),
		f.Summary,
		strings.Join(f.Keywords, ";"),
		project,
		f.Text,
	})
}

// Rows returns the number of records written so far.
func (cw *CSVWriter) Rows() int {
	return cw.rows
}

func (cw *CSVWriter) Flush() error {
	cw.w.Flush()
	return cw.w.Error()
}
