// Package ingest turns uploaded CSV files into classified feedback records.
package ingest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/aliuyar1234/feedbackiq/internal/ai"
	"github.com/aliuyar1234/feedbackiq/internal/feedback"
	"github.com/aliuyar1234/feedbackiq/internal/validation"
)

const (
	// DefaultSource is recorded when the upload does not name one.
	DefaultSource = "CSV Upload"

	// PreviewSize caps the records echoed back in a Result.
	PreviewSize = 10
)

// Input describes one upload.
type Input struct {
	Reader    io.Reader
	Source    string
	OrgID     uuid.UUID
	ProjectID *uuid.UUID
}

// Result summarizes an upload. Errors and Feedbacks are in file order.
type Result struct {
	Success   bool                `json:"success"`
	Processed int                 `json:"processed"`
	Errors    []string            `json:"errors,omitempty"`
	Feedbacks []feedback.Feedback `json:"feedbacks"`
}

// Pipeline classifies and stores CSV rows. Classifier calls are paced by a
// shared limiter and may run on a bounded number of workers.
type Pipeline struct {
	classifier ai.Classifier
	store      feedback.Inserter
	limiter    *rate.Limiter
	workers    int
}

// NewPipeline creates a Pipeline that starts at most one classification per
// delay. A zero delay disables pacing; workers below one means serial.
func NewPipeline(classifier ai.Classifier, store feedback.Inserter, delay time.Duration, workers int) *Pipeline {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		classifier: classifier,
		store:      store,
		limiter:    rate.NewLimiter(limit, 1),
		workers:    workers,
	}
}

type rowOutcome struct {
	feedback *feedback.Feedback
	err      string
	done     bool
}

// Run parses in.Reader and processes every row. Structural problems with the
// file (ErrInvalidCSV, ErrEmptyFile, *MissingColumnError) are returned before
// anything is classified. Per-row failures are collected in the Result. When
// ctx ends mid-run, rows already stored are kept and the partial Result is
// returned together with the context error.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	table, err := ParseCSV(in.Reader)
	if err != nil {
		return nil, err
	}
	col, err := FindFeedbackColumn(table.Headers)
	if err != nil {
		return nil, err
	}

	source := strings.TrimSpace(in.Source)
	if source == "" {
		source = DefaultSource
	}

	outcomes := make([]rowOutcome, len(table.Rows))
	g := new(errgroup.Group)
	g.SetLimit(p.workers)

	var runErr error
	for i := range table.Rows {
		text := table.Value(i, col)
		if !validation.LongEnough(text) {
			continue
		}
		if err := p.limiter.Wait(ctx); err != nil {
			// Wait also fails early when the deadline would pass first.
			runErr = ctx.Err()
			if runErr == nil {
				runErr = context.DeadlineExceeded
			}
			break
		}

		g.Go(func() error {
			outcomes[i] = p.processRow(ctx, in, source, text)
			return nil
		})
	}
	_ = g.Wait()

	res := &Result{Success: runErr == nil, Feedbacks: []feedback.Feedback{}}
	for i, o := range outcomes {
		switch {
		case !o.done:
		case o.err != "":
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: %s", i+2, o.err))
		default:
			res.Processed++
			if len(res.Feedbacks) < PreviewSize {
				res.Feedbacks = append(res.Feedbacks, *o.feedback)
			}
		}
	}

	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
		res.Success = false
	}

	log.Info().
		Str("org_id", in.OrgID.String()).
		Int("rows", len(table.Rows)).
		Int("processed", res.Processed).
		Int("failed", len(res.Errors)).
		Bool("interrupted", runErr != nil).
		Msg("CSV ingestion finished")

	return res, runErr
}

// processRow classifies and stores one row. A row abandoned because ctx ended
// is reported as not done rather than as a row error.
func (p *Pipeline) processRow(ctx context.Context, in Input, source, text string) rowOutcome {
	if ctx.Err() != nil {
		return rowOutcome{}
	}
	analysis, err := p.classifier.Classify(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return rowOutcome{}
		}
		return rowOutcome{done: true, err: err.Error()}
	}

	f, err := p.store.Insert(ctx, feedback.NewFeedback{
		OrgID:     in.OrgID,
		ProjectID: in.ProjectID,
		Text:      text,
		Source:    source,
		Analysis:  analysis,
	})
	if err != nil {
		if ctx.Err() != nil {
			return rowOutcome{}
		}
		log.Warn().Err(err).Str("org_id", in.OrgID.String()).Msg("Failed to store feedback row")
		return rowOutcome{done: true, err: "failed to store feedback"}
	}
	return rowOutcome{done: true, feedback: f}
}
