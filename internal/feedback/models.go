// Package feedback stores classified customer feedback.
package feedback

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/aliuyar1234/feedbackiq/internal/ai"
)

const (
	// SourceManual is the source recorded for manual entries without one.
	SourceManual = "Manual Entry"

	DefaultListLimit = 100
	MaxListLimit     = 500
)

var ErrInvalidSentiment = errors.New("invalid sentiment filter")

// Feedback is one stored, classified customer comment. Records are never
// updated after insert.
type Feedback struct {
	ID        uuid.UUID    `json:"id"`
	OrgID     uuid.UUID    `json:"organization_id"`
	ProjectID *uuid.UUID   `json:"project_id,omitempty"`
	Text      string       `json:"text"`
	Source    string       `json:"source"`
	Topic     string       `json:"topic"`
	Sentiment ai.Sentiment `json:"sentiment"`
	Summary   string       `json:"summary"`
	Keywords  []string     `json:"keywords"`
	CreatedAt time.Time    `json:"created_at"`
}

// NewFeedback is the input to Store.Insert.
type NewFeedback struct {
	OrgID     uuid.UUID
	ProjectID *uuid.UUID
	Text      string
	Source    string
	Analysis  ai.Analysis
}

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	ProjectID *uuid.UUID
	Topic     string
	Sentiment string
	Limit     int
}

// Invalidator is notified after feedback for an organization changes so
// derived aggregates can be dropped.
type Invalidator interface {
	Invalidate(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
