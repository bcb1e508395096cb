package feedback

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/aliuyar1234/feedbackiq/internal/ai"
	"github.com/aliuyar1234/feedbackiq/internal/validation"
)

// Inserter persists one classified record.
type Inserter interface {
	Insert(ctx context.Context, in NewFeedback) (*Feedback, error)
}

// Service handles manual feedback entry.
type Service struct {
	store       Inserter
	classifier  ai.Classifier
	invalidator Invalidator
}

func NewService(store Inserter, classifier ai.Classifier, invalidator Invalidator) *Service {
	return &Service{store: store, classifier: classifier, invalidator: invalidator}
}

// CreateManual classifies and stores a single feedback text.
func (s *Service) CreateManual(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID, text, source string) (*Feedback, error) {
	text, err := validation.FeedbackText(text)
	if err != nil {
		return nil, err
	}
	source = strings.TrimSpace(source)
	if source == "" {
		source = SourceManual
	}

	analysis, err := s.classifier.Classify(ctx, text)
	if err != nil {
		return nil, err
	}

	f, err := s.store.Insert(ctx, NewFeedback{
		OrgID:     orgID,
		ProjectID: projectID,
		Text:      text,
		Source:    source,
		Analysis:  analysis,
	})
	if err != nil {
		return nil, err
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, orgID, projectID)
	}
	return f, nil
}
