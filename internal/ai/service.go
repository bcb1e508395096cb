package ai

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// InsightsUnconfigured is returned when no narrator is configured.
	InsightsUnconfigured = "Weekly insights require OpenAI API key configuration."
	// InsightsFailed is returned when the narrator fails.
	InsightsFailed = "Error generating weekly insights."
	// InsightsEmpty is returned when the narrator answers with nothing.
	InsightsEmpty = "Unable to generate insights."
)

// IsFallbackInsight reports whether text is one of the fixed messages used
// in place of a generated narrative.
func IsFallbackInsight(text string) bool {
	switch text {
	case InsightsUnconfigured, InsightsFailed, InsightsEmpty:
		return true
	}
	return false
}

// Service wraps the providers with a per-call timeout and the fallback rules.
// Either provider may be nil.
type Service struct {
	classifier Classifier
	narrator   Narrator
	timeout    time.Duration
}

func NewService(classifier Classifier, narrator Narrator, timeout time.Duration) *Service {
	return &Service{classifier: classifier, narrator: narrator, timeout: timeout}
}

// Enabled reports whether a real classifier is configured.
func (s *Service) Enabled() bool {
	return s.classifier != nil
}

// Classify returns the provider's analysis, or the fallback analysis when the
// provider is missing, slow or broken. It only fails when ctx itself is done,
// so callers can tell a disconnect from a degraded classification.
func (s *Service) Classify(ctx context.Context, text string) (Analysis, error) {
	if s.classifier == nil {
		return FallbackAnalysis(text), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	a, err := s.classifier.Classify(callCtx, text)
	if err != nil {
		if ctx.Err() != nil {
			return Analysis{}, ctx.Err()
		}
		log.Warn().Err(err).Msg("Classifier failed, using fallback analysis")
		return FallbackAnalysis(text), nil
	}
	return normalize(a, text), nil
}

// SummarizeWeek returns the narrative for items. Provider failures become
// InsightsFailed; only a done ctx is reported as an error.
func (s *Service) SummarizeWeek(ctx context.Context, items []InsightItem) (string, error) {
	if s.narrator == nil {
		return InsightsUnconfigured, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.narrator.SummarizeWeek(callCtx, items)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Warn().Err(err).Int("items", len(items)).Msg("Narrative generation failed")
		return InsightsFailed, nil
	}
	if text == "" {
		return InsightsEmpty, nil
	}
	return text, nil
}

var (
	_ Classifier = (*Service)(nil)
	_ Narrator   = (*Service)(nil)
)
