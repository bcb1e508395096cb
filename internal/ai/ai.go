// Package ai defines the feedback classifier and weekly narrative generator
// and the degradation rules applied when they fail.
package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/aliuyar1234/feedbackiq/internal/validation"
)

var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)

// Sentiment is one of the three stored polarity values.
type Sentiment string

const (
	Positive Sentiment = "positive"
	Neutral  Sentiment = "neutral"
	Negative Sentiment = "negative"
)

// ParseSentiment maps provider output onto a stored value; anything
// unrecognized is neutral.
func ParseSentiment(s string) Sentiment {
	switch Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case Positive:
		return Positive
	case Negative:
		return Negative
	default:
		return Neutral
	}
}

const (
	DefaultTopic       = "General"
	FallbackSummaryLen = 100
)

// Analysis is the classifier output for one feedback text.
type Analysis struct {
	Topic     string    `json:"topic"`
	Sentiment Sentiment `json:"sentiment"`
	Summary   string    `json:"summary"`
	Keywords  []string  `json:"keywords"`
}

// InsightItem is one feedback line handed to the narrative generator.
type InsightItem struct {
	Text      string
	Topic     string
	Sentiment Sentiment
}

type Classifier interface {
	Classify(ctx context.Context, text string) (Analysis, error)
}

type Narrator interface {
	SummarizeWeek(ctx context.Context, items []InsightItem) (string, error)
}

// FallbackAnalysis is used whenever no classifier is configured or the
// classifier fails.
func FallbackAnalysis(text string) Analysis {
	return Analysis{
		Topic:     DefaultTopic,
		Sentiment: Neutral,
		Summary:   validation.Truncate(text, FallbackSummaryLen),
		Keywords:  []string{},
	}
}

// normalize fills gaps a provider may leave in an otherwise valid answer.
func normalize(a Analysis, text string) Analysis {
	a.Topic = strings.TrimSpace(a.Topic)
	if a.Topic == "" {
		a.Topic = DefaultTopic
	}
	a.Sentiment = ParseSentiment(string(a.Sentiment))
	a.Summary = strings.TrimSpace(a.Summary)
	if a.Summary == "" {
		a.Summary = validation.Truncate(text, FallbackSummaryLen)
	}
	keywords := make([]string, 0, len(a.Keywords))
	for _, k := range a.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	a.Keywords = keywords
	return a
}
