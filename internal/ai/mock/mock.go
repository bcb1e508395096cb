// Package mock provides scriptable classifier and narrator implementations
// for tests and for running without an API key.
package mock

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/aliuyar1234/feedbackiq/internal/ai"
	"github.com/aliuyar1234/feedbackiq/internal/validation"
)

// Classifier satisfies ai.Classifier.
type Classifier struct {
	ClassifyFunc func(ctx context.Context, text string) (ai.Analysis, error)
	calls        atomic.Int64
}

func (m *Classifier) Classify(ctx context.Context, text string) (ai.Analysis, error) {
	m.calls.Add(1)
	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, text)
	}
	return ai.Analysis{}, nil
}

// Calls returns how many times Classify ran.
func (m *Classifier) Calls() int { return int(m.calls.Load()) }

// NewClassifier returns a Classifier with a keyword-based answer.
func NewClassifier() *Classifier {
	return &Classifier{ClassifyFunc: func(_ context.Context, text string) (ai.Analysis, error) {
		return keywordAnalysis(text), nil
	}}
}

// NewFailingClassifier returns a Classifier that always fails with err.
func NewFailingClassifier(err error) *Classifier {
	return &Classifier{ClassifyFunc: func(context.Context, string) (ai.Analysis, error) {
		return ai.Analysis{}, err
	}}
}

// NewTimeoutClassifier returns a Classifier that blocks until ctx is done.
func NewTimeoutClassifier() *Classifier {
	return &Classifier{ClassifyFunc: func(ctx context.Context, _ string) (ai.Analysis, error) {
		<-ctx.Done()
		return ai.Analysis{}, ai.ErrInferenceTimeout
	}}
}

// Narrator satisfies ai.Narrator.
type Narrator struct {
	SummarizeFunc func(ctx context.Context, items []ai.InsightItem) (string, error)
	calls         atomic.Int64
	lastItems     atomic.Int64
}

func (m *Narrator) SummarizeWeek(ctx context.Context, items []ai.InsightItem) (string, error) {
	m.calls.Add(1)
	m.lastItems.Store(int64(len(items)))
	if m.SummarizeFunc != nil {
		return m.SummarizeFunc(ctx, items)
	}
	return "", nil
}

func (m *Narrator) Calls() int { return int(m.calls.Load()) }

// LastItemCount is the number of items passed to the latest call.
func (m *Narrator) LastItemCount() int { return int(m.lastItems.Load()) }

func NewNarrator(text string) *Narrator {
	return &Narrator{SummarizeFunc: func(context.Context, []ai.InsightItem) (string, error) {
		return text, nil
	}}
}

func NewFailingNarrator(err error) *Narrator {
	return &Narrator{SummarizeFunc: func(context.Context, []ai.InsightItem) (string, error) {
		return "", err
	}}
}

var (
	positiveWords = []string{"love", "great", "excellent", "fast", "easy", "thanks"}
	negativeWords = []string{"hate", "bad", "slow", "broken", "crash", "expensive", "bug"}
	topics        = map[string]string{
		"price":   "Pricing",
		"bug":     "Bugs",
		"crash":   "Bugs",
		"slow":    "Performance",
		"fast":    "Performance",
		"support": "Support",
	}
)

func keywordAnalysis(text string) ai.Analysis {
	lower := strings.ToLower(text)
	a := ai.Analysis{
		Topic:     ai.DefaultTopic,
		Sentiment: ai.Neutral,
		Summary:   validation.Truncate(text, ai.FallbackSummaryLen),
		Keywords:  []string{},
	}
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			a.Sentiment = ai.Positive
			a.Keywords = append(a.Keywords, w)
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			a.Sentiment = ai.Negative
			a.Keywords = append(a.Keywords, w)
		}
	}
	for _, kw := range []string{"price", "bug", "crash", "slow", "fast", "support"} {
		if strings.Contains(lower, kw) {
			a.Topic = topics[kw]
			break
		}
	}
	return a
}

var (
	_ ai.Classifier = (*Classifier)(nil)
	_ ai.Narrator   = (*Narrator)(nil)
)
