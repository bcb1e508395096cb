package ai_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aliuyar1234/feedbackiq/internal/ai"
	"github.com/aliuyar1234/feedbackiq/internal/ai/mock"
)

func TestFallbackAnalysis(t *testing.T) {
	text := strings.Repeat("é", 150)
	a := ai.FallbackAnalysis(text)
	require.Equal(t, "General", a.Topic)
	require.Equal(t, ai.Neutral, a.Sentiment)
	require.Equal(t, strings.Repeat("é", 100), a.Summary)
	require.NotNil(t, a.Keywords)
	require.Empty(t, a.Keywords)
}

func TestParseSentiment(t *testing.T) {
	require.Equal(t, ai.Positive, ai.ParseSentiment(" Positive "))
	require.Equal(t, ai.Negative, ai.ParseSentiment("NEGATIVE"))
	require.Equal(t, ai.Neutral, ai.ParseSentiment("mixed"))
}

func TestService_ClassifyWithoutProviderUsesFallback(t *testing.T) {
	svc := ai.NewService(nil, nil, time.Second)
	a, err := svc.Classify(context.Background(), "The dashboard is fine")
	require.NoError(t, err)
	require.Equal(t, ai.FallbackAnalysis("The dashboard is fine"), a)
	require.False(t, svc.Enabled())
}

func TestService_ClassifyErrorDegrades(t *testing.T) {
	c := mock.NewFailingClassifier(ai.ErrProviderUnavailable)
	svc := ai.NewService(c, nil, time.Second)

	a, err := svc.Classify(context.Background(), "Checkout keeps failing")
	require.NoError(t, err)
	require.Equal(t, "General", a.Topic)
	require.Equal(t, 1, c.Calls())
}

func TestService_ClassifyTimeoutDegrades(t *testing.T) {
	svc := ai.NewService(mock.NewTimeoutClassifier(), nil, 20*time.Millisecond)

	start := time.Now()
	a, err := svc.Classify(context.Background(), "Slow to load on mobile")
	require.NoError(t, err)
	require.Equal(t, ai.Neutral, a.Sentiment)
	require.Less(t, time.Since(start), time.Second)
}

func TestService_ClassifyCancelledParentIsAnError(t *testing.T) {
	svc := ai.NewService(mock.NewTimeoutClassifier(), nil, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Classify(ctx, "Slow to load on mobile")
	require.ErrorIs(t, err, context.Canceled)
}

func TestService_ClassifyNormalizesProviderOutput(t *testing.T) {
	c := &mock.Classifier{ClassifyFunc: func(context.Context, string) (ai.Analysis, error) {
		return ai.Analysis{Topic: " ", Sentiment: "Ecstatic", Keywords: []string{" ux ", ""}}, nil
	}}
	svc := ai.NewService(c, nil, time.Second)

	a, err := svc.Classify(context.Background(), "Love the new editor")
	require.NoError(t, err)
	require.Equal(t, "General", a.Topic)
	require.Equal(t, ai.Neutral, a.Sentiment)
	require.Equal(t, "Love the new editor", a.Summary)
	require.Equal(t, []string{"ux"}, a.Keywords)
}

func TestService_SummarizeWeek(t *testing.T) {
	items := []ai.InsightItem{{Text: "Great", Topic: "UX", Sentiment: ai.Positive}}

	text, err := ai.NewService(nil, nil, time.Second).SummarizeWeek(context.Background(), items)
	require.NoError(t, err)
	require.Equal(t, ai.InsightsUnconfigured, text)

	text, err = ai.NewService(nil, mock.NewFailingNarrator(errors.New("boom")), time.Second).
		SummarizeWeek(context.Background(), items)
	require.NoError(t, err)
	require.Equal(t, ai.InsightsFailed, text)

	text, err = ai.NewService(nil, mock.NewNarrator(""), time.Second).
		SummarizeWeek(context.Background(), items)
	require.NoError(t, err)
	require.Equal(t, ai.InsightsEmpty, text)

	text, err = ai.NewService(nil, mock.NewNarrator("Users love the UX."), time.Second).
		SummarizeWeek(context.Background(), items)
	require.NoError(t, err)
	require.Equal(t, "Users love the UX.", text)
}
