package stats

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/aliuyar1234/feedbackiq/internal/ai"
	"github.com/aliuyar1234/feedbackiq/internal/ai/mock"
	"github.com/aliuyar1234/feedbackiq/internal/cache"
)

type fakeSource struct {
	rows      []Row
	items     []ai.InsightItem
	rowCalls  atomic.Int64
	lastSince time.Time
	lastLimit int
}

func (f *fakeSource) Rows(context.Context, uuid.UUID, *uuid.UUID) ([]Row, error) {
	f.rowCalls.Add(1)
	return f.rows, nil
}

func (f *fakeSource) Window(_ context.Context, _ uuid.UUID, _ *uuid.UUID, since time.Time, limit int) ([]ai.InsightItem, int, error) {
	f.lastSince, f.lastLimit = since, limit
	if len(f.items) > limit {
		return f.items[:limit], len(f.items), nil
	}
	return f.items, len(f.items), nil
}

type memCache struct {
	cache.NopCache
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (m *memCache) Set(_ context.Context, key string, v []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = v
	return nil
}

func (m *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestComputeStats_CachesAndInvalidates(t *testing.T) {
	src := &fakeSource{rows: []Row{{Topic: "Bugs", Sentiment: ai.Negative, CreatedAt: time.Now()}}}
	c := newMemCache()
	svc := NewService(src, nil, c, time.Minute)
	org := uuid.New()
	ctx := context.Background()

	first, err := svc.ComputeStats(ctx, org, nil)
	require.NoError(t, err)
	require.Equal(t, 1, first.Total)

	second, err := svc.ComputeStats(ctx, org, nil)
	require.NoError(t, err)
	require.Equal(t, first.ByTopic, second.ByTopic)
	require.EqualValues(t, 1, src.rowCalls.Load())

	project := uuid.New()
	svc.Invalidate(ctx, org, &project)
	_, err = svc.ComputeStats(ctx, org, nil)
	require.NoError(t, err)
	require.EqualValues(t, 2, src.rowCalls.Load())
}

func TestComputeStats_NoCacheWhenTTLZero(t *testing.T) {
	src := &fakeSource{}
	svc := NewService(src, nil, newMemCache(), 0)

	for i := 0; i < 3; i++ {
		s, err := svc.ComputeStats(context.Background(), uuid.New(), nil)
		require.NoError(t, err)
		require.Empty(t, s.VolumeOverTime)
	}
	require.EqualValues(t, 3, src.rowCalls.Load())
}

func TestGenerateWeeklyInsights_EmptyWindowSkipsNarrator(t *testing.T) {
	narrator := mock.NewNarrator("should not be used")
	svc := NewService(&fakeSource{}, narrator, nil, 0)

	got, err := svc.GenerateWeeklyInsights(context.Background(), uuid.New(), nil, DefaultWindowDays)
	require.NoError(t, err)
	require.Equal(t, &WeeklyInsights{Data: NoFeedbackMessage, Count: 0, Period: "7 days"}, got)
	require.Zero(t, narrator.Calls())
}

func TestGenerateWeeklyInsights_CapsItems(t *testing.T) {
	src := &fakeSource{}
	for i := 0; i < 120; i++ {
		src.items = append(src.items, ai.InsightItem{Text: "item", Topic: "General", Sentiment: ai.Neutral})
	}
	narrator := mock.NewNarrator("Customers are mostly neutral.")
	svc := NewService(src, narrator, nil, 0)
	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	got, err := svc.GenerateWeeklyInsights(context.Background(), uuid.New(), nil, 30)
	require.NoError(t, err)
	require.Equal(t, "Customers are mostly neutral.", got.Data)
	require.Equal(t, 120, got.Count)
	require.Equal(t, "30 days", got.Period)
	require.Equal(t, MaxInsightItems, narrator.LastItemCount())
	require.Equal(t, MaxInsightItems, src.lastLimit)
	require.Equal(t, now.AddDate(0, 0, -30), src.lastSince)
}

func TestGenerateWeeklyInsights_NarratorFailureDegrades(t *testing.T) {
	src := &fakeSource{items: []ai.InsightItem{{Text: "slow app", Topic: "Performance", Sentiment: ai.Negative}}}
	narrator := ai.NewService(nil, mock.NewFailingNarrator(errors.New("boom")), time.Second)
	svc := NewService(src, narrator, nil, 0)

	got, err := svc.GenerateWeeklyInsights(context.Background(), uuid.New(), nil, 7)
	require.NoError(t, err)
	require.Equal(t, ai.InsightsFailed, got.Data)
	require.Equal(t, 1, got.Count)
}

func TestGenerateWeeklyInsights_RejectsWindow(t *testing.T) {
	svc := NewService(&fakeSource{}, nil, nil, 0)
	for _, days := range []int{0, -1, MaxWindowDays + 1} {
		_, err := svc.GenerateWeeklyInsights(context.Background(), uuid.New(), nil, days)
		require.ErrorIs(t, err, ErrInvalidWindow)
	}
}

type fakeReportStore struct {
	orgs     []uuid.UUID
	inserted []Report
}

func (f *fakeReportStore) ActiveOrgs(context.Context, time.Time) ([]uuid.UUID, error) {
	return f.orgs, nil
}

func (f *fakeReportStore) InsertReport(_ context.Context, r *Report) error {
	r.ID = uuid.New()
	f.inserted = append(f.inserted, *r)
	return nil
}

func (f *fakeReportStore) ListReports(context.Context, uuid.UUID, int) ([]Report, error) {
	return f.inserted, nil
}

func TestReporter_Run(t *testing.T) {
	src := &fakeSource{items: []ai.InsightItem{{Text: "great", Topic: "General", Sentiment: ai.Positive}}}
	svc := NewService(src, mock.NewNarrator("All good."), nil, 0)
	store := &fakeReportStore{orgs: []uuid.UUID{uuid.New(), uuid.New()}}

	n, err := NewReporter(svc, store).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, store.inserted, 2)
	require.Equal(t, "All good.", store.inserted[0].Body)
	require.Equal(t, ReportWindowDays, store.inserted[0].PeriodDays)
	require.Equal(t, 1, store.inserted[0].ItemCount)
}

// gatedSource snapshots its rows and then waits on release during the first
// Rows call, honoring ctx while it waits.
type gatedSource struct {
	fakeSource
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func newGatedSource() *gatedSource {
	return &gatedSource{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedSource) setRows(rows []Row) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rows = rows
}

func (g *gatedSource) Rows(ctx context.Context, _ uuid.UUID, _ *uuid.UUID) ([]Row, error) {
	g.mu.Lock()
	g.calls++
	first := g.calls == 1
	rows := append([]Row(nil), g.rows...)
	g.mu.Unlock()

	if first {
		close(g.started)
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return rows, nil
}

func TestComputeStats_InvalidateDuringQueryDiscardsSnapshot(t *testing.T) {
	src := newGatedSource()
	c := newMemCache()
	svc := NewService(src, nil, c, time.Minute)
	org := uuid.New()
	ctx := context.Background()

	type result struct {
		st  *Stats
		err error
	}
	done := make(chan result, 1)
	go func() {
		st, err := svc.ComputeStats(ctx, org, nil)
		done <- result{st, err}
	}()
	<-src.started

	src.setRows([]Row{{Topic: "Bugs", Sentiment: ai.Negative, CreatedAt: time.Now()}})
	svc.Invalidate(ctx, org, nil)
	close(src.release)

	first := <-done
	require.NoError(t, first.err)
	require.Equal(t, 0, first.st.Total)

	_, cached, err := c.Get(ctx, cache.StatsKey(org, nil))
	require.NoError(t, err)
	require.False(t, cached)

	fresh, err := svc.ComputeStats(ctx, org, nil)
	require.NoError(t, err)
	require.Equal(t, 1, fresh.Total)
}

func TestComputeStats_SharedQuerySurvivesCallerCancel(t *testing.T) {
	src := newGatedSource()
	src.setRows([]Row{{Topic: "Support", Sentiment: ai.Positive, CreatedAt: time.Now()}})
	svc := NewService(src, nil, newMemCache(), time.Minute)
	org := uuid.New()

	ctx1, cancel1 := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.ComputeStats(ctx1, org, nil)
		firstErr <- err
	}()
	<-src.started

	type result struct {
		st  *Stats
		err error
	}
	second := make(chan result, 1)
	go func() {
		st, err := svc.ComputeStats(context.Background(), org, nil)
		second <- result{st, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel1()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(src.release)
	got := <-second
	require.NoError(t, got.err)
	require.Equal(t, 1, got.st.Total)
}

func TestReporter_RunSkipsFallbackNarratives(t *testing.T) {
	src := &fakeSource{items: []ai.InsightItem{{Text: "slow app", Topic: "Performance", Sentiment: ai.Negative}}}

	for name, narrator := range map[string]ai.Narrator{
		"failing narrator": ai.NewService(nil, mock.NewFailingNarrator(errors.New("boom")), time.Second),
		"no narrator":      ai.NewService(nil, nil, time.Second),
		"empty answer":     ai.NewService(nil, mock.NewNarrator(""), time.Second),
		"nil":              nil,
	} {
		t.Run(name, func(t *testing.T) {
			store := &fakeReportStore{orgs: []uuid.UUID{uuid.New()}}
			n, err := NewReporter(NewService(src, narrator, nil, 0), store).Run(context.Background())
			require.NoError(t, err)
			require.Zero(t, n)
			require.Empty(t, store.inserted)
		})
	}
}
