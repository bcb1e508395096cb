package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/aliuyar1234/feedbackiq/internal/ai"
	"github.com/aliuyar1234/feedbackiq/internal/cache"
)

const (
	// NoFeedbackMessage is the insight text for an empty window.
	NoFeedbackMessage = "No feedback available for this period."

	DefaultWindowDays = 7
	MaxWindowDays     = 90

	// MaxInsightItems is how many of the newest items reach the narrator.
	MaxInsightItems = 50

	// statsQueryTimeout bounds a shared stats query, which outlives the
	// request that started it.
	statsQueryTimeout = 30 * time.Second
)

var ErrInvalidWindow = fmt.Errorf("days must be between 1 and %d", MaxWindowDays)

// WeeklyInsights is the narrative for one window of feedback.
type WeeklyInsights struct {
	Data   string `json:"data"`
	Count  int    `json:"count"`
	Period string `json:"period"`

	// Degraded is set when Data is a fixed fallback message rather than a
	// generated narrative.
	Degraded bool `json:"-"`
}

// Service computes and caches aggregates. A nil cache or zero TTL disables
// caching.
type Service struct {
	source   Source
	narrator ai.Narrator
	cache    cache.Cache
	ttl      time.Duration
	group    singleflight.Group
	now      func() time.Time

	// generations counts invalidations per cache key. A query only writes
	// its snapshot back when no invalidation happened while it ran.
	genMu       sync.Mutex
	generations map[string]uint64
}

func NewService(source Source, narrator ai.Narrator, c cache.Cache, ttl time.Duration) *Service {
	if c == nil {
		c = cache.NopCache{}
	}
	return &Service{
		source:   source,
		narrator: narrator,
		cache:    c,
		ttl:      ttl,
		now:      time.Now,

		generations: make(map[string]uint64),
	}
}

func (s *Service) generation(key string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[key]
}

func (s *Service) bumpGeneration(keys ...string) {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	for _, k := range keys {
		s.generations[k]++
	}
}

// ComputeStats returns the aggregates for orgID, optionally narrowed to one
// project. Concurrent misses for the same key share one query.
func (s *Service) ComputeStats(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID) (*Stats, error) {
	key := cache.StatsKey(orgID, projectID)

	if s.ttl > 0 {
		if raw, found, err := s.cache.Get(ctx, key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Stats cache read failed")
		} else if found {
			var cached Stats
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
			log.Warn().Str("key", key).Msg("Discarding undecodable stats cache entry")
		}
	}

	// The shared query must not die with whichever caller started it.
	ch := s.group.DoChan(key, func() (any, error) {
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statsQueryTimeout)
		defer cancel()

		gen := s.generation(key)
		rows, err := s.source.Rows(qctx, orgID, projectID)
		if err != nil {
			return nil, err
		}
		st := Aggregate(rows, s.now())

		if s.ttl > 0 && s.generation(key) == gen {
			if raw, err := json.Marshal(st); err == nil {
				if err := s.cache.Set(qctx, key, raw, s.ttl); err != nil {
					log.Warn().Err(err).Str("key", key).Msg("Stats cache write failed")
				} else if s.generation(key) != gen {
					// Invalidated between the check and the write.
					_ = s.cache.Delete(qctx, key)
				}
			}
		}
		return st, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Stats), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops cached aggregates affected by new feedback for orgID.
// Organization-wide stats always include project feedback, so both keys go.
func (s *Service) Invalidate(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID) {
	keys := []string{cache.StatsKey(orgID, nil)}
	if projectID != nil {
		keys = append(keys, cache.StatsKey(orgID, projectID))
	}
	s.bumpGeneration(keys...)
	for _, k := range keys {
		s.group.Forget(k)
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		log.Warn().Err(err).Str("org_id", orgID.String()).Msg("Stats cache invalidation failed")
	}
}

// GenerateWeeklyInsights narrates the feedback of the last days days. An
// empty window never reaches the narrator.
func (s *Service) GenerateWeeklyInsights(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID, days int) (*WeeklyInsights, error) {
	if days < 1 || days > MaxWindowDays {
		return nil, ErrInvalidWindow
	}

	period := fmt.Sprintf("%d days", days)
	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)

	items, total, err := s.source.Window(ctx, orgID, projectID, since, MaxInsightItems)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return &WeeklyInsights{Data: NoFeedbackMessage, Count: 0, Period: period}, nil
	}

	if s.narrator == nil {
		return &WeeklyInsights{Data: ai.InsightsUnconfigured, Count: total, Period: period, Degraded: true}, nil
	}
	text, err := s.narrator.SummarizeWeek(ctx, items)
	if err != nil {
		return nil, err
	}
	return &WeeklyInsights{Data: text, Count: total, Period: period, Degraded: ai.IsFallbackInsight(text)}, nil
}
