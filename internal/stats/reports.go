package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	// ReportWindowDays is the window covered by scheduled reports.
	ReportWindowDays = 7

	DefaultReportLimit = 20
)

// Report is a stored weekly insight narrative.
type Report struct {
	ID         uuid.UUID  `json:"id"`
	OrgID      uuid.UUID  `json:"organization_id"`
	ProjectID  *uuid.UUID `json:"project_id,omitempty"`
	PeriodDays int        `json:"period_days"`
	ItemCount  int        `json:"item_count"`
	Body       string     `json:"body"`
	CreatedAt  time.Time  `json:"created_at"`
}

type ReportStore interface {
	ActiveOrgs(ctx context.Context, since time.Time) ([]uuid.UUID, error)
	InsertReport(ctx context.Context, r *Report) error
	ListReports(ctx context.Context, orgID uuid.UUID, limit int) ([]Report, error)
}

// Reporter generates and stores the scheduled weekly reports.
type Reporter struct {
	stats *Service
	store ReportStore
}

func NewReporter(stats *Service, store ReportStore) *Reporter {
	return &Reporter{stats: stats, store: store}
}

// Run writes one report for every organization that received feedback in
// the last ReportWindowDays. A failure for one organization does not stop
// the others; the number of stored reports is returned.
func (r *Reporter) Run(ctx context.Context) (int, error) {
	since := r.stats.now().Add(-ReportWindowDays * 24 * time.Hour)
	orgs, err := r.store.ActiveOrgs(ctx, since)
	if err != nil {
		return 0, err
	}

	stored := 0
	for _, orgID := range orgs {
		if ctx.Err() != nil {
			return stored, ctx.Err()
		}

		insights, err := r.stats.GenerateWeeklyInsights(ctx, orgID, nil, ReportWindowDays)
		if err != nil {
			log.Warn().Err(err).Str("org_id", orgID.String()).Msg("Failed to generate weekly report")
			continue
		}
		if insights.Count == 0 {
			continue
		}
		if insights.Degraded {
			log.Warn().Str("org_id", orgID.String()).Str("body", insights.Data).Msg("Skipping weekly report without a generated narrative")
			continue
		}

		report := &Report{
			OrgID:      orgID,
			PeriodDays: ReportWindowDays,
			ItemCount:  insights.Count,
			Body:       insights.Data,
		}
		if err := r.store.InsertReport(ctx, report); err != nil {
			log.Warn().Err(err).Str("org_id", orgID.String()).Msg("Failed to store weekly report")
			continue
		}
		stored++
	}
	return stored, nil
}

func (r *Reporter) List(ctx context.Context, orgID uuid.UUID, limit int) ([]Report, error) {
	if limit <= 0 || limit > 100 {
		limit = DefaultReportLimit
	}
	reports, err := r.store.ListReports(ctx, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}
