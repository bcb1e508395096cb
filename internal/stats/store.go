package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aliuyar1234/feedbackiq/internal/ai"
)

// Source reads the feedback projections the aggregator works on.
type Source interface {
	Rows(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID) ([]Row, error)
	// Window returns up to limit items created at or after since, newest
	// first, plus the total number of items in the window.
	Window(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID, since time.Time, limit int) ([]ai.InsightItem, int, error)
}

// PGStore implements Source and the report queries on Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Rows(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID) ([]Row, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT topic, sentiment, created_at
		FROM feedback
		WHERE organization_id = $1 AND ($2::uuid IS NULL OR project_id = $2)
	`, orgID, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback stats: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r         Row
			sentiment string
		)
		if err := rows.Scan(&r.Topic, &sentiment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback stats: %w", err)
		}
		r.Sentiment = ai.Sentiment(sentiment)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PGStore) Window(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID, since time.Time, limit int) ([]ai.InsightItem, int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT text, topic, sentiment, COUNT(*) OVER () AS total
		FROM feedback
		WHERE organization_id = $1
		  AND ($2::uuid IS NULL OR project_id = $2)
		  AND created_at >= $3
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`, orgID, projectID, since, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query feedback window: %w", err)
	}
	defer rows.Close()

	var (
		items []ai.InsightItem
		total int
	)
	for rows.Next() {
		var (
			item      ai.InsightItem
			sentiment string
		)
		if err := rows.Scan(&item.Text, &item.Topic, &sentiment, &total); err != nil {
			return nil, 0, fmt.Errorf("failed to scan feedback window: %w", err)
		}
		item.Sentiment = ai.Sentiment(sentiment)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating feedback window: %w", err)
	}
	return items, total, nil
}

// ActiveOrgs returns organizations with feedback created at or after since.
func (s *PGStore) ActiveOrgs(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT organization_id
		FROM feedback
		WHERE created_at >= $1
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query active organizations: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan organization id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *PGStore) InsertReport(ctx context.Context, r *Report) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO insight_reports (organization_id, project_id, period_days, item_count, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, r.OrgID, r.ProjectID, r.PeriodDays, r.ItemCount, r.Body).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert insight report: %w", err)
	}
	return nil
}

func (s *PGStore) ListReports(ctx context.Context, orgID uuid.UUID, limit int) ([]Report, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, organization_id, project_id, period_days, item_count, body, created_at
		FROM insight_reports
		WHERE organization_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list insight reports: %w", err)
	}
	defer rows.Close()

	out := []Report{}
	for rows.Next() {
		var (
			r         Report
			projectID uuid.NullUUID
		)
		if err := rows.Scan(&r.ID, &r.OrgID, &projectID, &r.PeriodDays, &r.ItemCount, &r.Body, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan insight report: %w", err)
		}
		if projectID.Valid {
			r.ProjectID = &projectID.UUID
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
