package feedback

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aliuyar1234/feedbackiq/internal/ai"
)

const feedbackColumns = `id, organization_id, project_id, text, source, topic, sentiment, summary, keywords, created_at`

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanFeedback(row pgx.Row) (*Feedback, error) {
	var (
		f         Feedback
		projectID uuid.NullUUID
		sentiment string
	)
	if err := row.Scan(&f.ID, &f.OrgID, &projectID, &f.Text, &f.Source, &f.Topic,
		&sentiment, &f.Summary, &f.Keywords, &f.CreatedAt); err != nil {
		return nil, err
	}
	if projectID.Valid {
		f.ProjectID = &projectID.UUID
	}
	f.Sentiment = ai.Sentiment(sentiment)
	if f.Keywords == nil {
		f.Keywords = []string{}
	}
	return &f, nil
}

// Insert stores one classified feedback record.
func (s *Store) Insert(ctx context.Context, in NewFeedback) (*Feedback, error) {
	keywords := in.Analysis.Keywords
	if keywords == nil {
		keywords = []string{}
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO feedback (organization_id, project_id, text, source, topic, sentiment, summary, keywords)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+feedbackColumns,
		in.OrgID, in.ProjectID, in.Text, in.Source, in.Analysis.Topic,
		string(in.Analysis.Sentiment), in.Analysis.Summary, keywords)

	f, err := scanFeedback(row)
	if err != nil {
		return nil, fmt.Errorf("failed to insert feedback: %w", err)
	}
	return f, nil
}

// buildWhere returns the WHERE clause and its arguments for f.
func buildWhere(orgID uuid.UUID, f ListFilter) (string, []any) {
	clauses := []string{"organization_id = $1"}
	args := []any{orgID}

	if f.ProjectID != nil {
		args = append(args, *f.ProjectID)
		clauses = append(clauses, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if f.Topic != "" {
		args = append(args, f.Topic)
		clauses = append(clauses, fmt.Sprintf("topic = $%d", len(args)))
	}
	if f.Sentiment != "" {
		args = append(args, f.Sentiment)
		clauses = append(clauses, fmt.Sprintf("sentiment = $%d", len(args)))
	}
	return strings.Join(clauses, " AND "), args
}

// List returns feedback of orgID newest first.
func (s *Store) List(ctx context.Context, orgID uuid.UUID, f ListFilter) ([]Feedback, error) {
	where, args := buildWhere(orgID, f)
	args = append(args, clampLimit(f.Limit))

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM feedback
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d
	`, feedbackColumns, where, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	out := []Feedback{}
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		out = append(out, *fb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback rows: %w", err)
	}
	return out, nil
}

// Each streams every feedback record of orgID, oldest first, to fn.
func (s *Store) Each(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID, fn func(Feedback) error) error {
	where, args := buildWhere(orgID, ListFilter{ProjectID: projectID})

	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM feedback
		WHERE %s
		ORDER BY created_at ASC, id ASC
	`, feedbackColumns, where), args...)
	if err != nil {
		return fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return fmt.Errorf("failed to scan feedback: %w", err)
		}
		if err := fn(*fb); err != nil {
			return err
		}
	}
	return rows.Err()
}
