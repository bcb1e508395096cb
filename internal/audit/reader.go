package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Reader lists audit entries for an organization, newest first.
type Reader struct {
	pool *pgxpool.Pool
}

func NewReader(pool *pgxpool.Pool) *Reader {
	return &Reader{pool: pool}
}

type Entry struct {
	ID          uuid.UUID      `json:"id"`
	Action      string         `json:"action"`
	OrgID       uuid.UUID      `json:"org_id"`
	ProjectID   *uuid.UUID     `json:"project_id,omitempty"`
	ActorUserID *uuid.UUID     `json:"actor_user_id,omitempty"`
	ActorEmail  string         `json:"actor_email,omitempty"`
	Meta        map[string]any `json:"meta"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Filter narrows a listing. An empty Action matches every action.
type Filter struct {
	Action string
	Limit  int
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func (r *Reader) ListByOrg(ctx context.Context, orgID uuid.UUID, f Filter) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT al.id, al.org_id, al.project_id, al.actor_user_id, u.email,
		       al.action, al.meta, al.created_at
		FROM audit_log al
		LEFT JOIN users u ON u.id = al.actor_user_id
		WHERE al.org_id = $1 AND ($2 = '' OR al.action = $2)
		ORDER BY al.created_at DESC
		LIMIT $3
	`, orgID, f.Action, clampLimit(f.Limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e          Entry
			projectID  uuid.NullUUID
			actorID    uuid.NullUUID
			actorEmail *string
			metaRaw    []byte
		)
		if err := rows.Scan(&e.ID, &e.OrgID, &projectID, &actorID, &actorEmail, &e.Action, &metaRaw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		if projectID.Valid {
			e.ProjectID = &projectID.UUID
		}
		if actorID.Valid {
			e.ActorUserID = &actorID.UUID
		}
		if actorEmail != nil {
			e.ActorEmail = *actorEmail
		}
		e.Meta = map[string]any{}
		if len(metaRaw) > 0 {
			_ = json.Unmarshal(metaRaw, &e.Meta)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}
	return out, nil
}
