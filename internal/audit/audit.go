package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const (
	EventUserSignup           = "user.signup"
	EventLoginFailed          = "auth.login_failed"
	EventOrgCreated           = "org.created"
	EventOrgUpdated           = "org.updated"
	EventOrgDeleted           = "org.deleted"
	EventOrgInviteCreated     = "org.invite_created"
	EventOrgInviteRevoked     = "org.invite_revoked"
	EventOrgInviteAccepted    = "org.invite_accepted"
	EventOrgMemberRoleUpdated = "org.member_role_updated"
	EventOrgMemberRemoved     = "org.member_removed"
	EventProjectCreated       = "project.created"
	EventProjectDeleted       = "project.deleted"
	EventFeedbackUploaded     = "feedback.uploaded"
	EventFeedbackExported     = "feedback.exported"
)

// Writer appends entries to the audit_log table.
type Writer struct {
	pool *pgxpool.Pool
}

func NewWriter(pool *pgxpool.Pool) *Writer {
	return &Writer{pool: pool}
}

// LogParams contains parameters for logging an audit event.
type LogParams struct {
	OrgID       *uuid.UUID
	ProjectID   *uuid.UUID
	ActorUserID *uuid.UUID
	Action      string
	Meta        map[string]any
}

// Log writes one entry. A nil Writer is a no-op so handlers can run without a
// database in tests.
func (w *Writer) Log(ctx context.Context, params LogParams) error {
	if w == nil || w.pool == nil {
		return nil
	}

	metaJSON := []byte("{}")
	if params.Meta != nil {
		b, err := json.Marshal(params.Meta)
		if err != nil {
			return err
		}
		metaJSON = b
	}

	_, err := w.pool.Exec(ctx, `
		INSERT INTO audit_log (org_id, project_id, actor_user_id, action, meta)
		VALUES ($1, $2, $3, $4, $5)
	`, toNullUUID(params.OrgID), toNullUUID(params.ProjectID), toNullUUID(params.ActorUserID), params.Action, metaJSON)
	if err != nil {
		log.Error().Err(err).Str("action", params.Action).Msg("Failed to write audit log")
		return err
	}

	log.Debug().
		Str("action", params.Action).
		Interface("org_id", params.OrgID).
		Interface("actor_user_id", params.ActorUserID).
		Msg("Audit event logged")
	return nil
}

func toNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func (w *Writer) LogUserSignup(ctx context.Context, userID uuid.UUID, email string) error {
	return w.Log(ctx, LogParams{
		ActorUserID: &userID,
		Action:      EventUserSignup,
		Meta:        map[string]any{"email": email},
	})
}

func (w *Writer) LogLoginFailed(ctx context.Context, email, ip string) error {
	return w.Log(ctx, LogParams{
		Action: EventLoginFailed,
		Meta:   map[string]any{"email": email, "ip": ip},
	})
}

func (w *Writer) LogOrg(ctx context.Context, action string, orgID, actorUserID uuid.UUID, meta map[string]any) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ActorUserID: &actorUserID,
		Action:      action,
		Meta:        meta,
	})
}

func (w *Writer) LogProject(ctx context.Context, action string, orgID, projectID, actorUserID uuid.UUID, name string) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ProjectID:   &projectID,
		ActorUserID: &actorUserID,
		Action:      action,
		Meta:        map[string]any{"name": name},
	})
}

func (w *Writer) LogFeedbackUploaded(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID, actorUserID uuid.UUID, processed, failed int) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ProjectID:   projectID,
		ActorUserID: &actorUserID,
		Action:      EventFeedbackUploaded,
		Meta:        map[string]any{"processed": processed, "errors": failed},
	})
}

func (w *Writer) LogFeedbackExported(ctx context.Context, orgID uuid.UUID, projectID *uuid.UUID, actorUserID uuid.UUID, rows int) error {
	return w.Log(ctx, LogParams{
		OrgID:       &orgID,
		ProjectID:   projectID,
		ActorUserID: &actorUserID,
		Action:      EventFeedbackExported,
		Meta:        map[string]any{"rows": rows},
	})
}
