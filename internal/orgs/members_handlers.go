package orgs

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/aliuyar1234/feedbackiq/internal/apperrors"
	"github.com/aliuyar1234/feedbackiq/internal/audit"
	"github.com/aliuyar1234/feedbackiq/internal/guard"
	"github.com/aliuyar1234/feedbackiq/internal/permissions"
)

type memberRoleRequest struct {
	Role string `json:"role"`
}

// HandleListMembers handles GET /api/v1/orgs/{org_id}/members.
func HandleListMembers(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}

		members, err := svc.ListMembers(r.Context(), gc.OrgID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to list members")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, members)
	}
}

// HandleUpdateMemberRole handles PATCH /api/v1/orgs/{org_id}/members/{user_id}.
func HandleUpdateMemberRole(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}

		targetID, err := uuid.Parse(chi.URLParam(r, "user_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid user ID")
			return
		}

		var req memberRoleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		role, err := permissions.ParseRole(req.Role)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid role")
			return
		}

		previous, err := svc.UpdateMemberRole(r.Context(), gc.OrgID, gc.UserID, targetID, role)
		if err != nil {
			writeServiceError(w, r, err, "Failed to update member role")
			return
		}

		if err := auditor.LogOrg(r.Context(), audit.EventOrgMemberRoleUpdated, gc.OrgID, gc.UserID, map[string]any{
			"target_user_id": targetID.String(),
			"previous_role":  string(previous),
			"new_role":       string(role),
		}); err != nil {
			log.Warn().Err(err).Msg("Failed to audit role update")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"user_id":       targetID,
			"role":          role,
			"previous_role": previous,
		})
	}
}

// HandleRemoveMember handles DELETE /api/v1/orgs/{org_id}/members/{user_id}.
func HandleRemoveMember(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}

		targetID, err := uuid.Parse(chi.URLParam(r, "user_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid user ID")
			return
		}

		removed, err := svc.RemoveMember(r.Context(), gc.OrgID, gc.UserID, targetID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to remove member")
			return
		}

		if err := auditor.LogOrg(r.Context(), audit.EventOrgMemberRemoved, gc.OrgID, gc.UserID, map[string]any{
			"target_user_id": targetID.String(),
			"role":           string(removed),
		}); err != nil {
			log.Warn().Err(err).Msg("Failed to audit member removal")
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"removed": true})
	}
}
