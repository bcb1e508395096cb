package orgs

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/aliuyar1234/feedbackiq/internal/apperrors"
	"github.com/aliuyar1234/feedbackiq/internal/audit"
	"github.com/aliuyar1234/feedbackiq/internal/guard"
	"github.com/aliuyar1234/feedbackiq/internal/permissions"
)

type inviteCreateRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type inviteAcceptRequest struct {
	Token string `json:"token"`
}

// HandleCreateInvite handles POST /api/v1/orgs/{org_id}/invites. The raw
// token only travels in the email; the response carries the invite record.
func HandleCreateInvite(invites *Invites, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}

		var req inviteCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		if strings.TrimSpace(req.Role) == "" {
			req.Role = string(permissions.RoleViewer)
		}
		role, err := permissions.ParseRole(req.Role)
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid role")
			return
		}

		invite, _, err := invites.CreateInvite(r.Context(), gc.OrgID, gc.UserID, req.Email, role)
		if err != nil {
			writeServiceError(w, r, err, "Failed to create invitation")
			return
		}

		if err := auditor.LogOrg(r.Context(), audit.EventOrgInviteCreated, gc.OrgID, gc.UserID, map[string]any{
			"invite_id": invite.ID.String(),
			"email":     invite.Email,
			"role":      string(invite.Role),
		}); err != nil {
			log.Warn().Err(err).Msg("Failed to audit invite creation")
		}

		apperrors.WriteSuccess(w, r, http.StatusCreated, invite)
	}
}

// HandleListInvites handles GET /api/v1/orgs/{org_id}/invites.
func HandleListInvites(invites *Invites) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}

		items, err := invites.ListInvites(r.Context(), gc.OrgID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to list invitations")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, items)
	}
}

// HandleRevokeInvite handles DELETE /api/v1/orgs/{org_id}/invites/{invite_id}.
func HandleRevokeInvite(invites *Invites, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}

		inviteID, err := uuid.Parse(chi.URLParam(r, "invite_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid invitation ID")
			return
		}

		inv, err := invites.RevokeInvite(r.Context(), gc.OrgID, gc.UserID, inviteID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to revoke invitation")
			return
		}

		if err := auditor.LogOrg(r.Context(), audit.EventOrgInviteRevoked, gc.OrgID, gc.UserID, map[string]any{
			"invite_id": inv.ID.String(),
			"email":     inv.Email,
		}); err != nil {
			log.Warn().Err(err).Msg("Failed to audit invite revocation")
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"revoked": true})
	}
}

// HandleResolveInvite handles GET /api/v1/invites/{token}. It answers 200 for
// every well-formed lookup; the status field says what the token is worth.
func HandleResolveInvite(invites *Invites) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := invites.ResolveInvite(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			writeServiceError(w, r, err, "Failed to resolve invitation")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, res)
	}
}

// HandleAcceptInvite handles POST /api/v1/invites/accept.
func HandleAcceptInvite(invites *Invites, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}

		var req inviteAcceptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		inviteID, orgID, role, err := invites.AcceptInvite(r.Context(), strings.TrimSpace(req.Token), gc.UserID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to accept invitation")
			return
		}

		if err := auditor.LogOrg(r.Context(), audit.EventOrgInviteAccepted, orgID, gc.UserID, map[string]any{
			"invite_id": inviteID.String(),
		}); err != nil {
			log.Warn().Err(err).Msg("Failed to audit invite acceptance")
		}

		log.Info().
			Str("org_id", orgID.String()).
			Str("user_id", gc.UserID.String()).
			Str("role", string(role)).
			Msg("Invitation accepted")
		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"organization_id": orgID,
			"role":            role,
		})
	}
}
