package orgs

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/aliuyar1234/feedbackiq/internal/apperrors"
	"github.com/aliuyar1234/feedbackiq/internal/audit"
	"github.com/aliuyar1234/feedbackiq/internal/guard"
)

type orgRequest struct {
	Name string `json:"name"`
}

// HandleCreate handles POST /api/v1/orgs.
func HandleCreate(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}

		var req orgRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		org, err := svc.CreateWithOwner(r.Context(), req.Name, gc.UserID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to create organization")
			return
		}

		if err := auditor.LogOrg(r.Context(), audit.EventOrgCreated, org.ID, gc.UserID, map[string]any{"name": org.Name}); err != nil {
			log.Warn().Err(err).Msg("Failed to audit organization creation")
		}

		log.Info().Str("org_id", org.ID.String()).Str("user_id", gc.UserID.String()).Msg("Organization created")
		apperrors.WriteSuccess(w, r, http.StatusCreated, org)
	}
}

// HandleList handles GET /api/v1/orgs.
func HandleList(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}

		orgs, err := svc.ListUserOrgs(r.Context(), gc.UserID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to list organizations")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, orgs)
	}
}

// HandleGet handles GET /api/v1/orgs/{org_id}.
func HandleGet(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}

		org, err := svc.GetByID(r.Context(), gc.OrgID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to get organization")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, OrgWithRole{Org: *org, Role: gc.Role})
	}
}

// HandleUpdate handles PATCH /api/v1/orgs/{org_id}.
func HandleUpdate(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}

		var req orgRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		org, err := svc.Update(r.Context(), gc.OrgID, req.Name)
		if err != nil {
			writeServiceError(w, r, err, "Failed to update organization")
			return
		}

		if err := auditor.LogOrg(r.Context(), audit.EventOrgUpdated, org.ID, gc.UserID, map[string]any{"name": org.Name}); err != nil {
			log.Warn().Err(err).Msg("Failed to audit organization update")
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, org)
	}
}

// HandleDelete handles DELETE /api/v1/orgs/{org_id}.
func HandleDelete(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), gc.OrgID); err != nil {
			writeServiceError(w, r, err, "Failed to delete organization")
			return
		}

		// The audit rows cascade with the organization, so the deletion is
		// only recorded in the application log.
		log.Info().
			Str("action", audit.EventOrgDeleted).
			Str("org_id", gc.OrgID.String()).
			Str("user_id", gc.UserID.String()).
			Msg("Organization deleted")
		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"deleted": true})
	}
}
