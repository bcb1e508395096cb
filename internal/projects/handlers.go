package projects

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/aliuyar1234/feedbackiq/internal/apperrors"
	"github.com/aliuyar1234/feedbackiq/internal/audit"
	"github.com/aliuyar1234/feedbackiq/internal/guard"
	"github.com/aliuyar1234/feedbackiq/internal/validation"
)

type createRequest struct {
	Name string `json:"name"`
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, validation.ErrNameLength):
		apperrors.WriteBadRequest(w, r, "Project name must be between 3 and 100 characters")
	case errors.Is(err, ErrNameConflict):
		apperrors.WriteConflict(w, r, "A project with this name already exists")
	case errors.Is(err, ErrProjectNotFound):
		apperrors.WriteNotFound(w, r, "Project not found")
	default:
		log.Error().Err(err).Msg(fallback)
		apperrors.WriteInternalError(w, r, fallback)
	}
}

// HandleCreate handles POST /api/v1/orgs/{org_id}/projects.
func HandleCreate(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}

		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		project, err := svc.Create(r.Context(), gc.OrgID, req.Name, gc.UserID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to create project")
			return
		}

		if err := auditor.LogProject(r.Context(), audit.EventProjectCreated, gc.OrgID, project.ID, gc.UserID, project.Name); err != nil {
			log.Warn().Err(err).Msg("Failed to audit project creation")
		}
		apperrors.WriteSuccess(w, r, http.StatusCreated, project)
	}
}

// HandleList handles GET /api/v1/orgs/{org_id}/projects.
func HandleList(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}

		list, err := svc.List(r.Context(), gc.OrgID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to list projects")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, list)
	}
}

// HandleGet handles GET /api/v1/orgs/{org_id}/projects/{project_id}. The
// guard has already confirmed the project belongs to the organization.
func HandleGet(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}
		if gc.ProjectID == nil {
			apperrors.WriteNotFound(w, r, "Project not found")
			return
		}

		project, err := svc.Get(r.Context(), gc.OrgID, *gc.ProjectID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to get project")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, project)
	}
}

// HandleDelete handles DELETE /api/v1/orgs/{org_id}/projects/{project_id}.
func HandleDelete(svc *Service, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}
		if gc.ProjectID == nil {
			apperrors.WriteNotFound(w, r, "Project not found")
			return
		}

		project, err := svc.Delete(r.Context(), gc.OrgID, *gc.ProjectID)
		if err != nil {
			writeServiceError(w, r, err, "Failed to delete project")
			return
		}

		if err := auditor.LogProject(r.Context(), audit.EventProjectDeleted, gc.OrgID, project.ID, gc.UserID, project.Name); err != nil {
			log.Warn().Err(err).Msg("Failed to audit project deletion")
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"deleted": true})
	}
}
