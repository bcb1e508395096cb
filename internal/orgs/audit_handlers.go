package orgs

import (
	"net/http"
	"strconv"

	"github.com/aliuyar1234/feedbackiq/internal/apperrors"
	"github.com/aliuyar1234/feedbackiq/internal/audit"
	"github.com/aliuyar1234/feedbackiq/internal/guard"
)

// HandleListAudit handles GET /api/v1/orgs/{org_id}/audit.
func HandleListAudit(reader *audit.Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}

		filter := audit.Filter{Action: r.URL.Query().Get("action")}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				apperrors.WriteBadRequest(w, r, "limit must be an integer")
				return
			}
			filter.Limit = v
		}

		events, err := reader.ListByOrg(r.Context(), gc.OrgID, filter)
		if err != nil {
			writeServiceError(w, r, err, "Failed to list audit log")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{"events": events})
	}
}
