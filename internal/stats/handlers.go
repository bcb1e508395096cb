package stats

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/aliuyar1234/feedbackiq/internal/apperrors"
	"github.com/aliuyar1234/feedbackiq/internal/guard"
)

// HandleStats handles GET /api/v1/orgs/{org_id}/stats.
func HandleStats(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}

		st, err := svc.ComputeStats(r.Context(), gc.OrgID, gc.ProjectID)
		if err != nil {
			log.Error().Err(err).Str("org_id", gc.OrgID.String()).Msg("Failed to compute stats")
			apperrors.WriteInternalError(w, r, "Failed to fetch stats")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, st)
	}
}

// HandleWeeklyInsights handles GET /api/v1/orgs/{org_id}/insights/weekly.
func HandleWeeklyInsights(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}

		days := DefaultWindowDays
		if raw := r.URL.Query().Get("days"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				apperrors.WriteBadRequest(w, r, ErrInvalidWindow.Error())
				return
			}
			days = n
		}

		insights, err := svc.GenerateWeeklyInsights(r.Context(), gc.OrgID, gc.ProjectID, days)
		if err != nil {
			if errors.Is(err, ErrInvalidWindow) {
				apperrors.WriteBadRequest(w, r, err.Error())
				return
			}
			log.Error().Err(err).Str("org_id", gc.OrgID.String()).Msg("Failed to generate insights")
			apperrors.WriteInternalError(w, r, "Failed to generate insights")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, insights)
	}
}

// HandleListReports handles GET /api/v1/orgs/{org_id}/insights/reports.
func HandleListReports(reporter *Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		reports, err := reporter.List(r.Context(), gc.OrgID, limit)
		if err != nil {
			log.Error().Err(err).Str("org_id", gc.OrgID.String()).Msg("Failed to list reports")
			apperrors.WriteInternalError(w, r, "Failed to list reports")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, reports)
	}
}
