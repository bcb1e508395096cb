package feedback

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aliuyar1234/feedbackiq/internal/ai"
	"github.com/aliuyar1234/feedbackiq/internal/apperrors"
	"github.com/aliuyar1234/feedbackiq/internal/audit"
	"github.com/aliuyar1234/feedbackiq/internal/guard"
	"github.com/aliuyar1234/feedbackiq/internal/validation"
)

type createRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// HandleCreate handles POST /api/v1/orgs/{org_id}/feedback.
func HandleCreate(svc *Service) http.HandlerFunc {
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

		f, err := svc.CreateManual(r.Context(), gc.OrgID, gc.ProjectID, req.Text, req.Source)
		if err != nil {
			if errors.Is(err, validation.ErrFeedbackTooShort) {
				apperrors.WriteBadRequest(w, r, "Feedback is too short. Please provide at least a short sentence so we can analyze it.")
				return
			}
			log.Error().Err(err).Str("org_id", gc.OrgID.String()).Msg("Failed to create feedback")
			apperrors.WriteInternalError(w, r, "Failed to submit feedback")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusCreated, f)
	}
}

// parseListFilter reads limit, topic and sentiment from the query string.
func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	f := ListFilter{Topic: q.Get("topic")}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return f, fmt.Errorf("limit must be a positive integer")
		}
		f.Limit = limit
	}

	if raw := q.Get("sentiment"); raw != "" {
		switch ai.Sentiment(raw) {
		case ai.Positive, ai.Neutral, ai.Negative:
			f.Sentiment = raw
		default:
			return f, ErrInvalidSentiment
		}
	}
	return f, nil
}

// HandleList handles GET /api/v1/orgs/{org_id}/feedback.
func HandleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}

		filter, err := parseListFilter(r)
		if err != nil {
			if errors.Is(err, ErrInvalidSentiment) {
				apperrors.WriteBadRequest(w, r, "sentiment must be one of: positive, neutral, negative")
				return
			}
			apperrors.WriteBadRequest(w, r, err.Error())
			return
		}
		filter.ProjectID = gc.ProjectID

		list, err := store.List(r.Context(), gc.OrgID, filter)
		if err != nil {
			log.Error().Err(err).Str("org_id", gc.OrgID.String()).Msg("Failed to list feedback")
			apperrors.WriteInternalError(w, r, "Failed to list feedback")
			return
		}
		apperrors.WriteSuccess(w, r, http.StatusOK, list)
	}
}

// HandleExport handles GET /api/v1/orgs/{org_id}/feedback/export. Once the
// first row is written the status is committed, so later failures can only
// be logged.
func HandleExport(store *Store, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}

		filename := fmt.Sprintf("feedback-%s.csv", time.Now().UTC().Format("2006-01-02"))
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

		cw, err := NewCSVWriter(w)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to write export header")
			return
		}

		err = store.Each(r.Context(), gc.OrgID, gc.ProjectID, cw.Write)
		if flushErr := cw.Flush(); err == nil {
			err = flushErr
		}
		if err != nil {
			log.Error().Err(err).Str("org_id", gc.OrgID.String()).Int("rows", cw.Rows()).Msg("Feedback export aborted")
			return
		}

		if err := auditor.LogFeedbackExported(r.Context(), gc.OrgID, gc.ProjectID, gc.UserID, cw.Rows()); err != nil {
			log.Warn().Err(err).Msg("Failed to audit feedback export")
		}
	}
}
