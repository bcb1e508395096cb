package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/aliuyar1234/feedbackiq/internal/apperrors"
	"github.com/aliuyar1234/feedbackiq/internal/audit"
	"github.com/aliuyar1234/feedbackiq/internal/feedback"
	"github.com/aliuyar1234/feedbackiq/internal/guard"
)

// HandleUpload handles POST /api/v1/orgs/{org_id}/feedback/upload.
func HandleUpload(p *Pipeline, limits UploadLimits, invalidator feedback.Invalidator, auditor *audit.Writer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gc, ok := guard.MustFromContext(w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, limits.MaxRequestBytes())
		if err := r.ParseMultipartForm(limits.MaxFileBytes); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				apperrors.WritePayloadTooLarge(w, r, fmt.Sprintf("Upload exceeds maximum size of %d bytes", limits.MaxFileBytes))
				return
			}
			apperrors.WriteBadRequest(w, r, "Failed to parse multipart form")
			return
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()

		file, header, err := r.FormFile("file")
		if err != nil {
			apperrors.WriteBadRequest(w, r, "No file provided")
			return
		}
		defer file.Close()

		if err := limits.ValidateFileSize(header.Size, header.Filename); err != nil {
			apperrors.WritePayloadTooLarge(w, r, err.Error())
			return
		}

		ctx := r.Context()
		res, err := p.Run(ctx, Input{
			Reader:    file,
			Source:    r.FormValue("source"),
			OrgID:     gc.OrgID,
			ProjectID: gc.ProjectID,
		})

		var missing *MissingColumnError
		switch {
		case errors.As(err, &missing):
			apperrors.WriteErrorWithDetails(w, r, http.StatusBadRequest, "missing_column",
				`No feedback column found. Please include a column named "feedback", "comment", "text", or "message"`,
				map[string]any{"available_columns": missing.Available})
			return
		case errors.Is(err, ErrEmptyFile):
			apperrors.WriteBadRequest(w, r, ErrEmptyFile.Error())
			return
		case errors.Is(err, ErrInvalidCSV):
			apperrors.WriteBadRequest(w, r, "File is not valid CSV")
			return
		}

		// The client may be gone; rows already stored still count.
		bg := context.WithoutCancel(ctx)
		if res != nil && res.Processed > 0 {
			if invalidator != nil {
				invalidator.Invalidate(bg, gc.OrgID, gc.ProjectID)
			}
			if auditErr := auditor.LogFeedbackUploaded(bg, gc.OrgID, gc.ProjectID, gc.UserID, res.Processed, len(res.Errors)); auditErr != nil {
				log.Warn().Err(auditErr).Msg("Failed to audit feedback upload")
			}
		}

		if err != nil {
			if ctx.Err() != nil {
				log.Info().Str("org_id", gc.OrgID.String()).Int("processed", res.Processed).Msg("Upload interrupted by client")
				return
			}
			log.Error().Err(err).Str("org_id", gc.OrgID.String()).Msg("Upload failed")
			apperrors.WriteInternalError(w, r, "Failed to process file")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, res)
	}
}
