package orgs

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/aliuyar1234/feedbackiq/internal/apperrors"
	"github.com/aliuyar1234/feedbackiq/internal/permissions"
)

// writeServiceError maps service errors onto API responses. Unknown errors
// are logged and reported as internal with fallback as the message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidOrgName),
		errors.Is(err, ErrInvalidInviteEmail),
		errors.Is(err, permissions.ErrInvalidRole):
		apperrors.WriteBadRequest(w, r, err.Error())
	case errors.Is(err, ErrOrgNotFound):
		apperrors.WriteNotFound(w, r, "Organization not found")
	case errors.Is(err, ErrMemberNotFound):
		apperrors.WriteNotFound(w, r, "Member not found")
	case errors.Is(err, ErrInviteNotFound):
		apperrors.WriteNotFound(w, r, "Invitation not found")
	case errors.Is(err, ErrNotMember), errors.Is(err, ErrInsufficientPermissions):
		apperrors.WriteForbidden(w, r, "Insufficient permissions")
	case errors.Is(err, ErrInviteEmailMismatch):
		apperrors.WriteForbidden(w, r, "This invitation was sent to a different email address")
	case errors.Is(err, ErrAlreadyMember):
		apperrors.WriteConflict(w, r, "A user with this email is already a member of the organization")
	case errors.Is(err, ErrInviteAlreadyAccepted):
		apperrors.WriteConflict(w, r, "Invitation has already been accepted")
	case errors.Is(err, ErrLastOwner):
		apperrors.WriteConflict(w, r, "Organization must keep at least one owner")
	case errors.Is(err, ErrInviteExpired):
		apperrors.WriteGone(w, r, "Invitation has expired")
	case errors.Is(err, ErrInviteDelivery):
		log.Warn().Err(err).Msg("Invitation delivery failed")
		apperrors.WriteBadGateway(w, r, "Failed to send invitation email")
	default:
		log.Error().Err(err).Msg(fallback)
		apperrors.WriteInternalError(w, r, fallback)
	}
}
