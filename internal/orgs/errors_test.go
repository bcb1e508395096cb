package orgs

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aliuyar1234/feedbackiq/internal/permissions"
)

func TestWriteServiceError_Statuses(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{ErrInvalidOrgName, http.StatusBadRequest},
		{permissions.ErrInvalidRole, http.StatusBadRequest},
		{ErrInviteNotFound, http.StatusNotFound},
		{ErrInsufficientPermissions, http.StatusForbidden},
		{ErrInviteEmailMismatch, http.StatusForbidden},
		{ErrAlreadyMember, http.StatusConflict},
		{ErrInviteAlreadyAccepted, http.StatusConflict},
		{ErrLastOwner, http.StatusConflict},
		{ErrInviteExpired, http.StatusGone},
		{fmt.Errorf("%w: smtp down", ErrInviteDelivery), http.StatusBadGateway},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err, "Failed")
		require.Equal(t, tt.want, rec.Code, tt.err.Error())
		require.NotContains(t, rec.Body.String(), "connection reset")
	}
}
