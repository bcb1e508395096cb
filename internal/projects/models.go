package projects

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrNameConflict    = errors.New("project name already exists in organization")
)

// Project groups feedback inside an organization.
type Project struct {
	ID              uuid.UUID `json:"id"`
	OrgID           uuid.UUID `json:"organization_id"`
	Name            string    `json:"name"`
	CreatedByUserID uuid.UUID `json:"created_by_user_id"`
	CreatedAt       time.Time `json:"created_at"`
}
