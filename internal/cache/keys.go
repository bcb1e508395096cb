package cache

import (
	"fmt"

	"github.com/google/uuid"
)

// StatsKey addresses cached stats for an organization, optionally narrowed
// to one project.
func StatsKey(orgID uuid.UUID, projectID *uuid.UUID) string {
	if projectID == nil {
		return fmt.Sprintf("stats:%s:all", orgID)
	}
	return fmt.Sprintf("stats:%s:%s", orgID, *projectID)
}

func UploadRateKey(orgID string) string {
	return fmt.Sprintf("ratelimit:upload:%s", orgID)
}
