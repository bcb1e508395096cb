// Package retention removes data that is no longer useful.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// PurgeStaleInvites deletes invites that expired more than retentionDays ago
// without being accepted. Accepted invites are kept as membership history.
// Safe to run repeatedly. Returns the number of rows deleted.
func PurgeStaleInvites(ctx context.Context, pool *pgxpool.Pool, retentionDays int) (int64, error) {
	tag, err := pool.Exec(ctx, `
		DELETE FROM invites
		WHERE accepted_at IS NULL
		  AND expires_at < NOW() - INTERVAL '1 day' * $1
	`, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("failed to purge stale invites: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RunRetentionJob is the entry point called by the cron scheduler.
func RunRetentionJob(ctx context.Context, pool *pgxpool.Pool, inviteDays int) error {
	log.Info().Int("invite_retention_days", inviteDays).Msg("Starting retention job")
	startTime := time.Now()

	purged, err := PurgeStaleInvites(ctx, pool, inviteDays)
	if err != nil {
		log.Error().Err(err).Msg("Failed to purge stale invites")
		return fmt.Errorf("invite cleanup failed: %w", err)
	}

	log.Info().
		Int64("invites_purged", purged).
		Dur("duration", time.Since(startTime)).
		Msg("Retention job completed")
	return nil
}
