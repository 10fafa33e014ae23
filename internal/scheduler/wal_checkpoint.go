package scheduler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/404-Profit-Not-Found/neural-ticker-core-sub002/internal/database"
)

// walFrameWarnThreshold is the WAL size above which a passive check logs a warning
const walFrameWarnThreshold = 1000

// WALCheckpointResult reports the databases inspected by a checkpoint run
type WALCheckpointResult struct {
	Checked   int `json:"checked"`
	Truncated int `json:"truncated"`
}

// NewWALCheckpointJob checks WAL growth on every database and truncates the ones that grew large
func NewWALCheckpointJob(dbs []*database.DB, log zerolog.Logger) Job {
	log = log.With().Str("job", "wal_checkpoint").Logger()

	return NewJob("wal_checkpoint", func(ctx context.Context) (any, error) {
		var result WALCheckpointResult
		for _, db := range dbs {
			if db == nil {
				continue
			}
			if err := ctx.Err(); err != nil {
				return result, err
			}

			// PRAGMA wal_checkpoint returns: busy, log, checkpointed
			var busy, frames, checkpointed int
			err := db.Conn().QueryRowContext(ctx, "PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
			if err != nil {
				log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to check WAL checkpoint")
				continue
			}
			result.Checked++

			if frames <= walFrameWarnThreshold {
				log.Debug().Str("database", db.Name()).Int("wal_frames", frames).Msg("WAL checkpoint status OK")
				continue
			}

			log.Warn().
				Str("database", db.Name()).
				Int("wal_frames", frames).
				Int("checkpointed", checkpointed).
				Msg("WAL file is large, truncating")
			if err := db.WALCheckpoint("TRUNCATE"); err != nil {
				log.Error().Err(err).Str("database", db.Name()).Msg("WAL truncate failed")
				continue
			}
			result.Truncated++
		}

		log.Info().Int("checked", result.Checked).Int("truncated", result.Truncated).Msg("WAL checkpoint check completed")
		return result, nil
	})
}
