package worker

// cleanup_cron.go: periodically deletes stored PDFs older than the retention
// window. Disabled when the interval is zero; the CLI runs the same job on
// demand.

import (
	"context"
	"time"

	"invoiceflow/internal/dto"

	"github.com/rs/zerolog/log"
)

type Cleaner interface {
	Run(ctx context.Context) (dto.CleanupStats, error)
}

// StartCleanupCron launches the ticker goroutine and returns immediately.
func StartCleanupCron(ctx context.Context, cleaner Cleaner, interval time.Duration) {
	if interval <= 0 {
		log.Info().Msg("cleanup_cron: disabled")
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Dur("interval", interval).Msg("cleanup_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("cleanup_cron: shutting down")
				return
			case <-ticker.C:
				runCleanup(ctx, cleaner)
			}
		}
	}()
}

func runCleanup(ctx context.Context, cleaner Cleaner) {
	stats, err := cleaner.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("cleanup_cron: run failed")
		return
	}
	log.Info().
		Int("total", stats.TotalFiles).
		Int("expired", stats.ExpiredFiles).
		Int("deleted", stats.DeletedFiles).
		Int("errors", len(stats.Errors)).
		Bool("dry_run", stats.DryRun).
		Msg("cleanup_cron: run finished")
}
