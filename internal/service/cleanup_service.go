package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"invoiceflow/internal/dto"
	"invoiceflow/internal/infra"

	"github.com/rs/zerolog/log"
)

const (
	cleanupBatchSize  = 50
	cleanupBatchDelay = time.Second
)

// cleanupPrefixes are the key spaces saved PDFs live under.
var cleanupPrefixes = []string{"invoices/", "reports/"}

type CleanupConfig struct {
	TTL      time.Duration
	DryRun   bool
	Disabled bool
	// BatchDelay pauses between delete batches; zero uses one second.
	BatchDelay time.Duration
}

// CleanupService deletes stored invoice and report PDFs older than the TTL.
type CleanupService struct {
	storage infra.ObjectStorage
	cfg     CleanupConfig
	now     func() time.Time
}

func NewCleanupService(storage infra.ObjectStorage, cfg CleanupConfig) *CleanupService {
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = cleanupBatchDelay
	}
	return &CleanupService{storage: storage, cfg: cfg, now: time.Now}
}

// Run performs one sweep. Per-object failures are collected in the stats;
// only a failed listing is returned as an error.
func (s *CleanupService) Run(ctx context.Context) (dto.CleanupStats, error) {
	start := s.now()
	stats := dto.CleanupStats{DryRun: s.cfg.DryRun, Disabled: s.cfg.Disabled, Errors: []string{}}
	if s.cfg.Disabled {
		log.Info().Msg("cleanup: disabled")
		return stats, nil
	}

	var objects []infra.ObjectInfo
	for _, prefix := range cleanupPrefixes {
		found, err := s.storage.List(ctx, prefix)
		if err != nil {
			return stats, fmt.Errorf("cleanup: list %s/%s: %w", s.storage.Bucket(), prefix, err)
		}
		objects = append(objects, found...)
	}
	stats.TotalFiles = len(objects)

	cutoff := start.Add(-s.cfg.TTL)
	var expired []string
	for _, o := range objects {
		if strings.HasSuffix(strings.ToLower(o.Key), ".pdf") && o.ModTime.Before(cutoff) {
			expired = append(expired, o.Key)
		}
	}
	stats.ExpiredFiles = len(expired)

	log.Info().
		Str("bucket", s.storage.Bucket()).
		Dur("ttl", s.cfg.TTL).
		Bool("dry_run", s.cfg.DryRun).
		Int("expired", len(expired)).
		Msg("cleanup: starting")

	for i := 0; i < len(expired); i += cleanupBatchSize {
		end := min(i+cleanupBatchSize, len(expired))
		for _, key := range expired[i:end] {
			if s.cfg.DryRun {
				log.Info().Str("key", key).Msg("cleanup: would delete")
				stats.DeletedFiles++
				continue
			}
			if err := s.storage.Delete(ctx, key); err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", key, err))
				continue
			}
			stats.DeletedFiles++
		}
		if end < len(expired) {
			select {
			case <-ctx.Done():
				stats.Errors = append(stats.Errors, ctx.Err().Error())
				stats.ProcessingTime = s.now().Sub(start).Milliseconds()
				return stats, nil
			case <-time.After(s.cfg.BatchDelay):
			}
		}
	}

	stats.ProcessingTime = s.now().Sub(start).Milliseconds()
	return stats, nil
}
