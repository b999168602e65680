package jobs

import (
	"context"

	"github.com/wonny/tradecycle/pkg/logger"
)

// StaleCleaner drops expired entries; implemented by the quote cache
type StaleCleaner interface {
	CleanStale() int
}

// CacheCleanupJob cleans stale quotes from the in-process cache
type CacheCleanupJob struct {
	cache  StaleCleaner
	logger *logger.Logger
}

// NewCacheCleanupJob creates a new cache cleanup job
func NewCacheCleanupJob(cache StaleCleaner, log *logger.Logger) *CacheCleanupJob {
	return &CacheCleanupJob{cache: cache, logger: log.WithComponent("jobs")}
}

// Name returns the job name
func (j *CacheCleanupJob) Name() string {
	return "cache_cleanup"
}

// Schedule returns the cron schedule (every 5 minutes)
func (j *CacheCleanupJob) Schedule() string {
	return "0 */5 * * * *"
}

// Run executes the cache cleanup
func (j *CacheCleanupJob) Run(ctx context.Context) error {
	if count := j.cache.CleanStale(); count > 0 {
		j.logger.WithField("removed", count).Info("Quote cache cleanup completed")
	}
	return nil
}
