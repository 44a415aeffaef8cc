package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/persona/internal/repo"
)

// EmbeddingPurgeJob trims cached embeddings past their useful age.
// Interest summaries churn as users keep reading, so rows that were not
// refreshed within the window are dead weight.
type EmbeddingPurgeJob struct {
	cache  *repo.EmbeddingCacheRepo
	maxAge time.Duration
}

func NewEmbeddingPurgeJob(cache *repo.EmbeddingCacheRepo, maxAgeDays int) *EmbeddingPurgeJob {
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	return &EmbeddingPurgeJob{
		cache:  cache,
		maxAge: time.Duration(maxAgeDays) * 24 * time.Hour,
	}
}

func (j *EmbeddingPurgeJob) Name() string {
	return "embedding_purge"
}

func (j *EmbeddingPurgeJob) Run(ctx context.Context) error {
	cutoff := time.Now().Add(-j.maxAge).Unix()
	purged, err := j.cache.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("purged stale embeddings", zap.Int64("rows", purged))
	return nil
}
