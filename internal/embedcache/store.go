package embedcache

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/persona/internal/ai"
	"github.com/xxxsen/persona/internal/model"
	"github.com/xxxsen/persona/internal/repo"
)

// WithStore persists embeddings in the worker's local datastore keyed by
// content digest. Interest regeneration re-embeds the same summaries and
// excerpts across sweeps; after a crash or redeploy those come back from
// the store instead of the provider.
func WithStore(next ai.IEmbedder, cache *repo.EmbeddingCacheRepo) ai.IEmbedder {
	if next == nil || cache == nil {
		return next
	}
	return &storedEmbedder{next: next, cache: cache}
}

type storedEmbedder struct {
	next  ai.IEmbedder
	cache *repo.EmbeddingCacheRepo
}

func (s *storedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	modelName := normalizeModel(s.next.ModelName())
	digest := contentDigest(text)
	values, ok, err := s.cache.Lookup(ctx, modelName, taskType, digest)
	if err != nil {
		return nil, err
	}
	if ok {
		logutil.GetLogger(ctx).Debug("embedding served from store", zap.String("task_type", taskType))
		return values, nil
	}
	values, err = s.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	// a write failure costs one future re-embed, not the round
	if err := s.cache.Store(ctx, &model.CachedEmbedding{
		ModelName:   modelName,
		TaskType:    taskType,
		ContentHash: digest,
		Values:      values,
	}); err != nil {
		logutil.GetLogger(ctx).Warn("embedding store write failed", zap.Error(err))
	}
	return values, nil
}

func (s *storedEmbedder) ModelName() string {
	return s.next.ModelName()
}
