package embedcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/persona/internal/ai"
)

// WithMemoryCache puts a small expirable LRU in front of the embedder so
// texts repeated within one sweep (a user's unchanged profile, a hot post
// excerpt) cost a single upstream call.
func WithMemoryCache(next ai.IEmbedder, size int, ttl time.Duration) ai.IEmbedder {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	return &memoryEmbedder{
		next: next,
		lru:  expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type memoryEmbedder struct {
	next ai.IEmbedder
	lru  *expirable.LRU[string, []float32]
}

func (m *memoryEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	key := memoryKey(normalizeModel(m.next.ModelName()), taskType, contentDigest(text))
	if values, ok := m.lru.Get(key); ok {
		logutil.GetLogger(ctx).Debug("embedding served from memory", zap.String("task_type", taskType))
		return cloneValues(values), nil
	}
	values, err := m.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	m.lru.Add(key, cloneValues(values))
	return values, nil
}

func (m *memoryEmbedder) ModelName() string {
	return m.next.ModelName()
}

// cloneValues keeps cached vectors immutable: the codec and similarity
// paths receive slices they may own.
func cloneValues(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float32, len(values))
	copy(out, values)
	return out
}
