package ai

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Fallback chains: configured providers are tried in order and the first
// success wins, so a flaky primary degrades the persona's output quality
// instead of stalling the whole sweep. All providers failing surfaces the
// last error, the most specific upstream message.

type GeneratorEntry struct {
	Name      string
	Generator IGenerator
}

type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

func NewFallbackGenerator(chain []GeneratorEntry) IGenerator {
	return &fallbackGenerator{chain: chain}
}

type fallbackGenerator struct {
	chain []GeneratorEntry
}

func (f *fallbackGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	lastErr := ErrUnavailable
	for _, entry := range f.chain {
		res, err := entry.Generator.Generate(ctx, prompt)
		if err != nil {
			lastErr = err
			logutil.GetLogger(ctx).Warn("chat provider failed, falling back",
				zap.String("provider", entry.Name), zap.Error(err))
			continue
		}
		return res, nil
	}
	return "", lastErr
}

func NewFallbackEmbedder(chain []EmbedderEntry) IEmbedder {
	return &fallbackEmbedder{chain: chain}
}

type fallbackEmbedder struct {
	chain []EmbedderEntry
}

func (f *fallbackEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	lastErr := ErrUnavailable
	for _, entry := range f.chain {
		values, err := entry.Embedder.Embed(ctx, text, taskType)
		if err != nil {
			lastErr = err
			logutil.GetLogger(ctx).Warn("embed provider failed, falling back",
				zap.String("provider", entry.Name), zap.Error(err))
			continue
		}
		return values, nil
	}
	return nil, lastErr
}

// ModelName names the whole chain. Any member may have produced a given
// vector, so cache keys and stored vectors are scoped to the chain, not to
// one member; mixing dimensions across chain members is a config mistake.
func (f *fallbackEmbedder) ModelName() string {
	names := make([]string, 0, len(f.chain))
	for _, entry := range f.chain {
		if entry.Name != "" {
			names = append(names, entry.Name)
		}
	}
	return strings.Join(names, "|")
}
