package embedding

import (
	"context"
	"math"
	"slices"

	"donna/app/config"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/samber/do"
	"github.com/samber/oops"
)

const defaultCacheSize = 1000

// Service wraps a Provider with a bounded process-wide cache keyed by exact
// text. There is no invalidation beyond LRU eviction.
type Service struct {
	provider Provider
	cache    *lru.Cache[string, []float64]
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(NewOpenAIProvider(cfg.OpenAI.Embedding), cfg.OpenAI.Embedding.CacheSize)
}

func NewService(provider Provider, cacheSize int) (*Service, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}

	cache, err := lru.New[string, []float64](cacheSize)
	if err != nil {
		return nil, oops.Wrapf(err, "failed to create embedding cache")
	}

	return &Service{
		provider: provider,
		cache:    cache,
	}, nil
}

func (s *Service) Embed(ctx context.Context, text string) ([]float64, error) {
	if cached, ok := s.cache.Get(text); ok {
		return slices.Clone(cached), nil
	}

	vec, err := s.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	s.cache.Add(text, vec)

	return slices.Clone(vec), nil
}

func (s *Service) ModelVersion() string {
	return s.provider.ModelVersion()
}

// Similarity returns the cosine similarity of two vectors. Empty vectors or
// a dimension mismatch score 0.0: old vectors from a previous model must
// never crash a comparison, only lose it.
func Similarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64

	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
