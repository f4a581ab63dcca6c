package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	calls   int
	vectors map[string][]float64
}

func (p *fakeProvider) Embed(_ context.Context, text string) ([]float64, error) {
	p.calls++

	if vec, ok := p.vectors[text]; ok {
		return vec, nil
	}

	return []float64{float64(len(text)), 1, 0}, nil
}

func (p *fakeProvider) ModelVersion() string {
	return "fake-v1"
}

func TestEmbedCacheHit(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{}

	svc, err := NewService(provider, 10)
	require.NoError(t, err)

	first, err := svc.Embed(ctx, "hello")
	require.NoError(t, err)

	second, err := svc.Embed(ctx, "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second, "cached vector must be bit-identical")
	assert.Equal(t, 1, provider.calls, "second call must hit the cache")
}

func TestEmbedCacheEviction(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{}

	svc, err := NewService(provider, 2)
	require.NoError(t, err)

	_, err = svc.Embed(ctx, "a")
	require.NoError(t, err)
	_, err = svc.Embed(ctx, "b")
	require.NoError(t, err)
	_, err = svc.Embed(ctx, "c")
	require.NoError(t, err)

	// "a" has been evicted and must be recomputed
	_, err = svc.Embed(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 4, provider.calls)
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, Similarity([]float64{1, 0}, []float64{1, 0}), 1e-9)
	assert.InDelta(t, -1.0, Similarity([]float64{1, 0}, []float64{-1, 0}), 1e-9)
	assert.InDelta(t, 0.0, Similarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
}

func TestSimilarityNotComparable(t *testing.T) {
	assert.Zero(t, Similarity(nil, []float64{1}))
	assert.Zero(t, Similarity([]float64{1}, nil))
	assert.Zero(t, Similarity([]float64{1, 2}, []float64{1, 2, 3}), "dimension mismatch is not an error")
	assert.Zero(t, Similarity([]float64{0, 0}, []float64{1, 1}), "zero norm is not comparable")
}

func TestCodecRoundTrip(t *testing.T) {
	encoded, err := Encode("fake-v1", []float64{0.25, -0.5})
	require.NoError(t, err)

	vec, model, err := Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, "fake-v1", model)
	assert.Equal(t, []float64{0.25, -0.5}, vec)
}

func TestDecodeEmpty(t *testing.T) {
	vec, model, err := Decode("")
	require.NoError(t, err)
	assert.Nil(t, vec)
	assert.Empty(t, model)
}

func TestDecodeGarbage(t *testing.T) {
	_, _, err := Decode("not json")
	assert.Error(t, err)
}
