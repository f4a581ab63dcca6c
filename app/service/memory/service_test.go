package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"donna/app/service/embedding"
	"donna/app/storage/recordstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	vectors map[string][]float64
	version string
}

func (p *stubProvider) Embed(_ context.Context, text string) ([]float64, error) {
	if vec, ok := p.vectors[text]; ok {
		return vec, nil
	}

	// Unknown texts land far away from everything else.
	return []float64{0, 0, 1}, nil
}

func (p *stubProvider) ModelVersion() string {
	if p.version == "" {
		return "stub-v1"
	}
	return p.version
}

type stubMerger struct {
	result string
	err    error
	calls  int
}

func (m *stubMerger) Merge(_ context.Context, existing, incoming string) (string, error) {
	m.calls++

	if m.err != nil {
		return "", m.err
	}
	if m.result != "" {
		return m.result, nil
	}

	return existing + "; " + incoming, nil
}

func newTestService(t *testing.T, provider *stubProvider, merger Merger) (*Service, *recordstore.MemoryStore) {
	t.Helper()

	store := recordstore.NewMemoryStore()

	embedder, err := embedding.NewService(provider, 100)
	require.NoError(t, err)

	if merger == nil {
		merger = &stubMerger{}
	}

	return NewService(store, embedder, merger), store
}

func TestStoreInsertsNewMemory(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, &stubProvider{vectors: map[string][]float64{}}, nil)

	status, err := svc.Store(ctx, "u1", "preference", "coffee", "likes flat whites")
	require.NoError(t, err)
	assert.Equal(t, "New memory stored: coffee", status)

	records, err := store.Get(ctx, "memories", "u1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1.0", records[0]["confidence"])
}

func TestStoreMergesNearDuplicate(t *testing.T) {
	ctx := context.Background()

	provider := &stubProvider{vectors: map[string][]float64{
		"preference: coffee - likes coffee": {1, 0, 0},
		"likes coffee":                      {1, 0, 0},
		"loves coffee a lot":                {0.95, 0.05, 0},
	}}
	merger := &stubMerger{result: "loves coffee a lot"}
	svc, store := newTestService(t, provider, merger)

	_, err := svc.Store(ctx, "u1", "preference", "coffee", "likes coffee")
	require.NoError(t, err)

	status, err := svc.Store(ctx, "u1", "preference", "coffee habits", "loves coffee a lot")
	require.NoError(t, err)
	assert.Equal(t, "Memory merged with existing: coffee", status)
	assert.Equal(t, 1, merger.calls)

	records, err := store.Get(ctx, "memories", "u1")
	require.NoError(t, err)
	require.Len(t, records, 1, "merge must not insert a second record")
	assert.Equal(t, "loves coffee a lot", records[0]["value"])
	assert.Equal(t, "1.0", records[0]["confidence"][:3], "confidence capped at 1.0")
}

func TestStoreMergeFallbackOnMergerFailure(t *testing.T) {
	ctx := context.Background()

	provider := &stubProvider{vectors: map[string][]float64{
		"preference: coffee - likes coffee": {1, 0, 0},
		"likes coffee":                      {1, 0, 0},
		"enjoys coffee":                     {0.99, 0.01, 0},
	}}
	merger := &stubMerger{err: errors.New("llm down")}
	svc, store := newTestService(t, provider, merger)

	_, err := svc.Store(ctx, "u1", "preference", "coffee", "likes coffee")
	require.NoError(t, err)

	_, err = svc.Store(ctx, "u1", "preference", "coffee", "enjoys coffee")
	require.NoError(t, err)

	records, err := store.Get(ctx, "memories", "u1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "likes coffee (Updated: enjoys coffee)", records[0]["value"])
}

func TestStoreDoesNotMergeAcrossUsers(t *testing.T) {
	ctx := context.Background()

	provider := &stubProvider{vectors: map[string][]float64{
		"preference: coffee - likes coffee": {1, 0, 0},
		"likes coffee":                      {1, 0, 0},
	}}
	svc, store := newTestService(t, provider, nil)

	_, err := svc.Store(ctx, "u1", "preference", "coffee", "likes coffee")
	require.NoError(t, err)

	status, err := svc.Store(ctx, "u2", "preference", "coffee", "likes coffee")
	require.NoError(t, err)
	assert.Equal(t, "New memory stored: coffee", status)

	all, err := store.Get(ctx, "memories", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRetrieveSortedAndThresholded(t *testing.T) {
	ctx := context.Background()

	provider := &stubProvider{vectors: map[string][]float64{
		"preference: coffee - likes coffee":  {1, 0, 0},
		"preference: tea - drinks green tea": {0.4, 0.9, 0},
		"fact: cat - owns a cat named Milo":  {0, 1, 0},
		"coffee":                             {0.98, 0.02, 0},
	}}
	svc, _ := newTestService(t, provider, nil)

	_, err := svc.Store(ctx, "u1", "preference", "coffee", "likes coffee")
	require.NoError(t, err)
	_, err = svc.Store(ctx, "u1", "preference", "tea", "drinks green tea")
	require.NoError(t, err)
	_, err = svc.Store(ctx, "u1", "fact", "cat", "owns a cat named Milo")
	require.NoError(t, err)

	results, err := svc.Retrieve(ctx, "u1", "coffee", "", 5, 0.3)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score, "results must be sorted descending")
	}
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.3)
	}
	assert.Equal(t, "coffee", results[0].Key)
}

func TestRetrieveCategoryFilterAndLimit(t *testing.T) {
	ctx := context.Background()

	provider := &stubProvider{vectors: map[string][]float64{
		"preference: coffee - likes coffee":  {1, 0, 0},
		"preference: tea - drinks green tea": {0.9, 0.1, 0},
		"fact: cat - owns a cat named Milo":  {0.95, 0.05, 0},
		"drinks":                             {1, 0, 0},
	}}
	svc, _ := newTestService(t, provider, nil)

	_, err := svc.Store(ctx, "u1", "preference", "coffee", "likes coffee")
	require.NoError(t, err)
	_, err = svc.Store(ctx, "u1", "fact", "cat", "owns a cat named Milo")
	require.NoError(t, err)

	results, err := svc.Retrieve(ctx, "u1", "drinks", "preference", 5, 0.3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "preference", results[0].Category)

	limited, err := svc.Retrieve(ctx, "u1", "drinks", "", 1, 0.3)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRetrieveLexicalFallback(t *testing.T) {
	ctx := context.Background()

	provider := &stubProvider{vectors: map[string][]float64{
		"milo": {1, 0, 0},
	}}
	svc, store := newTestService(t, provider, nil)

	// Record with an undecodable embedding payload.
	require.NoError(t, store.Append(ctx, "memories", recordstore.Record{
		"user_id":    "u1",
		"category":   "fact",
		"key":        "cat",
		"value":      "owns a cat named Milo",
		"embedding":  "corrupted{{",
		"confidence": "1.0",
	}))

	results, err := svc.Retrieve(ctx, "u1", "milo", "", 5, 0.3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.5, results[0].Score, 1e-9, "lexical hits score fixed medium confidence")
}

func TestRetrieveRegeneratesMismatchedDimensions(t *testing.T) {
	ctx := context.Background()

	provider := &stubProvider{vectors: map[string][]float64{
		"coffee":       {1, 0, 0},
		"likes coffee": {0.99, 0.01, 0},
	}}
	svc, store := newTestService(t, provider, nil)

	// Stored under an older model with different dimensionality.
	oldVec, err := embedding.Encode("old-model", []float64{1, 0})
	require.NoError(t, err)

	require.NoError(t, store.Append(ctx, "memories", recordstore.Record{
		"user_id":    "u1",
		"category":   "preference",
		"key":        "coffee",
		"value":      "likes coffee",
		"embedding":  oldVec,
		"confidence": "1.0",
	}))

	results, err := svc.Retrieve(ctx, "u1", "coffee", "", 5, 0.3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Greater(t, results[0].Score, 0.9, "mismatched vector must be regenerated, not zero-scored")
}

func TestUpdateResolutionChain(t *testing.T) {
	ctx := context.Background()

	provider := &stubProvider{vectors: map[string][]float64{}}
	svc, store := newTestService(t, provider, nil)

	_, err := svc.Store(ctx, "u1", "preference", "morning drink", "likes flat whites")
	require.NoError(t, err)

	// exact key
	status, err := svc.Update(ctx, "u1", "morning drink", "likes long blacks")
	require.NoError(t, err)
	assert.Equal(t, "Memory updated: morning drink", status)

	// key substring, case-insensitive
	_, err = svc.Update(ctx, "u1", "MORNING", "likes espresso")
	require.NoError(t, err)

	// value substring
	_, err = svc.Update(ctx, "u1", "espresso", "likes ristretto")
	require.NoError(t, err)

	records, err := store.Get(ctx, "memories", "u1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "likes ristretto", records[0]["value"])
}

func TestUpdateNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &stubProvider{vectors: map[string][]float64{}}, nil)

	_, err := svc.Update(ctx, "u1", "nothing here", "value")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteArchivesAndTombstones(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, &stubProvider{vectors: map[string][]float64{}}, nil)

	_, err := svc.Store(ctx, "u1", "preference", "coffee", "likes coffee")
	require.NoError(t, err)

	status, err := svc.Delete(ctx, "u1", "coffee")
	require.NoError(t, err)
	assert.Equal(t, "Memory archived: coffee", status)

	records, err := store.Get(ctx, "memories", "u1")
	require.NoError(t, err)
	require.Len(t, records, 1, "delete must not remove the row")
	assert.Equal(t, "[DELETED]", records[0]["value"])

	archived, err := store.Get(ctx, "archive", "u1")
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, "deleted_by_user", archived[0]["reason"])
	assert.True(t, strings.Contains(archived[0]["content"], "likes coffee"))

	// Tombstoned records are invisible to retrieval.
	results, err := svc.Retrieve(ctx, "u1", "coffee", "", 5, 0.0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDeleteNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, &stubProvider{vectors: map[string][]float64{}}, nil)

	_, err := svc.Delete(ctx, "u1", "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}
