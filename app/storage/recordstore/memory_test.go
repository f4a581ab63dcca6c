package recordstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAppendAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Append(ctx, "tasks", Record{
		"user_id": "u1",
		"title":   "call mom",
	}))
	require.NoError(t, store.Append(ctx, "tasks", Record{
		"user_id": "u2",
		"title":   "buy milk",
	}))

	all, err := store.Get(ctx, "tasks", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := store.Get(ctx, "tasks", "u1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "call mom", mine[0]["title"])
	assert.NotEmpty(t, mine[0]["id"], "append should assign an id")
}

func TestMemoryStoreUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Append(ctx, "memories", Record{
		"user_id": "u1",
		"key":     "coffee",
		"value":   "likes flat whites",
	}))

	ref, found, err := store.FindRef(ctx, "memories", "u1", "coffee")
	require.NoError(t, err)
	require.True(t, found)

	require.NoError(t, store.Update(ctx, "memories", ref, Record{
		"value": "likes oat flat whites",
	}))

	records, err := store.Get(ctx, "memories", "u1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "likes oat flat whites", records[0]["value"])
	assert.Equal(t, "coffee", records[0]["key"], "untouched fields survive partial update")
}

func TestMemoryStoreUpdateMissingRef(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	err := store.Update(ctx, "memories", Ref("42"), Record{"value": "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreFindRefScoping(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Append(ctx, "memories", Record{
		"user_id": "u1",
		"key":     "coffee",
	}))

	_, found, err := store.FindRef(ctx, "memories", "u2", "coffee")
	require.NoError(t, err)
	assert.False(t, found, "records must not leak across users")
}

func TestMemoryStoreGetReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Append(ctx, "tasks", Record{
		"user_id": "u1",
		"title":   "original",
	}))

	records, err := store.Get(ctx, "tasks", "u1")
	require.NoError(t, err)
	records[0]["title"] = "mutated"

	again, err := store.Get(ctx, "tasks", "u1")
	require.NoError(t, err)
	assert.Equal(t, "original", again[0]["title"])
}
