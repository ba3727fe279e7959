package compilecache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gqljoin/internal/planner"
)

func TestCache_GetAdd(t *testing.T) {
	cache, err := New(8)
	require.NoError(t, err)

	key := Key{Fingerprint: "fp1", OperationHash: "op1"}
	_, ok := cache.Get(key)
	assert.False(t, ok)

	compiled := &planner.CompiledQuery{SQL: `SELECT "posts"."title" AS "title" FROM "posts" AS "posts"`}
	cache.Add(key, compiled)

	got, ok := cache.Get(key)
	require.True(t, ok)
	assert.Same(t, compiled, got)

	_, ok = cache.Get(Key{Fingerprint: "fp2", OperationHash: "op1"})
	assert.False(t, ok, "a different registry fingerprint misses")

	_, ok = cache.Get(Key{Fingerprint: "fp1", OperationHash: "op1", Limits: planner.Limits{MaxJoins: 1}})
	assert.False(t, ok, "different limits miss")

	assert.Equal(t, Stats{Hits: 1, Misses: 3, Size: 1}, cache.Stats())
}

func TestCache_Evicts(t *testing.T) {
	cache, err := New(4)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		cache.Add(Key{OperationHash: fmt.Sprint(i)}, &planner.CompiledQuery{SQL: fmt.Sprint(i)})
	}
	assert.LessOrEqual(t, cache.Len(), 4)

	cache.Purge()
	assert.Equal(t, 0, cache.Len())
}

func TestCache_Disabled(t *testing.T) {
	cache, err := New(0)
	require.NoError(t, err)
	assert.Nil(t, cache)

	cache.Add(Key{OperationHash: "x"}, &planner.CompiledQuery{})
	_, ok := cache.Get(Key{OperationHash: "x"})
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
	assert.Equal(t, Stats{}, cache.Stats())
	cache.Purge()
}
