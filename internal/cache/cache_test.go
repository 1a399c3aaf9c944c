package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hailam/chessgraph/internal/provider"
	"github.com/hailam/chessgraph/internal/storage"
)

var startKey = Key{Provider: "chessdb", EPD: "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq -"}

func TestGetPut(t *testing.T) {
	c := New(nil)

	_, ok := c.Get(startKey)
	assert.False(t, ok)

	moves := []provider.Candidate{{UCI: "e2e4", Score: 35}}
	c.Put(startKey, moves)

	got, ok := c.Get(startKey)
	require.True(t, ok)
	assert.Equal(t, moves, got)
	assert.Equal(t, 1, c.Len())
	assert.InDelta(t, 50.0, c.HitRate(), 0.001)
	hits, misses := c.Stats()
	assert.EqualValues(t, 1, hits)
	assert.EqualValues(t, 1, misses)
}

func TestProviderParametersDoNotCollide(t *testing.T) {
	c := New(nil)
	a := Key{Provider: "engine:stockfish:depth=10:multipv=10", EPD: startKey.EPD}
	b := Key{Provider: "engine:stockfish:depth=20:multipv=10", EPD: startKey.EPD}

	c.Put(a, []provider.Candidate{{UCI: "e2e4", Score: 10}})
	_, ok := c.Get(b)
	assert.False(t, ok)
}

func TestEmptyListsAreNotCached(t *testing.T) {
	c := New(nil)
	c.Put(startKey, nil)
	c.Put(startKey, []provider.Candidate{})
	_, ok := c.Get(startKey)
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestAppendOnly(t *testing.T) {
	c := New(nil)
	first := []provider.Candidate{{UCI: "e2e4", Score: 35}}
	c.Put(startKey, first)
	c.Put(startKey, []provider.Candidate{{UCI: "d2d4", Score: 99}})

	got, _ := c.Get(startKey)
	assert.Equal(t, first, got)
}

func TestConcurrentAccess(t *testing.T) {
	c := New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				k := Key{Provider: "p", EPD: fmt.Sprint(j)}
				c.Put(k, []provider.Candidate{{UCI: "e2e4", Score: j}})
				got, ok := c.Get(k)
				assert.True(t, ok)
				assert.Equal(t, j, got[0].Score)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 100, c.Len())
}

func TestPersistentStore(t *testing.T) {
	store, err := storage.Open(storage.Options{InMemory: true})
	require.NoError(t, err)
	defer store.Close()

	moves := []provider.Candidate{{UCI: "e2e4", Score: 35}, {UCI: "d2d4", Score: 30}}
	New(store).Put(startKey, moves)

	// A fresh cache over the same store sees the entry.
	c := New(store)
	got, ok := c.Get(startKey)
	require.True(t, ok)
	assert.Equal(t, moves, got)
	assert.Equal(t, 1, c.Len())

	var raw []provider.Candidate
	found, err := store.Get(startKey.String(), &raw)
	require.NoError(t, err)
	assert.True(t, found)
}
