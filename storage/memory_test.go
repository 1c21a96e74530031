package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type cachedQuote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func TestMemoryCache_SetGetExpire(t *testing.T) {
	mc, err := NewMemoryCache(16, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mc.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, mc.SetJSON(ctx, "q:AAPL", cachedQuote{Symbol: "AAPL", Price: 189.5}, time.Minute))

	var got cachedQuote
	found, err := mc.GetJSON(ctx, "q:AAPL", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 189.5, got.Price)

	now = now.Add(2 * time.Minute)
	found, err = mc.GetJSON(ctx, "q:AAPL", &got)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 0, mc.Len())
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	mc, err := NewMemoryCache(2, nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, mc.SetJSON(ctx, "a", 1, 0))
	require.NoError(t, mc.SetJSON(ctx, "b", 2, 0))

	var v int
	found, _ := mc.GetJSON(ctx, "a", &v)
	require.True(t, found)

	require.NoError(t, mc.SetJSON(ctx, "c", 3, 0))

	found, _ = mc.GetJSON(ctx, "b", &v)
	assert.False(t, found, "b was least recently used")
	found, _ = mc.GetJSON(ctx, "a", &v)
	assert.True(t, found)
}

func TestMemoryCache_DeleteAndLimits(t *testing.T) {
	mc, err := NewMemoryCache(4, nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, mc.SetJSON(ctx, "k", "v", 0))
	require.NoError(t, mc.Delete(ctx, "k", "missing"))
	var s string
	found, err := mc.GetJSON(ctx, "k", &s)
	require.NoError(t, err)
	assert.False(t, found)

	err = mc.SetJSON(ctx, "big", strings.Repeat("x", maxCacheValueSize+1), 0)
	assert.ErrorIs(t, err, ErrValueTooLarge)

	_, err = NewMemoryCache(0, nil)
	assert.Error(t, err)
}
