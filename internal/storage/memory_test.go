package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HVN-Network/permission_layer/ledger"
)

var (
	contractA = ledger.MustParseAddress("0x00000000000000000000000000000000000000c1")
	contractB = ledger.MustParseAddress("0x00000000000000000000000000000000000000c2")
)

func sampleEvents(t *testing.T, n int) []ledger.Event {
	t.Helper()
	out := make([]ledger.Event, 0, n)
	for i := 1; i <= n; i++ {
		contract := contractA
		name := "FeePaid"
		if i%2 == 0 {
			contract = contractB
			name = "CountIncremented"
		}
		out = append(out, ledger.Event{
			Seq:      uint64(i),
			Contract: contract,
			Name:     name,
			Attrs:    []ledger.Attr{ledger.UintAttr("n", uint64(i))},
			Time:     int64(1000 + i),
		})
	}
	return out
}

func TestMemoryStoreFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	events := sampleEvents(t, 6)
	require.NoError(t, store.SaveEvents(ctx, events))

	t.Run("all", func(t *testing.T) {
		got, err := store.Events(ctx, EventFilter{})
		require.NoError(t, err)
		assert.Len(t, got, 6)
	})
	t.Run("after seq", func(t *testing.T) {
		got, err := store.Events(ctx, EventFilter{AfterSeq: 4})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, uint64(5), got[0].Seq)
	})
	t.Run("by contract", func(t *testing.T) {
		got, err := store.Events(ctx, EventFilter{Contract: &contractA})
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})
	t.Run("by name with limit", func(t *testing.T) {
		got, err := store.Events(ctx, EventFilter{Name: "FeePaid", Limit: 2})
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	seq, err := store.LatestSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(6), seq)
}

func TestMemoryStoreErrorInjection(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.ErrorOnNextCall = fmt.Errorf("boom")

	_, err := store.LatestSeq(ctx)
	assert.EqualError(t, err, "boom")

	// Cleared after one call.
	_, err = store.LatestSeq(ctx)
	assert.NoError(t, err)
}

func TestMemoryStoreClosed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Close())

	err := store.SaveEvents(ctx, sampleEvents(t, 1))
	assert.ErrorIs(t, err, errStoreClosed)
}
