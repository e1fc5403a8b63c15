package match

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func levels(items []*DepthItem) [][2]uint64 {
	out := make([][2]uint64, len(items))
	for i, item := range items {
		out[i] = [2]uint64{item.Price.Uint64(), item.Size.Uint64()}
	}
	return out
}

func TestAggregatedBookFollowsEngine(t *testing.T) {
	ctx := context.Background()
	live := NewAggregatedBook(ETH)
	ex := newTestExchange(t, WithPublishLog(MultiPublishLog{NewMemoryPublishLog(), live}))
	ex.fund(t, alice, DAI, 1000)
	ex.fund(t, alice, ETH, 100)
	ex.fund(t, bob, ETH, 100)
	ex.fund(t, bob, DAI, 1000)

	_, err := ex.LimitOrder(ctx, alice, ETH, Buy, u(10), u(20))
	require.NoError(t, err)
	_, err = ex.LimitOrder(ctx, alice, ETH, Buy, u(9), u(5))
	require.NoError(t, err)
	cancelMe, err := ex.LimitOrder(ctx, alice, ETH, Buy, u(9), u(3))
	require.NoError(t, err)
	_, err = ex.LimitOrder(ctx, alice, ETH, Sell, u(12), u(7))
	require.NoError(t, err)
	_, err = ex.LimitOrder(ctx, alice, ETH, Sell, u(14), u(1))
	require.NoError(t, err)

	_, err = ex.MarketOrder(ctx, bob, ETH, Sell, u(22))
	require.NoError(t, err)
	_, err = ex.MarketOrder(ctx, bob, ETH, Buy, u(7))
	require.NoError(t, err)
	_, err = ex.CancelOrder(ctx, alice, ETH, cancelMe.ID)
	require.NoError(t, err)

	want, err := ex.Depth(ctx, ETH, 10)
	require.NoError(t, err)
	got := live.Depth(10)

	assert.Equal(t, levels(want.Bids), levels(got.Bids))
	assert.Equal(t, levels(want.Asks), levels(got.Asks))
	assert.Equal(t, [][2]uint64{{9, 3}}, levels(got.Bids))
	assert.Equal(t, [][2]uint64{{14, 1}}, levels(got.Asks))
	assert.Equal(t, ex.SequenceID(), live.SequenceID())

	assert.Equal(t, uint64(3), live.Size(Buy, u(9)).Uint64())
	assert.True(t, live.Size(Buy, u(10)).IsZero())
}

func TestAggregatedBookReplay(t *testing.T) {
	ctx := context.Background()
	ex := newTestExchange(t)
	ex.fund(t, alice, DAI, 1000)

	_, err := ex.LimitOrder(ctx, alice, ETH, Buy, u(10), u(4))
	require.NoError(t, err)
	_, err = ex.LimitOrder(ctx, alice, ETH, Buy, u(11), u(2))
	require.NoError(t, err)
	_, err = ex.LimitOrder(ctx, alice, BTC, Buy, u(50), u(1))
	require.NoError(t, err)

	book := NewAggregatedBook(ETH)
	for _, log := range ex.logs.Logs() {
		require.NoError(t, book.Replay(log))
	}
	// Replaying again is a no-op.
	for _, log := range ex.logs.Logs() {
		require.NoError(t, book.Replay(log))
	}

	assert.Equal(t, [][2]uint64{{11, 2}, {10, 4}}, levels(book.Depth(10).Bids))
	assert.Len(t, book.Depth(1).Bids, 1)
	assert.Equal(t, ex.SequenceID(), book.SequenceID())

	book.OnRebuild()
	assert.Zero(t, book.SequenceID())
	assert.Empty(t, book.Depth(10).Bids)
}

func TestAggregatedBookRejectsUnderflow(t *testing.T) {
	book := NewAggregatedBook(ETH)
	log := &OrderBookLog{SequenceID: 1, Type: LogTypeCancel, Symbol: ETH, Side: Buy}
	log.Price.SetUint64(10)
	log.Size.SetUint64(1)

	assert.ErrorIs(t, book.Replay(log), ErrInvalidParam)
	assert.Zero(t, book.SequenceID())
}

func TestCalculateDepthChange(t *testing.T) {
	log := &OrderBookLog{Type: LogTypeMatch, Side: Sell}
	log.Price.SetUint64(10)
	log.Size.SetUint64(3)

	change, ok := CalculateDepthChange(log)
	require.True(t, ok)
	assert.Equal(t, Buy, change.Side)
	assert.True(t, change.Decrease)
	assert.Equal(t, uint64(3), change.Size.Uint64())

	_, ok = CalculateDepthChange(&OrderBookLog{Type: LogTypeDone})
	assert.False(t, ok)
	_, ok = CalculateDepthChange(&OrderBookLog{Type: LogTypeDeposit})
	assert.False(t, ok)
}
