package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(id uint64, side Side, price, amount uint64) *Order {
	o := &Order{ID: id, Trader: alice, Side: side, Symbol: ETH}
	o.Price.SetUint64(price)
	o.Amount.SetUint64(amount)
	return o
}

func ids(orders []*Order) []uint64 {
	out := make([]uint64, len(orders))
	for i, o := range orders {
		out[i] = o.ID
	}
	return out
}

func TestBuyerQueue(t *testing.T) {
	q := NewBuyerQueue()

	q.insertOrder(newOrder(101, Buy, 10, 1))
	q.insertOrder(newOrder(201, Buy, 20, 10))
	q.insertOrder(newOrder(301, Buy, 30, 10))
	q.insertOrder(newOrder(202, Buy, 20, 100))

	assert.Equal(t, int64(4), q.orderCount())
	assert.Equal(t, int64(3), q.depthCount())
	assert.Equal(t, []uint64{301, 201, 202, 101}, ids(q.list()))

	ord := q.peekHeadOrder()
	assert.Equal(t, uint64(301), ord.ID)

	require.NotNil(t, q.removeOrder(301))
	assert.Equal(t, uint64(201), q.peekHeadOrder().ID)

	assert.Nil(t, q.removeOrder(301))
	assert.Equal(t, int64(3), q.orderCount())
	assert.Equal(t, int64(2), q.depthCount())
}

func TestSellerQueue(t *testing.T) {
	q := NewSellerQueue()

	q.insertOrder(newOrder(101, Sell, 10, 1))
	q.insertOrder(newOrder(201, Sell, 20, 10))
	q.insertOrder(newOrder(301, Sell, 30, 10))
	q.insertOrder(newOrder(202, Sell, 20, 100))

	assert.Equal(t, []uint64{101, 201, 202, 301}, ids(q.list()))
	assert.Equal(t, uint64(101), q.peekHeadOrder().ID)
}

func TestQueueSplicesById(t *testing.T) {
	q := NewSellerQueue()

	// Restored books may insert out of id order; the level must stay id-sorted.
	q.insertOrder(newOrder(5, Sell, 10, 1))
	q.insertOrder(newOrder(2, Sell, 10, 1))
	q.insertOrder(newOrder(9, Sell, 10, 1))
	q.insertOrder(newOrder(7, Sell, 10, 1))
	q.insertOrder(newOrder(1, Sell, 10, 1))

	assert.Equal(t, []uint64{1, 2, 5, 7, 9}, ids(q.list()))

	q.removeOrder(1)
	q.removeOrder(9)
	q.removeOrder(5)
	assert.Equal(t, []uint64{2, 7}, ids(q.list()))
	assert.Equal(t, uint64(2), q.peekHeadOrder().ID)
}

func TestQueueDepth(t *testing.T) {
	q := NewBuyerQueue()

	q.insertOrder(newOrder(1, Buy, 10, 5))
	q.insertOrder(newOrder(2, Buy, 10, 7))
	q.insertOrder(newOrder(3, Buy, 12, 1))
	q.insertOrder(newOrder(4, Buy, 8, 3))

	depth := q.depth(2)
	require.Len(t, depth, 2)
	assert.Equal(t, uint64(12), depth[0].Price.Uint64())
	assert.Equal(t, uint64(1), depth[0].Size.Uint64())
	assert.Equal(t, uint64(10), depth[1].Price.Uint64())
	assert.Equal(t, uint64(12), depth[1].Size.Uint64())
	assert.Equal(t, int64(2), depth[1].Count)

	// Fills shrink the level's open size, removal takes only what is left.
	head := q.order(2)
	q.fill(head, u(4))
	assert.Equal(t, uint64(4), head.Filled.Uint64())
	assert.Equal(t, uint64(8), q.depth(2)[1].Size.Uint64())

	q.removeOrder(2)
	assert.Equal(t, uint64(5), q.depth(2)[1].Size.Uint64())
	assert.Len(t, q.depth(10), 3)
}

func TestQueueListReturnsCopies(t *testing.T) {
	q := NewBuyerQueue()
	q.insertOrder(newOrder(1, Buy, 10, 5))

	list := q.list()
	list[0].Filled.SetUint64(5)

	assert.True(t, q.order(1).Filled.IsZero())
}
