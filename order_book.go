package match

import "github.com/holiman/uint256"

// OrderBook holds the resting limit orders of one traded symbol.
// It is owned by the engine loop and is not safe for concurrent use.
type OrderBook struct {
	symbol   Symbol
	bidQueue *queue
	askQueue *queue
}

// NewOrderBook creates an empty book for symbol.
func NewOrderBook(symbol Symbol) *OrderBook {
	return &OrderBook{
		symbol:   symbol,
		bidQueue: NewBuyerQueue(),
		askQueue: NewSellerQueue(),
	}
}

func (book *OrderBook) Symbol() Symbol {
	return book.symbol
}

func (book *OrderBook) queue(side Side) *queue {
	if side == Buy {
		return book.bidQueue
	}
	return book.askQueue
}

// Insert places order into its side keeping price/time priority.
func (book *OrderBook) Insert(order *Order) {
	book.queue(order.Side).insertOrder(order)
}

// BestOrder returns the head of side: best price, earliest id among ties.
func (book *OrderBook) BestOrder(side Side) *Order {
	return book.queue(side).peekHeadOrder()
}

// RemoveFilled removes the head of side once it is fully filled.
// It reports whether an order was removed.
func (book *OrderBook) RemoveFilled(side Side) bool {
	q := book.queue(side)
	head := q.peekHeadOrder()
	if head == nil || !head.IsFilled() {
		return false
	}
	q.removeOrder(head.ID)
	return true
}

// Remove takes an arbitrary resting order off the book.
func (book *OrderBook) Remove(side Side, id uint64) *Order {
	return book.queue(side).removeOrder(id)
}

// Order returns the resting order with id, or nil.
func (book *OrderBook) Order(side Side, id uint64) *Order {
	return book.queue(side).order(id)
}

// ListOrders returns copies of side's orders in book order.
func (book *OrderBook) ListOrders(side Side) []*Order {
	return book.queue(side).list()
}

// Depth returns up to limit aggregated levels per side.
func (book *OrderBook) Depth(limit uint32) *Depth {
	return &Depth{
		Asks: book.askQueue.depth(limit),
		Bids: book.bidQueue.depth(limit),
	}
}

func (book *OrderBook) Stats() *BookStats {
	return &BookStats{
		AskDepthCount: book.askQueue.depthCount(),
		AskOrderCount: book.askQueue.orderCount(),
		BidDepthCount: book.bidQueue.depthCount(),
		BidOrderCount: book.bidQueue.orderCount(),
	}
}

// fill applies a matched size to a resting order.
func (book *OrderBook) fill(order *Order, size *uint256.Int) {
	book.queue(order.Side).fill(order, size)
}
