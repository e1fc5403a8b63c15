package match

import (
	"github.com/holiman/uint256"
	"github.com/huandu/skiplist"
)

// priceUnit is one price level: a FIFO of orders ordered by ascending id.
type priceUnit struct {
	openSize uint256.Int
	head     *Order
	tail     *Order
	count    int64
}

type queue struct {
	side        Side
	totalOrders int64
	depths      int64
	depthList   *skiplist.SkipList
	priceList   map[uint256.Int]*skiplist.Element
	orders      map[uint64]*Order
}

// NewBuyerQueue returns the bid side: highest price first.
func NewBuyerQueue() *queue {
	return newQueue(Buy, func(a, b *uint256.Int) bool { return a.Gt(b) })
}

// NewSellerQueue returns the ask side: lowest price first.
func NewSellerQueue() *queue {
	return newQueue(Sell, func(a, b *uint256.Int) bool { return a.Lt(b) })
}

// newQueue keys price levels so that better(a, b) sorts a first.
func newQueue(side Side, better func(a, b *uint256.Int) bool) *queue {
	return &queue{
		side: side,
		depthList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			p1, _ := lhs.(uint256.Int)
			p2, _ := rhs.(uint256.Int)
			switch {
			case better(&p1, &p2):
				return -1
			case better(&p2, &p1):
				return 1
			}
			return 0
		})),
		priceList: make(map[uint256.Int]*skiplist.Element),
		orders:    make(map[uint64]*Order),
	}
}

// order finds an order by its ID.
func (q *queue) order(id uint64) *Order {
	return q.orders[id]
}

// insertOrder inserts an order into its price level, keeping the level
// sorted by id. Ids grow monotonically, so the splice point is almost
// always the tail.
func (q *queue) insertOrder(order *Order) {
	el, ok := q.priceList[order.Price]
	if ok {
		unit, _ := el.Value.(*priceUnit)

		after := unit.tail
		for after != nil && after.ID > order.ID {
			after = after.prev
		}

		if after == nil {
			// Push Front
			order.prev = nil
			order.next = unit.head
			if unit.head != nil {
				unit.head.prev = order
			}
			unit.head = order
			if unit.tail == nil {
				unit.tail = order
			}
		} else {
			order.prev = after
			order.next = after.next
			if after.next != nil {
				after.next.prev = order
			} else {
				unit.tail = order
			}
			after.next = order
		}

		unit.openSize.Add(&unit.openSize, order.Open())
		unit.count++
		q.orders[order.ID] = order
		q.totalOrders++
		return
	}

	unit := &priceUnit{
		head:  order,
		tail:  order,
		count: 1,
	}
	unit.openSize.Set(order.Open())
	order.next = nil
	order.prev = nil

	q.orders[order.ID] = order

	el = q.depthList.Set(order.Price, unit)
	q.priceList[order.Price] = el

	q.totalOrders++
	q.depths++
}

// removeOrder removes an order from the queue by ID.
// It also cleans up the price unit if it becomes empty.
func (q *queue) removeOrder(id uint64) *Order {
	order, ok := q.orders[id]
	if !ok {
		return nil
	}
	skipElement, ok := q.priceList[order.Price]
	if !ok {
		return nil
	}
	unit, _ := skipElement.Value.(*priceUnit)

	// Remove from linked list
	if order.prev != nil {
		order.prev.next = order.next
	} else {
		unit.head = order.next
	}

	if order.next != nil {
		order.next.prev = order.prev
	} else {
		unit.tail = order.prev
	}

	order.next = nil
	order.prev = nil

	unit.openSize.Sub(&unit.openSize, order.Open())
	unit.count--
	delete(q.orders, id)
	q.totalOrders--

	if unit.count == 0 {
		q.depthList.RemoveElement(skipElement)
		delete(q.priceList, order.Price)
		q.depths--
	}

	return order
}

// fill records size matched against a resting order and keeps the level's
// open size in step. It does not remove the order.
func (q *queue) fill(order *Order, size *uint256.Int) {
	order.Filled.Add(&order.Filled, size)

	if el, ok := q.priceList[order.Price]; ok {
		unit, _ := el.Value.(*priceUnit)
		unit.openSize.Sub(&unit.openSize, size)
	}
}

// peekHeadOrder returns the order at the front of the queue (best price) without removing it.
func (q *queue) peekHeadOrder() *Order {
	el := q.depthList.Front()
	if el == nil {
		return nil
	}

	unit, _ := el.Value.(*priceUnit)
	return unit.head
}

// orderCount returns the total number of orders in the queue.
func (q *queue) orderCount() int64 {
	return q.totalOrders
}

// depthCount returns the number of price levels in the queue.
func (q *queue) depthCount() int64 {
	return q.depths
}

// list copies the queue in priority order: price levels from the skip list,
// then each level's linked list.
func (q *queue) list() []*Order {
	result := make([]*Order, 0, q.totalOrders)

	elem := q.depthList.Front()
	for elem != nil {
		unit, _ := elem.Value.(*priceUnit)

		for order := unit.head; order != nil; order = order.next {
			result = append(result, order.Clone())
		}

		elem = elem.Next()
	}

	return result
}

// depth returns the order book depth up to the specified limit.
func (q *queue) depth(limit uint32) []*DepthItem {
	result := make([]*DepthItem, 0, limit)

	el := q.depthList.Front()

	var i uint32 = 0
	for i < limit && el != nil {
		unit, _ := el.Value.(*priceUnit)
		result = append(result, &DepthItem{
			Price: unit.head.Price,
			Size:  unit.openSize,
			Count: unit.count,
		})

		el = el.Next()
		i++
	}

	return result
}
