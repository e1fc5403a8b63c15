package match

import (
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// taker describes the incoming side of a match.
type taker struct {
	orderID uint64 // zero for market orders
	trader  common.Address
	side    Side
	typ     OrderType
	limit   *uint256.Int // worst acceptable price, nil for market orders
}

func (e *Engine) limitOrder(req *limitRequest) (*Order, error) {
	if _, err := e.registry.Tradable(req.symbol); err != nil {
		return nil, err
	}
	if req.price.IsZero() {
		return nil, ErrInvalidPrice
	}
	if req.amount.IsZero() {
		return nil, ErrInvalidAmount
	}

	switch req.side {
	case Buy:
		cost, overflow := new(uint256.Int).MulOverflow(&req.price, &req.amount)
		if overflow {
			return nil, ErrOverflow
		}
		if e.ledger.Balance(req.trader, e.registry.Reference()).Lt(cost) {
			return nil, ErrInsufficientQuoteBalance
		}
	case Sell:
		if e.ledger.Balance(req.trader, req.symbol).Lt(&req.amount) {
			return nil, ErrInsufficientBaseBalance
		}
	default:
		return nil, ErrInvalidParam
	}

	book := e.books[req.symbol]
	order := &Order{
		ID:        e.orderID.Add(1),
		Trader:    req.trader,
		Side:      req.side,
		Symbol:    req.symbol,
		Price:     req.price,
		Amount:    req.amount,
		CreatedAt: time.Now().UnixNano(),
	}

	if e.limitMatching {
		t := &taker{orderID: order.ID, trader: req.trader, side: req.side, typ: Limit, limit: &req.price}
		result := e.match(book, t, &req.amount)
		order.Filled.Set(&result.Filled)
	}

	if !order.IsFilled() {
		book.Insert(order)
		e.emit(NewOpenLog(e.seqID.Add(1), order))
		logger.Debug("order opened", orderAttr(order))
	}
	e.metrics.observeBook(book)

	return order.Clone(), nil
}

func (e *Engine) marketOrder(req *marketRequest) (*MarketResult, error) {
	if _, err := e.registry.Tradable(req.symbol); err != nil {
		return nil, err
	}
	if req.amount.IsZero() {
		return nil, ErrInvalidAmount
	}

	switch req.side {
	case Buy:
	case Sell:
		if e.ledger.Balance(req.trader, req.symbol).Lt(&req.amount) {
			return nil, ErrInsufficientBaseBalance
		}
	default:
		return nil, ErrInvalidParam
	}

	book := e.books[req.symbol]
	if book.BestOrder(req.side.Opposite()) == nil {
		return nil, ErrNoLiquidity
	}

	result := e.match(book, &taker{trader: req.trader, side: req.side, typ: Market}, &req.amount)
	e.metrics.observeBook(book)

	if remaining := new(uint256.Int).Sub(&result.Requested, &result.Filled); !remaining.IsZero() {
		logger.Debug("market order remainder discarded",
			slog.String("symbol", req.symbol.String()),
			slog.String("trader", req.trader.Hex()),
			slog.String("remaining", remaining.Dec()),
		)
	}
	return result, nil
}

// match walks the opposite side of book for t until amount is filled, the
// book (or the part of it within t.limit) is exhausted, or t can no longer pay.
// Every fill is capped by what both counterparties hold at that instant, so
// no balance can go negative. Resting orders whose maker can fund nothing
// are evicted.
func (e *Engine) match(book *OrderBook, t *taker, amount *uint256.Int) *MarketResult {
	result := &MarketResult{}
	result.Requested.Set(amount)
	remaining := amount.Clone()
	opposite := t.side.Opposite()

	for !remaining.IsZero() {
		resting := book.BestOrder(opposite)
		if resting == nil {
			break
		}
		if t.limit != nil && !crosses(t.side, t.limit, &resting.Price) {
			break
		}

		size := resting.Open()
		if remaining.Lt(size) {
			size.Set(remaining)
		}

		size = e.fundable(t.trader, t.side, book.symbol, &resting.Price, size)
		if size.IsZero() {
			break
		}

		size = e.fundable(resting.Trader, resting.Side, book.symbol, &resting.Price, size)
		if size.IsZero() {
			book.Remove(opposite, resting.ID)
			e.emit(NewEvictLog(e.seqID.Add(1), resting))
			logger.Warn("unfunded order evicted", slog.String("symbol", book.symbol.String()), orderAttr(resting))
			continue
		}

		// fundable bounded size*price by the buyer's quote balance.
		quote := new(uint256.Int).Mul(size, &resting.Price)
		buyer, seller := t.trader, resting.Trader
		if t.side == Sell {
			buyer, seller = resting.Trader, t.trader
		}
		e.settle(buyer, seller, book.symbol, size, quote)

		book.fill(resting, size)
		remaining.Sub(remaining, size)
		result.Filled.Add(&result.Filled, size)

		fill := Fill{
			TradeID:      e.tradeID.Add(1),
			MakerOrderID: resting.ID,
			Maker:        resting.Trader,
			Taker:        t.trader,
			Price:        resting.Price,
			Size:         *size,
			Quote:        *quote,
		}
		result.Fills = append(result.Fills, fill)
		e.emit(NewMatchLog(e.seqID.Add(1), fill.TradeID, t.orderID, t.trader, t.side, t.typ, resting, size, quote))
		e.metrics.observeFill(book.symbol, size)

		if book.RemoveFilled(opposite) {
			e.emit(NewDoneLog(e.seqID.Add(1), resting))
		}
	}

	return result
}

// fundable caps size by what trader can deliver on side at price:
// base units for a seller, size*price of the reference asset for a buyer.
func (e *Engine) fundable(trader common.Address, side Side, symbol Symbol, price, size *uint256.Int) *uint256.Int {
	if side == Sell {
		bal := e.ledger.Balance(trader, symbol)
		if bal.Lt(size) {
			return bal
		}
		return size
	}

	bal := e.ledger.Balance(trader, e.registry.Reference())
	affordable := new(uint256.Int).Div(bal, price)
	if affordable.Lt(size) {
		return affordable
	}
	return size
}

// settle moves size of symbol from seller to buyer and quote of the
// reference asset from buyer to seller. Both legs were sized by fundable,
// so a failure here means the ledger is corrupt.
func (e *Engine) settle(buyer, seller common.Address, symbol Symbol, size, quote *uint256.Int) {
	if err := e.ledger.transfer(seller, buyer, symbol, size); err != nil {
		panic("settle base leg: " + err.Error())
	}
	if err := e.ledger.transfer(buyer, seller, e.registry.Reference(), quote); err != nil {
		panic("settle quote leg: " + err.Error())
	}
}

func (e *Engine) cancelOrder(req *cancelRequest) (*Order, error) {
	if _, err := e.registry.Tradable(req.symbol); err != nil {
		return nil, err
	}
	book := e.books[req.symbol]

	for _, side := range []Side{Buy, Sell} {
		order := book.Order(side, req.id)
		if order == nil {
			continue
		}
		if order.Trader != req.trader {
			return nil, ErrNotOwner
		}
		book.Remove(side, req.id)
		e.emit(NewCancelLog(e.seqID.Add(1), order))
		e.metrics.observeBook(book)
		return order.Clone(), nil
	}
	return nil, ErrNotFound
}

// crosses reports whether a taker on side with limit accepts price.
func crosses(side Side, limit, price *uint256.Int) bool {
	if side == Buy {
		return !price.Gt(limit)
	}
	return !price.Lt(limit)
}
