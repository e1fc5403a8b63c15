package match

import (
	"bytes"

	"github.com/0x5487/custody-exchange/protocol"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type Side = protocol.Side

const (
	Buy  Side = protocol.SideBuy
	Sell Side = protocol.SideSell
)

type OrderType = protocol.OrderType

const (
	Limit  OrderType = protocol.OrderTypeLimit
	Market OrderType = protocol.OrderTypeMarket
)

// Symbol is the fixed-width identifier of a listed asset.
type Symbol [32]byte

// NewSymbol converts a ticker such as "DAI" into a Symbol.
func NewSymbol(ticker string) (Symbol, error) {
	var s Symbol
	if len(ticker) == 0 || len(ticker) > len(s) {
		return s, ErrInvalidSymbol
	}
	copy(s[:], ticker)
	return s, nil
}

// MustSymbol is like NewSymbol but panics on invalid input.
func MustSymbol(ticker string) Symbol {
	s, err := NewSymbol(ticker)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Symbol) String() string {
	return string(bytes.TrimRight(s[:], "\x00"))
}

func (s Symbol) IsZero() bool {
	return s == Symbol{}
}

// Order represents the state of a resting limit order.
type Order struct {
	ID        uint64
	Trader    common.Address
	Side      Side
	Symbol    Symbol
	Price     uint256.Int // reference-asset units per unit of the traded asset
	Amount    uint256.Int
	Filled    uint256.Int
	CreatedAt int64 // Unix nano

	// Intrusive linked list pointers within a price level.
	next *Order
	prev *Order
}

// Open returns the unfilled quantity.
func (o *Order) Open() *uint256.Int {
	return new(uint256.Int).Sub(&o.Amount, &o.Filled)
}

// IsFilled reports whether the order has been matched in full.
func (o *Order) IsFilled() bool {
	return o.Filled.Eq(&o.Amount)
}

// Clone returns a detached copy safe to hand out to callers.
func (o *Order) Clone() *Order {
	c := *o
	c.next = nil
	c.prev = nil
	return &c
}

// View converts the order to its wire representation.
func (o *Order) View() *protocol.OrderView {
	return &protocol.OrderView{
		ID:        o.ID,
		Trader:    o.Trader.Hex(),
		Side:      o.Side,
		Symbol:    o.Symbol.String(),
		Price:     o.Price.Dec(),
		Amount:    o.Amount.Dec(),
		Filled:    o.Filled.Dec(),
		CreatedAt: o.CreatedAt,
	}
}

// Fill is one settlement step between a taker and a single resting order.
type Fill struct {
	TradeID      uint64
	MakerOrderID uint64
	Maker        common.Address
	Taker        common.Address
	Price        uint256.Int
	Size         uint256.Int
	Quote        uint256.Int // Price * Size
}

// MarketResult summarises a market order. Market orders never rest, so the
// unfilled remainder (Requested - Filled) is discarded.
type MarketResult struct {
	Requested uint256.Int
	Filled    uint256.Int
	Fills     []Fill
}

// BookStats contains statistics about the order book queues
type BookStats struct {
	AskDepthCount int64
	AskOrderCount int64
	BidDepthCount int64
	BidOrderCount int64
}

// DepthItem is one aggregated price level.
type DepthItem struct {
	Price uint256.Int
	Size  uint256.Int
	Count int64
}

type Depth struct {
	UpdateID uint64
	Asks     []*DepthItem
	Bids     []*DepthItem
}
