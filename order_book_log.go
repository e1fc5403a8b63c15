package match

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type LogType string

const (
	LogTypeOpen     LogType = "open"     // limit order rested
	LogTypeMatch    LogType = "match"    // one fill settled
	LogTypeDone     LogType = "done"     // resting order fully filled and removed
	LogTypeCancel   LogType = "cancel"   // resting order cancelled by its owner
	LogTypeEvict    LogType = "evict"    // resting order removed because its maker could not fund it
	LogTypeDeposit  LogType = "deposit"  // funds entered custody
	LogTypeWithdraw LogType = "withdraw" // funds left custody
)

// OrderBookLog represents an event produced by the engine.
// SequenceID is a globally increasing ID for every event, used for ordering,
// deduplication, and rebuild synchronization in downstream systems.
type OrderBookLog struct {
	SequenceID   uint64
	TradeID      uint64 // Sequential trade ID, only set for Match events
	RequestID    string
	Type         LogType
	Symbol       Symbol
	Side         Side
	Price        uint256.Int
	Size         uint256.Int
	Amount       uint256.Int // Price * Size, only set for Match events
	OrderID      uint64
	Trader       common.Address
	OrderType    OrderType
	MakerOrderID uint64
	Maker        common.Address
	CreatedAt    time.Time
}

// bookLogJSON is the wire form of OrderBookLog; integers travel as decimal strings.
type bookLogJSON struct {
	SequenceID   uint64          `json:"seq_id"`
	TradeID      uint64          `json:"trade_id,omitempty"`
	RequestID    string          `json:"request_id,omitempty"`
	Type         LogType         `json:"type"`
	Symbol       string          `json:"symbol,omitempty"`
	Side         Side            `json:"side,omitempty"`
	Price        string          `json:"price,omitempty"`
	Size         string          `json:"size"`
	Amount       string          `json:"amount,omitempty"`
	OrderID      uint64          `json:"order_id,omitempty"`
	Trader       common.Address  `json:"trader"`
	OrderType    OrderType       `json:"order_type,omitempty"`
	MakerOrderID uint64          `json:"maker_order_id,omitempty"`
	Maker        *common.Address `json:"maker,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (log OrderBookLog) MarshalJSON() ([]byte, error) {
	out := bookLogJSON{
		SequenceID:   log.SequenceID,
		TradeID:      log.TradeID,
		RequestID:    log.RequestID,
		Type:         log.Type,
		Symbol:       log.Symbol.String(),
		Side:         log.Side,
		Size:         log.Size.Dec(),
		OrderID:      log.OrderID,
		Trader:       log.Trader,
		OrderType:    log.OrderType,
		MakerOrderID: log.MakerOrderID,
		CreatedAt:    log.CreatedAt,
	}
	if !log.Price.IsZero() {
		out.Price = log.Price.Dec()
	}
	if log.Type == LogTypeMatch {
		out.Amount = log.Amount.Dec()
		maker := log.Maker
		out.Maker = &maker
	}
	return json.Marshal(out)
}

func (log *OrderBookLog) UnmarshalJSON(data []byte) error {
	var in bookLogJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*log = OrderBookLog{
		SequenceID:   in.SequenceID,
		TradeID:      in.TradeID,
		RequestID:    in.RequestID,
		Type:         in.Type,
		Side:         in.Side,
		OrderID:      in.OrderID,
		Trader:       in.Trader,
		OrderType:    in.OrderType,
		MakerOrderID: in.MakerOrderID,
		CreatedAt:    in.CreatedAt,
	}
	if in.Symbol != "" {
		sym, err := NewSymbol(in.Symbol)
		if err != nil {
			return err
		}
		log.Symbol = sym
	}
	if in.Maker != nil {
		log.Maker = *in.Maker
	}
	for _, f := range []struct {
		dst *uint256.Int
		src string
	}{{&log.Price, in.Price}, {&log.Size, in.Size}, {&log.Amount, in.Amount}} {
		if f.src == "" {
			continue
		}
		if err := f.dst.SetFromDecimal(f.src); err != nil {
			return err
		}
	}
	return nil
}

var bookLogPool = sync.Pool{
	New: func() any {
		return new(OrderBookLog)
	},
}

func acquireBookLog() *OrderBookLog {
	return bookLogPool.Get().(*OrderBookLog)
}

func releaseBookLog(log *OrderBookLog) {
	*log = OrderBookLog{}
	bookLogPool.Put(log)
}

// Clone returns a copy that is not owned by the pool.
func (log *OrderBookLog) Clone() *OrderBookLog {
	cpy := new(OrderBookLog)
	*cpy = *log
	return cpy
}

func NewOpenLog(seqID uint64, order *Order) *OrderBookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = LogTypeOpen
	log.Symbol = order.Symbol
	log.Side = order.Side
	log.Price = order.Price
	log.Size.Set(order.Open())
	log.OrderID = order.ID
	log.Trader = order.Trader
	log.OrderType = Limit
	log.CreatedAt = time.Now().UTC()
	return log
}

// NewMatchLog records a fill. Side is the taker's side; takerOrderID is zero
// for market orders.
func NewMatchLog(seqID uint64, tradeID uint64, takerOrderID uint64, taker common.Address, takerSide Side, takerType OrderType, maker *Order, size *uint256.Int, quote *uint256.Int) *OrderBookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.TradeID = tradeID
	log.Type = LogTypeMatch
	log.Symbol = maker.Symbol
	log.Side = takerSide
	log.Price = maker.Price
	log.Size = *size
	log.Amount = *quote
	log.OrderID = takerOrderID
	log.Trader = taker
	log.OrderType = takerType
	log.MakerOrderID = maker.ID
	log.Maker = maker.Trader
	log.CreatedAt = time.Now().UTC()
	return log
}

// newRemoveLog covers done, cancel and evict; Size is the open size that left the book.
func newRemoveLog(seqID uint64, typ LogType, order *Order) *OrderBookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = typ
	log.Symbol = order.Symbol
	log.Side = order.Side
	log.Price = order.Price
	log.Size.Set(order.Open())
	log.OrderID = order.ID
	log.Trader = order.Trader
	log.OrderType = Limit
	log.CreatedAt = time.Now().UTC()
	return log
}

func NewDoneLog(seqID uint64, order *Order) *OrderBookLog {
	return newRemoveLog(seqID, LogTypeDone, order)
}

func NewCancelLog(seqID uint64, order *Order) *OrderBookLog {
	return newRemoveLog(seqID, LogTypeCancel, order)
}

func NewEvictLog(seqID uint64, order *Order) *OrderBookLog {
	return newRemoveLog(seqID, LogTypeEvict, order)
}

// NewCustodyLog records a deposit or withdrawal.
func NewCustodyLog(seqID uint64, typ LogType, trader common.Address, symbol Symbol, amount *uint256.Int) *OrderBookLog {
	log := acquireBookLog()
	log.SequenceID = seqID
	log.Type = typ
	log.Symbol = symbol
	log.Size = *amount
	log.Trader = trader
	log.CreatedAt = time.Now().UTC()
	return log
}
