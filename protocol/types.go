package protocol

// Side is the side of an order (uint8 for compact encoding).
type Side uint8

const (
	SideBuy  Side = 1
	SideSell Side = 2
)

// String implements fmt.Stringer.
func (s Side) String() string {
	switch s {
	case SideBuy:
		return "buy"
	case SideSell:
		return "sell"
	default:
		return "unknown"
	}
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType is the type of an incoming order.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// OrderView is the JSON view of a resting order.
type OrderView struct {
	ID        uint64 `json:"id"`
	Trader    string `json:"trader"`
	Side      Side   `json:"side"`
	Symbol    string `json:"symbol"`
	Price     string `json:"price"`
	Amount    string `json:"amount"`
	Filled    string `json:"filled"`
	CreatedAt int64  `json:"created_at"`
}

type DepthItem struct {
	Price string `json:"price"`
	Size  string `json:"size"`
	Count int64  `json:"count"`
}

// GetDepthResponse represents the state of the order book depth.
type GetDepthResponse struct {
	UpdateID uint64       `json:"update_id"`
	Asks     []*DepthItem `json:"asks"`
	Bids     []*DepthItem `json:"bids"`
}

// BalanceView is the JSON view of a ledger entry.
type BalanceView struct {
	Trader string `json:"trader"`
	Symbol string `json:"symbol"`
	Amount string `json:"amount"`
}
