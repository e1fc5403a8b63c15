package protocol

// CommandType defines the type of the command (using uint8 for memory alignment and performance)
type CommandType uint8

// Command Type Numbering Strategy:
// - 0-50:  Administrative and custody commands (low frequency)
// - 51+:   Trading commands (hot path)
const (
	CmdUnknown       CommandType = 0
	CmdRegisterAsset CommandType = 1
	CmdDeposit       CommandType = 2
	CmdWithdraw      CommandType = 3

	CmdLimitOrder  CommandType = 51
	CmdMarketOrder CommandType = 52
	CmdCancelOrder CommandType = 53
)

// String implements fmt.Stringer.
func (t CommandType) String() string {
	switch t {
	case CmdRegisterAsset:
		return "register_asset"
	case CmdDeposit:
		return "deposit"
	case CmdWithdraw:
		return "withdraw"
	case CmdLimitOrder:
		return "limit_order"
	case CmdMarketOrder:
		return "market_order"
	case CmdCancelOrder:
		return "cancel_order"
	default:
		return "unknown"
	}
}

// Command is the standard carrier for commands entering the engine.
// It is designed to be efficient for serialization and compatible with Event Sourcing.
type Command struct {
	// Version is the protocol version for backward compatibility.
	Version uint8 `json:"version"`

	// RequestID correlates a command with the logs it produces.
	RequestID string `json:"request_id,omitempty"`

	// SeqID is used for global ordering and deduplication.
	SeqID uint64 `json:"seq_id"`

	// Type identifies the payload type for fast routing.
	Type CommandType `json:"type"`

	// Payload contains the serialized business data (e.g., JSON bytes of LimitOrderCommand).
	// We use lazy deserialization to optimize routing performance.
	Payload []byte `json:"payload"`

	// Metadata stores non-business context (e.g., Tracing ID, Source IP).
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Integer amounts are carried as base-unit decimal strings to prevent precision loss in JSON.

// DepositCommand moves funds from a reservoir into custody.
type DepositCommand struct {
	Trader string `json:"trader"`
	Symbol string `json:"symbol"`
	Amount string `json:"amount"`
}

// WithdrawCommand moves funds from custody back to the trader.
type WithdrawCommand struct {
	Trader string `json:"trader"`
	Symbol string `json:"symbol"`
	Amount string `json:"amount"`
}

// LimitOrderCommand is the payload for placing a resting limit order.
type LimitOrderCommand struct {
	Trader string `json:"trader"`
	Symbol string `json:"symbol"`
	Side   Side   `json:"side"`
	Price  string `json:"price"`
	Amount string `json:"amount"`
}

// MarketOrderCommand is the payload for an immediate market order.
type MarketOrderCommand struct {
	Trader string `json:"trader"`
	Symbol string `json:"symbol"`
	Side   Side   `json:"side"`
	Amount string `json:"amount"`
}

// CancelOrderCommand is the payload for cancelling a resting order.
type CancelOrderCommand struct {
	Trader  string `json:"trader"`
	Symbol  string `json:"symbol"`
	OrderID uint64 `json:"order_id"`
}

// RegisterAssetCommand lists a new asset. The reservoir is resolved by the host
// from Reservoir, since reservoirs are live objects and cannot travel on the wire.
type RegisterAssetCommand struct {
	Symbol    string `json:"symbol"`
	Reservoir string `json:"reservoir"`
	Decimals  int32  `json:"decimals"`
}
