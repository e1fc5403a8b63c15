package match

import "errors"

var (
	ErrUnknownAsset              = errors.New("token does not exist")
	ErrAlreadyRegistered         = errors.New("token already registered")
	ErrCannotTradeReferenceAsset = errors.New("cannot trade the reference asset")
	ErrInsufficientBalance       = errors.New("insufficient balance")
	ErrInsufficientQuoteBalance  = errors.New("not enough reference asset balance")
	ErrInsufficientBaseBalance   = errors.New("insufficient token balance")
	ErrInvalidAmount             = errors.New("amount must be positive")
	ErrInvalidPrice              = errors.New("price must be positive")
	ErrInvalidSymbol             = errors.New("symbol must be 1 to 32 bytes")
	ErrOverflow                  = errors.New("amount overflows 256 bits")
	ErrNoLiquidity               = errors.New("there is no liquidity to match the order")
	ErrInvalidParam              = errors.New("the param is invalid")
	ErrNotFound                  = errors.New("not found")
	ErrNotOwner                  = errors.New("order belongs to another trader")
	ErrTimeout                   = errors.New("timeout")
	ErrShutdown                  = errors.New("engine is shutting down")

	// Reservoir failures.
	ErrNotAuthorized    = errors.New("reservoir: transfer not authorized")
	ErrReservoirBalance = errors.New("reservoir: insufficient balance")
)
