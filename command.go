package match

import (
	"context"
	"fmt"

	"github.com/0x5487/custody-exchange/protocol"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/xid"
)

// EnqueueCommand decodes a serialized command and runs it on the engine.
// The result is the same value the typed method returns: *Order for limit
// and cancel commands, *MarketResult for market orders, nil otherwise.
func (e *Engine) EnqueueCommand(ctx context.Context, cmd *protocol.Command) (any, error) {
	if cmd == nil {
		return nil, ErrInvalidParam
	}
	requestID := cmd.RequestID
	if requestID == "" {
		requestID = xid.New().String()
	}

	typ, payload, err := e.decodeCommand(cmd)
	if err != nil {
		logger.Warn("invalid command", "request_id", requestID, "type", cmd.Type.String(), "error", err)
		return nil, err
	}
	return e.send(ctx, requestID, typ, payload)
}

func (e *Engine) decodeCommand(cmd *protocol.Command) (CommandType, any, error) {
	switch cmd.Type {
	case protocol.CmdRegisterAsset:
		payload := &protocol.RegisterAssetCommand{}
		if err := e.serializer.Unmarshal(cmd.Payload, payload); err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrInvalidParam, err)
		}
		symbol, err := NewSymbol(payload.Symbol)
		if err != nil {
			return 0, nil, err
		}
		reservoir, ok := e.reservoirs[payload.Reservoir]
		if !ok {
			return 0, nil, fmt.Errorf("reservoir %q: %w", payload.Reservoir, ErrNotFound)
		}
		return CmdRegisterAsset, &registerRequest{symbol: symbol, reservoir: reservoir, decimals: payload.Decimals}, nil

	case protocol.CmdDeposit, protocol.CmdWithdraw:
		payload := &protocol.DepositCommand{}
		if err := e.serializer.Unmarshal(cmd.Payload, payload); err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrInvalidParam, err)
		}
		req := &custodyRequest{}
		var err error
		if req.trader, err = parseTrader(payload.Trader); err != nil {
			return 0, nil, err
		}
		if req.symbol, err = NewSymbol(payload.Symbol); err != nil {
			return 0, nil, err
		}
		if err := parseAmount(&req.amount, payload.Amount); err != nil {
			return 0, nil, err
		}
		if cmd.Type == protocol.CmdWithdraw {
			return CmdWithdraw, req, nil
		}
		return CmdDeposit, req, nil

	case protocol.CmdLimitOrder:
		payload := &protocol.LimitOrderCommand{}
		if err := e.serializer.Unmarshal(cmd.Payload, payload); err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrInvalidParam, err)
		}
		req := &limitRequest{side: payload.Side}
		var err error
		if req.trader, err = parseTrader(payload.Trader); err != nil {
			return 0, nil, err
		}
		if req.symbol, err = NewSymbol(payload.Symbol); err != nil {
			return 0, nil, err
		}
		if err := parseAmount(&req.price, payload.Price); err != nil {
			return 0, nil, err
		}
		if err := parseAmount(&req.amount, payload.Amount); err != nil {
			return 0, nil, err
		}
		return CmdLimitOrder, req, nil

	case protocol.CmdMarketOrder:
		payload := &protocol.MarketOrderCommand{}
		if err := e.serializer.Unmarshal(cmd.Payload, payload); err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrInvalidParam, err)
		}
		req := &marketRequest{side: payload.Side}
		var err error
		if req.trader, err = parseTrader(payload.Trader); err != nil {
			return 0, nil, err
		}
		if req.symbol, err = NewSymbol(payload.Symbol); err != nil {
			return 0, nil, err
		}
		if err := parseAmount(&req.amount, payload.Amount); err != nil {
			return 0, nil, err
		}
		return CmdMarketOrder, req, nil

	case protocol.CmdCancelOrder:
		payload := &protocol.CancelOrderCommand{}
		if err := e.serializer.Unmarshal(cmd.Payload, payload); err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrInvalidParam, err)
		}
		req := &cancelRequest{id: payload.OrderID}
		var err error
		if req.trader, err = parseTrader(payload.Trader); err != nil {
			return 0, nil, err
		}
		if req.symbol, err = NewSymbol(payload.Symbol); err != nil {
			return 0, nil, err
		}
		return CmdCancelOrder, req, nil
	}

	return 0, nil, fmt.Errorf("command type %d: %w", cmd.Type, ErrInvalidParam)
}

func parseTrader(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("trader %q: %w", s, ErrInvalidParam)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(dst *uint256.Int, s string) error {
	if err := dst.SetFromDecimal(s); err != nil {
		return fmt.Errorf("amount %q: %w", s, ErrInvalidAmount)
	}
	return nil
}
