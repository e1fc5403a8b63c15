package match

import (
	"context"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/0x5487/custody-exchange/protocol"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/rs/xid"
)

// CommandType identifies a request handled by the engine loop.
type CommandType int

const (
	CmdRegisterAsset CommandType = iota
	CmdDeposit
	CmdWithdraw
	CmdLimitOrder
	CmdMarketOrder
	CmdCancelOrder
	CmdBalance
	CmdBalances
	CmdTotal
	CmdListOrders
	CmdDepth
	CmdGetStats
	CmdAssets
	CmdSnapshot
	CmdRestore
)

var commandNames = [...]string{
	CmdRegisterAsset: "register_asset",
	CmdDeposit:       "deposit",
	CmdWithdraw:      "withdraw",
	CmdLimitOrder:    "limit_order",
	CmdMarketOrder:   "market_order",
	CmdCancelOrder:   "cancel_order",
	CmdBalance:       "balance",
	CmdBalances:      "balances",
	CmdTotal:         "total",
	CmdListOrders:    "list_orders",
	CmdDepth:         "depth",
	CmdGetStats:      "get_stats",
	CmdAssets:        "assets",
	CmdSnapshot:      "snapshot",
	CmdRestore:       "restore",
}

func (t CommandType) String() string {
	if int(t) < len(commandNames) {
		return commandNames[t]
	}
	return "unknown"
}

// readOnly commands never change engine state.
func (t CommandType) readOnly() bool {
	switch t {
	case CmdBalance, CmdBalances, CmdTotal, CmdListOrders, CmdDepth, CmdGetStats, CmdAssets, CmdSnapshot:
		return true
	}
	return false
}

type Response struct {
	Error error
	Data  any
}

// Command is a unified request sent to the engine loop.
// A single channel keeps the processing order deterministic.
type Command struct {
	RequestID string
	Type      CommandType
	Payload   any
	Resp      chan *Response
}

type registerRequest struct {
	symbol    Symbol
	reservoir Reservoir
	decimals  int32
}

type custodyRequest struct {
	trader common.Address
	symbol Symbol
	amount uint256.Int
}

type limitRequest struct {
	trader common.Address
	symbol Symbol
	side   Side
	price  uint256.Int
	amount uint256.Int
}

type marketRequest struct {
	trader common.Address
	symbol Symbol
	side   Side
	amount uint256.Int
}

type cancelRequest struct {
	trader common.Address
	symbol Symbol
	id     uint64
}

type bookRequest struct {
	symbol Symbol
	side   Side
	limit  uint32
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublishLog sets where engine logs are published.
func WithPublishLog(p PublishLog) Option {
	return func(e *Engine) {
		e.publishLog = p
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLimitOrderMatching makes crossing limit orders take liquidity before
// resting. By default limit orders always rest.
func WithLimitOrderMatching() Option {
	return func(e *Engine) {
		e.limitMatching = true
	}
}

// WithCommandBuffer sets the capacity of the command channel.
func WithCommandBuffer(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.cmdChan = make(chan Command, size)
		}
	}
}

// WithSerializer sets the codec used by EnqueueCommand for payloads.
func WithSerializer(s protocol.Serializer) Option {
	return func(e *Engine) {
		e.serializer = s
	}
}

// WithReservoirs names reservoirs so serialized RegisterAsset commands can refer to them.
func WithReservoirs(reservoirs map[string]Reservoir) Option {
	return func(e *Engine) {
		for name, r := range reservoirs {
			e.reservoirs[name] = r
		}
	}
}

// Engine is the custodial exchange: registry, custody ledger, order books
// and matching. All state is owned by the goroutine running Start; every
// public method is a request to that goroutine, so operations are atomic
// with respect to each other.
type Engine struct {
	registry      *AssetRegistry
	ledger        *Ledger
	books         map[Symbol]*OrderBook
	limitMatching bool

	orderID atomic.Uint64 // last allocated order id
	seqID   atomic.Uint64 // last log sequence id
	tradeID atomic.Uint64 // last trade id

	isShutdown       atomic.Bool
	cmdChan          chan Command
	done             chan struct{}
	shutdownComplete chan struct{}

	publishLog PublishLog
	pending    []*OrderBookLog
	metrics    *Metrics
	serializer protocol.Serializer
	reservoirs map[string]Reservoir
}

// NewEngine creates an engine quoting every market in reference.
// Call Start (usually in its own goroutine) before using it.
func NewEngine(reference Symbol, opts ...Option) *Engine {
	registry := NewAssetRegistry(reference)
	e := &Engine{
		registry:         registry,
		ledger:           NewLedger(registry),
		books:            make(map[Symbol]*OrderBook),
		cmdChan:          make(chan Command, 4096),
		done:             make(chan struct{}),
		shutdownComplete: make(chan struct{}),
		publishLog:       NewDiscardPublishLog(),
		pending:          make([]*OrderBookLog, 0, 8),
		serializer:       &protocol.DefaultJSONSerializer{},
		reservoirs:       make(map[string]Reservoir),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reference returns the unit-of-account symbol.
func (e *Engine) Reference() Symbol {
	return e.registry.Reference()
}

// SequenceID returns the sequence id of the last published log.
func (e *Engine) SequenceID() uint64 {
	return e.seqID.Load()
}

// RegisterAsset lists symbol, custodied by reservoir.
func (e *Engine) RegisterAsset(ctx context.Context, symbol Symbol, reservoir Reservoir, decimals int32) error {
	_, err := e.submit(ctx, CmdRegisterAsset, &registerRequest{symbol: symbol, reservoir: reservoir, decimals: decimals})
	return err
}

// Deposit pulls amount of symbol from trader's reservoir wallet into custody.
func (e *Engine) Deposit(ctx context.Context, trader common.Address, symbol Symbol, amount *uint256.Int) error {
	req := &custodyRequest{trader: trader, symbol: symbol}
	if amount != nil {
		req.amount.Set(amount)
	}
	_, err := e.submit(ctx, CmdDeposit, req)
	return err
}

// Withdraw pushes amount of symbol from custody back to trader.
func (e *Engine) Withdraw(ctx context.Context, trader common.Address, symbol Symbol, amount *uint256.Int) error {
	req := &custodyRequest{trader: trader, symbol: symbol}
	if amount != nil {
		req.amount.Set(amount)
	}
	_, err := e.submit(ctx, CmdWithdraw, req)
	return err
}

// LimitOrder validates affordability and rests an order on the book.
// No funds move; the check is point-in-time, not an escrow.
func (e *Engine) LimitOrder(ctx context.Context, trader common.Address, symbol Symbol, side Side, price, amount *uint256.Int) (*Order, error) {
	req := &limitRequest{trader: trader, symbol: symbol, side: side}
	if price != nil {
		req.price.Set(price)
	}
	if amount != nil {
		req.amount.Set(amount)
	}
	data, err := e.submit(ctx, CmdLimitOrder, req)
	if err != nil {
		return nil, err
	}
	return data.(*Order), nil
}

// MarketOrder takes liquidity from the opposite side until amount is
// filled, the book is empty, or the taker can no longer pay.
func (e *Engine) MarketOrder(ctx context.Context, trader common.Address, symbol Symbol, side Side, amount *uint256.Int) (*MarketResult, error) {
	req := &marketRequest{trader: trader, symbol: symbol, side: side}
	if amount != nil {
		req.amount.Set(amount)
	}
	data, err := e.submit(ctx, CmdMarketOrder, req)
	if err != nil {
		return nil, err
	}
	return data.(*MarketResult), nil
}

// CancelOrder removes a resting order owned by trader.
func (e *Engine) CancelOrder(ctx context.Context, trader common.Address, symbol Symbol, id uint64) (*Order, error) {
	data, err := e.submit(ctx, CmdCancelOrder, &cancelRequest{trader: trader, symbol: symbol, id: id})
	if err != nil {
		return nil, err
	}
	return data.(*Order), nil
}

// Balance returns trader's custody balance of symbol.
func (e *Engine) Balance(ctx context.Context, trader common.Address, symbol Symbol) (*uint256.Int, error) {
	data, err := e.submit(ctx, CmdBalance, &custodyRequest{trader: trader, symbol: symbol})
	if err != nil {
		return nil, err
	}
	return data.(*uint256.Int), nil
}

// Balances returns all non-zero balances of trader.
func (e *Engine) Balances(ctx context.Context, trader common.Address) ([]BalanceEntry, error) {
	data, err := e.submit(ctx, CmdBalances, &custodyRequest{trader: trader})
	if err != nil {
		return nil, err
	}
	return data.([]BalanceEntry), nil
}

// Total returns the sum of all trader balances of symbol.
func (e *Engine) Total(ctx context.Context, symbol Symbol) (*uint256.Int, error) {
	data, err := e.submit(ctx, CmdTotal, &custodyRequest{symbol: symbol})
	if err != nil {
		return nil, err
	}
	return data.(*uint256.Int), nil
}

// ListOrders returns copies of the resting orders on one side, in book order.
func (e *Engine) ListOrders(ctx context.Context, symbol Symbol, side Side) ([]*Order, error) {
	data, err := e.submit(ctx, CmdListOrders, &bookRequest{symbol: symbol, side: side})
	if err != nil {
		return nil, err
	}
	return data.([]*Order), nil
}

// Depth returns the current depth of symbol's book up to the specified limit.
func (e *Engine) Depth(ctx context.Context, symbol Symbol, limit uint32) (*Depth, error) {
	if limit == 0 {
		return nil, ErrInvalidParam
	}
	data, err := e.submit(ctx, CmdDepth, &bookRequest{symbol: symbol, limit: limit})
	if err != nil {
		return nil, err
	}
	return data.(*Depth), nil
}

// Stats returns usage statistics for symbol's book.
func (e *Engine) Stats(ctx context.Context, symbol Symbol) (*BookStats, error) {
	data, err := e.submit(ctx, CmdGetStats, &bookRequest{symbol: symbol})
	if err != nil {
		return nil, err
	}
	return data.(*BookStats), nil
}

// Assets returns the listed assets sorted by symbol.
func (e *Engine) Assets(ctx context.Context) ([]*Asset, error) {
	data, err := e.submit(ctx, CmdAssets, nil)
	if err != nil {
		return nil, err
	}
	return data.([]*Asset), nil
}

func (e *Engine) submit(ctx context.Context, typ CommandType, payload any) (any, error) {
	return e.send(ctx, xid.New().String(), typ, payload)
}

// send hands a command to the loop and waits for its response.
// ErrTimeout means ctx ended first; the command may still have run.
func (e *Engine) send(ctx context.Context, requestID string, typ CommandType, payload any) (any, error) {
	if e.isShutdown.Load() {
		return nil, ErrShutdown
	}

	cmd := Command{
		RequestID: requestID,
		Type:      typ,
		Payload:   payload,
		Resp:      make(chan *Response, 1),
	}

	select {
	case e.cmdChan <- cmd:
	case <-e.shutdownComplete:
		return nil, ErrShutdown
	case <-ctx.Done():
		return nil, ErrTimeout
	}

	select {
	case res := <-cmd.Resp:
		return res.Data, res.Error
	case <-e.shutdownComplete:
		select {
		case res := <-cmd.Resp:
			return res.Data, res.Error
		default:
			return nil, ErrShutdown
		}
	case <-ctx.Done():
		return nil, ErrTimeout
	}
}

// Start runs the engine loop. It returns nil once Shutdown has been called
// and every queued command has been processed.
func (e *Engine) Start() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-e.done:
			return e.drain()
		case cmd := <-e.cmdChan:
			e.execute(&cmd)
		}
	}
}

// Shutdown signals the engine to stop accepting new commands and waits for all pending ones to be processed.
// The method blocks until all commands are drained or the context is cancelled/timed out.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.isShutdown.CompareAndSwap(false, true) {
		close(e.done)
	}

	select {
	case <-e.shutdownComplete:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain processes all remaining commands before returning.
func (e *Engine) drain() error {
	defer close(e.shutdownComplete)

	for {
		select {
		case cmd := <-e.cmdChan:
			e.execute(&cmd)
		default:
			return nil
		}
	}
}

func (e *Engine) execute(cmd *Command) {
	started := time.Now()
	data, err := e.dispatch(cmd)

	if len(e.pending) > 0 {
		for _, log := range e.pending {
			log.RequestID = cmd.RequestID
		}
		e.publishLog.Publish(e.pending...)
		for _, log := range e.pending {
			releaseBookLog(log)
		}
		e.pending = e.pending[:0]
	}

	if !cmd.Type.readOnly() {
		e.metrics.observeCommand(cmd.Type.String(), err, started)
		if err != nil {
			logger.Debug("command rejected",
				slog.String("request_id", cmd.RequestID),
				slog.String("type", cmd.Type.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	if cmd.Resp != nil {
		cmd.Resp <- &Response{Data: data, Error: err}
	}
}

func (e *Engine) dispatch(cmd *Command) (any, error) {
	switch cmd.Type {
	case CmdRegisterAsset:
		if req, ok := cmd.Payload.(*registerRequest); ok {
			return nil, e.registerAsset(req)
		}
	case CmdDeposit:
		if req, ok := cmd.Payload.(*custodyRequest); ok {
			return nil, e.deposit(req)
		}
	case CmdWithdraw:
		if req, ok := cmd.Payload.(*custodyRequest); ok {
			return nil, e.withdraw(req)
		}
	case CmdLimitOrder:
		if req, ok := cmd.Payload.(*limitRequest); ok {
			return e.limitOrder(req)
		}
	case CmdMarketOrder:
		if req, ok := cmd.Payload.(*marketRequest); ok {
			return e.marketOrder(req)
		}
	case CmdCancelOrder:
		if req, ok := cmd.Payload.(*cancelRequest); ok {
			return e.cancelOrder(req)
		}
	case CmdBalance:
		if req, ok := cmd.Payload.(*custodyRequest); ok {
			return e.ledger.Balance(req.trader, req.symbol), nil
		}
	case CmdBalances:
		if req, ok := cmd.Payload.(*custodyRequest); ok {
			return e.ledger.Balances(req.trader), nil
		}
	case CmdTotal:
		if req, ok := cmd.Payload.(*custodyRequest); ok {
			return e.ledger.Total(req.symbol), nil
		}
	case CmdListOrders:
		if req, ok := cmd.Payload.(*bookRequest); ok {
			book, err := e.readBook(req.symbol)
			if err != nil || book == nil {
				return []*Order{}, err
			}
			return book.ListOrders(req.side), nil
		}
	case CmdDepth:
		if req, ok := cmd.Payload.(*bookRequest); ok {
			book, err := e.readBook(req.symbol)
			if err != nil {
				return nil, err
			}
			if book == nil {
				return &Depth{UpdateID: e.seqID.Load(), Asks: []*DepthItem{}, Bids: []*DepthItem{}}, nil
			}
			depth := book.Depth(req.limit)
			depth.UpdateID = e.seqID.Load()
			return depth, nil
		}
	case CmdGetStats:
		if req, ok := cmd.Payload.(*bookRequest); ok {
			book, err := e.readBook(req.symbol)
			if err != nil || book == nil {
				return &BookStats{}, err
			}
			return book.Stats(), nil
		}
	case CmdAssets:
		return e.registry.Assets(), nil
	case CmdSnapshot:
		return e.createSnapshot(), nil
	case CmdRestore:
		if snap, ok := cmd.Payload.(*EngineSnapshot); ok {
			return nil, e.restore(snap)
		}
	}
	return nil, ErrInvalidParam
}

// readBook resolves symbol for read paths. The reference asset has no book.
func (e *Engine) readBook(symbol Symbol) (*OrderBook, error) {
	if _, err := e.registry.Resolve(symbol); err != nil {
		return nil, err
	}
	return e.books[symbol], nil
}

func (e *Engine) registerAsset(req *registerRequest) error {
	if err := e.registry.Register(req.symbol, req.reservoir, req.decimals); err != nil {
		return err
	}
	if !e.registry.IsReference(req.symbol) {
		e.books[req.symbol] = NewOrderBook(req.symbol)
	}
	logger.Info("asset registered", slog.String("symbol", req.symbol.String()), slog.Int("decimals", int(req.decimals)))
	return nil
}

func (e *Engine) deposit(req *custodyRequest) error {
	if err := e.ledger.Deposit(context.Background(), req.trader, req.symbol, &req.amount); err != nil {
		return err
	}
	e.emit(NewCustodyLog(e.seqID.Add(1), LogTypeDeposit, req.trader, req.symbol, &req.amount))
	e.metrics.observeCustody(req.symbol, e.ledger.Total(req.symbol))
	return nil
}

func (e *Engine) withdraw(req *custodyRequest) error {
	if err := e.ledger.Withdraw(context.Background(), req.trader, req.symbol, &req.amount); err != nil {
		return err
	}
	e.emit(NewCustodyLog(e.seqID.Add(1), LogTypeWithdraw, req.trader, req.symbol, &req.amount))
	e.metrics.observeCustody(req.symbol, e.ledger.Total(req.symbol))
	return nil
}

func (e *Engine) emit(log *OrderBookLog) {
	e.pending = append(e.pending, log)
}
