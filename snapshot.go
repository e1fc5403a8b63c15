package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/0x5487/custody-exchange/protocol"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	// SnapshotSchemaVersion is bumped whenever older builds can no longer read snapshot.bin.
	SnapshotSchemaVersion = 1

	// EngineVersion is recorded in snapshot metadata.
	EngineVersion = "custody-exchange/0.3.0"
)

// OrderBookSnapshot contains the resting orders of a single book.
type OrderBookSnapshot struct {
	Symbol string                `json:"symbol"`
	Bids   []*protocol.OrderView `json:"bids"` // Ordered list of bids (best price first)
	Asks   []*protocol.OrderView `json:"asks"` // Ordered list of asks (best price first)
}

// EngineSnapshot is the full engine state captured between two commands.
type EngineSnapshot struct {
	SeqID    uint64                  `json:"seq_id"`   // Last OrderBookLog sequence ID
	TradeID  uint64                  `json:"trade_id"` // Last trade ID
	OrderID  uint64                  `json:"order_id"` // Last allocated order ID
	Balances []*protocol.BalanceView `json:"balances"`
	Books    []*OrderBookSnapshot    `json:"books"`
}

// SnapshotMetadata holds the global metadata for a snapshot (stored in metadata.json).
type SnapshotMetadata struct {
	SchemaVersion    int    `json:"schema_version"`
	Timestamp        int64  `json:"timestamp"` // Unix Nano
	SeqID            uint64 `json:"seq_id"`    // Journal position to resume replay from
	EngineVersion    string `json:"engine_version"`
	SnapshotChecksum uint32 `json:"snapshot_checksum"` // CRC32 of the entire snapshot.bin file
}

// createSnapshot runs on the engine loop.
func (e *Engine) createSnapshot() *EngineSnapshot {
	snap := &EngineSnapshot{
		SeqID:   e.seqID.Load(),
		TradeID: e.tradeID.Load(),
		OrderID: e.orderID.Load(),
	}

	for _, entry := range e.ledger.Entries() {
		snap.Balances = append(snap.Balances, &protocol.BalanceView{
			Trader: entry.Trader.Hex(),
			Symbol: entry.Symbol.String(),
			Amount: entry.Amount.Dec(),
		})
	}

	for _, asset := range e.registry.Assets() {
		book, ok := e.books[asset.Symbol]
		if !ok {
			continue
		}
		bs := &OrderBookSnapshot{
			Symbol: asset.Symbol.String(),
			Bids:   make([]*protocol.OrderView, 0),
			Asks:   make([]*protocol.OrderView, 0),
		}
		for _, order := range book.ListOrders(Buy) {
			bs.Bids = append(bs.Bids, order.View())
		}
		for _, order := range book.ListOrders(Sell) {
			bs.Asks = append(bs.Asks, order.View())
		}
		snap.Books = append(snap.Books, bs)
	}

	return snap
}

// TakeSnapshot captures a consistent snapshot of balances and books and writes it to outputDir.
// It generates two files: `snapshot.bin` (the state) and `metadata.json` (metadata).
func (e *Engine) TakeSnapshot(ctx context.Context, outputDir string) (*SnapshotMetadata, error) {
	data, err := e.submit(ctx, CmdSnapshot, nil)
	if err != nil {
		return nil, err
	}
	snap := data.(*EngineSnapshot)

	// Use a temporary directory for atomic writes
	tmpDir := outputDir + ".tmp"
	if err := os.RemoveAll(tmpDir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return nil, err
	}

	body, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}

	binPath := filepath.Join(tmpDir, "snapshot.bin")
	if err := writeFileSync(binPath, body); err != nil {
		return nil, err
	}

	meta := &SnapshotMetadata{
		SchemaVersion:    SnapshotSchemaVersion,
		Timestamp:        time.Now().UnixNano(),
		SeqID:            snap.SeqID,
		EngineVersion:    EngineVersion,
		SnapshotChecksum: crc32.ChecksumIEEE(body),
	}

	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(tmpDir, "metadata.json"), metaBytes, 0600); err != nil {
		return nil, err
	}

	// Atomic rename: remove old dir and rename temp to final
	if err := os.RemoveAll(outputDir); err != nil {
		return nil, err
	}
	if err := os.Rename(tmpDir, outputDir); err != nil {
		return nil, err
	}

	logger.Info("snapshot written", "dir", outputDir, "seq_id", meta.SeqID, "books", len(snap.Books))
	return meta, nil
}

// RestoreFromSnapshot replaces balances and books with the state in inputDir.
// Every symbol in the snapshot must already be registered. Reservoirs are
// not touched; they are expected to hold the custody the snapshot describes.
func (e *Engine) RestoreFromSnapshot(ctx context.Context, inputDir string) (*SnapshotMetadata, error) {
	metaBytes, err := os.ReadFile(filepath.Join(inputDir, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta SnapshotMetadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, err
	}
	if meta.SchemaVersion != SnapshotSchemaVersion {
		return nil, fmt.Errorf("snapshot schema version %d, want %d", meta.SchemaVersion, SnapshotSchemaVersion)
	}

	binPath := filepath.Join(inputDir, "snapshot.bin")
	fileChecksum, err := calculateFileCRC32(binPath)
	if err != nil {
		return nil, err
	}
	if fileChecksum != meta.SnapshotChecksum {
		return nil, errors.New("snapshot.bin checksum mismatch")
	}

	body, err := os.ReadFile(binPath)
	if err != nil {
		return nil, err
	}
	var snap EngineSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, err
	}

	if _, err := e.submit(ctx, CmdRestore, &snap); err != nil {
		return nil, err
	}
	return &meta, nil
}

// restore runs on the engine loop. The snapshot is decoded in full before
// any state is replaced, so a bad snapshot leaves the engine unchanged.
func (e *Engine) restore(snap *EngineSnapshot) error {
	ledger := NewLedger(e.registry)
	for _, b := range snap.Balances {
		trader, symbol, amount, err := e.decodeBalance(b)
		if err != nil {
			return err
		}
		if err := ledger.restore(trader, symbol, amount); err != nil {
			return err
		}
	}

	books := make(map[Symbol]*OrderBook, len(e.books))
	for symbol := range e.books {
		books[symbol] = NewOrderBook(symbol)
	}
	for _, bs := range snap.Books {
		symbol, err := NewSymbol(bs.Symbol)
		if err != nil {
			return err
		}
		book, ok := books[symbol]
		if !ok {
			return fmt.Errorf("restore book %s: %w", bs.Symbol, ErrUnknownAsset)
		}
		for _, views := range [][]*protocol.OrderView{bs.Bids, bs.Asks} {
			for _, view := range views {
				order, err := orderFromView(symbol, view)
				if err != nil {
					return fmt.Errorf("restore order %d: %w", view.ID, err)
				}
				if order.ID > snap.OrderID {
					return fmt.Errorf("restore order %d: id above order counter: %w", order.ID, ErrInvalidParam)
				}
				book.Insert(order)
			}
		}
	}

	e.ledger = ledger
	e.books = books
	e.seqID.Store(snap.SeqID)
	e.tradeID.Store(snap.TradeID)
	e.orderID.Store(snap.OrderID)

	for symbol, book := range e.books {
		e.metrics.observeBook(book)
		e.metrics.observeCustody(symbol, e.ledger.Total(symbol))
	}
	logger.Info("engine restored", "seq_id", snap.SeqID, "balances", len(snap.Balances), "books", len(snap.Books))
	return nil
}

func (e *Engine) decodeBalance(b *protocol.BalanceView) (common.Address, Symbol, *uint256.Int, error) {
	if !common.IsHexAddress(b.Trader) {
		return common.Address{}, Symbol{}, nil, fmt.Errorf("restore balance trader %q: %w", b.Trader, ErrInvalidParam)
	}
	symbol, err := NewSymbol(b.Symbol)
	if err != nil {
		return common.Address{}, Symbol{}, nil, err
	}
	if _, err := e.registry.Resolve(symbol); err != nil {
		return common.Address{}, Symbol{}, nil, fmt.Errorf("restore balance %s: %w", b.Symbol, err)
	}
	amount, err := uint256.FromDecimal(b.Amount)
	if err != nil {
		return common.Address{}, Symbol{}, nil, fmt.Errorf("restore balance amount %q: %w", b.Amount, ErrInvalidAmount)
	}
	return common.HexToAddress(b.Trader), symbol, amount, nil
}

func orderFromView(symbol Symbol, view *protocol.OrderView) (*Order, error) {
	if !common.IsHexAddress(view.Trader) {
		return nil, ErrInvalidParam
	}
	if view.Side != Buy && view.Side != Sell {
		return nil, ErrInvalidParam
	}
	order := &Order{
		ID:        view.ID,
		Trader:    common.HexToAddress(view.Trader),
		Side:      view.Side,
		Symbol:    symbol,
		CreatedAt: view.CreatedAt,
	}
	for _, f := range []struct {
		dst *uint256.Int
		src string
	}{{&order.Price, view.Price}, {&order.Amount, view.Amount}, {&order.Filled, view.Filled}} {
		if err := f.dst.SetFromDecimal(f.src); err != nil {
			return nil, err
		}
	}
	if order.Price.IsZero() || order.Amount.IsZero() || order.IsFilled() || order.Filled.Gt(&order.Amount) {
		return nil, ErrInvalidParam
	}
	return order, nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	// Sync to ensure data is flushed to disk before the directory is renamed
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func calculateFileCRC32(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}
