package match

import (
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/igrmk/treemap/v2"
)

// AggregatedBook maintains a simplified view of one symbol's order book,
// tracking only price levels and their aggregated sizes (depth).
// It is designed for downstream services that rebuild book state from
// OrderBookLog events, for example by replaying a store.Journal.
type AggregatedBook struct {
	mu     sync.RWMutex
	symbol Symbol
	seqID  uint64 // last applied SequenceID
	ask    *treemap.TreeMap[uint256.Int, uint256.Int]
	bid    *treemap.TreeMap[uint256.Int, uint256.Int]
}

func lessPrice(a, b uint256.Int) bool {
	return a.Lt(&b)
}

// NewAggregatedBook creates a new AggregatedBook instance with empty ask and bid sides.
func NewAggregatedBook(symbol Symbol) *AggregatedBook {
	return &AggregatedBook{
		symbol: symbol,
		ask:    treemap.NewWithKeyCompare[uint256.Int, uint256.Int](lessPrice),
		bid:    treemap.NewWithKeyCompare[uint256.Int, uint256.Int](lessPrice),
	}
}

// SequenceID returns the last processed sequence ID.
// Used for synchronization and gap detection during rebuild.
func (ab *AggregatedBook) SequenceID() uint64 {
	ab.mu.RLock()
	defer ab.mu.RUnlock()
	return ab.seqID
}

// Publish lets an AggregatedBook follow the engine directly as a PublishLog.
// Replay errors are logged; the affected log is skipped.
func (ab *AggregatedBook) Publish(logs ...*OrderBookLog) {
	for _, log := range logs {
		if err := ab.Replay(log); err != nil {
			logger.Error("aggregated book replay failed", "symbol", ab.symbol.String(), "seq_id", log.SequenceID, "error", err)
		}
	}
}

// Replay applies a log to the aggregated book state. Logs at or below the
// current sequence ID are ignored, so replaying a journal twice is harmless.
// Logs of other symbols advance the sequence ID only.
func (ab *AggregatedBook) Replay(log *OrderBookLog) error {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	if log.SequenceID <= ab.seqID {
		return nil
	}

	if log.Symbol == ab.symbol {
		if change, ok := CalculateDepthChange(log); ok {
			if err := ab.apply(change); err != nil {
				return fmt.Errorf("seq %d: %w", log.SequenceID, err)
			}
		}
	}

	ab.seqID = log.SequenceID
	return nil
}

func (ab *AggregatedBook) apply(change DepthChange) error {
	tree := ab.side(change.Side)
	size, _ := tree.Get(change.Price)

	if !change.Decrease {
		if _, overflow := size.AddOverflow(&size, &change.Size); overflow {
			return ErrOverflow
		}
		tree.Set(change.Price, size)
		return nil
	}

	if size.Lt(&change.Size) {
		return fmt.Errorf("level %s %s: %w", change.Side, change.Price.Dec(), ErrInvalidParam)
	}
	size.Sub(&size, &change.Size)
	if size.IsZero() {
		tree.Del(change.Price)
		return nil
	}
	tree.Set(change.Price, size)
	return nil
}

func (ab *AggregatedBook) side(side Side) *treemap.TreeMap[uint256.Int, uint256.Int] {
	if side == Buy {
		return ab.bid
	}
	return ab.ask
}

// OnRebuild resets the aggregated book.
// This should be called before replaying events from the start of a journal.
func (ab *AggregatedBook) OnRebuild() {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	ab.seqID = 0
	ab.ask = treemap.NewWithKeyCompare[uint256.Int, uint256.Int](lessPrice)
	ab.bid = treemap.NewWithKeyCompare[uint256.Int, uint256.Int](lessPrice)
}

// Size returns the aggregated size at a specific price level for the given side.
// Returns zero if the price level does not exist.
func (ab *AggregatedBook) Size(side Side, price *uint256.Int) *uint256.Int {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	size, _ := ab.side(side).Get(*price)
	return &size
}

// Depth returns up to limit levels per side, best price first. Count is not
// tracked by the aggregated view and is left zero.
func (ab *AggregatedBook) Depth(limit uint32) *Depth {
	ab.mu.RLock()
	defer ab.mu.RUnlock()

	depth := &Depth{
		UpdateID: ab.seqID,
		Asks:     make([]*DepthItem, 0, limit),
		Bids:     make([]*DepthItem, 0, limit),
	}
	for it := ab.ask.Iterator(); it.Valid() && uint32(len(depth.Asks)) < limit; it.Next() {
		depth.Asks = append(depth.Asks, &DepthItem{Price: it.Key(), Size: it.Value()})
	}
	for it := ab.bid.Reverse(); it.Valid() && uint32(len(depth.Bids)) < limit; it.Next() {
		depth.Bids = append(depth.Bids, &DepthItem{Price: it.Key(), Size: it.Value()})
	}
	return depth
}
