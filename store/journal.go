// Package store persists engine logs in pebble so downstream views can be
// rebuilt after a restart.
package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cockroachdb/pebble"

	match "github.com/0x5487/custody-exchange"
)

var logger = slog.Default()

// SetLogger allows setting a custom logger
func SetLogger(l *slog.Logger) {
	logger = l
}

// keys: l:<8-byte big-endian sequence id>
var (
	logPrefix = []byte("l:")
	logUpper  = []byte("l;")
)

func logKey(seqID uint64) []byte {
	key := make([]byte, len(logPrefix)+8)
	copy(key, logPrefix)
	binary.BigEndian.PutUint64(key[len(logPrefix):], seqID)
	return key
}

func parseLogKey(key []byte) (uint64, error) {
	if len(key) != len(logPrefix)+8 {
		return 0, fmt.Errorf("bad journal key %x", key)
	}
	return binary.BigEndian.Uint64(key[len(logPrefix):]), nil
}

// Journal is a match.PublishLog that appends every log to pebble, keyed by
// sequence id.
type Journal struct {
	db *pebble.DB

	mu  sync.Mutex
	err error // first write failure, sticky
}

// Open opens or creates a journal in dir.
func Open(dir string) (*Journal, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Publish writes logs in one synced batch. PublishLog has no error return,
// so failures are logged and kept for Err.
func (j *Journal) Publish(logs ...*match.OrderBookLog) {
	if len(logs) == 0 {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.write(logs); err != nil {
		logger.Error("journal write failed", "first_seq_id", logs[0].SequenceID, "count", len(logs), "error", err)
		if j.err == nil {
			j.err = err
		}
	}
}

func (j *Journal) write(logs []*match.OrderBookLog) error {
	batch := j.db.NewBatch()
	defer batch.Close()

	for _, log := range logs {
		val, err := json.Marshal(log)
		if err != nil {
			return fmt.Errorf("encode log %d: %w", log.SequenceID, err)
		}
		if err := batch.Set(logKey(log.SequenceID), val, nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

// Err returns the first write failure, if any.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Replay calls fn for every log with SequenceID >= fromSeq, in order.
// Iteration stops at the first error fn returns.
func (j *Journal) Replay(fromSeq uint64, fn func(*match.OrderBookLog) error) error {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: logKey(fromSeq),
		UpperBound: logUpper,
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var log match.OrderBookLog
		if err := json.Unmarshal(iter.Value(), &log); err != nil {
			return fmt.Errorf("decode log at %x: %w", iter.Key(), err)
		}
		if err := fn(&log); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Get returns the log with seqID.
func (j *Journal) Get(seqID uint64) (*match.OrderBookLog, error) {
	val, closer, err := j.db.Get(logKey(seqID))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, match.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	var log match.OrderBookLog
	if err := json.Unmarshal(val, &log); err != nil {
		return nil, err
	}
	return &log, nil
}

// LastSequenceID returns the highest sequence id written, or zero.
func (j *Journal) LastSequenceID() (uint64, error) {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: logPrefix,
		UpperBound: logUpper,
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseLogKey(iter.Key())
}

// Trades returns the match logs of symbol in trade order.
func (j *Journal) Trades(symbol match.Symbol) ([]*match.OrderBookLog, error) {
	var trades []*match.OrderBookLog
	err := j.Replay(0, func(log *match.OrderBookLog) error {
		if log.Type == match.LogTypeMatch && log.Symbol == symbol {
			trades = append(trades, log)
		}
		return nil
	})
	return trades, err
}

var _ match.PublishLog = (*Journal)(nil)
