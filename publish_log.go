package match

import "sync"

// PublishLog is an interface for publishing engine logs (opens, fills, removals, custody moves).
//
// IMPORTANT: Implementations must either:
//  1. Process logs synchronously before returning, OR
//  2. Clone the OrderBookLog data before returning
//
// The engine recycles OrderBookLog objects to a sync.Pool after Publish returns,
// so any asynchronous processing must work with cloned data.
type PublishLog interface {
	Publish(...*OrderBookLog)
}

// MemoryPublishLog stores logs in memory, useful for testing.
type MemoryPublishLog struct {
	mu   sync.RWMutex
	logs []*OrderBookLog
}

// NewMemoryPublishLog creates a new MemoryPublishLog.
func NewMemoryPublishLog() *MemoryPublishLog {
	return &MemoryPublishLog{
		logs: make([]*OrderBookLog, 0),
	}
}

// Publish appends copies of logs to the in-memory slice.
func (m *MemoryPublishLog) Publish(logs ...*OrderBookLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, log := range logs {
		m.logs = append(m.logs, log.Clone())
	}
}

// Count returns the number of logs stored.
func (m *MemoryPublishLog) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.logs)
}

// Get returns the log at the specified index.
func (m *MemoryPublishLog) Get(index int) *OrderBookLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.logs[index]
}

// Logs returns a copy of all logs stored.
func (m *MemoryPublishLog) Logs() []*OrderBookLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	logs := make([]*OrderBookLog, len(m.logs))
	copy(logs, m.logs)
	return logs
}

// OfType returns the stored logs of type typ in publish order.
func (m *MemoryPublishLog) OfType(typ LogType) []*OrderBookLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var logs []*OrderBookLog
	for _, log := range m.logs {
		if log.Type == typ {
			logs = append(logs, log)
		}
	}
	return logs
}

// DiscardPublishLog discards all logs, useful for benchmarking.
type DiscardPublishLog struct {
}

// NewDiscardPublishLog creates a new DiscardPublishLog.
func NewDiscardPublishLog() *DiscardPublishLog {
	return &DiscardPublishLog{}
}

// Publish does nothing.
func (p *DiscardPublishLog) Publish(logs ...*OrderBookLog) {

}

// MultiPublishLog fans logs out to several publishers in order.
type MultiPublishLog []PublishLog

func (m MultiPublishLog) Publish(logs ...*OrderBookLog) {
	for _, p := range m {
		p.Publish(logs...)
	}
}
