package match

import "context"

// AsyncPublishLog moves publishing off the engine loop. Logs are cloned
// before they enter the ring buffer, since the engine recycles them as soon
// as Publish returns. Batches reach the wrapped PublishLog in order.
type AsyncPublishLog struct {
	next PublishLog
	rb   *RingBuffer[[]*OrderBookLog]
}

type forwardHandler struct {
	next PublishLog
}

func (h forwardHandler) OnEvent(batch []*OrderBookLog) {
	h.next.Publish(batch...)
}

// NewAsyncPublishLog wraps next. capacity is the number of batches that may
// be in flight and must be a power of two. Call Shutdown to flush.
func NewAsyncPublishLog(next PublishLog, capacity int64) *AsyncPublishLog {
	p := &AsyncPublishLog{
		next: next,
		rb:   NewRingBuffer[[]*OrderBookLog](capacity, forwardHandler{next: next}),
	}
	p.rb.Start()
	return p
}

func (p *AsyncPublishLog) Publish(logs ...*OrderBookLog) {
	if len(logs) == 0 {
		return
	}
	batch := make([]*OrderBookLog, len(logs))
	for i, log := range logs {
		batch[i] = log.Clone()
	}
	if !p.rb.Publish(batch) {
		logger.Warn("logs published after shutdown were dropped", "first_seq_id", batch[0].SequenceID, "count", len(batch))
	}
}

// Pending returns the number of batches not yet handed to the wrapped publisher.
func (p *AsyncPublishLog) Pending() int64 {
	return p.rb.GetPendingEvents()
}

// Shutdown waits until every accepted batch has been forwarded.
func (p *AsyncPublishLog) Shutdown(ctx context.Context) error {
	return p.rb.Shutdown(ctx)
}
