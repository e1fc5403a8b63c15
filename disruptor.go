package match

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"
)

// ErrDisruptorTimeout is returned when shutdown times out
var ErrDisruptorTimeout = errors.New("disruptor: shutdown timeout")

// EventHandler consumes events in publish order on the consumer goroutine.
type EventHandler[T any] interface {
	OnEvent(event T)
}

// RingBuffer is a multi-producer single-consumer ring buffer.
type RingBuffer[T any] struct {
	// Cache line padding to avoid false sharing
	_                [56]byte
	producerSequence atomic.Int64
	_                [56]byte
	consumerSequence atomic.Int64
	_                [56]byte

	buffer     []T
	bufferMask int64
	capacity   int64

	// published[i] holds the sequence last written to slot i.
	published []atomic.Int64

	handler    EventHandler[T]
	isShutdown atomic.Bool
	stopped    chan struct{}
}

// NewRingBuffer creates a ring buffer; capacity must be a power of two.
func NewRingBuffer[T any](capacity int64, handler EventHandler[T]) *RingBuffer[T] {
	if capacity <= 0 || (capacity&(capacity-1)) != 0 {
		panic("size must be a power of 2")
	}

	rb := &RingBuffer[T]{
		buffer:     make([]T, capacity),
		published:  make([]atomic.Int64, capacity),
		capacity:   capacity,
		bufferMask: capacity - 1,
		handler:    handler,
		stopped:    make(chan struct{}),
	}

	rb.producerSequence.Store(-1)
	rb.consumerSequence.Store(-1)
	for i := range rb.published {
		rb.published[i].Store(-1)
	}

	return rb
}

// Publish claims the next slot and writes event into it, waiting while the
// buffer is full. It reports false once Shutdown has been called.
func (rb *RingBuffer[T]) Publish(event T) bool {
	if rb.isShutdown.Load() {
		return false
	}

	var nextSeq int64
	for {
		current := rb.producerSequence.Load()
		nextSeq = current + 1

		// The producer may not lap the consumer.
		if nextSeq-rb.capacity > rb.consumerSequence.Load() {
			runtime.Gosched()
			continue
		}

		if rb.producerSequence.CompareAndSwap(current, nextSeq) {
			break
		}
		runtime.Gosched()
	}

	index := nextSeq & rb.bufferMask
	rb.buffer[index] = event
	rb.published[index].Store(nextSeq)
	return true
}

// Start runs the consumer in a new goroutine.
func (rb *RingBuffer[T]) Start() {
	go rb.consumerLoop()
}

// Shutdown stops new publishes and waits until every claimed event has been handled.
// Call it once producers have stopped publishing.
func (rb *RingBuffer[T]) Shutdown(ctx context.Context) error {
	rb.isShutdown.Store(true)

	select {
	case <-rb.stopped:
		return nil
	case <-ctx.Done():
		return ErrDisruptorTimeout
	}
}

func (rb *RingBuffer[T]) consumerLoop() {
	defer close(rb.stopped)
	next := rb.consumerSequence.Load() + 1

	for {
		// Read the flag before the sequence so nothing claimed before shutdown is missed.
		shutdown := rb.isShutdown.Load()
		available := rb.producerSequence.Load()

		processed := next <= available
		next = rb.consume(next, available)

		if shutdown {
			// A producer that passed the flag check may still be claiming.
			if last := rb.producerSequence.Load(); last >= next {
				rb.consume(next, last)
			}
			return
		}
		if !processed {
			runtime.Gosched()
		}
	}
}

// consume handles sequences next..available and returns the following one.
func (rb *RingBuffer[T]) consume(next, available int64) int64 {
	for ; next <= available; next++ {
		index := next & rb.bufferMask

		// Wait for the producer that claimed this slot to finish writing.
		for rb.published[index].Load() != next {
			runtime.Gosched()
		}

		event := rb.buffer[index]
		var zero T
		rb.buffer[index] = zero
		rb.handler.OnEvent(event)
		rb.consumerSequence.Store(next)
	}
	return next
}

// ConsumerSequence returns the last handled sequence.
func (rb *RingBuffer[T]) ConsumerSequence() int64 {
	return rb.consumerSequence.Load()
}

// ProducerSequence returns the last claimed sequence.
func (rb *RingBuffer[T]) ProducerSequence() int64 {
	return rb.producerSequence.Load()
}

// GetPendingEvents returns the number of claimed but unhandled events.
func (rb *RingBuffer[T]) GetPendingEvents() int64 {
	return rb.producerSequence.Load() - rb.consumerSequence.Load()
}
