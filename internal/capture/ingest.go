package capture

import (
	"errors"
	"sync"
	"sync/atomic"
)

const DefaultQueueCapacity = 100

// ErrQueueClosed is reported to the consumer once the producer side is gone and
// everything queued before that has been drained.
var ErrQueueClosed = errors.New("capture queue closed")

// Ingest is the receive-callback side of the capture pipeline. HandleFrame runs
// in the radio callback context: it never blocks, never allocates and never takes
// a lock shared with the cooperative loop. Addresses that do not fit in the queue
// are dropped; lossy capture under load is accepted.
type Ingest struct {
	queue   chan MAC
	done    chan struct{}
	closed  atomic.Bool
	once    sync.Once
	metrics *Metrics
}

func NewIngest(capacity int, metrics *Metrics) *Ingest {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}

	return &Ingest{
		queue:   make(chan MAC, capacity),
		done:    make(chan struct{}),
		metrics: metrics,
	}
}

// HandleFrame is registered as the radio receive callback.
func (i *Ingest) HandleFrame(buf []byte) {
	h, ok := ParseHeader(buf)
	if !ok {
		i.metrics.observeShort()
		return
	}
	i.metrics.observeFrame(h.Type)

	i.Offer(h.Destination)
	i.Offer(h.Source)
}

// Offer attempts a non-blocking enqueue and reports whether the address was kept.
func (i *Ingest) Offer(mac MAC) bool {
	if i.closed.Load() {
		i.metrics.observeOffer(false)
		return false
	}

	select {
	case i.queue <- mac:
		i.metrics.observeOffer(true)
		return true
	default:
		i.metrics.observeOffer(false)
		return false
	}
}

// TryRecv takes one queued address without blocking. ok is false when nothing is
// queued; err is ErrQueueClosed once the producer is closed and the queue is empty.
func (i *Ingest) TryRecv() (mac MAC, ok bool, err error) {
	select {
	case mac = <-i.queue:
		return mac, true, nil
	default:
	}

	select {
	case <-i.done:
		return MAC{}, false, ErrQueueClosed
	default:
		return MAC{}, false, nil
	}
}

// Drain discards everything queued and reports how many addresses were dropped.
func (i *Ingest) Drain() int {
	n := 0
	for {
		select {
		case <-i.queue:
			n++
		default:
			return n
		}
	}
}

// Len is the number of addresses waiting in the queue.
func (i *Ingest) Len() int {
	return len(i.queue)
}

func (i *Ingest) Cap() int {
	return cap(i.queue)
}

// Close tears down the producer side. The queue channel itself stays open so a
// late callback can never panic on send; it just drops.
func (i *Ingest) Close() {
	i.once.Do(func() {
		i.closed.Store(true)
		close(i.done)
	})
}
