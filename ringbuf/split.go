package ringbuf

// Split severs the ring into its two roles. The first call returns a
// producer handle and a consumer handle; every later call returns zero
// handles and false. Each handle is meant to move to exactly one
// goroutine or interrupt context, and exposes only the operations its
// side may perform.
//
// Split restricts the API, it does not lock anything. Code that keeps
// driving the ring directly alongside the handles has left the
// single-writer contract and is on its own.
func (r *RingBuf[T]) Split() (Producer[T], Consumer[T], bool) {
	if !r.spl.CompareAndSwap(false, true) {
		return Producer[T]{}, Consumer[T]{}, false
	}
	return Producer[T]{ring: r}, Consumer[T]{ring: r}, true
}

// Producer is the write-side view of a ring. The zero Producer has no
// ring; only handles obtained from Split are usable.
type Producer[T any] struct {
	ring *RingBuf[T]
}

// Front reserves the next write slot; see RingBuf.WriterFront.
func (p Producer[T]) Front() (*T, bool) { return p.ring.WriterFront() }

// Commit publishes the reserved slot; see RingBuf.Commit.
func (p Producer[T]) Commit() Result { return p.ring.Commit() }

// Push copies v in and publishes it; see RingBuf.Push.
func (p Producer[T]) Push(v T) Result { return p.ring.Push(v) }

// Ring returns the underlying ring, nil for the zero Producer.
func (p Producer[T]) Ring() *RingBuf[T] { return p.ring }

// Consumer is the read-side view of a ring. The zero Consumer has no
// ring; only handles obtained from Split are usable.
type Consumer[T any] struct {
	ring *RingBuf[T]
}

// Front returns the oldest item; see RingBuf.ReaderFront.
func (c Consumer[T]) Front() (*T, bool) { return c.ring.ReaderFront() }

// Pop releases the front item; see RingBuf.Pop.
func (c Consumer[T]) Pop() Result { return c.ring.Pop() }

// Ring returns the underlying ring, nil for the zero Consumer.
func (c Consumer[T]) Ring() *RingBuf[T] { return c.ring }
