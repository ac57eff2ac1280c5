// Package ringbuf implements fixed-capacity, allocation-free queues
// for one producer and one consumer.
//
// A ring never allocates after construction and never blocks: every
// operation finishes in constant time and reports one of three Result
// values. One goroutine (or interrupt context) owns the write side,
// one owns the read side; under that contract no locks are needed.
package ringbuf

import "sync/atomic"

// RingBuf is a bounded single-producer/single-consumer queue over a
// fixed slot array. It is designed for bare-metal use: no allocations,
// no blocking, failure reported as a value.
//
// Writes are two-phase. WriterFront reserves the next slot, the caller
// fills it in place, Commit publishes it. Reads mirror this with
// ReaderFront and Pop. Push bundles the write phases for callers that
// can afford the copy.
type RingBuf[T any] struct {
	_     [0]func() // prevent accidental copying.
	rd    index
	wr    index
	spl   atomic.Bool
	slots []T
	n     uint32
	pow2  bool
}

// New returns a ring with n freshly allocated slots. Capacity is fixed
// for the life of the ring. New panics when n is outside
// [1, MaxCapacity]; a ring with no slots cannot exist.
func New[T any](n int) *RingBuf[T] {
	if n < 1 || n > MaxCapacity {
		panic("ringbuf: capacity out of range")
	}
	return newRing(make([]T, n))
}

// NewFrom returns a ring over caller-provided storage, which the ring
// owns from then on. Embedded targets pass a slice of a static array to
// keep the ring off the heap. Panics like New on a bad slot count.
func NewFrom[T any](slots []T) *RingBuf[T] {
	if len(slots) < 1 || len(slots) > MaxCapacity {
		panic("ringbuf: capacity out of range")
	}
	return newRing(slots)
}

func newRing[T any](slots []T) *RingBuf[T] {
	n := uint32(len(slots))
	return &RingBuf[T]{
		slots: slots,
		n:     n,
		pow2:  isPowerOfTwo(n),
	}
}

// Cap returns the slot count.
func (r *RingBuf[T]) Cap() int { return int(r.n) }

// Len returns the number of committed, unconsumed items. Concurrent
// use makes it a snapshot, but one each side can rely on: the producer
// sees at most this many items, the consumer at least this many.
func (r *RingBuf[T]) Len() int {
	return int(wrapDist(r.wr.load(), r.rd.load(), r.n, r.pow2))
}

// IsEmpty reports whether the ring holds no items.
func (r *RingBuf[T]) IsEmpty() bool { return r.Len() == 0 }

// IsFull reports whether every slot holds a committed item.
func (r *RingBuf[T]) IsFull() bool { return r.Len() == int(r.n) }

// WriterFront reserves the slot the next Commit will publish, returning
// (nil, false) when the ring is full. Calling WriterFront again before
// Commit returns the same slot and the later writes win. The producer
// fills the slot through the pointer, then calls Commit.
func (r *RingBuf[T]) WriterFront() (*T, bool) {
	wr := r.wr.load()
	if wrapDist(wr, r.rd.load(), r.n, r.pow2) == r.n {
		return nil, false
	}
	return &r.slots[mask(wr, r.n, r.pow2)], true
}

// Commit publishes the slot reserved by WriterFront. Advancing the
// write cursor is the publication point: the consumer may observe the
// item the moment Commit returns. On a full ring Commit publishes
// nothing and returns Full.
func (r *RingBuf[T]) Commit() Result {
	if wrapDist(r.wr.load(), r.rd.load(), r.n, r.pow2) == r.n {
		return Full
	}
	r.wr.wrapInc(r.n, r.pow2)
	return OK
}

// Push copies v into the next free slot and publishes it. It is
// WriterFront followed by Commit.
func (r *RingBuf[T]) Push(v T) Result {
	p, ok := r.WriterFront()
	if !ok {
		return Full
	}
	*p = v
	return r.Commit()
}

// ReaderFront returns the oldest committed item, or (nil, false) when
// the ring is empty. The pointer stays valid until Pop; consuming the
// item in place through it is fine.
func (r *RingBuf[T]) ReaderFront() (*T, bool) {
	rd := r.rd.load()
	if wrapDist(r.wr.load(), rd, r.n, r.pow2) == 0 {
		return nil, false
	}
	return &r.slots[mask(rd, r.n, r.pow2)], true
}

// Pop releases the front item. The slot is the producer's to reuse the
// moment Pop returns, so any ReaderFront pointer is dead after it. On
// an empty ring Pop releases nothing and returns Empty.
func (r *RingBuf[T]) Pop() Result {
	if wrapDist(r.wr.load(), r.rd.load(), r.n, r.pow2) == 0 {
		return Empty
	}
	r.rd.wrapInc(r.n, r.pow2)
	return OK
}
