// Package pool passes fixed payload slots between one producer and one
// consumer without allocating.
//
// A Singleton is one slot guarded by an ownership word; a Pool is a set
// of slots threaded onto a pair of rings so the two sides can exchange
// slot indices instead of copying payloads.
package pool

import "sync/atomic"

// Owner names the side currently holding a slot.
type Owner uint32

const (
	// OwnerFree marks a vacant slot: neither side may touch the payload.
	OwnerFree Owner = iota
	// OwnerProducer marks a slot the producer is filling.
	OwnerProducer
	// OwnerConsumer marks a slot handed off for consumption.
	OwnerConsumer
)

func (o Owner) String() string {
	switch o {
	case OwnerFree:
		return "free"
	case OwnerProducer:
		return "producer"
	case OwnerConsumer:
		return "consumer"
	default:
		return "unknown"
	}
}

// Singleton is a single payload slot shared by one producer and one
// consumer. The owner word is the only synchronization: payload access
// is legal exactly while the caller's side holds the slot. Ownership
// moves Free -> Producer -> Consumer -> Free, each step one
// compare-and-swap, so a slot can straddle an interrupt boundary.
type Singleton[T any] struct {
	_     [0]func() // prevent accidental copying.
	owner atomic.Uint32
	val   T
}

// Claim takes a vacant slot for writing (Free -> Producer). It reports
// false, touching nothing, when the slot is not vacant.
func (s *Singleton[T]) Claim() bool {
	return s.owner.CompareAndSwap(uint32(OwnerFree), uint32(OwnerProducer))
}

// TryWrite returns the payload for filling. Only the producer side gets
// it, and only between Claim and WriteDone.
func (s *Singleton[T]) TryWrite() (*T, bool) {
	if Owner(s.owner.Load()) != OwnerProducer {
		return nil, false
	}
	return &s.val, true
}

// WriteDone hands the filled slot to the consumer side (Producer ->
// Consumer). The producer must not touch the payload afterwards.
func (s *Singleton[T]) WriteDone() bool {
	return s.owner.CompareAndSwap(uint32(OwnerProducer), uint32(OwnerConsumer))
}

// TryRead returns the payload for consumption while the consumer side
// holds the slot.
func (s *Singleton[T]) TryRead() (*T, bool) {
	if Owner(s.owner.Load()) != OwnerConsumer {
		return nil, false
	}
	return &s.val, true
}

// ReadDone vacates the slot (Consumer -> Free).
func (s *Singleton[T]) ReadDone() bool {
	return s.owner.CompareAndSwap(uint32(OwnerConsumer), uint32(OwnerFree))
}

// Owner returns the side currently holding the slot.
func (s *Singleton[T]) Owner() Owner {
	return Owner(s.owner.Load())
}
