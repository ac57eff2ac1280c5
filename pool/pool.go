package pool

import (
	"sync/atomic"

	"github.com/kting28/spsc-ringbuf-core/ringbuf"
)

// Index identifies a payload slot inside a Pool.
type Index uint32

// Invalid is the index an envelope carries when no payload slot is
// attached.
const Invalid Index = ^Index(0)

// Valid reports whether i refers to a slot at all.
func (i Index) Valid() bool { return i != Invalid }

// Envelope constrains a command type Q to expose the pool index it
// carries. The accessors live on *Q because staging writes the index in
// place inside a ring slot.
type Envelope[Q any] interface {
	*Q
	PoolIndex() Index
	SetPoolIndex(Index)
}

// Result describes the outcome of a pool operation.
type Result uint8

const (
	// OK means the operation took effect.
	OK Result = iota
	// Exhausted means every payload slot is out. Allocation succeeds
	// again once the consumer returns one.
	Exhausted
	// CommandFull means the command ring has no free slot.
	CommandFull
	// CommandEmpty means the command ring has nothing to consume.
	CommandEmpty
	// ReturnFull means the free ring cannot take another index.
	ReturnFull
	// BadEnvelope means the staged envelope references a payload slot
	// that was never handed off, or an index outside the pool.
	BadEnvelope
)

func (r Result) String() string {
	switch r {
	case OK:
		return "ok"
	case Exhausted:
		return "pool exhausted"
	case CommandFull:
		return "command ring full"
	case CommandEmpty:
		return "command ring empty"
	case ReturnFull:
		return "free ring full"
	case BadEnvelope:
		return "bad envelope"
	default:
		return "unknown"
	}
}

// Pool owns a set of payload slots and the ring pair that shuttles
// their indices: command envelopes flow producer -> consumer, each
// optionally referencing one slot; released indices flow back through
// the free ring. After New no operation allocates.
//
// Instantiate with the payload type, the command type and its pointer:
//
//	p := pool.New[Payload, Message, *Message](16, 16)
type Pool[T any, Q any, PQ Envelope[Q]] struct {
	slots []Singleton[T]
	cmd   *ringbuf.RingBuf[Q]
	free  *ringbuf.RingBuf[Index]
	spl   atomic.Bool
}

// New builds a pool with depth payload slots and rings of ringDepth
// entries. ringDepth must be at least depth: the free ring starts out
// holding every index (0 through depth-1), which is what lets the first
// depth allocations succeed. Panics on a violated bound.
func New[T any, Q any, PQ Envelope[Q]](depth, ringDepth int) *Pool[T, Q, PQ] {
	if depth < 1 {
		panic("pool: depth must be at least 1")
	}
	if ringDepth < depth {
		panic("pool: ring depth below slot count")
	}
	p := &Pool[T, Q, PQ]{
		slots: make([]Singleton[T], depth),
		cmd:   ringbuf.New[Q](ringDepth),
		free:  ringbuf.New[Index](ringDepth),
	}
	for i := 0; i < depth; i++ {
		p.free.Push(Index(i))
	}
	return p
}

// Depth returns the payload slot count.
func (p *Pool[T, Q, PQ]) Depth() int { return len(p.slots) }

// Free returns how many slot indices sit in the free ring right now.
func (p *Pool[T, Q, PQ]) Free() int { return p.free.Len() }

// Pending returns how many committed envelopes await the consumer.
func (p *Pool[T, Q, PQ]) Pending() int { return p.cmd.Len() }

// Split severs the pool into its two roles, once. Later calls return
// zero values and false, like RingBuf.Split.
func (p *Pool[T, Q, PQ]) Split() (PoolProducer[T, Q, PQ], PoolConsumer[T, Q, PQ], bool) {
	if !p.spl.CompareAndSwap(false, true) {
		return PoolProducer[T, Q, PQ]{}, PoolConsumer[T, Q, PQ]{}, false
	}
	// Ring handles pin each ring to its single writer: the producer
	// side writes commands and drains the free ring, the consumer side
	// the reverse.
	cmdProd, cmdCons, _ := p.cmd.Split()
	freeProd, freeCons, _ := p.free.Split()
	return PoolProducer[T, Q, PQ]{pool: p, cmd: cmdProd, free: freeCons},
		PoolConsumer[T, Q, PQ]{pool: p, cmd: cmdCons, free: freeProd},
		true
}

// PoolProducer is the staging side of a pool. One execution context
// drives it.
type PoolProducer[T any, Q any, PQ Envelope[Q]] struct {
	pool *Pool[T, Q, PQ]
	cmd  ringbuf.Producer[Q]
	free ringbuf.Consumer[Index]
}

// Stage reserves the next command envelope without attaching a payload
// slot; its pool index is reset to Invalid. Fill the envelope in place,
// then call Commit. Returns (nil, false) when the command ring is full.
// Staging again before Commit reuses the same envelope.
func (p PoolProducer[T, Q, PQ]) Stage() (*Q, bool) {
	q, ok := p.cmd.Front()
	if !ok {
		return nil, false
	}
	PQ(q).SetPoolIndex(Invalid)
	return q, true
}

// StageWithPayload reserves the next command envelope and allocates a
// payload slot for it. On OK the returned singleton is producer-held:
// fill it through TryWrite, call WriteDone, then Commit. CommandFull
// leaves the free ring untouched; Exhausted leaves the command ring
// untouched.
func (p PoolProducer[T, Q, PQ]) StageWithPayload() (*Q, *Singleton[T], Result) {
	q, ok := p.cmd.Front()
	if !ok {
		return nil, nil, CommandFull
	}
	idxp, ok := p.free.Front()
	if !ok {
		return nil, nil, Exhausted
	}
	idx := *idxp
	if idx >= Index(len(p.pool.slots)) {
		panic("pool: free ring holds an index outside the pool")
	}
	s := &p.pool.slots[idx]
	if !s.Claim() {
		panic("pool: free ring holds an index whose slot is not vacant")
	}
	p.free.Pop()
	PQ(q).SetPoolIndex(idx)
	return q, s, OK
}

// Commit publishes the staged envelope. An envelope that references a
// payload slot must have been handed off first (WriteDone called);
// anything else is BadEnvelope and nothing is published.
func (p PoolProducer[T, Q, PQ]) Commit() Result {
	q, ok := p.cmd.Front()
	if !ok {
		return CommandFull
	}
	idx := PQ(q).PoolIndex()
	if idx.Valid() {
		if idx >= Index(len(p.pool.slots)) {
			return BadEnvelope
		}
		if p.pool.slots[idx].Owner() != OwnerConsumer {
			return BadEnvelope
		}
	}
	return poolResult(p.cmd.Commit())
}

// PoolConsumer is the draining side of a pool.
type PoolConsumer[T any, Q any, PQ Envelope[Q]] struct {
	pool *Pool[T, Q, PQ]
	cmd  ringbuf.Consumer[Q]
	free ringbuf.Producer[Index]
}

// Peek returns the front envelope and, when it references a payload,
// the consumer-held singleton to read from. ok is false on an empty
// command ring. Both views stay valid until Pop.
func (c PoolConsumer[T, Q, PQ]) Peek() (*Q, *Singleton[T], bool) {
	q, ok := c.cmd.Front()
	if !ok {
		return nil, nil, false
	}
	idx := PQ(q).PoolIndex()
	if !idx.Valid() || idx >= Index(len(c.pool.slots)) {
		return q, nil, true
	}
	return q, &c.pool.slots[idx], true
}

// Pop releases the front envelope. The envelope's index is gone after
// Pop, so finish with the payload first: ReadDone, then Return.
func (c PoolConsumer[T, Q, PQ]) Pop() Result {
	if c.cmd.Pop() != ringbuf.OK {
		return CommandEmpty
	}
	return OK
}

// Return puts a finished slot's index back into circulation. The slot
// must be vacant again (ReadDone called); a held slot here means the
// index discipline broke somewhere, which is unrecoverable.
func (c PoolConsumer[T, Q, PQ]) Return(i Index) Result {
	if i >= Index(len(c.pool.slots)) {
		panic("pool: returning an index outside the pool")
	}
	if c.pool.slots[i].Owner() != OwnerFree {
		panic("pool: returning an index whose slot is still held")
	}
	if c.free.Push(i) != ringbuf.OK {
		return ReturnFull
	}
	return OK
}

func poolResult(r ringbuf.Result) Result {
	switch r {
	case ringbuf.OK:
		return OK
	case ringbuf.Full:
		return CommandFull
	default:
		return CommandEmpty
	}
}
