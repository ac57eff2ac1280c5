package ringbuf

import "errors"

// Raw is a ring over caller-provided byte storage with a fixed item
// stride. It serves memory the Go allocator does not own: static
// regions, memory-mapped files, shared segments. The operation surface
// matches RingBuf; slots are byte slices instead of typed pointers.
//
// Unlike RingBuf, cursors fold into the [0, 2N-1] window for every
// capacity, so Indices snapshots are always in-window and round-trip
// through Config regardless of how far the ring has run.
type Raw struct {
	_       [0]func() // prevent accidental copying.
	rd      index
	wr      index
	stride  uint32
	n       uint32
	storage []byte
}

// Config lays out a Raw ring. Storage must hold Stride*Capacity bytes.
// Read and Write restore previously saved cursors; leave them zero for
// a fresh ring.
type Config struct {
	Stride   int
	Capacity int
	Read     uint32
	Write    uint32
	Storage  []byte
}

var (
	ErrStride   = errors.New("ringbuf: stride must be at least 1")
	ErrCapacity = errors.New("ringbuf: capacity out of range")
	ErrStorage  = errors.New("ringbuf: storage smaller than stride*capacity")
	ErrIndex    = errors.New("ringbuf: restored cursors out of range")
)

// NewRaw validates cfg and returns the ring. Unlike New it reports
// violations as errors, because raw configurations typically arrive
// from files or foreign code rather than compile-time constants.
func NewRaw(cfg Config) (*Raw, error) {
	if cfg.Stride < 1 {
		return nil, ErrStride
	}
	if cfg.Capacity < 1 || cfg.Capacity > MaxCapacity {
		return nil, ErrCapacity
	}
	// Division form avoids overflowing stride*capacity on 32-bit targets.
	if len(cfg.Storage)/cfg.Capacity < cfg.Stride {
		return nil, ErrStorage
	}
	n := uint32(cfg.Capacity)
	if cfg.Read > 2*n-1 || cfg.Write > 2*n-1 {
		return nil, ErrIndex
	}
	if wrapDist(cfg.Write, cfg.Read, n, false) > n {
		return nil, ErrIndex
	}
	r := &Raw{
		stride:  uint32(cfg.Stride),
		n:       n,
		storage: cfg.Storage,
	}
	r.rd.cell.Store(cfg.Read)
	r.wr.cell.Store(cfg.Write)
	return r, nil
}

func (r *Raw) slot(pos uint32) []byte {
	// Offsets computed in int: storage length bounds the product.
	stride := int(r.stride)
	off := int(pos) * stride
	return r.storage[off : off+stride : off+stride]
}

// Cap returns the slot count.
func (r *Raw) Cap() int { return int(r.n) }

// Stride returns the slot size in bytes.
func (r *Raw) Stride() int { return int(r.stride) }

// Len returns the number of committed, unconsumed items.
func (r *Raw) Len() int {
	return int(wrapDist(r.wr.load(), r.rd.load(), r.n, false))
}

// IsEmpty reports whether the ring holds no items.
func (r *Raw) IsEmpty() bool { return r.Len() == 0 }

// IsFull reports whether every slot holds a committed item.
func (r *Raw) IsFull() bool { return r.Len() == int(r.n) }

// Indices snapshots the raw cursors for persistence. Config.Read and
// Config.Write take them back.
func (r *Raw) Indices() (rd, wr uint32) {
	return r.rd.load(), r.wr.load()
}

// WriterFront reserves the next slot's bytes, returning (nil, false)
// when the ring is full. Same contract as RingBuf.WriterFront.
func (r *Raw) WriterFront() ([]byte, bool) {
	wr := r.wr.load()
	if wrapDist(wr, r.rd.load(), r.n, false) == r.n {
		return nil, false
	}
	return r.slot(mask(wr, r.n, false)), true
}

// Commit publishes the slot reserved by WriterFront.
func (r *Raw) Commit() Result {
	if wrapDist(r.wr.load(), r.rd.load(), r.n, false) == r.n {
		return Full
	}
	r.wr.wrapInc(r.n, false)
	return OK
}

// Push copies b into the next slot and publishes it. At most Stride
// bytes are taken; shorter input leaves the slot's tail bytes as they
// were.
func (r *Raw) Push(b []byte) Result {
	s, ok := r.WriterFront()
	if !ok {
		return Full
	}
	copy(s, b)
	return r.Commit()
}

// ReaderFront returns the oldest slot's bytes, or (nil, false) when the
// ring is empty. The slice stays valid until Pop.
func (r *Raw) ReaderFront() ([]byte, bool) {
	rd := r.rd.load()
	if wrapDist(r.wr.load(), rd, r.n, false) == 0 {
		return nil, false
	}
	return r.slot(mask(rd, r.n, false)), true
}

// Pop releases the front slot.
func (r *Raw) Pop() Result {
	if wrapDist(r.wr.load(), r.rd.load(), r.n, false) == 0 {
		return Empty
	}
	r.rd.wrapInc(r.n, false)
	return OK
}
