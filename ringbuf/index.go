package ringbuf

import "sync/atomic"

// MaxCapacity is the largest slot count a ring may have. Cursors travel
// a [0, 2N-1] window, so 2N must stay representable in a uint32.
const MaxCapacity = 1<<31 - 1

// index is one ring cursor. Exactly one side ever stores to it: the
// producer owns the write cursor, the consumer owns the read cursor.
// The opposite side only loads, so a single atomic word is enough to
// order slot contents against cursor movement.
type index struct {
	cell atomic.Uint32
}

func (i *index) load() uint32 { return i.cell.Load() }

// wrapInc advances the cursor by one within [0, 2n-1]. Power-of-two
// capacities let the uint32 overflow naturally; mask discards the high
// bits. Other capacities fold back explicitly at the window edge.
func (i *index) wrapInc(n uint32, pow2 bool) {
	v := i.cell.Load() + 1
	if !pow2 && v > 2*n-1 {
		v -= 2 * n
	}
	i.cell.Store(v)
}

// mask maps a cursor value onto a slot position in [0, n-1].
func mask(v, n uint32, pow2 bool) uint32 {
	if pow2 {
		return v & (n - 1)
	}
	if v > n-1 {
		v -= n
	}
	return v
}

// wrapDist returns the occupancy implied by a write and a read cursor,
// in [0, n] for any legal pair. Zero is empty, n is full; the doubled
// cursor window keeps the two distinguishable without a fill counter.
// Power-of-two cursors run the whole uint32 range, so their distance is
// plain modular subtraction. Folded cursors live in [0, 2n-1] and
// unwrap at the window edge.
func wrapDist(wr, rd, n uint32, pow2 bool) uint32 {
	if pow2 {
		return wr - rd
	}
	if wr >= rd {
		return wr - rd
	}
	return 2*n - (rd - wr)
}

func isPowerOfTwo(n uint32) bool {
	return n != 0 && n&(n-1) == 0
}
