package ringbuf

// Result describes the outcome of a ring operation. These are the only
// three outcomes any operation can produce; a failed operation leaves
// the ring untouched.
type Result uint8

const (
	// OK means the operation took effect.
	OK Result = iota
	// Full means a write-side operation found no free slot.
	Full
	// Empty means a read-side operation found no item.
	Empty
)

func (r Result) String() string {
	switch r {
	case OK:
		return "ok"
	case Full:
		return "buffer full"
	case Empty:
		return "buffer empty"
	default:
		return "unknown"
	}
}
