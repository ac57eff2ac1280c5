// Package mmring persists a raw ring inside a memory-mapped file.
//
// The file carries a fixed header (magic, geometry, cursors) followed
// by the slot bytes. Ring operations run directly on the mapped region;
// Sync writes the cursors back and flushes, so a reopened file resumes
// with every synced item intact.
package mmring

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/kting28/spsc-ringbuf-core/ringbuf"
)

const (
	magic      = "SPSCRING"
	version    = 1
	headerSize = 32

	offVersion  = 8
	offStride   = 12
	offCapacity = 16
	offRead     = 20
	offWrite    = 24
)

var (
	ErrFormat      = errors.New("mmring: not a ring file")
	ErrVersion     = errors.New("mmring: unsupported version")
	ErrGeometry    = errors.New("mmring: header geometry does not match file size")
	ErrUnsupported = errors.New("mmring: memory mapping unsupported on this platform")
)

// Ring is a ringbuf.Raw whose storage and cursors live in a mapped
// file. It is single-process: one mapping, one producer, one consumer.
type Ring struct {
	buf  *ringbuf.Raw
	data []byte // whole mapping, header included
	f    *os.File
}

type header struct {
	stride   uint32
	capacity uint32
	read     uint32
	write    uint32
}

func (h header) encode(b []byte) {
	copy(b[:8], magic)
	binary.LittleEndian.PutUint32(b[offVersion:], version)
	binary.LittleEndian.PutUint32(b[offStride:], h.stride)
	binary.LittleEndian.PutUint32(b[offCapacity:], h.capacity)
	binary.LittleEndian.PutUint32(b[offRead:], h.read)
	binary.LittleEndian.PutUint32(b[offWrite:], h.write)
}

func decodeHeader(b []byte) (header, error) {
	if len(b) < headerSize || string(b[:8]) != magic {
		return header{}, ErrFormat
	}
	if v := binary.LittleEndian.Uint32(b[offVersion:]); v != version {
		return header{}, fmt.Errorf("%w: %d", ErrVersion, v)
	}
	return header{
		stride:   binary.LittleEndian.Uint32(b[offStride:]),
		capacity: binary.LittleEndian.Uint32(b[offCapacity:]),
		read:     binary.LittleEndian.Uint32(b[offRead:]),
		write:    binary.LittleEndian.Uint32(b[offWrite:]),
	}, nil
}

// Create makes a fresh ring file at path with the given geometry and
// maps it. An existing file is truncated.
func Create(path string, stride, capacity int) (*Ring, error) {
	if stride < 1 || int64(stride) > math.MaxUint32 ||
		capacity < 1 || capacity > ringbuf.MaxCapacity {
		return nil, fmt.Errorf("mmring: bad geometry stride=%d capacity=%d", stride, capacity)
	}
	size := int64(headerSize) + int64(stride)*int64(capacity)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("mmring: create %s: %w", path, err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("mmring: size %s: %w", path, err)
	}
	data, err := mapFile(f, int(size))
	if err != nil {
		f.Close()
		return nil, err
	}
	hdr := header{stride: uint32(stride), capacity: uint32(capacity)}
	hdr.encode(data)
	return newRing(f, data, hdr)
}

// Open maps an existing ring file and resumes at its synced cursors. A
// torn or foreign file fails validation here rather than corrupting
// reads later.
func Open(path string) (*Ring, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("mmring: open %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmring: stat %s: %w", path, err)
	}
	if st.Size() < headerSize {
		f.Close()
		return nil, ErrFormat
	}
	data, err := mapFile(f, int(st.Size()))
	if err != nil {
		f.Close()
		return nil, err
	}
	hdr, err := decodeHeader(data)
	if err != nil {
		unmapFile(data)
		f.Close()
		return nil, err
	}
	want := int64(headerSize) + int64(hdr.stride)*int64(hdr.capacity)
	if want != st.Size() {
		unmapFile(data)
		f.Close()
		return nil, ErrGeometry
	}
	return newRing(f, data, hdr)
}

func newRing(f *os.File, data []byte, hdr header) (*Ring, error) {
	buf, err := ringbuf.NewRaw(ringbuf.Config{
		Stride:   int(hdr.stride),
		Capacity: int(hdr.capacity),
		Read:     hdr.read,
		Write:    hdr.write,
		Storage:  data[headerSize:],
	})
	if err != nil {
		unmapFile(data)
		f.Close()
		return nil, err
	}
	return &Ring{buf: buf, data: data, f: f}, nil
}

// Buf returns the live ring. A Push writes straight into the mapped
// bytes; only the cursors wait for Sync.
func (r *Ring) Buf() *ringbuf.Raw { return r.buf }

// Sync stores the cursors into the header and flushes the mapping.
// Items pushed since the previous Sync are durable only after it.
// After Close, Sync reports os.ErrClosed.
func (r *Ring) Sync() error {
	if r.buf == nil {
		return os.ErrClosed
	}
	rd, wr := r.buf.Indices()
	binary.LittleEndian.PutUint32(r.data[offRead:], rd)
	binary.LittleEndian.PutUint32(r.data[offWrite:], wr)
	if err := syncMap(r.data); err != nil {
		return fmt.Errorf("mmring: sync: %w", err)
	}
	return nil
}

// Close syncs, unmaps and closes the file. The ring is dead afterwards;
// closing again is a no-op.
func (r *Ring) Close() error {
	if r.buf == nil {
		return nil
	}
	err := r.Sync()
	if uerr := unmapFile(r.data); err == nil {
		err = uerr
	}
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	r.data = nil
	r.buf = nil
	return err
}
