//go:build !tinygo && cgo

package main

import (
	"sync/atomic"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/kting28/spsc-ringbuf-core/ringbuf"
)

// startAudio connects the tone ring to the platform mixer. The player
// pulls frames from its own goroutine, which makes it the consumer side
// of the ring.
func startAudio(cons ringbuf.Consumer[int16], underruns *atomic.Uint64) error {
	ctx := audio.NewContext(audioRate)
	p, err := ctx.NewPlayer(&toneStream{cons: cons, underruns: underruns})
	if err != nil {
		return err
	}
	p.SetBufferSize(100 * time.Millisecond)
	p.Play()
	return nil
}

// toneStream adapts the consumer handle to the io.Reader the mixer
// expects: one mono sample per 4-byte little-endian stereo frame,
// silence when the ring runs dry.
type toneStream struct {
	cons      ringbuf.Consumer[int16]
	underruns *atomic.Uint64
}

func (s *toneStream) Read(p []byte) (int, error) {
	n := len(p) / 4 * 4
	dry := false
	for i := 0; i < n; i += 4 {
		var v int16
		if smp, ok := s.cons.Front(); ok {
			v = *smp
			s.cons.Pop()
		} else {
			dry = true
		}
		p[i+0] = byte(v)
		p[i+1] = byte(v >> 8)
		p[i+2] = byte(v)
		p[i+3] = byte(v >> 8)
	}
	if dry {
		s.underruns.Add(1)
	}
	return n, nil
}
