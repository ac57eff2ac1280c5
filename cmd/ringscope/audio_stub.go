//go:build !tinygo && !cgo

package main

import (
	"errors"
	"sync/atomic"

	"github.com/kting28/spsc-ringbuf-core/ringbuf"
)

// startAudio is a stub when the cgo mixer backend is unavailable.
func startAudio(ringbuf.Consumer[int16], *atomic.Uint64) error {
	return errors.New("built without cgo")
}
