//go:build !tinygo

// Command ringscope opens a desktop window that shows a live
// producer/consumer ring under load. A background goroutine synthesizes
// a sine wave into a sample ring at an adjustable rate while the frame
// loop drains it into a scrolling trace, so fill level, drops and
// underruns can be watched while the two sides race. A second ring
// carries the same tone to the audio mixer when built with cgo.
//
// Keys: up/down double or halve the producer rate, left/right move the
// tone by an octave, space pauses the producer.
package main

import (
	"flag"
	"fmt"
	"image"
	"math"
	"os"
	"sync/atomic"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/kting28/spsc-ringbuf-core/internal/buildinfo"
	"github.com/kting28/spsc-ringbuf-core/ringbuf"
)

const (
	scopeW = 640
	scopeH = 240
	gaugeH = 6

	audioRate   = 44100
	audioDepth  = 8192
	audioTarget = audioRate / 10

	// Producer rates are kept to power-of-two multiples of the batch
	// tick so every batch carries a whole number of samples.
	batchHz = 125
	minRate = 125
	maxRate = 64000

	minFreq = 55
	maxFreq = 1760
)

func main() {
	var (
		capacity = flag.Int("cap", 1000, "sample ring capacity in slots")
		rate     = flag.Int("rate", 8000, "initial producer rate in samples per second")
		freq     = flag.Int("freq", 440, "initial tone frequency in Hz")
		mute     = flag.Bool("mute", false, "disable audio output")
		version  = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Println("ringscope", buildinfo.Short())
		return
	}
	if *capacity < 1 || *capacity > ringbuf.MaxCapacity {
		fmt.Fprintf(os.Stderr, "ringscope: -cap must be between 1 and %d\n", ringbuf.MaxCapacity)
		os.Exit(2)
	}
	if *rate < minRate || *rate > maxRate || *rate%batchHz != 0 {
		fmt.Fprintf(os.Stderr, "ringscope: -rate must be a multiple of %d between %d and %d\n", batchHz, minRate, maxRate)
		os.Exit(2)
	}
	if *freq < minFreq || *freq > maxFreq {
		fmt.Fprintf(os.Stderr, "ringscope: -freq must be between %d and %d\n", minFreq, maxFreq)
		os.Exit(2)
	}

	if err := run(*capacity, *rate, *freq, *mute); err != nil {
		fmt.Fprintln(os.Stderr, "ringscope:", err)
		os.Exit(1)
	}
}

func run(capacity, rate, freq int, mute bool) error {
	rb := ringbuf.New[int16](capacity)
	prod, cons, ok := rb.Split()
	if !ok {
		return fmt.Errorf("sample ring already split")
	}

	g := &scope{
		ring:  rb,
		cons:  cons,
		trace: make([]int16, scopeW),
	}
	g.rate.Store(uint32(rate))
	g.freq.Store(uint32(freq))

	if !mute {
		ab := ringbuf.New[int16](audioDepth)
		aprod, acons, _ := ab.Split()
		// Prefill with silence so the player does not start on a dry ring.
		for ab.Len() < audioTarget {
			aprod.Push(0)
		}
		if err := startAudio(acons, &g.underruns); err != nil {
			fmt.Fprintln(os.Stderr, "ringscope: audio disabled:", err)
		} else {
			g.audioRing = ab
			g.audio = aprod
		}
	}

	go produce(prod, g)

	ebiten.SetWindowSize(scopeW*2, scopeH*2)
	ebiten.SetTPS(60)
	return ebiten.RunGame(g)
}

// produce runs the writer side of the sample ring. Batches of sine
// samples are pushed at the configured rate; full slots are counted and
// dropped rather than retried so the trace keeps showing live data.
func produce(prod ringbuf.Producer[int16], g *scope) {
	t := time.NewTicker(time.Second / batchHz)
	defer t.Stop()

	var phase float64
	for range t.C {
		if g.paused.Load() {
			continue
		}
		rate := g.rate.Load()
		step := 2 * math.Pi * float64(g.freq.Load()) / float64(rate)
		for i := uint32(0); i < rate/batchHz; i++ {
			v := int16(0.6 * math.MaxInt16 * math.Sin(phase))
			phase += step
			if phase > 2*math.Pi {
				phase -= 2 * math.Pi
			}
			if prod.Push(v) == ringbuf.OK {
				g.pushed.Add(1)
			} else {
				g.dropped.Add(1)
			}
		}
	}
}

// scope is the ebiten game. Update drains the sample ring and feeds the
// tone ring; Draw paints the trace into an RGBA framebuffer.
type scope struct {
	ring *ringbuf.RingBuf[int16]
	cons ringbuf.Consumer[int16]

	audioRing *ringbuf.RingBuf[int16]
	audio     ringbuf.Producer[int16]

	rate   atomic.Uint32
	freq   atomic.Uint32
	paused atomic.Bool

	pushed    atomic.Uint64
	dropped   atomic.Uint64
	underruns atomic.Uint64

	trace     []int16
	tonePhase float64

	img   *image.RGBA
	fbImg *ebiten.Image
}

func (g *scope) Update() error {
	g.keys()
	g.drain()
	g.feedTone()

	title := fmt.Sprintf("ringscope (%s)  rate %d/s  tone %dHz  fill %d/%d  in %d  drop %d  underrun %d",
		buildinfo.Short(), g.rate.Load(), g.freq.Load(),
		g.ring.Len(), g.ring.Cap(),
		g.pushed.Load(), g.dropped.Load(), g.underruns.Load())
	if g.paused.Load() {
		title += "  [paused]"
	}
	ebiten.SetWindowTitle(title)
	return nil
}

func (g *scope) keys() {
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.paused.Store(!g.paused.Load())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) {
		if r := g.rate.Load() * 2; r <= maxRate {
			g.rate.Store(r)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) {
		if r := g.rate.Load() / 2; r >= minRate {
			g.rate.Store(r)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowRight) {
		if f := g.freq.Load() * 2; f <= maxFreq {
			g.freq.Store(f)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowLeft) {
		if f := g.freq.Load() / 2; f >= minFreq {
			g.freq.Store(f)
		}
	}
}

// drain moves up to a quarter screen of samples per frame from the ring
// into the scrolling trace. The cap keeps the trace readable; anything
// past it backs up into the ring and eventually shows as drops.
func (g *scope) drain() {
	var buf [scopeW / 4]int16
	k := 0
	for k < len(buf) {
		s, ok := g.cons.Front()
		if !ok {
			break
		}
		buf[k] = *s
		g.cons.Pop()
		k++
	}
	if k == 0 {
		return
	}
	copy(g.trace, g.trace[k:])
	copy(g.trace[scopeW-k:], buf[:k])
}

// feedTone keeps about a tenth of a second of tone queued for the audio
// reader, which runs on the player's own goroutine. While paused it
// queues silence so the reader does not report underruns.
func (g *scope) feedTone() {
	if g.audioRing == nil {
		return
	}
	step := 2 * math.Pi * float64(g.freq.Load()) / audioRate
	paused := g.paused.Load()
	for g.audioRing.Len() < audioTarget {
		var v int16
		if !paused {
			v = int16(0.25 * math.MaxInt16 * math.Sin(g.tonePhase))
			g.tonePhase += step
			if g.tonePhase > 2*math.Pi {
				g.tonePhase -= 2 * math.Pi
			}
		}
		if g.audio.Push(v) != ringbuf.OK {
			break
		}
	}
}

func (g *scope) Draw(screen *ebiten.Image) {
	if g.img == nil {
		g.img = image.NewRGBA(image.Rect(0, 0, scopeW, scopeH))
		g.fbImg = ebiten.NewImage(scopeW, scopeH)
	}
	pix := g.img.Pix
	for i := 0; i < len(pix); i += 4 {
		pix[i+0] = 0x10
		pix[i+1] = 0x12
		pix[i+2] = 0x10
		pix[i+3] = 0xFF
	}

	mid := scopeH / 2
	for x := 0; x < scopeW; x++ {
		set(pix, x, mid, 0x28, 0x3a, 0x28)
	}

	// Connect consecutive samples with vertical spans so steep edges
	// stay visible.
	prev := sampleY(g.trace[0])
	for x := 0; x < scopeW; x++ {
		y := sampleY(g.trace[x])
		lo, hi := y, prev
		if lo > hi {
			lo, hi = hi, lo
		}
		for yy := lo; yy <= hi; yy++ {
			set(pix, x, yy, 0x46, 0xe8, 0x6e)
		}
		prev = y
	}

	// Fill gauge along the bottom edge.
	fill := int(int64(g.ring.Len()) * scopeW / int64(g.ring.Cap()))
	for y := scopeH - gaugeH; y < scopeH; y++ {
		for x := 0; x < fill; x++ {
			set(pix, x, y, 0xe8, 0xb4, 0x3c)
		}
	}

	g.fbImg.WritePixels(g.img.Pix)
	screen.DrawImage(g.fbImg, nil)
}

func (g *scope) Layout(outsideWidth, outsideHeight int) (int, int) {
	return scopeW, scopeH
}

func set(pix []byte, x, y int, r, gg, b byte) {
	i := (y*scopeW + x) * 4
	pix[i+0] = r
	pix[i+1] = gg
	pix[i+2] = b
	pix[i+3] = 0xFF
}

// sampleY maps a sample to a trace row, leaving the gauge rows clear.
func sampleY(v int16) int {
	const half = scopeH/2 - gaugeH - 2
	y := scopeH/2 - int(v)*half/32768
	if y < 0 {
		y = 0
	}
	if y > scopeH-gaugeH-1 {
		y = scopeH - gaugeH - 1
	}
	return y
}
