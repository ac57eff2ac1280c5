//go:build !tinygo

// ringsoak streams sequenced records through producer/consumer pairs
// and fails loudly when ordering, integrity or pool index conservation
// breaks. It doubles as the acceptance gate for the ring and pool
// packages.
package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/sugawarayuuta/sonnet"
	"golang.org/x/sync/errgroup"

	"github.com/kting28/spsc-ringbuf-core/internal/buildinfo"
	"github.com/kting28/spsc-ringbuf-core/mmring"
	"github.com/kting28/spsc-ringbuf-core/pool"
	"github.com/kting28/spsc-ringbuf-core/ringbuf"
)

const (
	defaultCaps  = "7,32,33,1024"
	defaultItems = 200_000

	traceStride = 24
	traceSlots  = 256
)

type ringReport struct {
	Cap          int    `json:"cap"`
	Pow2         bool   `json:"pow2"`
	Pushed       uint64 `json:"pushed"`
	Popped       uint64 `json:"popped"`
	FullRetries  uint64 `json:"full_retries"`
	EmptyRetries uint64 `json:"empty_retries"`
	ElapsedNS    int64  `json:"elapsed_ns"`
}

type poolReport struct {
	Depth        int    `json:"depth"`
	RingDepth    int    `json:"ring_depth"`
	Items        uint64 `json:"items"`
	AllocRetries uint64 `json:"alloc_retries"`
	EmptyRetries uint64 `json:"empty_retries"`
	ElapsedNS    int64  `json:"elapsed_ns"`
}

type soakReport struct {
	Version string       `json:"version"`
	Rings   []ringReport `json:"rings"`
	Pool    poolReport   `json:"pool"`
}

// record is what flows through the plain ring runs.
type record struct {
	Seq uint64
	Sum uint64
}

// soakMsg is the command envelope for the pool run.
type soakMsg struct {
	Seq uint64
	idx pool.Index
}

func (m *soakMsg) PoolIndex() pool.Index     { return m.idx }
func (m *soakMsg) SetPoolIndex(i pool.Index) { m.idx = i }

// soakPayload rides in the pool slots.
type soakPayload struct {
	Sum  uint64
	Data [48]byte
}

func checksum(seq uint64) uint64 {
	x := seq*0x9E3779B97F4A7C15 + 1
	x ^= x >> 29
	x *= 0xBF58476D1CE4E5B9
	x ^= x >> 32
	return x
}

func main() {
	var (
		capsFlag  string
		items     int
		poolDepth int
		ringDepth int
		tracePath string
		jsonOut   bool
		verbose   bool
		showVer   bool
	)
	flag.StringVar(&capsFlag, "caps", defaultCaps, "Comma-separated ring capacities to soak.")
	flag.IntVar(&items, "items", defaultItems, "Items to stream through each ring.")
	flag.IntVar(&poolDepth, "pool-depth", 16, "Payload slots in the pool run.")
	flag.IntVar(&ringDepth, "ring-depth", 32, "Ring entries backing the pool run.")
	flag.StringVar(&tracePath, "trace", "", "Journal per-run results into this mmring file.")
	flag.BoolVar(&jsonOut, "json", false, "Emit the report as JSON on stdout.")
	flag.BoolVar(&verbose, "v", false, "Enable debug logging.")
	flag.BoolVar(&showVer, "version", false, "Print version and exit.")
	flag.Parse()

	if showVer {
		fmt.Println("ringsoak", buildinfo.Short())
		return
	}

	caps, err := parseCaps(capsFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
	if items < 1 {
		fmt.Fprintln(os.Stderr, "error: -items must be positive")
		os.Exit(2)
	}
	if poolDepth < 1 || ringDepth < poolDepth {
		fmt.Fprintln(os.Stderr, "error: need -pool-depth >= 1 and -ring-depth >= -pool-depth")
		os.Exit(2)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(log, caps, items, poolDepth, ringDepth, tracePath, jsonOut); err != nil {
		log.Error("soak failed", "err", err)
		os.Exit(1)
	}
}

func parseCaps(s string) ([]int, error) {
	var caps []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("bad capacity %q: %w", part, err)
		}
		if n < 1 || n > ringbuf.MaxCapacity {
			return nil, fmt.Errorf("capacity %d out of range", n)
		}
		caps = append(caps, n)
	}
	if len(caps) == 0 {
		return nil, errors.New("no capacities given")
	}
	return caps, nil
}

func run(log *slog.Logger, caps []int, items, poolDepth, ringDepth int, tracePath string, jsonOut bool) error {
	var trace *mmring.Ring
	if tracePath != "" {
		var err error
		trace, err = mmring.Create(tracePath, traceStride, traceSlots)
		if err != nil {
			return err
		}
		defer func() {
			if err := trace.Close(); err != nil {
				log.Warn("closing trace", "err", err)
			}
		}()
	}

	report := soakReport{Version: buildinfo.Short()}
	for _, c := range caps {
		log.Debug("soaking ring", "cap", c, "items", items)
		rr, err := soakRing(c, uint64(items))
		if err != nil {
			return fmt.Errorf("ring cap %d: %w", c, err)
		}
		log.Info("ring pass",
			"cap", rr.Cap,
			"pow2", rr.Pow2,
			"pushed", rr.Pushed,
			"full_retries", rr.FullRetries,
			"empty_retries", rr.EmptyRetries,
			"elapsed", time.Duration(rr.ElapsedNS))
		report.Rings = append(report.Rings, rr)
		if trace != nil {
			journal(trace, rr)
		}
	}

	log.Debug("soaking pool", "depth", poolDepth, "ring_depth", ringDepth)
	pr, err := soakPool(poolDepth, ringDepth, uint64(items))
	if err != nil {
		return fmt.Errorf("pool depth %d: %w", poolDepth, err)
	}
	log.Info("pool pass",
		"depth", pr.Depth,
		"items", pr.Items,
		"alloc_retries", pr.AllocRetries,
		"empty_retries", pr.EmptyRetries,
		"elapsed", time.Duration(pr.ElapsedNS))
	report.Pool = pr

	if jsonOut {
		out, err := sonnet.Marshal(report)
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
		out = append(out, '\n')
		if _, err := os.Stdout.Write(out); err != nil {
			return err
		}
	}
	return nil
}

func soakRing(capacity int, items uint64) (ringReport, error) {
	rep := ringReport{Cap: capacity, Pow2: capacity&(capacity-1) == 0}
	rb := ringbuf.New[record](capacity)
	prod, cons, ok := rb.Split()
	if !ok {
		return rep, errors.New("ring split refused")
	}

	var fullRetries, emptyRetries uint64
	start := time.Now()
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		for i := uint64(0); i < items; {
			if prod.Push(record{Seq: i, Sum: checksum(i)}) != ringbuf.OK {
				fullRetries++
				if err := ctx.Err(); err != nil {
					return err
				}
				runtime.Gosched()
				continue
			}
			i++
		}
		return nil
	})
	g.Go(func() error {
		for next := uint64(0); next < items; {
			p, ok := cons.Front()
			if !ok {
				emptyRetries++
				if err := ctx.Err(); err != nil {
					return err
				}
				runtime.Gosched()
				continue
			}
			if p.Seq != next {
				return fmt.Errorf("order broken: got %d, want %d", p.Seq, next)
			}
			if p.Sum != checksum(next) {
				return fmt.Errorf("item %d corrupted in transit", next)
			}
			if cons.Pop() != ringbuf.OK {
				return fmt.Errorf("pop refused at %d", next)
			}
			next++
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return rep, err
	}
	if !rb.IsEmpty() {
		return rep, errors.New("ring not empty after drain")
	}

	rep.Pushed = items
	rep.Popped = items
	rep.FullRetries = fullRetries
	rep.EmptyRetries = emptyRetries
	rep.ElapsedNS = time.Since(start).Nanoseconds()
	return rep, nil
}

func soakPool(depth, ringDepth int, items uint64) (poolReport, error) {
	rep := poolReport{Depth: depth, RingDepth: ringDepth, Items: items}
	pl := pool.New[soakPayload, soakMsg, *soakMsg](depth, ringDepth)
	prod, cons, ok := pl.Split()
	if !ok {
		return rep, errors.New("pool split refused")
	}

	var allocRetries, emptyRetries uint64
	start := time.Now()
	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		for i := uint64(0); i < items; {
			q, s, res := prod.StageWithPayload()
			if res != pool.OK {
				allocRetries++
				if err := ctx.Err(); err != nil {
					return err
				}
				runtime.Gosched()
				continue
			}
			w, ok := s.TryWrite()
			if !ok {
				return errors.New("claimed slot refused TryWrite")
			}
			w.Sum = checksum(i)
			if !s.WriteDone() {
				return errors.New("hand-off refused")
			}
			q.Seq = i
			if res := prod.Commit(); res != pool.OK {
				return fmt.Errorf("commit: %s", res)
			}
			i++
		}
		return nil
	})
	g.Go(func() error {
		for next := uint64(0); next < items; {
			env, ps, ok := cons.Peek()
			if !ok {
				emptyRetries++
				if err := ctx.Err(); err != nil {
					return err
				}
				runtime.Gosched()
				continue
			}
			if env.Seq != next {
				return fmt.Errorf("envelope order broken: got %d, want %d", env.Seq, next)
			}
			if ps == nil {
				return fmt.Errorf("envelope %d lost its payload", next)
			}
			r, ok := ps.TryRead()
			if !ok {
				return fmt.Errorf("payload %d not readable", next)
			}
			if r.Sum != checksum(next) {
				return fmt.Errorf("payload %d corrupted in transit", next)
			}
			idx := env.PoolIndex()
			if !ps.ReadDone() {
				return fmt.Errorf("release refused at %d", next)
			}
			if res := cons.Pop(); res != pool.OK {
				return fmt.Errorf("pop: %s", res)
			}
			if res := cons.Return(idx); res != pool.OK {
				return fmt.Errorf("return: %s", res)
			}
			next++
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return rep, err
	}
	if got := pl.Free(); got != depth {
		return rep, fmt.Errorf("index leak: %d of %d slots free after drain", got, depth)
	}
	if got := pl.Pending(); got != 0 {
		return rep, fmt.Errorf("%d envelopes stranded after drain", got)
	}

	rep.AllocRetries = allocRetries
	rep.EmptyRetries = emptyRetries
	rep.ElapsedNS = time.Since(start).Nanoseconds()
	return rep, nil
}

// journal appends one run record to the trace ring. A full journal
// keeps its oldest entries: later runs are dropped.
func journal(trace *mmring.Ring, rr ringReport) {
	slot, ok := trace.Buf().WriterFront()
	if !ok {
		return
	}
	binary.LittleEndian.PutUint32(slot[0:], uint32(rr.Cap))
	var p2 uint32
	if rr.Pow2 {
		p2 = 1
	}
	binary.LittleEndian.PutUint32(slot[4:], p2)
	binary.LittleEndian.PutUint64(slot[8:], rr.Pushed)
	binary.LittleEndian.PutUint64(slot[16:], uint64(rr.ElapsedNS))
	trace.Buf().Commit()
}
