package pool

import (
	"math/rand"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// message is the command envelope used throughout the pool tests.
type message struct {
	Kind uint8
	Seq  uint32
	idx  Index
}

func (m *message) PoolIndex() Index     { return m.idx }
func (m *message) SetPoolIndex(i Index) { m.idx = i }

// payload is the pooled slot type.
type payload struct {
	Sum  uint64
	Data [32]byte
}

func checksum(seq uint32) uint64 {
	x := uint64(seq)*0x9E3779B97F4A7C15 + 1
	x ^= x >> 29
	return x
}

// TestPool_NewPrefillsFreeRing checks the starting state: every index
// in the free ring, every slot vacant.
func TestPool_NewPrefillsFreeRing(t *testing.T) {
	p := New[payload, message, *message](4, 8)

	assert.Equal(t, 4, p.Depth())
	assert.Equal(t, 4, p.Free())
	assert.Equal(t, 0, p.Pending())
	for i := range p.slots {
		assert.Equal(t, OwnerFree, p.slots[i].Owner(), "slot %d", i)
	}
}

func TestPool_NewPanicsOnBadBounds(t *testing.T) {
	require.Panics(t, func() { New[payload, message, *message](0, 4) })
	require.Panics(t, func() { New[payload, message, *message](4, 3) })
}

func TestPool_SplitOnce(t *testing.T) {
	p := New[payload, message, *message](2, 4)

	_, _, ok := p.Split()
	require.True(t, ok, "first Split")

	prod, cons, ok := p.Split()
	assert.False(t, ok, "second Split must fail")
	assert.Nil(t, prod.pool)
	assert.Nil(t, cons.pool)
}

// TestPool_ExhaustAndReuse drives a pool of four slots dry, returns
// one, and checks the next allocation hands back exactly that index.
func TestPool_ExhaustAndReuse(t *testing.T) {
	p := New[payload, message, *message](4, 8)
	prod, cons, ok := p.Split()
	require.True(t, ok)

	var handed []Index
	for i := 0; i < 4; i++ {
		q, s, res := prod.StageWithPayload()
		require.Equal(t, OK, res, "allocation %d", i)
		w, ok := s.TryWrite()
		require.True(t, ok)
		w.Sum = checksum(uint32(i))
		require.True(t, s.WriteDone())
		q.Seq = uint32(i)
		handed = append(handed, q.PoolIndex())
		require.Equal(t, OK, prod.Commit())
	}
	assert.Equal(t, []Index{0, 1, 2, 3}, handed, "prefilled indices hand out in order")
	assert.Equal(t, 0, p.Free())

	q, s, res := prod.StageWithPayload()
	require.Equal(t, Exhausted, res, "fifth allocation on an empty free ring")
	assert.Nil(t, q)
	assert.Nil(t, s)

	// Consumer finishes the oldest envelope and recycles its slot.
	env, ps, ok := cons.Peek()
	require.True(t, ok)
	require.NotNil(t, ps)
	r, ok := ps.TryRead()
	require.True(t, ok)
	assert.Equal(t, checksum(0), r.Sum)
	recycled := env.PoolIndex()
	require.True(t, ps.ReadDone())
	require.Equal(t, OK, cons.Pop())
	require.Equal(t, OK, cons.Return(recycled))

	q, s, res = prod.StageWithPayload()
	require.Equal(t, OK, res, "allocation after a return")
	require.NotNil(t, s)
	assert.Equal(t, recycled, q.PoolIndex(), "the returned index is reused")
}

// TestPool_StageWithoutPayload sends a bare command through and checks
// staging resets the envelope's index, including on a recycled ring
// slot that still carries an earlier envelope's index.
func TestPool_StageWithoutPayload(t *testing.T) {
	p := New[payload, message, *message](2, 2)
	prod, cons, ok := p.Split()
	require.True(t, ok)

	// A payload envelope first: after this cycle its command ring slot
	// keeps a stale but in-range index.
	q, s, res := prod.StageWithPayload()
	require.Equal(t, OK, res)
	_, ok = s.TryWrite()
	require.True(t, ok)
	require.True(t, s.WriteDone())
	require.Equal(t, OK, prod.Commit())

	env, ps, ok := cons.Peek()
	require.True(t, ok)
	require.NotNil(t, ps)
	stale := env.PoolIndex()
	require.True(t, ps.ReadDone())
	require.Equal(t, OK, cons.Pop())
	require.Equal(t, OK, cons.Return(stale))

	// The bare command.
	q, ok = prod.Stage()
	require.True(t, ok)
	assert.False(t, q.PoolIndex().Valid(), "plain staging carries no payload")
	q.Kind = 3
	q.Seq = 99
	require.Equal(t, OK, prod.Commit())
	assert.Equal(t, 2, p.Free(), "no slot was consumed")

	env, ps, ok = cons.Peek()
	require.True(t, ok)
	assert.Nil(t, ps, "payload-less envelope peeks with no singleton")
	assert.Equal(t, uint8(3), env.Kind)
	assert.Equal(t, uint32(99), env.Seq)
	require.Equal(t, OK, cons.Pop())
	require.Equal(t, CommandEmpty, cons.Pop())

	// This staging lands on the payload envelope's recycled ring slot.
	// An index's zero value (0) references a real slot, so the reset
	// has to be explicit.
	q, ok = prod.Stage()
	require.True(t, ok)
	assert.False(t, q.PoolIndex().Valid(), "staging must reset a recycled envelope")
}

// TestPool_CommitRequiresHandoff checks an envelope cannot publish a
// payload the consumer could not legally read.
func TestPool_CommitRequiresHandoff(t *testing.T) {
	p := New[payload, message, *message](2, 4)
	prod, _, ok := p.Split()
	require.True(t, ok)

	_, s, res := prod.StageWithPayload()
	require.Equal(t, OK, res)
	w, ok := s.TryWrite()
	require.True(t, ok)
	w.Sum = 1

	require.Equal(t, BadEnvelope, prod.Commit(), "commit before hand-off")
	assert.Equal(t, 0, p.Pending(), "nothing published")

	require.True(t, s.WriteDone())
	require.Equal(t, OK, prod.Commit())
	assert.Equal(t, 1, p.Pending())
}

// TestPool_CommitRejectsForeignIndex checks an envelope whose index
// points outside the pool never publishes.
func TestPool_CommitRejectsForeignIndex(t *testing.T) {
	p := New[payload, message, *message](2, 4)
	prod, _, ok := p.Split()
	require.True(t, ok)

	q, ok := prod.Stage()
	require.True(t, ok)
	q.SetPoolIndex(Index(99))

	require.Equal(t, BadEnvelope, prod.Commit(), "index outside the pool")
	assert.Equal(t, 0, p.Pending(), "nothing published")

	// Re-staging resets the envelope; the slot publishes cleanly after.
	_, ok = prod.Stage()
	require.True(t, ok)
	require.Equal(t, OK, prod.Commit())
	assert.Equal(t, 1, p.Pending())
}

func TestPool_ReturnPanicsOnBadIndex(t *testing.T) {
	p := New[payload, message, *message](2, 4)
	_, cons, ok := p.Split()
	require.True(t, ok)

	require.Panics(t, func() { cons.Return(Index(2)) }, "index outside the pool")
	require.Panics(t, func() { cons.Return(Invalid) }, "invalid sentinel")

	// A held slot must not be returned either.
	require.True(t, p.slots[0].Claim())
	require.Panics(t, func() { cons.Return(Index(0)) }, "slot still held")
}

// TestPool_IndexConservation interleaves random producer and consumer
// steps and checks no index is ever duplicated or lost.
func TestPool_IndexConservation(t *testing.T) {
	const (
		depth     = 8
		ringDepth = 16
		ops       = 20_000
	)
	p := New[payload, message, *message](depth, ringDepth)
	prod, cons, ok := p.Split()
	require.True(t, ok)

	rng := rand.New(rand.NewSource(1))
	inFlight := make(map[Index]bool)

	for i := 0; i < ops; i++ {
		if rng.Intn(2) == 0 {
			q, s, res := prod.StageWithPayload()
			if res != OK {
				continue // exhausted or command ring full, both legitimate
			}
			idx := q.PoolIndex()
			require.False(t, inFlight[idx], "index %d handed out twice", idx)
			inFlight[idx] = true
			w, ok := s.TryWrite()
			require.True(t, ok)
			w.Sum = checksum(uint32(i))
			require.True(t, s.WriteDone())
			q.Seq = uint32(i)
			require.Equal(t, OK, prod.Commit())
		} else {
			env, ps, ok := cons.Peek()
			if !ok {
				continue
			}
			require.NotNil(t, ps)
			idx := env.PoolIndex()
			require.True(t, inFlight[idx], "index %d consumed but never handed out", idx)
			r, ok := ps.TryRead()
			require.True(t, ok)
			require.Equal(t, checksum(env.Seq), r.Sum, "payload for envelope %d", env.Seq)
			require.True(t, ps.ReadDone())
			require.Equal(t, OK, cons.Pop())
			require.Equal(t, OK, cons.Return(idx))
			delete(inFlight, idx)
		}
	}

	// Drain the tail and bring every index home.
	for {
		env, ps, ok := cons.Peek()
		if !ok {
			break
		}
		require.NotNil(t, ps)
		idx := env.PoolIndex()
		require.True(t, ps.ReadDone())
		require.Equal(t, OK, cons.Pop())
		require.Equal(t, OK, cons.Return(idx))
		delete(inFlight, idx)
	}
	assert.Empty(t, inFlight, "every handed-out index came back")
	assert.Equal(t, depth, p.Free(), "free ring holds the whole pool again")
	for i := range p.slots {
		assert.Equal(t, OwnerFree, p.slots[i].Owner(), "slot %d", i)
	}
}

// TestPool_ConcurrentPipeline runs the two sides on separate goroutines
// and checks ordering, payload integrity and final conservation.
func TestPool_ConcurrentPipeline(t *testing.T) {
	oldProcs := runtime.GOMAXPROCS(2)
	defer runtime.GOMAXPROCS(oldProcs)

	const (
		depth     = 4
		ringDepth = 8
		total     = 50_000
	)
	p := New[payload, message, *message](depth, ringDepth)
	prod, cons, ok := p.Split()
	require.True(t, ok)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint32(0); i < total; {
			q, s, res := prod.StageWithPayload()
			if res != OK {
				runtime.Gosched()
				continue
			}
			w, _ := s.TryWrite()
			w.Sum = checksum(i)
			s.WriteDone()
			q.Seq = i
			prod.Commit()
			i++
		}
	}()

	for n := uint32(0); n < total; {
		env, ps, ok := cons.Peek()
		if !ok {
			runtime.Gosched()
			continue
		}
		require.Equal(t, n, env.Seq, "envelopes arrive in order")
		require.NotNil(t, ps)
		r, ok := ps.TryRead()
		require.True(t, ok)
		require.Equal(t, checksum(n), r.Sum)
		idx := env.PoolIndex()
		require.True(t, ps.ReadDone())
		require.Equal(t, OK, cons.Pop())
		require.Equal(t, OK, cons.Return(idx))
		n++
	}
	wg.Wait()

	assert.Equal(t, depth, p.Free())
	assert.Equal(t, 0, p.Pending())
}

func TestPool_ResultString(t *testing.T) {
	assert.Equal(t, "ok", OK.String())
	assert.Equal(t, "pool exhausted", Exhausted.String())
	assert.Equal(t, "command ring full", CommandFull.String())
	assert.Equal(t, "command ring empty", CommandEmpty.String())
	assert.Equal(t, "free ring full", ReturnFull.String())
	assert.Equal(t, "bad envelope", BadEnvelope.String())
	assert.Equal(t, "unknown", Result(99).String())
}
