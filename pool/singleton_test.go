package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSingleton_Lifecycle walks one slot through a full hand-off cycle.
func TestSingleton_Lifecycle(t *testing.T) {
	var s Singleton[int]

	require.Equal(t, OwnerFree, s.Owner())

	// Vacant slot: neither side has payload access.
	_, ok := s.TryWrite()
	assert.False(t, ok, "TryWrite on a vacant slot")
	_, ok = s.TryRead()
	assert.False(t, ok, "TryRead on a vacant slot")

	require.True(t, s.Claim(), "Claim on a vacant slot")
	assert.Equal(t, OwnerProducer, s.Owner())
	assert.False(t, s.Claim(), "second Claim must fail")

	p, ok := s.TryWrite()
	require.True(t, ok, "TryWrite while producer-held")
	*p = 42
	_, ok = s.TryRead()
	assert.False(t, ok, "TryRead while producer-held")

	require.True(t, s.WriteDone(), "WriteDone after Claim")
	assert.Equal(t, OwnerConsumer, s.Owner())
	assert.False(t, s.WriteDone(), "second WriteDone must fail")
	_, ok = s.TryWrite()
	assert.False(t, ok, "TryWrite after hand-off")

	q, ok := s.TryRead()
	require.True(t, ok, "TryRead while consumer-held")
	assert.Equal(t, 42, *q)

	require.True(t, s.ReadDone(), "ReadDone after hand-off")
	assert.Equal(t, OwnerFree, s.Owner())
	assert.False(t, s.ReadDone(), "second ReadDone must fail")
}

// TestSingleton_IllegalTransitions checks that out-of-order transitions
// are rejected without side effects.
func TestSingleton_IllegalTransitions(t *testing.T) {
	var s Singleton[int]

	assert.False(t, s.WriteDone(), "WriteDone on a vacant slot")
	assert.False(t, s.ReadDone(), "ReadDone on a vacant slot")
	assert.Equal(t, OwnerFree, s.Owner())

	require.True(t, s.Claim())
	assert.False(t, s.ReadDone(), "ReadDone while producer-held")
	assert.Equal(t, OwnerProducer, s.Owner())

	require.True(t, s.WriteDone())
	assert.False(t, s.Claim(), "Claim while consumer-held")
	assert.Equal(t, OwnerConsumer, s.Owner())
}

// TestSingleton_PayloadSurvivesHandoff checks the consumer reads exactly
// what the producer wrote.
func TestSingleton_PayloadSurvivesHandoff(t *testing.T) {
	type blob struct {
		ID  uint32
		Buf [16]byte
	}
	var s Singleton[blob]

	require.True(t, s.Claim())
	p, ok := s.TryWrite()
	require.True(t, ok)
	p.ID = 7
	for i := range p.Buf {
		p.Buf[i] = byte(i)
	}
	require.True(t, s.WriteDone())

	want := blob{ID: 7}
	for i := range want.Buf {
		want.Buf[i] = byte(i)
	}
	q, ok := s.TryRead()
	require.True(t, ok)
	assert.Equal(t, want, *q)
	require.True(t, s.ReadDone())
}

func TestSingleton_OwnerString(t *testing.T) {
	assert.Equal(t, "free", OwnerFree.String())
	assert.Equal(t, "producer", OwnerProducer.String())
	assert.Equal(t, "consumer", OwnerConsumer.String())
	assert.Equal(t, "unknown", Owner(9).String())
}
