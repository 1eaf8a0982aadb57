package hmm

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/raj347/nanocall/pore"
)

// testModel builds a model with injective, well-separated level means
// and no noise branch, so decoding tests are deterministic.
func testModel(t *testing.T, k int, stdv float64) *pore.Model {
	t.Helper()
	n := pore.NumKmers(k)
	rows := make([]pore.Entry, n)
	for ix := 0; ix < n; ix++ {
		rows[ix] = pore.Entry{
			Kmer:      pore.KmerString(uint32(ix), k),
			LevelMean: 50 + 2*float64(ix),
			LevelStdv: stdv,
		}
	}
	m, err := pore.LoadFromTable(rows)
	require.NoError(t, err)
	return m
}

func testTransitions(t *testing.T, k int, pSkip, pStay, pCutoff float64) *StateTransitions {
	t.Helper()
	trans := NewStateTransitions(k)
	trans.Compute(pSkip, pStay, pCutoff)
	return trans
}

// oneShiftPath walks the kmer chain with single shifts, never staying,
// and returns the visited states.  The appended base always differs
// from the previous last base so no transition looks like a stay.
func oneShiftPath(rng *rand.Rand, k, n int, start uint32) []uint32 {
	mask := uint32(pore.NumKmers(k) - 1)
	path := make([]uint32, n)
	path[0] = start
	for i := 1; i < n; i++ {
		prev := path[i-1]
		b := (prev + 1 + uint32(rng.Intn(3))) & 3
		path[i] = (prev<<2 | b) & mask
	}
	return path
}

// eventsAlong emits one noise-free event per state at the model level.
func eventsAlong(m *pore.Model, path []uint32) pore.EventSequence {
	es := make(pore.EventSequence, len(path))
	start := 0.0
	for i, s := range path {
		es[i] = pore.Event{Mean: m.LevelMean(s), Stdv: 0.9, Start: start, Length: 0.01}
		start += 0.01
	}
	return es
}
