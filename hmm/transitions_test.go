package hmm

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raj347/nanocall/pore"
)

func rowSum(trans *StateTransitions, s uint32) float64 {
	var sum float64
	for _, tr := range trans.OutNeighbors(s) {
		sum += math.Exp(tr.LogProb)
	}
	return sum
}

func TestComputeRowSums(t *testing.T) {
	trans := testTransitions(t, 6, 0.1, 0.1, 0)
	src, err := pore.KmerIndex("ACGTCA")
	require.NoError(t, err)

	// unpruned rows are exact distributions
	assert.InDelta(t, 1.0, rowSum(trans, src), 1e-6)

	// 1 stay + 4 + 16 + 64 + 256 + 1024 candidates; ACGTCA begins and
	// ends with A, so the stay destination is also one of the five-shift
	// successors and the two merge into one entry
	assert.Len(t, trans.OutNeighbors(src), 1364)
}

func TestComputePruned(t *testing.T) {
	trans := testTransitions(t, 6, 0.1, 0.1, 0.001)
	n := trans.N()
	total := 0
	for s := 0; s < n; s++ {
		sum := rowSum(trans, uint32(s))
		assert.LessOrEqual(t, sum, 1.0+1e-6)
		assert.Greater(t, sum, 0.9) // pruning drops little mass
		total += len(trans.OutNeighbors(uint32(s)))
	}
	// outgoing-sparse: around 21 entries per state under the default
	// cutoff, far below the dense row of 4^K
	assert.Less(t, total, 25*n)

	// stay plus one- and two-shift successors survive the default cutoff
	src, _ := pore.KmerIndex("ACGTCA")
	assert.Len(t, trans.OutNeighbors(src), 21)
}

func TestInOutConsistency(t *testing.T) {
	trans := testTransitions(t, 4, 0.1, 0.1, 0.001)
	n := trans.N()
	for s := 0; s < n; s++ {
		for _, tr := range trans.OutNeighbors(uint32(s)) {
			found := false
			for _, in := range trans.InNeighbors(tr.State) {
				if in.State == uint32(s) && in.LogProb == tr.LogProb {
					found = true
					break
				}
			}
			assert.True(t, found)
		}
	}
}

func TestTransitionsRoundtrip(t *testing.T) {
	trans := testTransitions(t, 3, 0.15, 0.2, 0.001)

	var buf bytes.Buffer
	require.NoError(t, trans.WriteTo(&buf))

	back, err := LoadTransitions(&buf)
	require.NoError(t, err)
	require.Equal(t, trans.K, back.K)
	for s := 0; s < trans.N(); s++ {
		a, b := trans.OutNeighbors(uint32(s)), back.OutNeighbors(uint32(s))
		require.Len(t, b, len(a))
		for i := range a {
			assert.Equal(t, a[i].State, b[i].State)
			assert.InDelta(t, a[i].LogProb, b[i].LogProb, 1e-12)
		}
	}
}

func TestLoadTransitionsErrors(t *testing.T) {
	_, err := LoadTransitions(bytes.NewBufferString(""))
	assert.Error(t, err)
	_, err = LoadTransitions(bytes.NewBufferString("AAA AAC\n"))
	assert.Error(t, err)
	_, err = LoadTransitions(bytes.NewBufferString("AAA AAC x\n"))
	assert.Error(t, err)
}
