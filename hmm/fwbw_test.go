package hmm

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Posteriors are a distribution over states at every event.
func TestPosteriorsNormalized(t *testing.T) {
	const k = 3
	m := testModel(t, k, 1.5)
	trans := testTransitions(t, k, 0.1, 0.1, 0.001)
	rng := rand.New(rand.NewSource(21))

	path := oneShiftPath(rng, k, 60, 5)
	events := eventsAlong(m, path)
	for i := range events {
		events[i].Mean += 0.8 * rng.NormFloat64()
	}

	var fb ForwardBackward
	fb.Fill(m, trans, events)
	require.False(t, math.IsInf(fb.LogLikelihood(), -1))

	n := trans.N()
	for tt := 0; tt < len(events); tt++ {
		sum := 0.0
		for s := 0; s < n; s++ {
			sum += math.Exp(fb.LogPosterior(tt, uint32(s)))
		}
		assert.InDelta(t, 1.0, sum, 1e-5)
	}
}

// The best single path can never beat the sum over all paths.
func TestViterbiBoundedByForward(t *testing.T) {
	const k = 3
	m := testModel(t, k, 1.0)
	trans := testTransitions(t, k, 0.1, 0.1, 0.001)
	rng := rand.New(rand.NewSource(22))

	for trial := 0; trial < 5; trial++ {
		path := oneShiftPath(rng, k, 40, uint32(rng.Intn(trans.N())))
		events := eventsAlong(m, path)
		for i := range events {
			events[i].Mean += rng.NormFloat64()
		}

		var vit Viterbi
		var fb ForwardBackward
		vit.Fill(m, trans, events)
		fb.Fill(m, trans, events)

		assert.LessOrEqual(t, vit.PathProbability(), fb.LogLikelihood()+1e-9)
	}
}

func TestForwardBackwardEmpty(t *testing.T) {
	m := testModel(t, 2, 1.0)
	trans := testTransitions(t, 2, 0.1, 0.1, 0.001)

	var fb ForwardBackward
	fb.Fill(m, trans, nil)
	assert.True(t, math.IsInf(fb.LogLikelihood(), -1))
}
