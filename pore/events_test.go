package pore

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomEvents(rng *rand.Rand, n int) EventSequence {
	es := make(EventSequence, n)
	start := 0.0
	for i := range es {
		es[i] = Event{
			Mean:   60 + 10*rng.NormFloat64(),
			Stdv:   0.5 + rng.Float64(),
			Start:  start,
			Length: 0.01,
		}
		start += 0.01
	}
	return es
}

func TestMeanStdv(t *testing.T) {
	es := EventSequence{
		{Mean: 1}, {Mean: 2}, {Mean: 3}, {Mean: 4},
	}
	m, sd := es.MeanStdv()
	assert.InDelta(t, 2.5, m, 1e-12)
	assert.InDelta(t, 1.2909944487, sd, 1e-9)
}

func TestDriftCorrectionComposes(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	es := randomEvents(rng, 100)

	d1, d2 := 0.013, -0.004
	both := es.ApplyDriftCorrection(d1).ApplyDriftCorrection(d2)
	once := es.ApplyDriftCorrection(d1 + d2)

	require.Equal(t, len(es), both.Len())
	for i := range both {
		assert.InDelta(t, once[i].Mean, both[i].Mean, 1e-12)
		// everything but the mean is untouched
		assert.Equal(t, es[i].Stdv, both[i].Stdv)
		assert.Equal(t, es[i].Start, both[i].Start)
	}
}

func TestDriftCorrectionDoesNotMutate(t *testing.T) {
	rng := rand.New(rand.NewSource(8))
	es := randomEvents(rng, 10)
	orig := es[3].Mean
	_ = es.ApplyDriftCorrection(0.5)
	assert.Equal(t, orig, es[3].Mean)
}
