package hmm

import (
	"math"

	"github.com/raj347/nanocall/logmath"
	"github.com/raj347/nanocall/pore"
)

// ForwardBackward runs the sum-product recursions in the log domain and
// exposes the total log-likelihood and the per-cell state posteriors.
// Like Viterbi, the value reuses its lattices across Fill calls.
type ForwardBackward struct {
	fw, bw []float64
	emit   []float64

	n, nt int
	ll    float64
}

// Fill computes forward and backward lattices for the scaled model m
// over events.  Events must already be drift-corrected.
func (fb *ForwardBackward) Fill(m *pore.Model, trans *StateTransitions, events pore.EventSequence) {
	n := trans.N()
	nt := len(events)
	fb.n, fb.nt = n, nt
	fb.ll = math.Inf(-1)
	if nt == 0 {
		return
	}

	fb.fw = growFloat(fb.fw, n*nt)
	fb.bw = growFloat(fb.bw, n*nt)
	fb.emit = growFloat(fb.emit, n)

	logPrior := -math.Log(float64(n))
	for s := 0; s < n; s++ {
		fb.fw[s] = logPrior + m.EmissionLogProb(uint32(s), events[0])
	}
	for t := 1; t < nt; t++ {
		base := t * n
		prev := base - n
		for s := 0; s < n; s++ {
			acc := math.Inf(-1)
			for _, tr := range trans.InNeighbors(uint32(s)) {
				acc = logmath.LogSumExp(acc, fb.fw[prev+int(tr.State)]+tr.LogProb)
			}
			if math.IsInf(acc, -1) {
				fb.fw[base+s] = acc
			} else {
				fb.fw[base+s] = acc + m.EmissionLogProb(uint32(s), events[t])
			}
		}
	}

	last := (nt - 1) * n
	fb.ll = logmath.LogSumExpSlice(fb.fw[last : last+n])

	for s := 0; s < n; s++ {
		fb.bw[last+s] = 0
	}
	for t := nt - 2; t >= 0; t-- {
		base := t * n
		next := base + n
		for s := 0; s < n; s++ {
			fb.emit[s] = m.EmissionLogProb(uint32(s), events[t+1])
		}
		for s := 0; s < n; s++ {
			acc := math.Inf(-1)
			for _, tr := range trans.OutNeighbors(uint32(s)) {
				acc = logmath.LogSumExp(acc, tr.LogProb+fb.emit[tr.State]+fb.bw[next+int(tr.State)])
			}
			fb.bw[base+s] = acc
		}
	}
}

// LogLikelihood returns log P(events), the sum over all paths.
func (fb *ForwardBackward) LogLikelihood() float64 { return fb.ll }

// LogPosterior returns log P(state_t = s | events).
func (fb *ForwardBackward) LogPosterior(t int, s uint32) float64 {
	return fb.fw[t*fb.n+int(s)] + fb.bw[t*fb.n+int(s)] - fb.ll
}
