package hmm

import (
	"math"
	"strings"

	"github.com/raj347/nanocall/pore"
)

// Viterbi decodes the maximum-likelihood state path over the
// (event x state) lattice and emits the implied base sequence.  The
// value owns its lattice buffers and reuses them across Fill calls, so
// one Viterbi can serve many reads in turn.
type Viterbi struct {
	vprev, vcur []float64
	bp          []int32
	path        []uint32

	k        int
	pathProb float64
	seq      string
}

// Fill runs the max-product recursion for the scaled model m over
// events, then traces back the best path.  Events must already be
// drift-corrected.
func (v *Viterbi) Fill(m *pore.Model, trans *StateTransitions, events pore.EventSequence) {
	n := trans.N()
	nt := len(events)
	v.k = trans.K
	v.pathProb = math.Inf(-1)
	v.seq = ""
	v.path = v.path[:0]
	if nt == 0 {
		return
	}

	v.vprev = growFloat(v.vprev, n)
	v.vcur = growFloat(v.vcur, n)
	v.bp = growInt32(v.bp, n*nt)

	// uniform prior over states
	logPrior := -math.Log(float64(n))
	for s := 0; s < n; s++ {
		v.vprev[s] = logPrior + m.EmissionLogProb(uint32(s), events[0])
		v.bp[s] = -1
	}

	for t := 1; t < nt; t++ {
		base := t * n
		for s := 0; s < n; s++ {
			best := math.Inf(-1)
			arg := int32(-1)
			for _, tr := range trans.InNeighbors(uint32(s)) {
				if w := v.vprev[tr.State] + tr.LogProb; w > best {
					best = w
					arg = int32(tr.State)
				}
			}
			v.bp[base+s] = arg
			if math.IsInf(best, -1) {
				v.vcur[s] = best
			} else {
				v.vcur[s] = best + m.EmissionLogProb(uint32(s), events[t])
			}
		}
		v.vprev, v.vcur = v.vcur, v.vprev
	}

	last := 0
	for s := 1; s < n; s++ {
		if v.vprev[s] > v.vprev[last] {
			last = s
		}
	}
	v.pathProb = v.vprev[last]

	if cap(v.path) < nt {
		v.path = make([]uint32, nt)
	} else {
		v.path = v.path[:nt]
	}
	v.path[nt-1] = uint32(last)
	for t := nt - 1; t > 0; t-- {
		prev := v.bp[t*n+int(v.path[t])]
		if prev < 0 {
			// no finite predecessor; restart from the state itself
			prev = int32(v.path[t])
		}
		v.path[t-1] = uint32(prev)
	}

	v.seq = emitBases(v.path, v.k)
}

// emitBases converts a state path to bases: the first kmer in full, then
// for each transition the skip-inferred suffix of the new kmer.  Stays
// contribute nothing; with no suffix overlap the full kmer is appended.
func emitBases(path []uint32, k int) string {
	if len(path) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(pore.KmerString(path[0], k))
	for i := 1; i < len(path); i++ {
		o := pore.SuffixOverlap(path[i-1], path[i], k)
		if o == 0 {
			continue
		}
		ks := pore.KmerString(path[i], k)
		sb.WriteString(ks[k-o:])
	}
	return sb.String()
}

// PathProbability returns the log-likelihood of the best path; -Inf when
// every path is impossible.
func (v *Viterbi) PathProbability() float64 { return v.pathProb }

// BaseSeq returns the base sequence implied by the best path.
func (v *Viterbi) BaseSeq() string { return v.seq }

// StatePath returns the decoded state path.  The slice is reused by the
// next Fill.
func (v *Viterbi) StatePath() []uint32 { return v.path }

func growFloat(x []float64, n int) []float64 {
	if cap(x) < n {
		return make([]float64, n)
	}
	return x[:n]
}

func growInt32(x []int32, n int) []int32 {
	if cap(x) < n {
		return make([]int32, n)
	}
	return x[:n]
}
