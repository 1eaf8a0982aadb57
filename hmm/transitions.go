// Package hmm implements the decoding and training kernels: the sparse
// kmer transition table, the Viterbi and forward/backward engines, and
// the one-round scaling trainer.
package hmm

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/raj347/nanocall/pore"
)

// Transition is one sparse entry: the state at the far end of the edge
// and the log transition probability.
type Transition struct {
	State   uint32
	LogProb float64
}

// StateTransitions is the sparse kmer-to-kmer transition structure.
// Once built it is immutable and freely shared across workers.
type StateTransitions struct {
	K   int
	out [][]Transition
	in  [][]Transition
}

// NewStateTransitions returns an empty table over kmers of length k.
func NewStateTransitions(k int) *StateTransitions {
	n := pore.NumKmers(k)
	return &StateTransitions{
		K:   k,
		out: make([][]Transition, n),
		in:  make([][]Transition, n),
	}
}

// N returns the number of states.
func (st *StateTransitions) N() int { return pore.NumKmers(st.K) }

// OutNeighbors returns the outgoing entries of s.  The order is stable
// for a given table.
func (st *StateTransitions) OutNeighbors(s uint32) []Transition { return st.out[s] }

// InNeighbors returns the incoming entries of s.
func (st *StateTransitions) InNeighbors(s uint32) []Transition { return st.in[s] }

// per-destination weights below this add nothing after normalisation
const weightEps = 1e-9

// Compute populates the table from the stay/skip parameterisation.  From
// each source: pStay back to itself; (1-pStay)(1-pSkip)/4 to each
// one-shift successor; (1-pStay)*pSkip^c*(1-pSkip)*4^-(c+1) to each
// successor reached by skipping c states.  Rows are normalised to sum to
// one, then entries below pCutoff are pruned and the rest stored as logs.
func (st *StateTransitions) Compute(pSkip, pStay, pCutoff float64) {
	n := st.N()
	acc := make(map[uint32]float64, 128)
	for s := 0; s < n; s++ {
		src := uint32(s)
		for k := range acc {
			delete(acc, k)
		}
		acc[src] = pStay
		w := (1 - pStay) * (1 - pSkip)
		for c := 0; c+1 < st.K; c++ {
			shift := c + 1
			per := w / float64(int(1)<<(2*uint(shift)))
			if per < weightEps {
				break
			}
			for _, dst := range pore.NextKmers(src, st.K, c) {
				acc[dst] += per
			}
			w *= pSkip
		}

		dsts := make([]uint32, 0, len(acc))
		var sum float64
		for dst, p := range acc {
			dsts = append(dsts, dst)
			sum += p
		}
		sort.Slice(dsts, func(i, j int) bool { return dsts[i] < dsts[j] })

		row := make([]Transition, 0, len(dsts))
		for _, dst := range dsts {
			p := acc[dst] / sum
			if p < pCutoff {
				continue
			}
			row = append(row, Transition{State: dst, LogProb: math.Log(p)})
		}
		st.out[src] = row
	}
	st.buildIn()
}

func (st *StateTransitions) buildIn() {
	n := st.N()
	counts := make([]int, n)
	for s := 0; s < n; s++ {
		for _, tr := range st.out[s] {
			counts[tr.State]++
		}
	}
	for d := 0; d < n; d++ {
		st.in[d] = make([]Transition, 0, counts[d])
	}
	for s := 0; s < n; s++ {
		for _, tr := range st.out[s] {
			st.in[tr.State] = append(st.in[tr.State], Transition{State: uint32(s), LogProb: tr.LogProb})
		}
	}
}

// WriteTo serialises the table as one "src dst log_prob" line per entry.
func (st *StateTransitions) WriteTo(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for s := range st.out {
		src := pore.KmerString(uint32(s), st.K)
		for _, tr := range st.out[s] {
			if _, err := fmt.Fprintf(bw, "%s %s %g\n", src, pore.KmerString(tr.State, st.K), tr.LogProb); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// LoadTransitions reads a table in the WriteTo text form.
func LoadTransitions(r io.Reader) (*StateTransitions, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1<<16), 1<<20)
	var st *StateTransitions
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		f := strings.Fields(line)
		if len(f) != 3 {
			return nil, fmt.Errorf("hmm: bad transition line %q", line)
		}
		if st == nil {
			st = NewStateTransitions(len(f[0]))
		}
		src, err := pore.KmerIndex(f[0])
		if err != nil {
			return nil, err
		}
		dst, err := pore.KmerIndex(f[1])
		if err != nil {
			return nil, err
		}
		lp, err := strconv.ParseFloat(f[2], 64)
		if err != nil {
			return nil, fmt.Errorf("hmm: bad transition line %q: %v", line, err)
		}
		st.out[src] = append(st.out[src], Transition{State: dst, LogProb: lp})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if st == nil {
		return nil, fmt.Errorf("hmm: empty transition file")
	}
	st.buildIn()
	return st, nil
}
