package pore

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/raj347/nanocall/logmath"
)

// Strand tags on a pore model.
const (
	StrandTemplate   = 0
	StrandComplement = 1
	StrandBoth       = 2
)

// Entry is one row of a pore model table.
type Entry struct {
	Kmer      string
	LevelMean float64
	LevelStdv float64
	SdMean    float64
	SdStdv    float64
}

// Model is the Gaussian emission table over kmers for one pore
// chemistry, together with the scaling currently applied to it.  The
// table is immutable after load; scaling is held as a value and applied
// inline by EmissionLogProb, which keeps retraining cheap.
type Model struct {
	Name   string
	Strand int
	K      int

	levelMean []float64
	levelStdv []float64
	sdMean    []float64
	sdLambda  []float64

	// EmitStdv gates the inverse-Gaussian branch of the emission
	// density.  It is set when the table carries sd columns and may be
	// cleared by configuration.
	EmitStdv bool

	params ModelParams
}

// LoadFromTable builds a model from parsed rows.  Every kmer of the
// implied length must appear exactly once.
func LoadFromTable(rows []Entry) (*Model, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("pore: empty model table")
	}
	k := len(rows[0].Kmer)
	if k == 0 || k > MaxK {
		return nil, fmt.Errorf("pore: bad kmer length %d", k)
	}
	n := NumKmers(k)
	if len(rows) != n {
		return nil, fmt.Errorf("pore: model table has %d rows, want %d for k=%d", len(rows), n, k)
	}
	m := &Model{
		K:         k,
		Strand:    StrandBoth,
		levelMean: make([]float64, n),
		levelStdv: make([]float64, n),
		sdMean:    make([]float64, n),
		sdLambda:  make([]float64, n),
		EmitStdv:  true,
		params:    DefaultParams(),
	}
	seen := make([]bool, n)
	for _, row := range rows {
		if len(row.Kmer) != k {
			return nil, fmt.Errorf("pore: mixed kmer lengths in model table")
		}
		ix, err := KmerIndex(row.Kmer)
		if err != nil {
			return nil, err
		}
		if seen[ix] {
			return nil, fmt.Errorf("pore: duplicate kmer %q", row.Kmer)
		}
		seen[ix] = true
		m.levelMean[ix] = row.LevelMean
		m.levelStdv[ix] = row.LevelStdv
		m.sdMean[ix] = row.SdMean
		if row.SdMean > 0 && row.SdStdv > 0 {
			m.sdLambda[ix] = math.Pow(row.SdMean, 3) / (row.SdStdv * row.SdStdv)
		} else {
			m.EmitStdv = false
		}
	}
	for ix, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("pore: model table is missing kmer %q", KmerString(uint32(ix), k))
		}
	}
	return m, nil
}

// Load reads a whitespace-separated model table.  One header line is
// allowed; rows are "kmer level_mean level_stdv sd_mean sd_stdv".
func Load(r io.Reader) (*Model, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1<<16), 1<<20)
	var rows []Entry
	first := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		f := strings.Fields(line)
		if first {
			first = false
			if baseIndex(f[0][0]) < 0 {
				continue // header
			}
		}
		if len(f) < 5 {
			return nil, fmt.Errorf("pore: bad model row %q", line)
		}
		var row Entry
		row.Kmer = f[0]
		var err error
		vals := [4]*float64{&row.LevelMean, &row.LevelStdv, &row.SdMean, &row.SdStdv}
		for i, p := range vals {
			if *p, err = strconv.ParseFloat(f[i+1], 64); err != nil {
				return nil, fmt.Errorf("pore: bad model row %q: %v", line, err)
			}
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return LoadFromTable(rows)
}

// N returns the number of states.
func (m *Model) N() int { return NumKmers(m.K) }

// Params returns the scaling currently held by the model.
func (m *Model) Params() ModelParams { return m.params }

// Scale installs a per-read scaling without touching the table.
func (m *Model) Scale(p ModelParams) { m.params = p }

// With returns a shallow copy sharing the table but carrying its own
// scaling.  Workers use this to evaluate shared models concurrently.
func (m *Model) With(p ModelParams) *Model {
	c := *m
	c.params = p
	return &c
}

// Mean returns the unscaled mean of the level means.
func (m *Model) Mean() float64 {
	return stat.Mean(m.levelMean, nil)
}

// Stdv returns the unscaled sample standard deviation of the level means.
func (m *Model) Stdv() float64 {
	return stat.StdDev(m.levelMean, nil)
}

// LevelMean returns the unscaled level mean of a state.
func (m *Model) LevelMean(st uint32) float64 { return m.levelMean[st] }

// LevelStdv returns the unscaled level standard deviation of a state.
func (m *Model) LevelStdv(st uint32) float64 { return m.levelStdv[st] }

// SdMean returns the unscaled noise mean of a state.
func (m *Model) SdMean(st uint32) float64 { return m.sdMean[st] }

// SdLambda returns the inverse-Gaussian shape of a state.
func (m *Model) SdLambda(st uint32) float64 { return m.sdLambda[st] }

// EmissionLogProb returns the natural-log emission density of ev under
// state st with the held scaling applied inline.  Drift correction is
// the caller's concern: ev.Mean must already be drift-corrected.  A
// scaled sigma at or below zero yields -Inf.
func (m *Model) EmissionLogProb(st uint32, ev Event) float64 {
	mu := m.levelMean[st]*m.params.Scale + m.params.Shift
	sigma := m.levelStdv[st] * m.params.Var
	ll := logmath.NormalLogPdf(ev.Mean, mu, sigma)
	if m.EmitStdv {
		igMean := m.sdMean[st] * m.params.ScaleSD
		igLambda := m.sdLambda[st] / m.params.VarSD
		ll += logmath.InvGaussLogPdf(ev.Stdv, igMean, igLambda)
	}
	return ll
}
