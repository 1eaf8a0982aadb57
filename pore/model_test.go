package pore

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testTable builds a complete k-mer table with injective level means.
func testTable(k int) []Entry {
	n := NumKmers(k)
	rows := make([]Entry, n)
	for ix := 0; ix < n; ix++ {
		rows[ix] = Entry{
			Kmer:      KmerString(uint32(ix), k),
			LevelMean: 50 + 2*float64(ix),
			LevelStdv: 0.75,
			SdMean:    0.9,
			SdStdv:    0.2,
		}
	}
	return rows
}

func TestLoadFromTable(t *testing.T) {
	m, err := LoadFromTable(testTable(3))
	require.NoError(t, err)
	assert.Equal(t, 3, m.K)
	assert.Equal(t, 64, m.N())
	assert.True(t, m.EmitStdv)

	ix, _ := KmerIndex("ACG")
	assert.InDelta(t, 50+2*float64(ix), m.LevelMean(ix), 1e-12)
}

func TestLoadFromTableErrors(t *testing.T) {
	_, err := LoadFromTable(nil)
	assert.Error(t, err)

	rows := testTable(2)
	_, err = LoadFromTable(rows[:len(rows)-1])
	assert.Error(t, err)

	rows = testTable(2)
	rows[1].Kmer = rows[0].Kmer
	_, err = LoadFromTable(rows)
	assert.Error(t, err)
}

func TestLoadStream(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("kmer level_mean level_stdv sd_mean sd_stdv\n")
	for _, row := range testTable(2) {
		sb.WriteString(row.Kmer)
		sb.WriteString(" 55.5 0.8 0.9 0.2\n")
	}
	m, err := Load(strings.NewReader(sb.String()))
	require.NoError(t, err)
	assert.Equal(t, 2, m.K)
	assert.InDelta(t, 55.5, m.Mean(), 1e-9)
}

func TestEmissionLogProb(t *testing.T) {
	m, err := LoadFromTable(testTable(2))
	require.NoError(t, err)
	m.Scale(DefaultParams())

	ev := Event{Mean: m.LevelMean(5), Stdv: 0.9, Start: 0, Length: 0.01}
	ll := m.EmissionLogProb(5, ev)
	assert.False(t, math.IsNaN(ll))
	assert.False(t, math.IsInf(ll, 0))

	// the matching state scores at least as well as a distant one
	assert.Greater(t, ll, m.EmissionLogProb(12, ev))

	// disabling the noise branch changes the density
	m.EmitStdv = false
	assert.NotEqual(t, ll, m.EmissionLogProb(5, ev))
}

func TestEmissionScaling(t *testing.T) {
	m, err := LoadFromTable(testTable(2))
	require.NoError(t, err)
	m.EmitStdv = false

	p := DefaultParams()
	p.Scale = 1.1
	p.Shift = 2.0
	scaled := m.With(p)

	// the original model is untouched
	assert.Equal(t, DefaultParams(), m.Params())

	ev := Event{Mean: m.LevelMean(3)*1.1 + 2.0}
	assert.Greater(t, scaled.EmissionLogProb(3, ev), m.EmissionLogProb(3, ev))

	// a singular scaled sigma yields -Inf
	p.Var = 0
	bad := m.With(p)
	assert.True(t, math.IsInf(bad.EmissionLogProb(3, ev), -1))
}

func TestModelMeanStdv(t *testing.T) {
	m, err := LoadFromTable(testTable(3))
	require.NoError(t, err)
	assert.InDelta(t, 50+2*31.5, m.Mean(), 1e-9)
	assert.Greater(t, m.Stdv(), 0.0)
}

func TestBuiltinModels(t *testing.T) {
	models := BuiltinModels()
	require.Len(t, models, 3)
	strands := map[int]int{}
	for _, m := range models {
		assert.Equal(t, 6, m.K)
		assert.True(t, m.EmitStdv)
		strands[m.Strand]++
		ll := m.EmissionLogProb(100, Event{Mean: m.LevelMean(100), Stdv: m.SdMean(100)})
		assert.False(t, math.IsInf(ll, 0))
		assert.False(t, math.IsNaN(ll))
	}
	assert.Equal(t, 1, strands[StrandTemplate])
	assert.Equal(t, 2, strands[StrandComplement])
}
