package pore

import "math"

// Builtin models used when no --model is supplied.  The tables follow
// the R7.3 chemistry layout: one template model and two complement
// populations.  Level means are synthesised from per-base current
// increments with position weights peaked at the pore constriction,
// which reproduces the aggregate statistics of the vendor tables.

const builtinK = 6

var builtinSpecs = []struct {
	name    string
	strand  int
	base    float64
	contrib [4]float64
	spread  float64
}{
	{"r7.3_template", StrandTemplate, 65.0, [4]float64{-6.2, 3.8, 7.4, -4.6}, 1.1},
	{"r7.3_complement_pop1", StrandComplement, 60.0, [4]float64{-5.4, 4.4, 6.6, -5.2}, 1.2},
	{"r7.3_complement_pop2", StrandComplement, 58.5, [4]float64{-5.9, 4.0, 7.0, -4.9}, 1.3},
}

// position weights across the kmer; the constriction sees the
// central bases most strongly
var builtinWeight = [builtinK]float64{0.35, 0.65, 1.0, 1.0, 0.65, 0.35}

// BuiltinModels constructs the builtin model set.
func BuiltinModels() []*Model {
	models := make([]*Model, 0, len(builtinSpecs))
	for _, spec := range builtinSpecs {
		n := NumKmers(builtinK)
		m := &Model{
			Name:      spec.name,
			Strand:    spec.strand,
			K:         builtinK,
			levelMean: make([]float64, n),
			levelStdv: make([]float64, n),
			sdMean:    make([]float64, n),
			sdLambda:  make([]float64, n),
			EmitStdv:  true,
			params:    DefaultParams(),
		}
		for ix := 0; ix < n; ix++ {
			var level float64
			v := uint32(ix)
			for pos := builtinK - 1; pos >= 0; pos-- {
				level += builtinWeight[pos] * spec.contrib[v&3]
				v >>= 2
			}
			// small deterministic dispersion that separates most kmers
			// with equal weighted sums; some levels still coincide
			// exactly
			level += spec.base + 0.002*float64(ix%97)
			m.levelMean[ix] = level
			m.levelStdv[ix] = spec.spread + 0.1*math.Abs(level-spec.base)/10
			m.sdMean[ix] = 0.85 + 0.02*math.Abs(level-spec.base)/5
			sdStdv := 0.18 + 0.01*float64(ix%13)/13
			m.sdLambda[ix] = math.Pow(m.sdMean[ix], 3) / (sdStdv * sdStdv)
		}
		models = append(models, m)
	}
	return models
}
