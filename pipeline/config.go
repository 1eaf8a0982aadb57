// Package pipeline orchestrates the per-read work: model and transition
// setup, the rescaling pass, the basecalling pass, and output.
package pipeline

import "github.com/raj347/nanocall/hmm"

// Config carries every tunable of a run.  It is built once at startup
// and threaded explicitly; there are no package-level option globals.
type Config struct {
	NumThreads int
	ChunkSize  int

	MinReadLen     int
	FastaLineWidth int

	PrStay   float64
	PrSkip   float64
	PrCutoff float64

	ScaleNumEvents              int
	ScaleMaxRounds              int
	ScaleMinFitProgress         float64
	ScaleOnly                   bool
	Accurate                    bool
	ScaleStrandsTogether        bool
	ScaleSelectModelSingleRound bool

	// EmitStdv gates the inverse-Gaussian branch of the emission
	// density on every loaded model.
	EmitStdv bool

	ModelArgs []string
	ModelFofn string
	TransFile string
	Output    string
	Stats     string
	Inputs    []string

	// Trainer overrides the one-round trainer; nil means
	// hmm.TrainOneRound.
	Trainer hmm.TrainFunc
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		NumThreads:          1,
		ChunkSize:           10,
		MinReadLen:          1000,
		FastaLineWidth:      80,
		PrStay:              0.1,
		PrSkip:              0.1,
		PrCutoff:            0.001,
		ScaleNumEvents:      200,
		ScaleMaxRounds:      10,
		ScaleMinFitProgress: 1.0,
		EmitStdv:            true,
	}
}

// RescaleRequested reports whether the rescaling pass runs.
func (c Config) RescaleRequested() bool {
	return c.Accurate || c.ScaleStrandsTogether || c.ScaleSelectModelSingleRound
}

func (c Config) trainer() hmm.TrainFunc {
	if c.Trainer != nil {
		return c.Trainer
	}
	return hmm.TrainOneRound
}
