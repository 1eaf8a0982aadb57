// Command simulate generates synthetic reads for testing: it walks the
// kmer chain of a pore model with the stay/skip transition law, samples
// event means from the level Gaussians under the applied shift, scale and
// drift, draws event stdvs as 10% jitter around each kmer's sd mean, and
// writes one event file per read.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/raj347/nanocall/pore"
)

func main() {
	var modelName, outDir string
	flag.StringVar(&modelName, "model", "r7.3_template", "Builtin model to sample from")
	flag.StringVar(&outDir, "outdir", ".", "Output directory")

	var nReads, nEvents int
	flag.IntVar(&nReads, "nreads", 1, "Number of reads")
	flag.IntVar(&nEvents, "nevents", 2000, "Events per strand")

	var seed int64
	flag.Int64Var(&seed, "seed", 1, "RNG seed")

	var prStay, prSkip float64
	flag.Float64Var(&prStay, "pr-stay", 0.1, "Stay probability")
	flag.Float64Var(&prSkip, "pr-skip", 0.1, "Skip probability")

	var shift, scale, drift float64
	flag.Float64Var(&shift, "shift", 0, "Applied shift")
	flag.Float64Var(&scale, "scale", 1, "Applied scale")
	flag.Float64Var(&drift, "drift", 0, "Applied drift")
	flag.Parse()

	var model *pore.Model
	for _, m := range pore.BuiltinModels() {
		if m.Name == modelName {
			model = m
			break
		}
	}
	if model == nil {
		fmt.Fprintf(os.Stderr, "unknown builtin model %q\n", modelName)
		os.Exit(1)
	}

	rng := rand.New(rand.NewSource(seed))
	for r := 0; r < nReads; r++ {
		path := filepath.Join(outDir, fmt.Sprintf("sim_%04d.events.tsv", r))
		fid, err := os.Create(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Fprintln(fid, "# strand mean stdv start length")
		for st := 0; st < 2; st++ {
			writeStrand(fid, rng, model, st, nEvents, prStay, prSkip, shift, scale, drift)
		}
		fid.Close()
	}
}

func writeStrand(w *os.File, rng *rand.Rand, model *pore.Model, st, nEvents int, prStay, prSkip, shift, scale, drift float64) {
	k := model.K
	state := uint32(rng.Intn(pore.NumKmers(k)))
	start := 0.0
	for t := 0; t < nEvents; t++ {
		u := rng.Float64()
		switch {
		case u < prStay:
			// stay
		default:
			skip := 0
			for rng.Float64() < prSkip && skip+1 < k {
				skip++
			}
			next := pore.NextKmers(state, k, skip)
			state = next[rng.Intn(len(next))]
		}
		mean := model.LevelMean(state)*scale + shift + drift*start + rng.NormFloat64()*model.LevelStdv(state)
		stdv := model.SdMean(state) * (1 + 0.1*rng.NormFloat64())
		if stdv < 0.01 {
			stdv = 0.01
		}
		length := 0.01 + 0.005*rng.Float64()
		fmt.Fprintf(w, "%d %.4f %.4f %.4f %.4f\n", st, mean, stdv, start, length)
		start += length
	}
}
