// Command nanocall calls bases in Oxford Nanopore reads: it decodes
// per-read event sequences against a set of pore models and writes the
// called sequences as FASTA.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/raj347/nanocall/pipeline"
)

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	cfg := pipeline.Default()

	var modelArgs, logLevels stringList
	noStdv := false

	flag.IntVar(&cfg.NumThreads, "t", cfg.NumThreads, "Number of parallel threads.")
	flag.IntVar(&cfg.NumThreads, "threads", cfg.NumThreads, "Number of parallel threads.")
	flag.Var(&modelArgs, "m", "Custom pore model, \"[0|1|2]:<file>\" (repeatable).")
	flag.Var(&modelArgs, "model", "Custom pore model, \"[0|1|2]:<file>\" (repeatable).")
	flag.StringVar(&cfg.ModelFofn, "model-fofn", "", "File of pore models.")
	flag.StringVar(&cfg.TransFile, "s", "", "Custom initial state transitions.")
	flag.StringVar(&cfg.TransFile, "trans", "", "Custom initial state transitions.")
	flag.StringVar(&cfg.Output, "o", "", "Output.")
	flag.StringVar(&cfg.Output, "output", "", "Output.")
	flag.StringVar(&cfg.Stats, "stats", "", "Stats.")
	flag.IntVar(&cfg.MinReadLen, "min-len", cfg.MinReadLen, "Minimum read length.")
	flag.IntVar(&cfg.FastaLineWidth, "fasta-line-width", cfg.FastaLineWidth, "Maximum fasta line width.")
	flag.Float64Var(&cfg.PrStay, "pr-stay", cfg.PrStay, "Transition probability of staying in the same state.")
	flag.Float64Var(&cfg.PrSkip, "pr-skip", cfg.PrSkip, "Transition probability of skipping at least 1 state.")
	flag.Float64Var(&cfg.PrCutoff, "pr-cutoff", cfg.PrCutoff, "Minimum value for transition probabilities; smaller values are set to zero.")
	flag.IntVar(&cfg.ScaleNumEvents, "scale-num-events", cfg.ScaleNumEvents, "Number of events used for model scaling.")
	flag.IntVar(&cfg.ScaleMaxRounds, "scale-max-rounds", cfg.ScaleMaxRounds, "Maximum scaling rounds.")
	flag.Float64Var(&cfg.ScaleMinFitProgress, "scale-min-fit-progress", cfg.ScaleMinFitProgress, "Minimum scaling fit progress.")
	flag.BoolVar(&cfg.ScaleOnly, "scale-only", false, "Stop after computing model scalings.")
	flag.BoolVar(&cfg.Accurate, "accurate", false, "Compute model scalings more accurately.")
	flag.BoolVar(&cfg.ScaleStrandsTogether, "scale-strands-together", false, "Use same scaling parameters for both strands.")
	flag.BoolVar(&cfg.ScaleSelectModelSingleRound, "scale-select-model-single-round", false, "Use a single training round to select the best model per strand.")
	flag.BoolVar(&noStdv, "no-stdv-emission", false, "Ignore the event noise branch of the emission density.")
	flag.Var(&logLevels, "log", "Log level, \"<level>\" or \"<component>:<level>\" (repeatable).")
	flag.Parse()

	cfg.ModelArgs = modelArgs
	cfg.EmitStdv = !noStdv
	cfg.Inputs = flag.Args()

	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(logrus.InfoLevel)
	for _, lv := range logLevels {
		s := lv
		if i := strings.LastIndexByte(s, ':'); i >= 0 {
			s = s[i+1:]
		}
		level, err := logrus.ParseLevel(s)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bad log level %q\n", lv)
			os.Exit(1)
		}
		logrus.SetLevel(level)
	}

	if len(cfg.Inputs) == 0 {
		fmt.Fprintln(os.Stderr, "no inputs; give directories, event files, or files of file names (\"-\" for stdin)")
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logrus.WithError(err).Error("run failed")
		os.Exit(1)
	}
}

func run(cfg pipeline.Config) error {
	models, err := pipeline.InitModels(cfg)
	if err != nil {
		return err
	}
	k := 0
	for _, m := range models {
		k = m.K
		break
	}
	trans, err := pipeline.InitTransitions(cfg, k)
	if err != nil {
		return err
	}
	files, err := pipeline.InitFiles(cfg)
	if err != nil {
		return err
	}
	reads := pipeline.InitReads(cfg, models, files)

	if cfg.RescaleRequested() {
		if err := pipeline.Rescale(cfg, models, trans, reads); err != nil {
			return err
		}
	}

	if !cfg.ScaleOnly {
		out := os.Stdout
		if cfg.Output != "" {
			fid, err := os.Create(cfg.Output)
			if err != nil {
				return err
			}
			defer fid.Close()
			out = fid
		}
		if err := pipeline.Basecall(cfg, models, trans, reads, out); err != nil {
			return err
		}
	}

	if cfg.Stats != "" {
		fid, err := os.Create(cfg.Stats)
		if err != nil {
			return err
		}
		defer fid.Close()
		if err := pipeline.WriteStats(fid, reads); err != nil {
			return err
		}
	}
	return nil
}
