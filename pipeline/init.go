package pipeline

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/raj347/nanocall/fast5"
	"github.com/raj347/nanocall/hmm"
	"github.com/raj347/nanocall/pore"
)

var log = logrus.WithField("component", "pipeline")

// parseModelArg splits "st:path" with st in {0,1,2}.
func parseModelArg(s string) (int, string, error) {
	if len(s) < 3 || s[1] != ':' || s[0] < '0' || s[0] > '2' {
		return 0, "", fmt.Errorf("pipeline: could not parse model name %q; format is \"[0|1|2]:<file>\"", s)
	}
	return int(s[0] - '0'), s[2:], nil
}

// InitModels loads the pore model dictionary from the configuration, or
// the builtin set when no models are given.  Supplying models for
// exactly one of strands {0,1} without a strand-2 model is an error.
func InitModels(cfg Config) (map[string]*pore.Model, error) {
	var args []string
	args = append(args, cfg.ModelArgs...)
	if cfg.ModelFofn != "" {
		rc, err := fast5.OpenDecompressed(cfg.ModelFofn)
		if err != nil {
			return nil, err
		}
		sc := bufio.NewScanner(rc)
		for sc.Scan() {
			if line := strings.TrimSpace(sc.Text()); line != "" {
				args = append(args, line)
			}
		}
		rc.Close()
		if err := sc.Err(); err != nil {
			return nil, err
		}
	}

	models := make(map[string]*pore.Model)
	if len(args) > 0 {
		var perStrand [3]int
		for _, arg := range args {
			st, path, err := parseModelArg(arg)
			if err != nil {
				return nil, err
			}
			rc, err := fast5.OpenDecompressed(path)
			if err != nil {
				return nil, err
			}
			m, err := pore.Load(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("pipeline: loading model %q: %w", path, err)
			}
			m.Name = path
			m.Strand = st
			perStrand[st]++
			models[path] = m
			log.WithFields(logrus.Fields{"model": path, "strand": st}).Info("loaded model")
		}
		if perStrand[2] == 0 && (perStrand[0] == 0) != (perStrand[1] == 0) {
			missing := 0
			if perStrand[0] > 0 {
				missing = 1
			}
			return nil, fmt.Errorf("pipeline: models were specified only for strand %d; give models for both strands, or for neither", 1-missing)
		}
	} else {
		for _, m := range pore.BuiltinModels() {
			models[m.Name] = m
			log.WithFields(logrus.Fields{
				"model":  m.Name,
				"strand": m.Strand,
				"mean":   fmt.Sprintf("%.2f", m.Mean()),
				"stdv":   fmt.Sprintf("%.2f", m.Stdv()),
			}).Info("loaded builtin model")
		}
	}

	k := 0
	for _, m := range models {
		if !cfg.EmitStdv {
			m.EmitStdv = false
		}
		if k == 0 {
			k = m.K
		} else if m.K != k {
			return nil, fmt.Errorf("pipeline: models disagree on kmer length (%d vs %d)", k, m.K)
		}
	}
	return models, nil
}

// InitTransitions loads a custom transition table or computes one from
// the stay/skip parameters.
func InitTransitions(cfg Config, k int) (*hmm.StateTransitions, error) {
	if cfg.TransFile != "" {
		rc, err := fast5.OpenDecompressed(cfg.TransFile)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		trans, err := hmm.LoadTransitions(rc)
		if err != nil {
			return nil, err
		}
		if trans.K != k {
			return nil, fmt.Errorf("pipeline: transition table kmer length %d does not match models (%d)", trans.K, k)
		}
		log.WithField("file", cfg.TransFile).Info("loaded state transitions")
		return trans, nil
	}
	trans := hmm.NewStateTransitions(k)
	trans.Compute(cfg.PrSkip, cfg.PrStay, cfg.PrCutoff)
	log.WithFields(logrus.Fields{
		"p_skip":   cfg.PrSkip,
		"p_stay":   cfg.PrStay,
		"p_cutoff": cfg.PrCutoff,
	}).Info("initialized state transitions")
	return trans, nil
}

// InitFiles expands the input arguments: directories are scanned one
// level deep, valid event files are taken as-is, and anything else is
// read as a file of file names ("-" reads the list from stdin).
func InitFiles(cfg Config) ([]string, error) {
	var files []string
	add := func(path string) {
		files = append(files, path)
		log.WithField("file", path).Info("adding input file")
	}
	for _, arg := range cfg.Inputs {
		fi, err := os.Stat(arg)
		if err == nil && fi.IsDir() {
			entries, err := os.ReadDir(arg)
			if err != nil {
				return nil, err
			}
			for _, e := range entries {
				sub := filepath.Join(arg, e.Name())
				switch {
				case e.IsDir():
					log.WithField("dir", sub).Info("ignoring subdirectory")
				case fast5.IsValidFile(sub):
					add(sub)
				default:
					log.WithField("file", sub).Info("ignoring file")
				}
			}
			continue
		}
		if arg != "-" && fast5.IsValidFile(arg) {
			add(arg)
			continue
		}
		// interpret as a file of file names
		if arg == "-" {
			sc := bufio.NewScanner(os.Stdin)
			for sc.Scan() {
				if line := strings.TrimSpace(sc.Text()); line != "" && fast5.IsValidFile(line) {
					add(line)
				}
			}
			if err := sc.Err(); err != nil {
				return nil, err
			}
			continue
		}
		data, err := os.ReadFile(arg)
		if err != nil {
			return nil, err
		}
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" && fast5.IsValidFile(line) {
				add(line)
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("pipeline: no event files to process")
	}
	return files, nil
}

// InitReads builds a summary per input file, keeping only reads with
// events and at least one strand long enough to call.
func InitReads(cfg Config, models map[string]*pore.Model, files []string) []*fast5.Summary {
	var reads []*fast5.Summary
	for _, f := range files {
		s, err := fast5.NewSummary(f, models, cfg.ScaleStrandsTogether)
		if err != nil {
			log.WithField("file", f).WithError(err).Warn("skipping unreadable input")
			continue
		}
		if !s.HaveEDEvents || (s.EventCount(0) < cfg.MinReadLen && s.EventCount(1) < cfg.MinReadLen) {
			log.WithField("read", s.ReadID).Info("skipping read with too few events")
			continue
		}
		reads = append(reads, s)
	}
	return reads
}
