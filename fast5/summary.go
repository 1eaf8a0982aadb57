package fast5

import (
	"fmt"
	"io"
	"path/filepath"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/raj347/nanocall/pore"
)

// Summary is the per-read record that travels through the pipeline.
// Index 2 of the parameter tables holds joint parameters keyed by
// JointName(m0, m1) when both strands share one scaling.  A Summary is
// owned by exactly one worker at a time.
type Summary struct {
	Path         string
	ReadID       string
	BaseFileName string
	HaveEDEvents bool
	StrandBounds [4]int

	// loaded lazily, dropped after each pass
	Events [2]pore.EventSequence

	PreferredModel [2]string
	Params         [3]map[string]pore.ModelParams
	Fit            [3]map[string]float64

	// first worker-local failure, tagged onto the read
	Err error
}

// JointName keys the joint parameter table for a (template, complement)
// model pair.
func JointName(m0, m1 string) string { return m0 + "+" + m1 }

// NewSummary inspects path and seeds identity parameters for every
// model applicable to each strand, plus every joint pair when strands
// are scaled together.
func NewSummary(path string, models map[string]*pore.Model, scaleTogether bool) (*Summary, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	s := &Summary{
		Path:         path,
		ReadID:       r.ReadID(),
		BaseFileName: filepath.Base(path),
		HaveEDEvents: r.HaveEDEvents(),
		StrandBounds: r.StrandBounds(),
	}
	for i := range s.Params {
		s.Params[i] = make(map[string]pore.ModelParams)
		s.Fit[i] = make(map[string]float64)
	}
	for st := 0; st < 2; st++ {
		for _, name := range StrandModels(models, st) {
			s.Params[st][name] = pore.DefaultParams()
		}
	}
	if scaleTogether {
		for _, m0 := range StrandModels(models, 0) {
			for _, m1 := range StrandModels(models, 1) {
				s.Params[2][JointName(m0, m1)] = pore.DefaultParams()
			}
		}
	}
	return s, nil
}

// StrandModels returns the names of the models applicable to strand st,
// sorted so candidate iteration order is stable.
func StrandModels(models map[string]*pore.Model, st int) []string {
	names := maps.Keys(models)
	slices.Sort(names)
	keep := names[:0]
	for _, name := range names {
		if m := models[name]; m.Strand == st || m.Strand == pore.StrandBoth {
			keep = append(keep, name)
		}
	}
	return keep
}

// EventCount returns the number of events on strand st without loading
// them.
func (s *Summary) EventCount(st int) int {
	return s.StrandBounds[2*st+1] - s.StrandBounds[2*st]
}

// LoadEvents materialises both strands' event sequences.
func (s *Summary) LoadEvents() error {
	r, err := Open(s.Path)
	if err != nil {
		return err
	}
	defer r.Close()
	for st := 0; st < 2; st++ {
		if s.Events[st], err = r.Events(st); err != nil {
			return err
		}
	}
	return nil
}

// DropEvents releases the event buffers; they can be reloaded.
func (s *Summary) DropEvents() {
	s.Events[0], s.Events[1] = nil, nil
}

// WriteTSV emits one stats line: read metadata, per-strand event counts,
// preferred models and their final parameters and fit.
func (s *Summary) WriteTSV(w io.Writer) error {
	for st := 0; st < 2; st++ {
		name := s.PreferredModel[st]
		params := pore.DefaultParams()
		fit := 0.0
		if name != "" {
			params = s.Params[st][name]
			fit = s.Fit[st][name]
		} else {
			name = "."
		}
		if st > 0 {
			if _, err := fmt.Fprint(w, "\t"); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%.4f\t%.4f\t%.6f\t%.4f\t%.4f\t%.4f\t%.2f",
			s.ReadID, s.BaseFileName, st, s.EventCount(st), name,
			params.Shift, params.Scale, params.Drift, params.Var, params.ScaleSD, params.VarSD, fit)
		if err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w)
	return err
}
