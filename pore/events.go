package pore

import "gonum.org/v1/gonum/stat"

// Event summarises a short window of the raw current trace.
type Event struct {
	Mean   float64
	Stdv   float64
	Start  float64
	Length float64
}

// EventSequence is an ordered run of events with their original arrival
// times.
type EventSequence []Event

func (es EventSequence) Len() int { return len(es) }

// MeanStdv returns the unweighted mean and sample standard deviation of
// the event means.
func (es EventSequence) MeanStdv() (float64, float64) {
	x := make([]float64, len(es))
	for i, ev := range es {
		x[i] = ev.Mean
	}
	m, sd := stat.MeanStdDev(x, nil)
	return m, sd
}

// ApplyDriftCorrection returns a copy of the sequence with
// mean' = mean - drift*start.  Successive corrections compose additively.
func (es EventSequence) ApplyDriftCorrection(drift float64) EventSequence {
	out := make(EventSequence, len(es))
	copy(out, es)
	for i := range out {
		out[i].Mean -= drift * out[i].Start
	}
	return out
}
