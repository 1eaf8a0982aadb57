package pipeline

import (
	"bytes"
	"io"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/raj347/nanocall/fast5"
	"github.com/raj347/nanocall/hmm"
	"github.com/raj347/nanocall/pfor"
	"github.com/raj347/nanocall/pore"
)

// each worker draws a decoder from the pool and returns it after the
// read, so lattice buffers are reused instead of reallocated
var viterbiPool = sync.Pool{New: func() any { return new(hmm.Viterbi) }}

type callResult struct {
	prob  float64
	model string
	seq   string
}

// Basecall decodes every read and writes FASTA records to out in input
// order.
func Basecall(cfg Config, models map[string]*pore.Model, trans *hmm.StateTransitions, reads []*fast5.Summary, out io.Writer) error {
	crt := 0
	return pfor.ParFor(
		cfg.NumThreads, cfg.ChunkSize,
		func() (int, bool) {
			if crt >= len(reads) {
				return 0, false
			}
			crt++
			return crt - 1, true
		},
		func(i int, buf *bytes.Buffer) error {
			return basecallRead(cfg, models, trans, reads[i], buf)
		},
		func(buf *bytes.Buffer) error {
			_, err := out.Write(buf.Bytes())
			return err
		},
		progressReport,
	)
}

func basecallRead(cfg Config, models map[string]*pore.Model, trans *hmm.StateTransitions, rs *fast5.Summary, buf *bytes.Buffer) error {
	if err := rs.LoadEvents(); err != nil {
		rs.Err = err
		log.WithField("read", rs.ReadID).WithError(err).Warn("could not load events")
		return nil
	}
	defer rs.DropEvents()

	vit := viterbiPool.Get().(*hmm.Viterbi)
	defer viterbiPool.Put(vit)

	for st := 0; st < 2; st++ {
		events := rs.Events[st]
		if len(events) < cfg.MinReadLen {
			continue
		}
		evMean, evStdv := events.MeanStdv()
		log.WithFields(logrus.Fields{
			"read": rs.ReadID, "strand": st, "ev_mean": evMean, "ev_stdv": evStdv,
		}).Debug("mean_stdv")

		var results []callResult
		for _, name := range candidateModels(rs, models, st) {
			params, ok := rs.Params[st][name]
			if !ok {
				params = pore.DefaultParams()
			}
			pm := models[name].With(params)
			log.WithFields(logrus.Fields{
				"read": rs.ReadID, "strand": st, "model": name, "parameters": params.String(),
			}).Info("basecalling")
			if math.Abs(evMean-pm.Mean()) > 5.0 {
				log.WithFields(logrus.Fields{
					"read": rs.ReadID, "strand": st, "model": name,
					"model_mean": pm.Mean(), "events_mean": evMean,
				}).Warn("means_apart")
			}
			corrected := events.ApplyDriftCorrection(params.Drift)
			vit.Fill(pm, trans, corrected)
			results = append(results, callResult{prob: vit.PathProbability(), model: name, seq: vit.BaseSeq()})
		}

		if len(results) == 0 {
			log.WithFields(logrus.Fields{"read": rs.ReadID, "strand": st}).Info("no applicable models")
			continue
		}

		// best first: by path probability, then model name, then sequence
		sort.Slice(results, func(i, j int) bool {
			a, b := results[i], results[j]
			if a.prob != b.prob {
				return a.prob > b.prob
			}
			if a.model != b.model {
				return a.model > b.model
			}
			return a.seq > b.seq
		})
		best := results[0]
		rs.PreferredModel[st] = best.model
		log.WithFields(logrus.Fields{
			"read": rs.ReadID, "strand": st, "model": best.model,
		}).Info("best_model")

		name := rs.ReadID + ":" + rs.BaseFileName + ":" + strconv.Itoa(st)
		if err := WriteFasta(buf, name, best.seq, cfg.FastaLineWidth); err != nil {
			return err
		}
	}
	return nil
}
