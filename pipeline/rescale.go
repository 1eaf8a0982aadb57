package pipeline

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/raj347/nanocall/fast5"
	"github.com/raj347/nanocall/hmm"
	"github.com/raj347/nanocall/pfor"
	"github.com/raj347/nanocall/pore"
)

// Rescale runs the parameter-training pass over every read.
func Rescale(cfg Config, models map[string]*pore.Model, trans *hmm.StateTransitions, reads []*fast5.Summary) error {
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
		func(i int, _ *bytes.Buffer) error {
			rescaleRead(cfg, models, trans, reads[i])
			return nil
		},
		func(_ *bytes.Buffer) error { return nil },
		progressReport,
	)
}

func progressReport(items int, elapsed time.Duration) {
	fmt.Fprintf(logrus.StandardLogger().Out, "Processed %6d reads in %6d seconds\r", items, int(elapsed.Seconds()))
}

// candidateModels returns the models to try on strand st: the preferred
// model when one is known, otherwise every model applicable to st.
func candidateModels(rs *fast5.Summary, models map[string]*pore.Model, st int) []string {
	if _, ok := models[rs.PreferredModel[st]]; ok {
		return []string{rs.PreferredModel[st]}
	}
	return fast5.StrandModels(models, st)
}

func rescaleRead(cfg Config, models map[string]*pore.Model, trans *hmm.StateTransitions, rs *fast5.Summary) {
	if err := rs.LoadEvents(); err != nil {
		rs.Err = err
		log.WithField("read", rs.ReadID).WithError(err).Warn("could not load events")
		return
	}
	defer rs.DropEvents()

	var modelList [2][]string
	var windows [2][]pore.EventSequence
	for st := 0; st < 2; st++ {
		if len(rs.Events[st]) < cfg.MinReadLen {
			continue
		}
		modelList[st] = candidateModels(rs, models, st)
		// train on the head and tail windows; together they preserve the
		// start-time range the drift estimate needs
		n := cfg.ScaleNumEvents
		if n > len(rs.Events[st]) {
			n = len(rs.Events[st])
		}
		windows[st] = []pore.EventSequence{
			rs.Events[st][:n/2],
			rs.Events[st][len(rs.Events[st])-n/2:],
		}
	}

	if cfg.ScaleStrandsTogether &&
		len(rs.Events[0]) >= cfg.MinReadLen && len(rs.Events[1]) >= cfg.MinReadLen &&
		len(modelList[0]) > 0 && len(modelList[1]) > 0 {
		rescaleJoint(cfg, models, trans, rs, modelList, windows)
		return
	}
	for st := 0; st < 2; st++ {
		if len(rs.Events[st]) < cfg.MinReadLen {
			continue
		}
		rescaleStrand(cfg, models, trans, rs, st, modelList[st], windows[st])
	}
}

func trainingPairs(windows []pore.EventSequence, m *pore.Model) []hmm.TrainingPair {
	pairs := make([]hmm.TrainingPair, 0, len(windows))
	for _, w := range windows {
		pairs = append(pairs, hmm.TrainingPair{Events: w, Model: m})
	}
	return pairs
}

func logRound(rs *fast5.Summary, strand int, model string, oldParams, newParams pore.ModelParams, oldFit, newFit float64, round int) {
	log.WithFields(logrus.Fields{
		"read":       rs.ReadID,
		"strand":     strand,
		"model":      model,
		"old_params": oldParams.String(),
		"old_fit":    oldFit,
		"crt_params": newParams.String(),
		"crt_fit":    newFit,
		"round":      round,
	}).Debug("scaling_round")
}

// refine runs rounds 1.. of the training loop, rolling back singular or
// regressing rounds and stopping on the round limit or on insufficient
// progress.
func refine(cfg Config, train hmm.TrainFunc, pairs []hmm.TrainingPair, trans *hmm.StateTransitions,
	rs *fast5.Summary, strand int, model string, startParams pore.ModelParams, startFit float64) (pore.ModelParams, float64, int) {

	curParams, curFit := startParams, startFit
	round := 1
	for {
		oldParams, oldFit := curParams, curFit
		r := train(pairs, trans, oldParams)
		curParams, curFit = r.Params, r.Fit
		logRound(rs, strand, model, oldParams, curParams, oldFit, curFit, round)
		if r.Singular {
			curParams, curFit = oldParams, oldFit
			break
		}
		if curFit < oldFit {
			log.WithFields(logrus.Fields{
				"read": rs.ReadID, "strand": strand, "model": model,
				"old_fit": oldFit, "crt_fit": curFit, "round": round,
			}).Info("scaling_regression")
			curParams, curFit = oldParams, oldFit
			break
		}
		round++
		if round >= cfg.ScaleMaxRounds || (round > 1 && curFit < oldFit+cfg.ScaleMinFitProgress) {
			break
		}
	}
	log.WithFields(logrus.Fields{
		"read": rs.ReadID, "strand": strand, "model": model,
		"parameters": curParams.String(), "fit": curFit, "rounds": round,
	}).Info("scaling_result")
	return curParams, curFit, round
}

func rescaleStrand(cfg Config, models map[string]*pore.Model, trans *hmm.StateTransitions,
	rs *fast5.Summary, st int, names []string, windows []pore.EventSequence) {

	train := cfg.trainer()
	fits := make(map[string]float64, len(names))

	// round 0: one training round per candidate
	for _, name := range names {
		pairs := trainingPairs(windows, models[name])
		old := rs.Params[st][name]
		r := train(pairs, trans, old)
		logRound(rs, st, name, old, r.Params, math.Inf(-1), r.Fit, 0)
		rs.Params[st][name] = r.Params
		fits[name] = r.Fit
	}

	if cfg.ScaleSelectModelSingleRound && len(names) > 1 {
		best := names[0]
		for _, name := range names[1:] {
			if fits[name] > fits[best] {
				best = name
			}
		}
		rs.PreferredModel[st] = best
		names = []string{best}
		log.WithFields(logrus.Fields{"read": rs.ReadID, "strand": st, "model": best}).Debug("selected_model")
	}

	for _, name := range names {
		params, fit, _ := refine(cfg, train, trainingPairs(windows, models[name]), trans,
			rs, st, name, rs.Params[st][name], fits[name])
		rs.Params[st][name] = params
		rs.Fit[st][name] = fit
	}
}

// rescaleJoint fits one parameter vector over both strands.  Model
// selection after round 0 is forced, and the selected pair's parameters
// propagate into both per-strand tables.
func rescaleJoint(cfg Config, models map[string]*pore.Model, trans *hmm.StateTransitions,
	rs *fast5.Summary, modelList [2][]string, windows [2][]pore.EventSequence) {

	train := cfg.trainer()
	jointPairs := func(m0, m1 string) []hmm.TrainingPair {
		pairs := trainingPairs(windows[0], models[m0])
		return append(pairs, trainingPairs(windows[1], models[m1])...)
	}

	type pair struct{ m0, m1 string }
	fits := make(map[pair]float64)
	for _, m0 := range modelList[0] {
		for _, m1 := range modelList[1] {
			key := fast5.JointName(m0, m1)
			old := rs.Params[2][key]
			r := train(jointPairs(m0, m1), trans, old)
			logRound(rs, 2, key, old, r.Params, math.Inf(-1), r.Fit, 0)
			rs.Params[2][key] = r.Params
			fits[pair{m0, m1}] = r.Fit
		}
	}

	// model selection is forced when scaling strands together
	best := pair{modelList[0][0], modelList[1][0]}
	for _, m0 := range modelList[0] {
		for _, m1 := range modelList[1] {
			if fits[pair{m0, m1}] > fits[best] {
				best = pair{m0, m1}
			}
		}
	}
	rs.PreferredModel[0] = best.m0
	rs.PreferredModel[1] = best.m1
	key := fast5.JointName(best.m0, best.m1)
	log.WithFields(logrus.Fields{"read": rs.ReadID, "strand": 2, "model": key}).Debug("selected_model")

	params, fit, _ := refine(cfg, train, jointPairs(best.m0, best.m1), trans,
		rs, 2, key, rs.Params[2][key], fits[best])
	rs.Params[2][key] = params
	rs.Params[0][best.m0] = params
	rs.Params[1][best.m1] = params
	rs.Fit[2][key] = fit
	rs.Fit[0][best.m0] = fit
	rs.Fit[1][best.m1] = fit
}
