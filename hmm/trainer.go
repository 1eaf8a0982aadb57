package hmm

import (
	"math"

	"github.com/raj347/nanocall/pore"
)

// TrainingPair couples one event window with the model it is fit
// against.  All pairs in a batch share the parameter vector being fit.
type TrainingPair struct {
	Events pore.EventSequence
	Model  *pore.Model
}

// TrainResult is the outcome of one EM round.  Fit is the total
// log-likelihood of the batch under the input parameters.  When Singular
// is set the estimators produced a non-finite or non-positive value and
// Params echoes the input vector.
type TrainResult struct {
	Params   pore.ModelParams
	Fit      float64
	Singular bool
}

// TrainFunc is the one-round trainer signature; the pipeline takes it as
// a value so the refinement loop does not care where rounds come from.
type TrainFunc func(pairs []TrainingPair, trans *StateTransitions, cur pore.ModelParams) TrainResult

// posterior weights below this contribute nothing to the estimators
const postEps = 1e-10

// denominator guard for the closed-form estimators
const denEps = 1e-12

// TrainOneRound runs one EM round: forward/backward under cur on every
// pair, then the closed-form posterior-weighted updates for the six
// scaling parameters.  The trainer is stateless; the caller owns the
// outer iteration.
func TrainOneRound(pairs []TrainingPair, trans *StateTransitions, cur pore.ModelParams) TrainResult {
	res := TrainResult{Params: cur, Fit: math.Inf(-1)}

	var fb ForwardBackward
	n := trans.N()

	// accumulators for the weighted least-squares fit of corrected event
	// means against model level means
	var sw, swx, swy, swxx, swxy float64
	// drift regression
	var sdtr, sdtt float64
	// noise-branch fits
	var ssdN, ssdD float64
	anySD := false

	type cell struct {
		pair int
		t    int
		s    uint32
		w    float64
	}
	var cells []cell

	fit := 0.0
	for pi, pair := range pairs {
		corrected := pair.Events.ApplyDriftCorrection(cur.Drift)
		pm := pair.Model.With(cur)
		fb.Fill(pm, trans, corrected)
		ll := fb.LogLikelihood()
		if math.IsInf(ll, -1) || math.IsNaN(ll) {
			res.Singular = true
			return res
		}
		fit += ll
		if pair.Model.EmitStdv {
			anySD = true
		}
		for t := 0; t < len(corrected); t++ {
			ev := corrected[t]
			for s := 0; s < n; s++ {
				w := math.Exp(fb.LogPosterior(t, uint32(s)))
				if w < postEps {
					continue
				}
				mu := pair.Model.LevelMean(uint32(s))
				sw += w
				swx += w * mu
				swy += w * ev.Mean
				swxx += w * mu * mu
				swxy += w * mu * ev.Mean
				cells = append(cells, cell{pair: pi, t: t, s: uint32(s), w: w})
			}
		}
	}
	res.Fit = fit

	det := sw*swxx - swx*swx
	if sw < denEps || math.Abs(det) < denEps {
		res.Singular = true
		return res
	}
	scale := (sw*swxy - swx*swy) / det
	shift := (swy - scale*swx) / sw

	// regress the raw-mean residual on start time
	for _, c := range cells {
		ev := pairs[c.pair].Events[c.t]
		mu := pairs[c.pair].Model.LevelMean(c.s)
		r := ev.Mean - (scale*mu + shift)
		sdtr += c.w * r * ev.Start
		sdtt += c.w * ev.Start * ev.Start
	}
	drift := cur.Drift
	if sdtt > denEps {
		drift = sdtr / sdtt
	}

	// posterior-weighted ratio of squared residuals to the level noise
	var svar float64
	for _, c := range cells {
		ev := pairs[c.pair].Events[c.t]
		mu := pairs[c.pair].Model.LevelMean(c.s)
		sg := pairs[c.pair].Model.LevelStdv(c.s)
		r := ev.Mean - drift*ev.Start - (scale*mu + shift)
		svar += c.w * r * r / (sg * sg)
	}
	vr := math.Sqrt(svar / sw)

	scaleSD, varSD := cur.ScaleSD, cur.VarSD
	if anySD {
		var swsd, swsdmu float64
		for _, c := range cells {
			pm := pairs[c.pair].Model
			if !pm.EmitStdv {
				continue
			}
			swsd += c.w * pairs[c.pair].Events[c.t].Stdv
			swsdmu += c.w * pm.SdMean(c.s)
		}
		if swsdmu < denEps {
			res.Singular = true
			return res
		}
		scaleSD = swsd / swsdmu
		for _, c := range cells {
			pm := pairs[c.pair].Model
			if !pm.EmitStdv {
				continue
			}
			x := pairs[c.pair].Events[c.t].Stdv
			if x <= 0 {
				continue
			}
			mu := pm.SdMean(c.s) * scaleSD
			d := x - mu
			ssdN += c.w * pm.SdLambda(c.s) * d * d / (mu * mu * x)
			ssdD += c.w
		}
		if ssdD < denEps {
			res.Singular = true
			return res
		}
		varSD = ssdN / ssdD
	}

	next := pore.ModelParams{
		Shift:   shift,
		Scale:   scale,
		Drift:   drift,
		Var:     vr,
		ScaleSD: scaleSD,
		VarSD:   varSD,
	}
	if !next.Valid() {
		res.Singular = true
		return res
	}
	res.Params = next
	return res
}
