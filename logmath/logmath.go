// Package logmath provides numerically stable log-domain primitives used
// by the decoding and training kernels.
package logmath

import "math"

const (
	logTwoPi = 1.8378770664093453 // log(2*pi)

	// Standard deviations below this are treated as singular and the
	// corresponding density is -Inf.
	minSigma = 1e-10
)

// LogSumExp returns log(exp(a) + exp(b)).  -Inf is absorbing on both sides.
func LogSumExp(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if math.IsInf(b, -1) {
		return a
	}
	return a + math.Log1p(math.Exp(b-a))
}

// LogSumExpSlice returns log(sum_i exp(x[i])) computed against the slice
// maximum.  An empty slice or a slice of -Inf values yields -Inf.
func LogSumExpSlice(x []float64) float64 {
	mx := math.Inf(-1)
	for _, v := range x {
		if v > mx {
			mx = v
		}
	}
	if math.IsInf(mx, -1) {
		return mx
	}
	var s float64
	for _, v := range x {
		s += math.Exp(v - mx)
	}
	return mx + math.Log(s)
}

// NormalLogPdf returns the natural-log density of N(mu, sigma^2) at x.
// A non-positive or underflowing sigma yields -Inf.
func NormalLogPdf(x, mu, sigma float64) float64 {
	if !(sigma > minSigma) {
		return math.Inf(-1)
	}
	z := (x - mu) / sigma
	return -math.Log(sigma) - (logTwoPi+z*z)/2
}

// InvGaussLogPdf returns the natural-log density of the inverse-Gaussian
// distribution with mean mu and shape lambda at x.  Non-positive arguments
// or parameters yield -Inf.
func InvGaussLogPdf(x, mu, lambda float64) float64 {
	if !(x > 0) || !(mu > 0) || !(lambda > minSigma) {
		return math.Inf(-1)
	}
	d := x - mu
	return (math.Log(lambda)-logTwoPi-3*math.Log(x))/2 - lambda*d*d/(2*mu*mu*x)
}
