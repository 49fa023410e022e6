package analytics

import "math"

// Fit is an ordinary least-squares line y = Intercept + Slope*x.
type Fit struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
	R2        float64 `json:"r2"`
	N         int     `json:"n"`
}

// At evaluates the fitted line.
func (f Fit) At(x float64) float64 {
	return f.Intercept + f.Slope*x
}

// LinearFit fits ys against xs. It returns false when fewer than two
// points are given or all xs are equal. A constant ys series has R2 = 0:
// there is no variance to explain, so no trend is claimed.
func LinearFit(xs, ys []float64) (Fit, bool) {
	n := len(xs)
	if n != len(ys) || n < 2 {
		return Fit{N: n}, false
	}

	var sumX, sumY float64
	for i := range n {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var sxx, sxy, syy float64
	for i := range n {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	if sxx == 0 {
		return Fit{N: n}, false
	}

	slope := sxy / sxx
	fit := Fit{
		Slope:     slope,
		Intercept: meanY - slope*meanX,
		N:         n,
	}
	if syy > 0 {
		fit.R2 = math.Min(1, (sxy*sxy)/(sxx*syy))
	}
	return fit, true
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var s float64
	for _, v := range vs {
		s += v
	}
	return s / float64(len(vs))
}

// stddev is the population standard deviation.
func stddev(vs []float64) float64 {
	if len(vs) < 2 {
		return 0
	}
	m := mean(vs)
	var ss float64
	for _, v := range vs {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(vs)))
}
