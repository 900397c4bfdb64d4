// Package stats computes the descriptive statistics and linear trend used to
// characterise a voltage segment.
package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Metric names a tracked statistic.
type Metric string

const (
	Variance Metric = "variance"
	Std      Metric = "std"
	AbsSlope Metric = "abs_slope"
	IQR      Metric = "iqr"
)

// Tracked lists the metrics every threshold check evaluates, in reporting order.
var Tracked = []Metric{Variance, Std, AbsSlope, IQR}

// Metrics holds the statistics of one cleaned sample.
type Metrics struct {
	N        int
	Mean     float64
	Median   float64
	Std      float64
	Variance float64
	Min      float64
	Max      float64
	Range    float64
	CV       float64
	IQR      float64
	Slope    float64
	AbsSlope float64
	RSquared float64
}

// Value returns the tracked metric m.
func (m Metrics) Value(metric Metric) (float64, bool) {
	switch metric {
	case Variance:
		return m.Variance, true
	case Std:
		return m.Std, true
	case AbsSlope:
		return m.AbsSlope, true
	case IQR:
		return m.IQR, true
	}
	return 0, false
}

// Clean drops NaN and infinite readings.
func Clean(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Compute describes values. Missing readings (NaN) are dropped first; ok is
// false when nothing remains.
func Compute(values []float64) (Metrics, bool) {
	clean := Clean(values)
	if len(clean) == 0 {
		return Metrics{}, false
	}

	sorted := append([]float64(nil), clean...)
	sort.Float64s(sorted)

	m := Metrics{
		N:      len(clean),
		Min:    sorted[0],
		Max:    sorted[len(sorted)-1],
		Median: Quantile(sorted, 0.5),
	}
	m.Range = m.Max - m.Min
	m.IQR = Quantile(sorted, 0.75) - Quantile(sorted, 0.25)

	if m.N == 1 || m.Min == m.Max {
		// identical readings: spread and trend are exactly zero
		m.Mean = clean[0]
		return m, true
	}

	m.Mean, m.Variance = stat.MeanVariance(clean, nil)
	m.Std = math.Sqrt(m.Variance)
	if m.Mean != 0 {
		m.CV = m.Std / m.Mean
	}

	m.Slope, m.RSquared = Trend(clean)
	m.AbsSlope = math.Abs(m.Slope)
	return m, true
}

// Trend fits value against sample index by ordinary least squares and returns
// the slope and coefficient of determination.
func Trend(values []float64) (slope, rSquared float64) {
	if len(values) < 2 {
		return 0, 0
	}
	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, slope = stat.LinearRegression(xs, values, nil, false)
	r := stat.Correlation(xs, values, nil)
	if math.IsNaN(r) {
		return slope, 0
	}
	return slope, r * r
}

// Quantile interpolates linearly between closest ranks of an ascending sample
// (the "linear" definition, position (n-1)*p).
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 || p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}
	pos := float64(n-1) * p
	lo := int(math.Floor(pos))
	frac := pos - float64(lo)
	if lo+1 >= n {
		return sorted[n-1]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// MeanStd returns the mean and sample standard deviation of values. A single
// value has zero deviation.
func MeanStd(values []float64) (mean, std float64) {
	switch len(values) {
	case 0:
		return 0, 0
	case 1:
		return values[0], 0
	}
	return stat.MeanStdDev(values, nil)
}
