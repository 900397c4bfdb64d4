package segment

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"busmon-analytics/internal/label"
	"busmon-analytics/internal/stats"
)

// SummaryPlaces is the rounding applied to summary aggregates.
const SummaryPlaces int32 = 3

// Summary aggregates records sharing a summary key. Key fields a grouping
// does not use are left empty.
type Summary struct {
	TestCase string
	OFP      string
	DCFolder string
	Label    label.Label

	Segments        int
	MeanVoltageMean float64
	MeanVoltageStd  float64
	MeanVoltageMin  float64
	MeanVoltageMax  float64
	VarianceMean    float64
	VarianceMax     float64
	CVMean          float64
	CVMax           float64
	Points          int
	FlaggedCount    int
}

type summaryKey struct {
	TestCase string
	OFP      string
	DCFolder string
	Label    label.Label
}

// SummarizeByTestCase groups by (test case, label, OFP).
func SummarizeByTestCase(records []Record) []Summary {
	return summarize(records, func(r Record) summaryKey {
		return summaryKey{TestCase: r.TestCase, Label: r.Label, OFP: r.OFP}
	})
}

// SummarizeByDCFolder groups by (DC folder, label).
func SummarizeByDCFolder(records []Record) []Summary {
	return summarize(records, func(r Record) summaryKey {
		return summaryKey{DCFolder: r.DCFolder, Label: r.Label}
	})
}

func summarize(records []Record, keyOf func(Record) summaryKey) []Summary {
	groups := make(map[summaryKey][]Record)
	for _, r := range records {
		k := keyOf(r)
		groups[k] = append(groups[k], r)
	}

	keys := make([]summaryKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		switch {
		case a.TestCase != b.TestCase:
			return a.TestCase < b.TestCase
		case a.DCFolder != b.DCFolder:
			return a.DCFolder < b.DCFolder
		case a.Label != b.Label:
			return a.Label < b.Label
		}
		return a.OFP < b.OFP
	})

	out := make([]Summary, 0, len(keys))
	for _, k := range keys {
		group := groups[k]
		means := make([]float64, len(group))
		variances := make([]float64, len(group))
		cvs := make([]float64, len(group))
		s := Summary{TestCase: k.TestCase, OFP: k.OFP, DCFolder: k.DCFolder, Label: k.Label, Segments: len(group)}
		for i, r := range group {
			means[i] = r.Mean
			variances[i] = r.Variance
			cvs[i] = r.CV
			s.Points += r.N
			if r.Flagged {
				s.FlaggedCount++
			}
		}

		mean, std := stats.MeanStd(means)
		s.MeanVoltageMean = round(mean)
		s.MeanVoltageStd = round(std)
		s.MeanVoltageMin, s.MeanVoltageMax = extent(means)
		vm, _ := stats.MeanStd(variances)
		s.VarianceMean = round(vm)
		_, s.VarianceMax = extent(variances)
		cm, _ := stats.MeanStd(cvs)
		s.CVMean = round(cm)
		_, s.CVMax = extent(cvs)
		out = append(out, s)
	}
	return out
}

func extent(values []float64) (lo, hi float64) {
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return round(lo), round(hi)
}

func round(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(SummaryPlaces).InexactFloat64()
}
