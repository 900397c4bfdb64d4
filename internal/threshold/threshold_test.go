package threshold

import (
	"math"
	"strings"
	"testing"

	"busmon-analytics/internal/label"
	"busmon-analytics/internal/stats"
)

func dynamicSet() Set {
	return Set{
		stats.Variance: Between(0.1, 1.5),
		stats.Std:      Between(0.2, 2.0),
		stats.AbsSlope: Between(0, 0.5),
		stats.IQR:      Between(0.1, 1.5),
	}
}

func fixedSet() Set {
	return Set{
		stats.Variance: AtMost(1.5),
		stats.Std:      AtMost(2.0),
		stats.AbsSlope: AtMost(0.5),
		stats.IQR:      AtMost(1.0),
	}
}

func TestEvaluateDynamicAllPass(t *testing.T) {
	m := stats.Metrics{Variance: 0.8, Std: 1.2, AbsSlope: 0.05, IQR: 0.9}
	if reasons := Evaluate(m, dynamicSet(), Dynamic); len(reasons) != 0 {
		t.Fatalf("expected no reasons, got %v", reasons)
	}
}

func TestEvaluateDynamicAllFail(t *testing.T) {
	m := stats.Metrics{Variance: 10, Std: 8, AbsSlope: 2, IQR: 5}
	reasons := Evaluate(m, dynamicSet(), Dynamic)
	if len(reasons) != 4 {
		t.Fatalf("expected 4 reasons, got %v", reasons)
	}
	if reasons[0] != "Variance 10.0000 > 1.5000 (dynamic)" {
		t.Fatalf("unexpected first reason %q", reasons[0])
	}
	if !strings.HasPrefix(reasons[2], "Abs Slope") || !strings.HasPrefix(reasons[3], "IQR") {
		t.Fatalf("reasons out of order: %v", reasons)
	}
}

func TestEvaluateDynamicBelowMinimum(t *testing.T) {
	m := stats.Metrics{Variance: 0.01, Std: 0.1, AbsSlope: 0, IQR: 0.01}
	set := dynamicSet()
	set[stats.AbsSlope] = Between(0.1, 0.5)
	reasons := Evaluate(m, set, Dynamic)
	if len(reasons) != 4 {
		t.Fatalf("expected 4 low failures, got %v", reasons)
	}
	for _, r := range reasons {
		if !strings.Contains(r, " < ") {
			t.Fatalf("expected low comparator in %q", r)
		}
	}
}

func TestEvaluateDynamicSkipsMissingBound(t *testing.T) {
	m := stats.Metrics{Variance: 10, Std: 8, AbsSlope: 2, IQR: 5}
	set := dynamicSet()
	set[stats.IQR] = AtMost(1.5)
	if reasons := Evaluate(m, set, Dynamic); reasons != nil {
		t.Fatalf("metric without both bounds cannot fail, got %v", reasons)
	}
}

func TestEvaluateFixedIgnoresLowerBound(t *testing.T) {
	m := stats.Metrics{Variance: 0, Std: 0, AbsSlope: 0, IQR: 0}
	set := Set{
		stats.Variance: Between(5, 10),
		stats.Std:      Between(5, 10),
		stats.AbsSlope: Between(5, 10),
		stats.IQR:      Between(5, 10),
	}
	if reasons := Evaluate(m, set, Fixed); reasons != nil {
		t.Fatalf("fixed mode must not check lower bounds, got %v", reasons)
	}
}

func TestEvaluateFixedAllFail(t *testing.T) {
	m := stats.Metrics{Variance: 10, Std: 8, AbsSlope: 2, IQR: 5}
	reasons := Evaluate(m, fixedSet(), Fixed)
	if len(reasons) != 4 {
		t.Fatalf("expected 4 reasons, got %v", reasons)
	}
	if reasons[1] != "Std 8.0000 > 2.0000 (fixed)" {
		t.Fatalf("unexpected reason %q", reasons[1])
	}
}

func TestEvaluateNeverPartial(t *testing.T) {
	cases := []stats.Metrics{
		{Variance: 10, Std: 8, AbsSlope: 2, IQR: 0.5},
		{Variance: 10, Std: 8, AbsSlope: 0.1, IQR: 0.5},
		{Variance: 10, Std: 1, AbsSlope: 0.1, IQR: 0.5},
	}
	for _, m := range cases {
		if reasons := Evaluate(m, fixedSet(), Fixed); len(reasons) != 0 {
			t.Fatalf("partial failure flagged %+v: %v", m, reasons)
		}
		if reasons := Evaluate(m, dynamicSet(), Dynamic); len(reasons) != 0 && len(reasons) != 4 {
			t.Fatalf("reason count must be 0 or 4, got %d", len(reasons))
		}
	}
}

func TestEvaluateComparesRoundedValues(t *testing.T) {
	// 1.50004 rounds to the bound and so does not exceed it
	m := stats.Metrics{Variance: 1.50004, Std: 8, AbsSlope: 2, IQR: 5}
	if reasons := Evaluate(m, fixedSet(), Fixed); reasons != nil {
		t.Fatalf("rounded value equal to bound must pass, got %v", reasons)
	}
}

func TestEvaluateFixedDefaultsMissingMax(t *testing.T) {
	m := stats.Metrics{Variance: 10, Std: 8, AbsSlope: 2, IQR: 5}
	set := fixedSet()
	delete(set, stats.IQR)
	reasons := Evaluate(m, set, Fixed)
	if len(reasons) != 4 || reasons[3] != "IQR 5.0000 > 1.0000 (fixed)" {
		t.Fatalf("missing fixed max should default to 1.0, got %v", reasons)
	}
}

func obs(key Key, l label.Label, v, s, a, i float64) Observation {
	return Observation{Key: key, Label: l, Metrics: stats.Metrics{Variance: v, Std: s, AbsSlope: a, IQR: i}}
}

func TestBuilderDerivesBounds(t *testing.T) {
	key := Key{OFP: "ofp1", TestCase: "tc1"}
	table := NewBuilder(3, 0.5).Build([]Observation{
		obs(key, label.SteadyState, 0.5, 0.7, 0.01, 0.3),
		obs(key, label.SteadyState, 0.6, 0.8, 0.02, 0.4),
		obs(key, label.SteadyState, 0.4, 0.6, 0.015, 0.35),
		obs(key, label.Transient, 99, 99, 99, 99),
	})
	set, ok := table.Lookup(key)
	if !ok {
		t.Fatal("expected thresholds for ofp1_tc1")
	}
	v := set[stats.Variance]
	if math.Abs(v.Max-0.55) > 1e-9 || math.Abs(v.Min-0.45) > 1e-9 {
		t.Fatalf("variance bounds = [%v, %v], want [0.45, 0.55]", v.Min, v.Max)
	}

	flagged := Evaluate(stats.Metrics{Variance: 10, Std: 10, AbsSlope: 10, IQR: 10}, set, Dynamic)
	if len(flagged) != 4 {
		t.Fatalf("outlier should fail all four checks, got %v", flagged)
	}
}

func TestBuilderSkipsSmallGroups(t *testing.T) {
	key := Key{OFP: "ofp1", TestCase: "tc1"}
	table := NewBuilder(3, 0.5).Build([]Observation{
		obs(key, label.SteadyState, 0.5, 0.7, 0.01, 0.3),
		obs(key, label.SteadyState, 0.6, 0.8, 0.02, 0.4),
	})
	if len(table) != 0 {
		t.Fatalf("expected no thresholds for two samples, got %v", table)
	}
}

func TestBuilderBoundsContainMeanAndStayNonNegative(t *testing.T) {
	key := Key{OFP: "o", TestCase: "t"}
	observations := []Observation{
		obs(key, label.SteadyState, 0.01, 0.1, 0.0, 0.02),
		obs(key, label.SteadyState, 5, 2.2, 0.9, 3),
		obs(key, label.SteadyState, 0.02, 0.14, 0.001, 0.01),
		obs(key, label.SteadyState, 0.03, 0.17, 0.002, 0.03),
	}
	set := NewBuilder(3, 0.5).Build(observations)[key]
	means := stats.Metrics{}
	for _, metric := range stats.Tracked {
		values := make([]float64, len(observations))
		for i, o := range observations {
			values[i], _ = o.Metrics.Value(metric)
		}
		mean, _ := stats.MeanStd(values)
		b := set[metric]
		if b.Min < 0 || b.Min > mean || mean > b.Max {
			t.Fatalf("%s bounds [%v,%v] do not contain mean %v", metric, b.Min, b.Max, mean)
		}
		switch metric {
		case stats.Variance:
			means.Variance = mean
		case stats.Std:
			means.Std = mean
		case stats.AbsSlope:
			means.AbsSlope = mean
		case stats.IQR:
			means.IQR = mean
		}
	}
	if reasons := Evaluate(means, set, Dynamic); reasons != nil {
		t.Fatalf("group means must never flag against their own thresholds: %v", reasons)
	}
}

func TestTableRowsOrdered(t *testing.T) {
	table := Table{
		{OFP: "b", TestCase: "1"}: dynamicSet(),
		{OFP: "a", TestCase: "2"}: dynamicSet(),
	}
	rows := table.Rows()
	if len(rows) != 8 {
		t.Fatalf("expected 8 rows, got %d", len(rows))
	}
	if rows[0].OFP != "a" || rows[0].Metric != stats.Variance || rows[4].OFP != "b" {
		t.Fatalf("rows not ordered: %+v", rows[:5])
	}
}

func TestFixedSetParsesNames(t *testing.T) {
	set, err := FixedSet(map[string]float64{"max_variance": 1.5, "slope": 0.5})
	if err != nil {
		t.Fatalf("FixedSet: %v", err)
	}
	if set[stats.AbsSlope].Max != 0.5 || set[stats.Variance].Max != 1.5 {
		t.Fatalf("unexpected set %+v", set)
	}
	if _, err := FixedSet(map[string]float64{"kurtosis": 1}); err == nil {
		t.Fatal("unknown metric should fail")
	}
}
