// Package threshold holds threshold sets, the all-metrics-fail evaluator and
// the builder that derives per-group dynamic bounds from a steady-state baseline.
package threshold

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"busmon-analytics/internal/stats"
)

// RoundPlaces is the precision values and bounds are compared at.
const RoundPlaces int32 = 4

// DefaultFixedMax is used for a tracked metric a fixed set leaves unbounded.
const DefaultFixedMax = 1.0

// Mode selects how a Set is enforced.
type Mode int

const (
	// Fixed enforces the upper bound only.
	Fixed Mode = iota
	// Dynamic enforces both bounds and skips metrics missing either one.
	Dynamic
)

func (m Mode) String() string {
	if m == Dynamic {
		return "dynamic"
	}
	return "fixed"
}

// Bounds is an optional [Min, Max] interval.
type Bounds struct {
	Min    float64
	Max    float64
	HasMin bool
	HasMax bool
}

// Between returns closed bounds.
func Between(lo, hi float64) Bounds {
	return Bounds{Min: lo, Max: hi, HasMin: true, HasMax: true}
}

// AtMost returns an upper bound only.
func AtMost(hi float64) Bounds {
	return Bounds{Max: hi, HasMax: true}
}

// Set maps a tracked metric to its bounds.
type Set map[stats.Metric]Bounds

// Key identifies a dynamic threshold group.
type Key struct {
	OFP      string
	TestCase string
}

func (k Key) String() string {
	return k.OFP + "_" + k.TestCase
}

// Table is the set of dynamic thresholds keyed by group.
type Table map[Key]Set

// Lookup returns the set for key, if one was derived.
func (t Table) Lookup(key Key) (Set, bool) {
	s, ok := t[key]
	return s, ok
}

// Row is one (group, metric) line of a threshold table.
type Row struct {
	OFP      string
	TestCase string
	Metric   stats.Metric
	Min      float64
	Max      float64
}

// Rows flattens the table in key order, tracked-metric order within a key.
func (t Table) Rows() []Row {
	keys := make([]Key, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].OFP != keys[j].OFP {
			return keys[i].OFP < keys[j].OFP
		}
		return keys[i].TestCase < keys[j].TestCase
	})

	rows := make([]Row, 0, len(keys)*len(stats.Tracked))
	for _, k := range keys {
		set := t[k]
		for _, metric := range stats.Tracked {
			b, ok := set[metric]
			if !ok || !b.HasMin || !b.HasMax {
				continue
			}
			rows = append(rows, Row{OFP: k.OFP, TestCase: k.TestCase, Metric: metric, Min: b.Min, Max: b.Max})
		}
	}
	return rows
}

// Evaluate checks the tracked metrics of m against set. Reasons are returned
// only when every tracked metric failed; any partial failure yields nil.
func Evaluate(m stats.Metrics, set Set, mode Mode) []string {
	reasons := make([]string, 0, len(stats.Tracked))
	for _, metric := range stats.Tracked {
		value, _ := m.Value(metric)
		if reason, failed := check(metric, value, set[metric], mode); failed {
			reasons = append(reasons, reason)
		}
	}
	if len(reasons) != len(stats.Tracked) {
		return nil
	}
	return reasons
}

func check(metric stats.Metric, value float64, b Bounds, mode Mode) (string, bool) {
	v, ok := round(value)
	if !ok {
		return "", false
	}

	if mode == Fixed {
		limit := DefaultFixedMax
		if b.HasMax {
			limit = b.Max
		}
		hi, ok := round(limit)
		if ok && v.GreaterThan(hi) {
			return reason(metric, value, ">", limit, mode), true
		}
		return "", false
	}

	if !b.HasMin || !b.HasMax {
		return "", false
	}
	lo, okLo := round(b.Min)
	hi, okHi := round(b.Max)
	if !okLo || !okHi {
		return "", false
	}
	switch {
	case v.LessThan(lo):
		return reason(metric, value, "<", b.Min, mode), true
	case v.GreaterThan(hi):
		return reason(metric, value, ">", b.Max, mode), true
	}
	return "", false
}

func round(v float64) (decimal.Decimal, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Decimal{}, false
	}
	return decimal.NewFromFloat(v).Round(RoundPlaces), true
}

func reason(metric stats.Metric, value float64, cmp string, bound float64, mode Mode) string {
	return fmt.Sprintf("%s %s %s %s (%s)",
		DisplayName(metric),
		decimal.NewFromFloat(value).StringFixed(RoundPlaces),
		cmp,
		decimal.NewFromFloat(bound).StringFixed(RoundPlaces),
		mode,
	)
}

// DisplayName renders a metric for humans: "abs_slope" -> "Abs Slope".
func DisplayName(metric stats.Metric) string {
	if metric == stats.IQR {
		return "IQR"
	}
	words := strings.Split(string(metric), "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// ParseMetric resolves a configured metric name. "slope" and "max_<metric>"
// spellings are accepted.
func ParseMetric(name string) (stats.Metric, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "max_")
	if n == "slope" {
		n = string(stats.AbsSlope)
	}
	for _, m := range stats.Tracked {
		if string(m) == n {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown threshold metric %q", name)
}

// FixedSet builds an upper-bound-only set from metric name to max.
func FixedSet(maxes map[string]float64) (Set, error) {
	set := make(Set, len(maxes))
	for name, limit := range maxes {
		metric, err := ParseMetric(name)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(limit) || math.IsInf(limit, 0) || limit < 0 {
			return nil, fmt.Errorf("threshold %s must be a finite non-negative number", name)
		}
		set[metric] = AtMost(limit)
	}
	return set, nil
}
