package segment

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"busmon-analytics/internal/label"
	"busmon-analytics/internal/stats"
	"busmon-analytics/internal/threshold"
)

// FlagAllFailed is the Flags value of a flagged record.
const FlagAllFailed = "all_thresholds_failed"

// scoring decides how steady-state records of a run are evaluated. A nil
// scoring computes metrics only.
type scoring struct {
	dynamic threshold.Table
	fixed   threshold.Set
}

func (s *scoring) evaluate(g Grouping, m stats.Metrics) (threshold.Mode, []string) {
	if set, ok := s.dynamic.Lookup(g.Key()); ok {
		return threshold.Dynamic, threshold.Evaluate(m, set, threshold.Dynamic)
	}
	return threshold.Fixed, threshold.Evaluate(m, s.fixed, threshold.Fixed)
}

// analyzeRun computes one record per label present in run, in order of first
// appearance. Any malformed reading fails the whole run.
func analyzeRun(run Run, sc *scoring) ([]Record, error) {
	values, order, err := readingsByLabel(run)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(order))
	for _, l := range order {
		m, ok := stats.Compute(values[l])
		if !ok {
			continue
		}
		if name, bad := nonFinite(m); bad {
			return nil, fmt.Errorf("run %s label %s: %s is not finite", run.Grouping.RunID, l, name)
		}
		rec := Record{
			Grouping:      run.Grouping,
			Metrics:       m,
			Label:         l,
			VoltageColumn: run.VoltageColumn,
		}
		if sc != nil && l.IsSteadyState() {
			mode, reasons := sc.evaluate(run.Grouping, m)
			rec.Mode = mode.String()
			if len(reasons) > 0 {
				rec.Flagged = true
				rec.Flags = FlagAllFailed
				rec.FlagReasons = reasons
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// nonFinite names the first metric that overflowed.
func nonFinite(m stats.Metrics) (string, bool) {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"mean", m.Mean},
		{"variance", m.Variance},
		{"std", m.Std},
		{"cv", m.CV},
		{"range", m.Range},
		{"iqr", m.IQR},
		{"slope", m.Slope},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return f.name, true
		}
	}
	return "", false
}

func readingsByLabel(run Run) (map[label.Label][]float64, []label.Label, error) {
	values := make(map[label.Label][]float64)
	var order []label.Label
	for i, r := range run.Readings {
		if r.Label == label.Unknown {
			continue
		}
		v, err := parseReading(r.Raw)
		if err != nil {
			return nil, nil, fmt.Errorf("run %s reading %d: invalid %s value %q", run.Grouping.RunID, i+1, run.VoltageColumn, r.Raw)
		}
		if _, seen := values[r.Label]; !seen {
			order = append(order, r.Label)
		}
		values[r.Label] = append(values[r.Label], v)
	}
	return values, order, nil
}

// parseReading maps blank and NaN-like cells to NaN so they are dropped as
// missing rather than failing the run.
func parseReading(raw string) (float64, error) {
	switch strings.ToLower(raw) {
	case "", "nan", "na", "n/a", "null", "none":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(raw, 64)
}

// FlagReasonText joins reasons the way output tables carry them.
func (r Record) FlagReasonText() string {
	return strings.Join(r.FlagReasons, "; ")
}
