package busflip

import "busmon-analytics/internal/stats"

// GapSummary describes the spacing between consecutive messages of a group,
// in milliseconds.
type GapSummary struct {
	GroupKey
	Messages int
	Gaps     stats.Metrics
}

// Gaps computes inter-message gap statistics for every group holding at least
// two events. Groups are returned in ascending key order.
func Gaps(events []Event) []GapSummary {
	keys, groups := Group(events)
	out := make([]GapSummary, 0, len(keys))
	for _, key := range keys {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		m, ok := stats.Compute(IntervalsMS(group))
		if !ok {
			continue
		}
		out = append(out, GapSummary{GroupKey: key, Messages: len(group), Gaps: m})
	}
	return out
}

// IntervalsMS returns the time-ordered gaps between successive events.
func IntervalsMS(events []Event) []float64 {
	if len(events) < 2 {
		return nil
	}
	sorted := sortByTime(events)
	gaps := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].Timestamp.Sub(sorted[i-1].Timestamp).Mul(thousand).Round(GapPlaces)
		gaps = append(gaps, gap.InexactFloat64())
	}
	return gaps
}
