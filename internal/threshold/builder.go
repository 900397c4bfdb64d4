package threshold

import (
	"math"

	"busmon-analytics/internal/label"
	"busmon-analytics/internal/stats"
)

const (
	// MinBaselineSamples is the smallest steady-state baseline a group needs
	// before dynamic bounds are derived for it.
	MinBaselineSamples = 3
	// DefaultSpread is the fraction of the baseline deviation added on each side of the mean.
	DefaultSpread = 0.5
)

// Observation is one baseline record fed to the builder.
type Observation struct {
	Key     Key
	Label   label.Label
	Metrics stats.Metrics
}

// Builder derives dynamic thresholds from baseline observations.
type Builder struct {
	minSamples int
	spread     float64
}

// NewBuilder returns a builder. minSamples below MinBaselineSamples and a
// non-positive spread fall back to the defaults.
func NewBuilder(minSamples int, spread float64) *Builder {
	if minSamples < MinBaselineSamples {
		minSamples = MinBaselineSamples
	}
	if spread <= 0 || math.IsNaN(spread) || math.IsInf(spread, 0) {
		spread = DefaultSpread
	}
	return &Builder{minSamples: minSamples, spread: spread}
}

// Build groups steady-state observations by key and sets, per tracked metric,
// max = mean + spread*std and min = max(0, mean - spread*std). Groups with too
// few observations are left out of the table.
func (b *Builder) Build(observations []Observation) Table {
	groups := make(map[Key][]stats.Metrics)
	for _, o := range observations {
		if !o.Label.IsSteadyState() {
			continue
		}
		groups[o.Key] = append(groups[o.Key], o.Metrics)
	}

	table := make(Table, len(groups))
	for key, samples := range groups {
		if len(samples) < b.minSamples {
			continue
		}
		set := make(Set, len(stats.Tracked))
		values := make([]float64, len(samples))
		for _, metric := range stats.Tracked {
			for i, m := range samples {
				values[i], _ = m.Value(metric)
			}
			mean, std := stats.MeanStd(values)
			hi := mean + b.spread*std
			lo := math.Max(0, mean-b.spread*std)
			set[metric] = Between(lo, hi)
		}
		table[key] = set
	}
	return table
}
