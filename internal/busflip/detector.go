package busflip

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultThresholdMS is the widest gap still counted as a flip (exclusive).
	DefaultThresholdMS = 100
	// GapPlaces is the rounding of reported gaps in milliseconds.
	GapPlaces int32 = 3
)

// DefaultActiveTokens are the DC state values treated as energised.
var DefaultActiveTokens = []string{"1", "true", "on", "yes"}

var (
	messageTypePattern = regexp.MustCompile(`\((\d+)-\[([^\]]+)\]-(\d+)\)`)
	thousand           = decimal.NewFromInt(1000)
)

// MessageType returns the bracketed type token of a decoded description, or
// "" when the description carries none.
func MessageType(description string) string {
	m := messageTypePattern.FindStringSubmatch(description)
	if m == nil {
		return ""
	}
	return m[2]
}

// Flip is one qualifying bus transition between adjacent events.
type Flip struct {
	GroupKey
	Transition    string
	MsgType       string
	TimestampBusA decimal.Decimal
	TimestampBusB decimal.Decimal
	GapMS         decimal.Decimal
	Description   string
}

// Count is the number of flips found in one group.
type Count struct {
	GroupKey
	Flips int
}

// Result holds every flip in group order plus the per-group counts.
type Result struct {
	Flips   []Flip
	Summary []Count
	Groups  int
}

// Options tune a Detector.
type Options struct {
	ThresholdMS  float64
	ActiveTokens []string
	Workers      int
}

// Detector compares each event with its immediate predecessor inside a
// (unit, station, save) group.
type Detector struct {
	threshold decimal.Decimal
	active    map[string]struct{}
	workers   int
	logger    zerolog.Logger
}

// NewDetector builds a detector, applying defaults for zero options.
func NewDetector(opts Options, logger zerolog.Logger) *Detector {
	thresholdMS := opts.ThresholdMS
	if thresholdMS <= 0 {
		thresholdMS = DefaultThresholdMS
	}
	tokens := opts.ActiveTokens
	if len(tokens) == 0 {
		tokens = DefaultActiveTokens
	}
	active := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		active[strings.ToUpper(strings.TrimSpace(tok))] = struct{}{}
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	return &Detector{
		threshold: decimal.NewFromFloat(thresholdMS),
		active:    active,
		workers:   workers,
		logger:    logger.With().Str("component", "flip_detector").Logger(),
	}
}

// Detect scans every group of events. Groups are processed independently and
// reported in ascending key order.
func (d *Detector) Detect(ctx context.Context, events []Event) (*Result, error) {
	keys, groups := Group(events)

	perGroup := make([][]Flip, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)
	for i, key := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perGroup[i] = d.DetectGroup(groups[key])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Groups: len(keys)}
	for i, key := range keys {
		res.Flips = append(res.Flips, perGroup[i]...)
		if n := len(perGroup[i]); n > 0 {
			res.Summary = append(res.Summary, Count{GroupKey: key, Flips: n})
		}
	}
	sort.SliceStable(res.Summary, func(i, j int) bool {
		return res.Summary[i].Flips > res.Summary[j].Flips
	})

	d.logger.Info().
		Int("groups", res.Groups).
		Int("events", len(events)).
		Int("flips", len(res.Flips)).
		Msg("flip detection complete")
	return res, nil
}

// DetectGroup scans the events of a single group. Events are ordered by
// timestamp first; fewer than two events yield nothing.
func (d *Detector) DetectGroup(events []Event) []Flip {
	if len(events) < 2 {
		return nil
	}
	sorted := sortByTime(events)

	var flips []Flip
	for i := 1; i < len(sorted); i++ {
		prev, curr := sorted[i-1], sorted[i]
		if prev.Bus == curr.Bus || prev.Description != curr.Description {
			continue
		}
		gap := curr.Timestamp.Sub(prev.Timestamp).Mul(thousand)
		if !gap.LessThan(d.threshold) {
			continue
		}
		if !d.powered(prev) || !d.powered(curr) {
			continue
		}
		flips = append(flips, Flip{
			GroupKey:      curr.GroupKey,
			Transition:    prev.Bus + " to " + curr.Bus,
			MsgType:       MessageType(curr.Description),
			TimestampBusA: stampFor("A", prev, curr),
			TimestampBusB: stampFor("B", prev, curr),
			GapMS:         gap.Round(GapPlaces),
			Description:   curr.Description,
		})
	}
	return flips
}

// powered is true when either DC channel reads active, or when the source
// carries no DC columns at all.
func (d *Detector) powered(ev Event) bool {
	if ev.DC1 == nil && ev.DC2 == nil {
		return true
	}
	for _, state := range []*string{ev.DC1, ev.DC2} {
		if state == nil {
			continue
		}
		if _, ok := d.active[strings.ToUpper(strings.TrimSpace(*state))]; ok {
			return true
		}
	}
	return false
}

func stampFor(bus string, prev, curr Event) decimal.Decimal {
	if prev.Bus == bus {
		return prev.Timestamp
	}
	return curr.Timestamp
}

// Group splits events by key. Keys come back in ascending order.
func Group(events []Event) ([]GroupKey, map[GroupKey][]Event) {
	groups := make(map[GroupKey][]Event)
	for _, ev := range events {
		groups[ev.GroupKey] = append(groups[ev.GroupKey], ev)
	}
	keys := make([]GroupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })
	return keys, groups
}

func sortByTime(events []Event) []Event {
	sorted := append([]Event(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.LessThan(sorted[j].Timestamp)
	})
	return sorted
}
