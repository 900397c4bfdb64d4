// Package busflip finds rapid bus A/B transitions carrying duplicate payloads
// in bus-monitor recordings, and summarises inter-message timing.
package busflip

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"busmon-analytics/internal/table"
)

// Input columns.
const (
	ColUnitID      = "unit_id"
	ColStation     = "station"
	ColSave        = "save"
	ColBus         = "bus"
	ColTimestamp   = "timestamp"
	ColDescription = "decoded_description"
	ColDC1         = "dc1_state"
	ColDC2         = "dc2_state"
)

// RequiredColumns must be present in every event source.
var RequiredColumns = []string{ColUnitID, ColStation, ColSave, ColBus, ColTimestamp, ColDescription}

// GroupKey identifies one recording location.
type GroupKey struct {
	UnitID  string
	Station string
	Save    string
}

func (k GroupKey) less(o GroupKey) bool {
	if k.UnitID != o.UnitID {
		return k.UnitID < o.UnitID
	}
	if k.Station != o.Station {
		return k.Station < o.Station
	}
	return k.Save < o.Save
}

// Event is one bus-monitor record. Timestamp is in seconds. DC1 and DC2 are
// nil when the source has no such column.
type Event struct {
	GroupKey
	Bus         string
	Timestamp   decimal.Decimal
	Description string
	DC1         *string
	DC2         *string
}

// Skip records a group excluded from detection.
type Skip struct {
	Key    GroupKey
	Reason string
}

// Dataset is the parsed content of one or more event tables.
type Dataset struct {
	Events  []Event
	Invalid []Skip
}

// Load extracts events from t. A row with an unreadable timestamp excludes its
// whole group; missing required columns fail the load.
func Load(t *table.Table) (*Dataset, error) {
	if err := t.Require(RequiredColumns...); err != nil {
		return nil, err
	}

	_, hasDC1 := t.Lookup(nil, ColDC1)
	_, hasDC2 := t.Lookup(nil, ColDC2)

	invalid := make(map[GroupKey]string)
	var order []GroupKey
	events := make([]Event, 0, t.Len())
	for i, row := range t.Rows {
		key := GroupKey{
			UnitID:  t.Get(row, ColUnitID),
			Station: t.Get(row, ColStation),
			Save:    t.Get(row, ColSave),
		}
		ts, err := ParseTimestamp(t.Get(row, ColTimestamp))
		if err != nil {
			if _, seen := invalid[key]; !seen {
				invalid[key] = fmt.Sprintf("%s row %d: %v", t.Source, i+2, err)
				order = append(order, key)
			}
			continue
		}
		ev := Event{
			GroupKey:    key,
			Bus:         strings.ToUpper(t.Get(row, ColBus)),
			Timestamp:   ts,
			Description: t.Get(row, ColDescription),
		}
		if hasDC1 {
			v := t.Get(row, ColDC1)
			ev.DC1 = &v
		}
		if hasDC2 {
			v := t.Get(row, ColDC2)
			ev.DC2 = &v
		}
		events = append(events, ev)
	}

	ds := &Dataset{Events: events[:0]}
	for _, ev := range events {
		if _, bad := invalid[ev.GroupKey]; !bad {
			ds.Events = append(ds.Events, ev)
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i].less(order[j]) })
	for _, key := range order {
		ds.Invalid = append(ds.Invalid, Skip{Key: key, Reason: invalid[key]})
	}
	return ds, nil
}

// Merge appends other to d.
func (d *Dataset) Merge(other *Dataset) {
	d.Events = append(d.Events, other.Events...)
	d.Invalid = append(d.Invalid, other.Invalid...)
}

// ParseTimestamp accepts seconds as a decimal number or an RFC3339 time.
func ParseTimestamp(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Decimal{}, fmt.Errorf("empty timestamp")
	}
	if d, err := decimal.NewFromString(raw); err == nil {
		return d, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid timestamp %q", raw)
	}
	return decimal.New(ts.UnixNano(), -9), nil
}
