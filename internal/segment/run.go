// Package segment runs the two-pass steady-state voltage analysis: a baseline
// pass that collects per-run label metrics, derivation of dynamic thresholds
// per (OFP, test case), and a flagging pass that re-scores every run.
package segment

import (
	"busmon-analytics/internal/label"
	"busmon-analytics/internal/stats"
	"busmon-analytics/internal/table"
	"busmon-analytics/internal/threshold"
)

// Input columns.
const (
	ColRunID    = "run_id"
	ColStatus   = "predicted_status"
	ColOFP      = "ofp"
	ColTestCase = "test_case"
	ColUnitID   = "unit_id"
	ColStation  = "station"
	ColSave     = "save"
	ColTestRun  = "test_run"
	ColDCFolder = "dc_folder"
)

// NA fills a grouping column the input does not carry.
const NA = "NA"

// Grouping identifies the run a record was computed from.
type Grouping struct {
	RunID    string
	OFP      string
	TestCase string
	UnitID   string
	Station  string
	Save     string
	TestRun  string
	DCFolder string
}

// Key is the dynamic threshold group of g.
func (g Grouping) Key() threshold.Key {
	return threshold.Key{OFP: g.OFP, TestCase: g.TestCase}
}

// Reading is one labelled voltage cell, still unparsed.
type Reading struct {
	Label label.Label
	Raw   string
}

// Run is every reading sharing one run identifier.
type Run struct {
	Grouping      Grouping
	VoltageColumn string
	Readings      []Reading
}

// Record is the metric row of one (run, label) pair.
type Record struct {
	Grouping
	stats.Metrics

	Label         label.Label
	VoltageColumn string
	Mode          string
	Flagged       bool
	Flags         string
	FlagReasons   []string
}

// Partition splits t by run_id in order of first appearance. Grouping columns
// are read from each run's first row.
func Partition(t *table.Table, voltageColumn string, labels *label.Translator) ([]Run, error) {
	if err := t.Require(ColRunID, ColStatus, voltageColumn); err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var runs []Run
	for _, row := range t.Rows {
		id := t.Get(row, ColRunID)
		i, ok := index[id]
		if !ok {
			i = len(runs)
			index[id] = i
			runs = append(runs, Run{Grouping: grouping(t, row, id), VoltageColumn: voltageColumn})
		}
		runs[i].Readings = append(runs[i].Readings, Reading{
			Label: labels.Parse(t.Get(row, ColStatus)),
			Raw:   t.Get(row, voltageColumn),
		})
	}
	return runs, nil
}

func grouping(t *table.Table, row []string, runID string) Grouping {
	get := func(column string) string {
		if v, ok := t.Lookup(row, column); ok && v != "" {
			return v
		}
		return NA
	}
	return Grouping{
		RunID:    runID,
		OFP:      get(ColOFP),
		TestCase: get(ColTestCase),
		UnitID:   get(ColUnitID),
		Station:  get(ColStation),
		Save:     get(ColSave),
		TestRun:  get(ColTestRun),
		DCFolder: get(ColDCFolder),
	}
}
