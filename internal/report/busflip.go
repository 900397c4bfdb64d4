package report

import (
	"strconv"
	"strings"

	"busmon-analytics/internal/busflip"
	"busmon-analytics/internal/scan"
)

// Bus and scan output table names.
const (
	FlipsFile       = "bus_flip_events.csv"
	FlipSummaryFile = "bus_flips.csv"
	GapsFile        = "message_gaps.csv"
	CountFile       = "substring_counts.csv"
	SourcesFile     = "sources_summary.csv"
)

// WriteFlips writes the flip list and its per-group summary. Nothing is
// written when no flips were found.
func (w *Writer) WriteFlips(res *busflip.Result) ([]string, error) {
	if len(res.Flips) == 0 {
		return nil, nil
	}

	flips := make([][]string, len(res.Flips))
	for i, f := range res.Flips {
		flips[i] = []string{
			f.UnitID, f.Station, f.Save, f.Transition, f.MsgType,
			f.TimestampBusA.String(), f.TimestampBusB.String(),
			f.GapMS.StringFixed(busflip.GapPlaces), f.Description,
		}
	}
	eventsPath, err := w.write(FlipsFile,
		[]string{"unit_id", "station", "save", "bus_transition", "msg_type", "timestamp_busA", "timestamp_busB", "timestamp_diff_ms", "decoded_description"},
		flips)
	if err != nil {
		return nil, err
	}

	summary := make([][]string, len(res.Summary))
	for i, c := range res.Summary {
		summary[i] = []string{c.UnitID, c.Station, c.Save, strconv.Itoa(c.Flips)}
	}
	summaryPath, err := w.write(FlipSummaryFile, []string{"unit_id", "station", "save", "flip_count"}, summary)
	if err != nil {
		return []string{eventsPath}, err
	}
	return []string{eventsPath, summaryPath}, nil
}

// WriteGaps writes one row of gap statistics per group.
func (w *Writer) WriteGaps(gaps []busflip.GapSummary) (string, error) {
	rows := make([][]string, len(gaps))
	for i, g := range gaps {
		rows[i] = []string{
			g.UnitID, g.Station, g.Save, strconv.Itoa(g.Messages), strconv.Itoa(g.Gaps.N),
			formatFloat(g.Gaps.Mean), formatFloat(g.Gaps.Median), formatFloat(g.Gaps.Std),
			formatFloat(g.Gaps.Min), formatFloat(g.Gaps.Max),
		}
	}
	return w.write(GapsFile,
		[]string{"unit_id", "station", "save", "messages", "gaps", "mean_ms", "median_ms", "std_ms", "min_ms", "max_ms"},
		rows)
}

// WriteCounts writes the per-file counts followed by a total row.
func (w *Writer) WriteCounts(r *scan.CountReport) (string, error) {
	rows := make([][]string, 0, len(r.Files)+1)
	for _, f := range r.Files {
		errMsg := ""
		if f.Err != nil {
			errMsg = f.Err.Error()
		}
		rows = append(rows, []string{f.File, strconv.Itoa(f.Count), errMsg})
	}
	rows = append(rows, []string{"TOTAL", strconv.Itoa(r.Total), ""})
	return w.write(CountFile, []string{"file", "count_" + r.Needle, "error"}, rows)
}

// WriteSources writes one row per inspected listing.
func (w *Writer) WriteSources(r *scan.SourcesReport) (string, error) {
	rows := make([][]string, len(r.Files))
	for i, f := range r.Files {
		flagged := make([]string, len(f.FlaggedSaves))
		for j, s := range f.FlaggedSaves {
			flagged[j] = strconv.Itoa(s)
		}
		rows[i] = []string{f.Name, f.File, strings.Join(f.Stations, ";"), strings.Join(f.Saves, ";"), formatBool(f.Flagged), strings.Join(flagged, ";")}
	}
	return w.write(SourcesFile, []string{"name", "file", "stations", "saves", "flagged", "flagged_saves"}, rows)
}
