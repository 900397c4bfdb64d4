package report

import (
	"strconv"

	"busmon-analytics/internal/segment"
	"busmon-analytics/internal/threshold"
)

// Voltage output table names.
const (
	AllResultsFile        = "all_results.csv"
	FlaggedFile           = "flagged_steady_state.csv"
	SummaryFile           = "summary_stats.csv"
	DCComparisonFile      = "dc_comparison.csv"
	DynamicThresholdsFile = "dynamic_thresholds.csv"
	RunFlagsFile          = "run_flags.csv"
	SkippedRunsFile       = "skipped_runs.csv"
)

var groupingHeader = []string{"run_id", "ofp", "test_case", "unit_id", "station", "save", "test_run", "dc_folder"}

var recordHeader = append(append([]string(nil), groupingHeader...),
	"label", "voltage_column",
	"n_points", "mean_voltage", "median_voltage", "std", "variance",
	"min_voltage", "max_voltage", "range", "cv", "iqr",
	"slope", "abs_slope", "r_squared",
	"threshold_mode", "flagged", "flags", "flag_reasons",
)

func groupingRow(g segment.Grouping) []string {
	return []string{g.RunID, g.OFP, g.TestCase, g.UnitID, g.Station, g.Save, g.TestRun, g.DCFolder}
}

func recordRow(r segment.Record) []string {
	return append(groupingRow(r.Grouping),
		r.Label.String(), r.VoltageColumn,
		strconv.Itoa(r.N), formatFloat(r.Mean), formatFloat(r.Median), formatFloat(r.Std), formatFloat(r.Variance),
		formatFloat(r.Min), formatFloat(r.Max), formatFloat(r.Range), formatFloat(r.CV), formatFloat(r.IQR),
		formatFloat(r.Slope), formatFloat(r.AbsSlope), formatFloat(r.RSquared),
		r.Mode, formatBool(r.Flagged), r.Flags, r.FlagReasonText(),
	)
}

// WriteVoltage writes every table of a segment analysis and returns the paths
// written. The flagged and threshold tables are omitted when empty.
func (w *Writer) WriteVoltage(res *segment.Result) ([]string, error) {
	var written []string
	emit := func(name string, header []string, rows [][]string, always bool) error {
		if !always && len(rows) == 0 {
			return nil
		}
		path, err := w.write(name, header, rows)
		if err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	steps := []struct {
		name   string
		header []string
		rows   [][]string
		always bool
	}{
		{AllResultsFile, recordHeader, recordRows(res.Records), true},
		{FlaggedFile, recordHeader, recordRows(res.Flagged), false},
		{SummaryFile, summaryHeader, summaryRows(res.ByTestCase), true},
		{DCComparisonFile, dcHeader, dcRows(res.ByDCFolder), true},
		{DynamicThresholdsFile, thresholdHeader, thresholdRows(res.Thresholds), false},
		{RunFlagsFile, append(append([]string(nil), groupingHeader...), "is_flagged"), runFlagRows(res.Runs), true},
		{SkippedRunsFile, []string{"run_id", "pass", "reason"}, skipRows(res.Skipped), false},
	}
	for _, s := range steps {
		if err := emit(s.name, s.header, s.rows, s.always); err != nil {
			return written, err
		}
	}
	return written, nil
}

func recordRows(records []segment.Record) [][]string {
	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = recordRow(r)
	}
	return rows
}

var summaryHeader = []string{
	"test_case", "label", "ofp", "segments",
	"mean_voltage_mean", "mean_voltage_std", "mean_voltage_min", "mean_voltage_max",
	"variance_mean", "variance_max", "cv_mean", "cv_max",
	"n_points_sum", "flagged_sum",
}

func summaryRows(summaries []segment.Summary) [][]string {
	rows := make([][]string, len(summaries))
	for i, s := range summaries {
		rows[i] = []string{
			s.TestCase, s.Label.String(), s.OFP, strconv.Itoa(s.Segments),
			formatFloat(s.MeanVoltageMean), formatFloat(s.MeanVoltageStd), formatFloat(s.MeanVoltageMin), formatFloat(s.MeanVoltageMax),
			formatFloat(s.VarianceMean), formatFloat(s.VarianceMax), formatFloat(s.CVMean), formatFloat(s.CVMax),
			strconv.Itoa(s.Points), strconv.Itoa(s.FlaggedCount),
		}
	}
	return rows
}

var dcHeader = []string{"dc_folder", "label", "mean_voltage_mean", "mean_voltage_std", "cv_mean", "flagged_sum", "n_points_sum"}

func dcRows(summaries []segment.Summary) [][]string {
	rows := make([][]string, len(summaries))
	for i, s := range summaries {
		rows[i] = []string{
			s.DCFolder, s.Label.String(),
			formatFloat(s.MeanVoltageMean), formatFloat(s.MeanVoltageStd), formatFloat(s.CVMean),
			strconv.Itoa(s.FlaggedCount), strconv.Itoa(s.Points),
		}
	}
	return rows
}

var thresholdHeader = []string{"ofp", "test_case", "metric", "min_threshold", "max_threshold"}

func thresholdRows(t threshold.Table) [][]string {
	var rows [][]string
	for _, r := range t.Rows() {
		rows = append(rows, []string{r.OFP, r.TestCase, string(r.Metric), formatFloat(r.Min), formatFloat(r.Max)})
	}
	return rows
}

func runFlagRows(runs []segment.RunFlag) [][]string {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = append(groupingRow(r.Grouping), formatBool(r.Flagged))
	}
	return rows
}

func skipRows(skips []segment.Skip) [][]string {
	rows := make([][]string, len(skips))
	for i, s := range skips {
		rows[i] = []string{s.RunID, string(s.Pass), s.Reason}
	}
	return rows
}
