package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"busmon-analytics/internal/alerting"
	"busmon-analytics/internal/label"
	"busmon-analytics/internal/metrics"
	"busmon-analytics/internal/report"
	"busmon-analytics/internal/segment"
	"busmon-analytics/internal/storage"
	"busmon-analytics/internal/threshold"
)

// AnalyzeVoltage runs the two-pass steady-state analysis over every input file
// and writes the output tables.
func (a *App) AnalyzeVoltage(ctx context.Context, opts VoltageOptions) (*segment.Result, error) {
	if len(opts.Inputs) == 0 {
		return nil, errors.New("at least one input file is required")
	}
	start := time.Now()

	column := opts.VoltageColumn
	if column == "" {
		column = a.Config.Analysis.VoltageColumn
	}

	fixed, err := threshold.FixedSet(a.Config.Analysis.FixedThresholds)
	if err != nil {
		return nil, fmt.Errorf("analysis.fixed_thresholds: %w", err)
	}

	tables, err := openTables(opts.Inputs)
	if err != nil {
		return nil, err
	}
	labels := label.NewTranslator(a.Config.Labels.Aliases)
	var runs []segment.Run
	for _, t := range tables {
		partitioned, err := segment.Partition(t, column, labels)
		if err != nil {
			return nil, err
		}
		runs = append(runs, partitioned...)
	}
	a.Logger.Info().Int("files", len(tables)).Int("runs", len(runs)).Str("voltage_column", column).Msg("runs loaded")

	rec := metrics.New()
	defer a.flushMetrics(rec, "voltage", start)

	pipeline := segment.New(segment.Options{
		Workers: a.Config.ResolveWorkers(opts.Workers),
		Fixed:   fixed,
		Builder: threshold.NewBuilder(a.Config.Analysis.MinBaselineSamples, a.Config.Analysis.SpreadFactor),
	}, rec, a.Logger)

	res, err := pipeline.Run(ctx, runs)
	if err != nil {
		return nil, err
	}

	writer := report.NewWriter(a.Config.ResolveOutputDir(opts.OutputDir))
	written, err := writer.WriteVoltage(res)
	if err != nil {
		return nil, err
	}
	a.Logger.Info().Strs("files", written).Msg("output tables written")

	if !opts.NoPersist {
		if err := a.persistVoltage(ctx, strings.Join(opts.Inputs, ","), res); err != nil {
			return nil, err
		}
	}

	a.notify(ctx, alerting.Notification{
		Command:    "voltage",
		Source:     strings.Join(opts.Inputs, ", "),
		Analysed:   len(res.Runs),
		Flagged:    len(res.Flagged),
		Skipped:    len(res.Skipped),
		Highlights: flaggedHighlights(res.Flagged),
		OutputDir:  writer.Dir,
	})

	fmt.Fprintf(a.Out, "runs analysed: %d, segments: %d, flagged: %d, skipped: %d, threshold groups: %d\n",
		len(res.Runs), len(res.Records), len(res.Flagged), len(res.Skipped), len(res.Thresholds))
	return res, nil
}

func (a *App) persistVoltage(ctx context.Context, source string, res *segment.Result) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Debug().Msg("database.dsn not configured; persistence disabled")
		return nil
	}
	defer closeStore()

	batch, err := store.SaveSegmentBatch(ctx, source, segmentRows(res.Records), thresholdRows(res.Thresholds))
	if err != nil {
		return err
	}
	a.Logger.Info().Int64("batch_id", batch.ID).Int("segments", len(res.Records)).Msg("分析结果已入库")
	return nil
}

func segmentRows(records []segment.Record) []storage.SegmentRow {
	rows := make([]storage.SegmentRow, len(records))
	for i, r := range records {
		rows[i] = storage.SegmentRow{
			RunID:         r.RunID,
			OFP:           r.OFP,
			TestCase:      r.TestCase,
			UnitID:        r.UnitID,
			Station:       r.Station,
			Save:          r.Save,
			TestRun:       r.TestRun,
			DCFolder:      r.DCFolder,
			Label:         r.Label.String(),
			VoltageColumn: r.VoltageColumn,
			Points:        r.N,
			MeanVoltage:   r.Mean,
			Std:           r.Std,
			Variance:      r.Variance,
			IQR:           r.IQR,
			AbsSlope:      r.AbsSlope,
			RSquared:      r.RSquared,
			Mode:          r.Mode,
			Flagged:       r.Flagged,
			FlagReasons:   r.FlagReasonText(),
		}
	}
	return rows
}

func thresholdRows(t threshold.Table) []storage.ThresholdRow {
	src := t.Rows()
	rows := make([]storage.ThresholdRow, len(src))
	for i, r := range src {
		rows[i] = storage.ThresholdRow{OFP: r.OFP, TestCase: r.TestCase, Metric: string(r.Metric), Min: r.Min, Max: r.Max}
	}
	return rows
}

func flaggedHighlights(records []segment.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = fmt.Sprintf("%s %s/%s (%s)", r.RunID, r.OFP, r.TestCase, r.Mode)
	}
	return out
}
