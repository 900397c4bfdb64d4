package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"busmon-analytics/internal/alerting"
	"busmon-analytics/internal/busflip"
	"busmon-analytics/internal/metrics"
	"busmon-analytics/internal/report"
	"busmon-analytics/internal/storage"
)

// loadEvents reads and merges the event tables. A missing required column in
// any file aborts before detection starts.
func (a *App) loadEvents(paths []string) (*busflip.Dataset, error) {
	if len(paths) == 0 {
		return nil, errors.New("at least one input file is required")
	}
	tables, err := openTables(paths)
	if err != nil {
		return nil, err
	}
	merged := &busflip.Dataset{}
	for _, t := range tables {
		ds, err := busflip.Load(t)
		if err != nil {
			return nil, err
		}
		merged.Merge(ds)
	}
	for _, skip := range merged.Invalid {
		a.Logger.Warn().
			Str("unit_id", skip.Key.UnitID).
			Str("station", skip.Key.Station).
			Str("save", skip.Key.Save).
			Str("reason", skip.Reason).
			Msg("group skipped")
	}
	return merged, nil
}

// DetectFlips finds bus flips across every input file.
func (a *App) DetectFlips(ctx context.Context, opts FlipOptions) (*busflip.Result, error) {
	start := time.Now()
	ds, err := a.loadEvents(opts.Inputs)
	if err != nil {
		return nil, err
	}

	thresholdMS := opts.ThresholdMS
	if thresholdMS <= 0 {
		thresholdMS = a.Config.Flips.ThresholdMS
	}
	detector := busflip.NewDetector(busflip.Options{
		ThresholdMS:  thresholdMS,
		ActiveTokens: a.Config.Flips.ActiveTokens,
		Workers:      a.Config.ResolveWorkers(opts.Workers),
	}, a.Logger)

	rec := metrics.New()
	defer a.flushMetrics(rec, "flips", start)

	res, err := detector.Detect(ctx, ds.Events)
	if err != nil {
		return nil, err
	}
	rec.FlipsDetected(len(res.Flips), len(res.Summary))

	writer := report.NewWriter(a.Config.ResolveOutputDir(opts.OutputDir))
	written, err := writer.WriteFlips(res)
	if err != nil {
		return nil, err
	}
	if len(written) == 0 {
		a.Logger.Info().Msg("no bus flips detected")
	}

	if !opts.NoPersist && len(res.Flips) > 0 {
		if err := a.persistFlips(ctx, strings.Join(opts.Inputs, ","), res.Flips); err != nil {
			return nil, err
		}
	}

	a.notify(ctx, alerting.Notification{
		Command:    "flips",
		Source:     strings.Join(opts.Inputs, ", "),
		Analysed:   res.Groups,
		Flagged:    len(res.Flips),
		Skipped:    len(ds.Invalid),
		Highlights: flipHighlights(res.Summary),
		OutputDir:  writer.Dir,
	})

	fmt.Fprintf(a.Out, "detected %d bus flips across %d locations (%d groups scanned, %d skipped)\n",
		len(res.Flips), len(res.Summary), res.Groups, len(ds.Invalid))
	for i, c := range res.Summary {
		if i == 5 {
			break
		}
		fmt.Fprintf(a.Out, "  %s/%s/%s: %d\n", c.UnitID, c.Station, c.Save, c.Flips)
	}
	return res, nil
}

func (a *App) persistFlips(ctx context.Context, source string, flips []busflip.Flip) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return nil
	}
	defer closeStore()

	rows := make([]storage.FlipRow, len(flips))
	for i, f := range flips {
		rows[i] = storage.FlipRow{
			UnitID:        f.UnitID,
			Station:       f.Station,
			Save:          f.Save,
			Transition:    f.Transition,
			MsgType:       f.MsgType,
			TimestampBusA: f.TimestampBusA,
			TimestampBusB: f.TimestampBusB,
			GapMS:         f.GapMS,
			Description:   f.Description,
		}
	}
	batch, err := store.SaveFlipBatch(ctx, source, rows)
	if err != nil {
		return err
	}
	a.Logger.Info().Int64("batch_id", batch.ID).Int("flips", len(rows)).Msg("翻转记录已入库")
	return nil
}

func flipHighlights(summary []busflip.Count) []string {
	out := make([]string, len(summary))
	for i, c := range summary {
		out[i] = fmt.Sprintf("%s/%s/%s: %d flips", c.UnitID, c.Station, c.Save, c.Flips)
	}
	return out
}

// Gaps summarises inter-message timing per group.
func (a *App) Gaps(ctx context.Context, opts GapOptions) ([]busflip.GapSummary, error) {
	ds, err := a.loadEvents(opts.Inputs)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	gaps := busflip.Gaps(ds.Events)

	path, err := report.NewWriter(a.Config.ResolveOutputDir(opts.OutputDir)).WriteGaps(gaps)
	if err != nil {
		return nil, err
	}
	a.Logger.Info().Int("groups", len(gaps)).Str("file", path).Msg("gap statistics written")
	fmt.Fprintf(a.Out, "gap statistics for %d groups written to %s\n", len(gaps), path)
	return gaps, nil
}
