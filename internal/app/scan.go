package app

import (
	"context"
	"fmt"
	"strings"

	"busmon-analytics/internal/report"
	"busmon-analytics/internal/scan"
)

// Count tallies needle occurrences in the decoded descriptions of every CSV
// file in opts.Dir.
func (a *App) Count(ctx context.Context, opts ScanOptions) (*scan.CountReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := scan.NewCounter(a.Config.Scan.Needle, a.Logger).CountDir(opts.Dir)
	if err != nil {
		return nil, err
	}
	if len(res.Files) == 0 && len(res.Skipped) == 0 {
		fmt.Fprintf(a.Out, "no CSV files found in %s\n", opts.Dir)
		return res, nil
	}

	for _, f := range res.Files {
		if f.Err != nil {
			fmt.Fprintf(a.Out, "  %s: error: %v\n", f.File, f.Err)
			continue
		}
		fmt.Fprintf(a.Out, "  %s: %d occurrences of %q\n", f.File, f.Count, res.Needle)
	}
	fmt.Fprintf(a.Out, "files processed: %d, total %q occurrences: %d\n", len(res.Files), res.Needle, res.Total)

	if opts.OutputDir != "" {
		path, err := report.NewWriter(opts.OutputDir).WriteCounts(res)
		if err != nil {
			return nil, err
		}
		a.Logger.Info().Str("file", path).Msg("count results written")
	}
	return res, nil
}

// Sources flags source listings that contain watched save numbers.
func (a *App) Sources(ctx context.Context, opts ScanOptions) (*scan.SourcesReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	flagger := scan.NewSaveFlagger(a.Config.Scan.SourcesSuffix, a.Config.Scan.FlaggedSaves, a.Logger)
	res, err := flagger.ScanDir(opts.Dir)
	if err != nil {
		return nil, err
	}

	for _, f := range res.Files {
		mark := "ok     "
		if f.Flagged {
			mark = "FLAGGED"
		}
		fmt.Fprintf(a.Out, "%s %s  stations=[%s] saves=[%s]\n", mark, f.Name,
			strings.Join(f.Stations, ", "), strings.Join(f.Saves, ", "))
	}
	fmt.Fprintf(a.Out, "files processed: %d, flagged: %d, skipped: %d, failed: %d\n",
		len(res.Files), res.FlaggedCount(), len(res.Skipped), len(res.Failed))

	if opts.OutputDir != "" {
		path, err := report.NewWriter(opts.OutputDir).WriteSources(res)
		if err != nil {
			return nil, err
		}
		a.Logger.Info().Str("file", path).Msg("sources summary written")
	}
	return res, nil
}
