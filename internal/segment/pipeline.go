package segment

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"busmon-analytics/internal/threshold"
)

// Pass names a scan over the runs.
type Pass string

const (
	Baseline Pass = "baseline"
	Flagging Pass = "flagging"
)

// Skip records a run excluded from a pass.
type Skip struct {
	RunID  string
	Pass   Pass
	Reason string
}

// RunFlag tells whether any steady-state record of a run was flagged.
type RunFlag struct {
	Grouping
	Flagged bool
}

// Result is everything one pipeline run produces.
type Result struct {
	Records    []Record
	Flagged    []Record
	Runs       []RunFlag
	Thresholds threshold.Table
	Skipped    []Skip
	ByTestCase []Summary
	ByDCFolder []Summary
}

// Recorder observes pipeline progress.
type Recorder interface {
	RunAnalyzed(pass string)
	RunSkipped(pass string)
	SegmentsFlagged(n int)
	ThresholdGroups(n int)
}

type nopRecorder struct{}

func (nopRecorder) RunAnalyzed(string) {}
func (nopRecorder) RunSkipped(string) {}
func (nopRecorder) SegmentsFlagged(int) {}
func (nopRecorder) ThresholdGroups(int) {}

// Options tune the pipeline.
type Options struct {
	Workers int
	Fixed   threshold.Set
	Builder *threshold.Builder
}

// Pipeline orchestrates the baseline, derivation and flagging passes.
type Pipeline struct {
	workers  int
	fixed    threshold.Set
	builder  *threshold.Builder
	recorder Recorder
	logger   zerolog.Logger
}

// New constructs a pipeline. A nil recorder disables progress metrics.
func New(opts Options, recorder Recorder, logger zerolog.Logger) *Pipeline {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	builder := opts.Builder
	if builder == nil {
		builder = threshold.NewBuilder(threshold.MinBaselineSamples, threshold.DefaultSpread)
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Pipeline{
		workers:  workers,
		fixed:    opts.Fixed,
		builder:  builder,
		recorder: recorder,
		logger:   logger.With().Str("component", "segment_pipeline").Logger(),
	}
}

type outcome struct {
	records []Record
	err     error
}

// Run executes both passes over runs. Per-run failures are reported in
// Result.Skipped; only context cancellation aborts the batch.
func (p *Pipeline) Run(ctx context.Context, runs []Run) (*Result, error) {
	result := &Result{}

	baseline, err := p.scan(ctx, runs, nil)
	if err != nil {
		return nil, err
	}
	var observations []threshold.Observation
	for i, o := range baseline {
		if o.err != nil {
			result.Skipped = append(result.Skipped, p.skip(runs[i], Baseline, o.err))
			continue
		}
		p.recorder.RunAnalyzed(string(Baseline))
		for _, rec := range o.records {
			observations = append(observations, threshold.Observation{
				Key:     rec.Grouping.Key(),
				Label:   rec.Label,
				Metrics: rec.Metrics,
			})
		}
	}

	result.Thresholds = p.builder.Build(observations)
	p.recorder.ThresholdGroups(len(result.Thresholds))
	p.logger.Info().
		Int("runs", len(runs)).
		Int("baseline_records", len(observations)).
		Int("threshold_groups", len(result.Thresholds)).
		Msg("dynamic thresholds derived")

	flagged, err := p.scan(ctx, runs, &scoring{dynamic: result.Thresholds, fixed: p.fixed})
	if err != nil {
		return nil, err
	}
	for i, o := range flagged {
		if o.err != nil {
			result.Skipped = append(result.Skipped, p.skip(runs[i], Flagging, o.err))
			continue
		}
		p.recorder.RunAnalyzed(string(Flagging))

		runFlagged := false
		for _, rec := range o.records {
			if rec.Flagged && rec.Label.IsSteadyState() {
				runFlagged = true
				result.Flagged = append(result.Flagged, rec)
			}
		}
		result.Records = append(result.Records, o.records...)
		result.Runs = append(result.Runs, RunFlag{Grouping: runs[i].Grouping, Flagged: runFlagged})
	}
	p.recorder.SegmentsFlagged(len(result.Flagged))

	result.ByTestCase = SummarizeByTestCase(result.Records)
	result.ByDCFolder = SummarizeByDCFolder(result.Records)

	p.logger.Info().
		Int("records", len(result.Records)).
		Int("flagged", len(result.Flagged)).
		Int("skipped", len(result.Skipped)).
		Msg("segment analysis complete")
	return result, nil
}

// scan analyses every run on a bounded worker pool. Outcomes keep input order.
func (p *Pipeline) scan(ctx context.Context, runs []Run, sc *scoring) ([]outcome, error) {
	outcomes := make([]outcome, len(runs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range runs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records, err := analyzeRun(runs[i], sc)
			outcomes[i] = outcome{records: records, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

func (p *Pipeline) skip(run Run, pass Pass, err error) Skip {
	p.recorder.RunSkipped(string(pass))
	p.logger.Warn().
		Str("run_id", run.Grouping.RunID).
		Str("pass", string(pass)).
		Err(err).
		Msg("run skipped")
	return Skip{RunID: run.Grouping.RunID, Pass: pass, Reason: err.Error()}
}
