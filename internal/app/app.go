package app

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"busmon-analytics/internal/alerting"
	"busmon-analytics/internal/config"
	"busmon-analytics/internal/metrics"
	"busmon-analytics/internal/storage"
	"busmon-analytics/internal/table"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives human-readable summaries; defaults to stdout.
	Out io.Writer

	notifier alerting.Notifier
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logger.With().Str("component", "app").Logger(),
		Out:    os.Stdout,
	}
}

// WithNotifier overrides the configured notifier.
func (a *App) WithNotifier(n alerting.Notifier) *App {
	a.notifier = n
	return a
}

func (a *App) newNotifier() alerting.Notifier {
	if a.notifier != nil {
		return a.notifier
	}
	if a.Config.Alerting.Enabled && a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// notify sends note when a notifier is configured and the batch flagged
// something. Delivery failures are logged, not returned.
func (a *App) notify(ctx context.Context, note alerting.Notification) {
	if !note.Worth() {
		return
	}
	notifier := a.newNotifier()
	if notifier == nil {
		return
	}
	note.Finished = time.Now()
	if err := notifier.Notify(ctx, note); err != nil {
		a.Logger.Error().Err(err).Str("command", note.Command).Msg("通知发送失败")
	}
}

// flushMetrics writes the recorder to the configured textfile.
func (a *App) flushMetrics(rec *metrics.Recorder, command string, start time.Time) {
	rec.ObserveBatch(command, start)
	if err := rec.WriteTextfile(a.Config.Metrics.Textfile); err != nil {
		a.Logger.Warn().Err(err).Msg("metrics textfile not written")
	}
}

func openTables(paths []string) ([]*table.Table, error) {
	tables := make([]*table.Table, 0, len(paths))
	for _, p := range paths {
		t, err := table.Open(p)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// VoltageOptions configure the voltage command.
type VoltageOptions struct {
	Inputs        []string
	VoltageColumn string
	Workers       int
	OutputDir     string
	NoPersist     bool
}

// FlipOptions configure the flips command.
type FlipOptions struct {
	Inputs      []string
	ThresholdMS float64
	Workers     int
	OutputDir   string
	NoPersist   bool
}

// GapOptions configure the gaps command.
type GapOptions struct {
	Inputs    []string
	OutputDir string
}

// ScanOptions configure the count and sources commands.
type ScanOptions struct {
	Dir       string
	OutputDir string
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}
