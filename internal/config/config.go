package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"busmon-analytics/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Labels   LabelsConfig   `mapstructure:"labels"`
	Flips    FlipsConfig    `mapstructure:"flips"`
	Scan     ScanConfig     `mapstructure:"scan"`
	Output   OutputConfig   `mapstructure:"output"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Alerting AlertingConfig `mapstructure:"alerting"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. An empty DSN disables
// persistence.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AnalysisConfig tunes the voltage segment pipeline.
type AnalysisConfig struct {
	VoltageColumn      string             `mapstructure:"voltage_column"`
	Workers            int                `mapstructure:"workers"`
	MinBaselineSamples int                `mapstructure:"min_baseline_samples"`
	SpreadFactor       float64            `mapstructure:"spread_factor"`
	FixedThresholds    map[string]float64 `mapstructure:"fixed_thresholds"`
}

// LabelsConfig maps source status literals onto canonical labels.
type LabelsConfig struct {
	Aliases map[string]string `mapstructure:"aliases"`
}

// FlipsConfig tunes bus flip detection.
type FlipsConfig struct {
	ThresholdMS  float64  `mapstructure:"threshold_ms"`
	ActiveTokens []string `mapstructure:"active_tokens"`
}

// ScanConfig drives the directory inventory commands.
type ScanConfig struct {
	Needle        string `mapstructure:"needle"`
	FlaggedSaves  []int  `mapstructure:"flagged_saves"`
	SourcesSuffix string `mapstructure:"sources_suffix"`
}

// OutputConfig sets where tables are written.
type OutputConfig struct {
	Dir string `mapstructure:"dir"`
}

// MetricsConfig controls the optional textfile export.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// AlertingConfig gates batch notifications.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 通知参数。
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BUSMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "busmon")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("analysis.voltage_column", "voltage_28v_dc1_cal")
	v.SetDefault("analysis.workers", 4)
	v.SetDefault("analysis.min_baseline_samples", 3)
	v.SetDefault("analysis.spread_factor", 0.5)
	v.SetDefault("analysis.fixed_thresholds", map[string]float64{
		"variance":  1.5,
		"std":       2.0,
		"abs_slope": 0.5,
		"iqr":       1.0,
	})

	v.SetDefault("labels.aliases", map[string]string{
		"Steady State": "steady_state",
		"Stabilizing":  "stabilizing",
		"Transient":    "transient",
	})

	v.SetDefault("flips.threshold_ms", 100.0)
	v.SetDefault("flips.active_tokens", []string{"1", "true", "on", "yes"})

	v.SetDefault("scan.needle", "27T")
	v.SetDefault("scan.flagged_saves", []int{3, 12, 17})
	v.SetDefault("scan.sources_suffix", "_Sources.csv")

	v.SetDefault("output.dir", "output")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Analysis.VoltageColumn) == "" {
		return fmt.Errorf("analysis.voltage_column must be set")
	}
	if c.Analysis.Workers < 1 {
		return fmt.Errorf("analysis.workers must be at least 1")
	}
	if c.Analysis.MinBaselineSamples < 3 {
		return fmt.Errorf("analysis.min_baseline_samples must be at least 3")
	}
	if c.Analysis.SpreadFactor <= 0 {
		return fmt.Errorf("analysis.spread_factor must be greater than zero")
	}
	for name, limit := range c.Analysis.FixedThresholds {
		if limit < 0 {
			return fmt.Errorf("analysis.fixed_thresholds.%s cannot be negative", name)
		}
	}
	if c.Flips.ThresholdMS <= 0 {
		return fmt.Errorf("flips.threshold_ms must be greater than zero")
	}
	if c.Scan.Needle == "" {
		return fmt.Errorf("scan.needle must be set")
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database connection limits cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	return nil
}

// ResolveWorkers returns the CLI override when positive, else the configured
// worker count.
func (c *Config) ResolveWorkers(override int) int {
	if override > 0 {
		return override
	}
	return c.Analysis.Workers
}

// ResolveOutputDir returns the CLI override or the configured directory.
func (c *Config) ResolveOutputDir(override string) string {
	if override != "" {
		return override
	}
	return c.Output.Dir
}
