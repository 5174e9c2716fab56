package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Watch      WatchConfig      `yaml:"watch" mapstructure:"watch"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Retention  RetentionConfig  `yaml:"retention" mapstructure:"retention"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig tunes the postgres connection pool. Ignored by sqlite.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds vision model API settings.
type AnthropicConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	Model          string  `yaml:"model" mapstructure:"model"`
	MaxTokens      int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// WatchConfig configures the frame-processing path.
type WatchConfig struct {
	Prompt            string `yaml:"prompt" mapstructure:"prompt"`
	MaxParallelVideos int    `yaml:"max_parallel_videos" mapstructure:"max_parallel_videos"`
}

// MonitoringConfig configures aggregation, alert thresholds and dispatch.
type MonitoringConfig struct {
	WebhookURL            string         `yaml:"webhook_url" mapstructure:"webhook_url"`
	AggregationWindowSecs int            `yaml:"aggregation_window_seconds" mapstructure:"aggregation_window_seconds"`
	CheckIntervalSecs     int            `yaml:"check_interval_seconds" mapstructure:"check_interval_seconds"`
	LatencyThresholdMS    float64        `yaml:"latency_threshold_ms" mapstructure:"latency_threshold_ms"`
	CostThresholdUSD      float64        `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
	ErrorRateThreshold    float64        `yaml:"error_rate_threshold" mapstructure:"error_rate_threshold"`
	AlertCooldownSecs     int            `yaml:"alert_cooldown_seconds" mapstructure:"alert_cooldown_seconds"`
	RuleCooldownSecs      map[string]int `yaml:"rule_cooldown_seconds" mapstructure:"rule_cooldown_seconds"`
}

// AggregationWindow returns the configured rolling window as a duration.
func (m MonitoringConfig) AggregationWindow() time.Duration {
	return time.Duration(m.AggregationWindowSecs) * time.Second
}

// CooldownFor returns the cool-down for a rule, falling back to the global
// default when no per-rule override is configured.
func (m MonitoringConfig) CooldownFor(rule string) time.Duration {
	if secs, ok := m.RuleCooldownSecs[rule]; ok && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Duration(m.AlertCooldownSecs) * time.Second
}

// RetentionConfig governs cleanup of old samples and observations.
type RetentionConfig struct {
	Days int `yaml:"days" mapstructure:"days"`
}

// ServerConfig configures the review API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

const defaultPrompt = `You are reviewing a single CCTV frame from a retail store.
Classify the scene as one of: normal, suspicious, theft, unclear.
Reply with exactly three lines:
Category: <normal|suspicious|theft|unclear>
Confidence: <0.0-1.0>
Reason: <one sentence describing what you see>`

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("STOREWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "storewatch.db")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.requests_per_sec", 2.0)
	v.SetDefault("anthropic.timeout_secs", 60)
	v.SetDefault("watch.max_parallel_videos", 1)
	v.SetDefault("watch.prompt", defaultPrompt)
	v.SetDefault("monitoring.aggregation_window_seconds", 300)
	v.SetDefault("monitoring.check_interval_seconds", 60)
	v.SetDefault("monitoring.latency_threshold_ms", 3000)
	v.SetDefault("monitoring.cost_threshold_usd", 0.005)
	v.SetDefault("monitoring.error_rate_threshold", 0.10)
	v.SetDefault("monitoring.alert_cooldown_seconds", 300)
	v.SetDefault("retention.days", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
