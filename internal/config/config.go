// Package config loads application configuration from config.yaml and the
// COINASSAY_* environment.
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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Notion    NotionConfig    `yaml:"notion" mapstructure:"notion"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Scoring   ScoringConfig   `yaml:"scoring" mapstructure:"scoring"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings for the optional AI review.
type AnthropicConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// Enabled reports whether AI review is configured.
func (c AnthropicConfig) Enabled() bool { return c.Key != "" }

// NotionConfig holds the intake queue settings.
type NotionConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	QueueDB string `yaml:"queue_db" mapstructure:"queue_db"`
}

// FetchConfig configures content fetching.
type FetchConfig struct {
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	MaxBodyKB         int64   `yaml:"max_body_kb" mapstructure:"max_body_kb"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
}

// Timeout returns the fetch timeout as a duration.
func (c FetchConfig) Timeout() time.Duration { return time.Duration(c.TimeoutSecs) * time.Second }

// PipelineConfig configures phase orchestration.
type PipelineConfig struct {
	// ChainPhase2 runs comparison right after a successful extraction.
	ChainPhase2 bool `yaml:"chain_phase2" mapstructure:"chain_phase2"`
	// AnnotateWithAI folds an AI summary into extraction when a key is set.
	AnnotateWithAI bool `yaml:"annotate_with_ai" mapstructure:"annotate_with_ai"`
}

// BatchConfig throttles batch sweeps.
type BatchConfig struct {
	GroupSize     int `yaml:"group_size" mapstructure:"group_size"`
	RecordDelayMS int `yaml:"record_delay_ms" mapstructure:"record_delay_ms"`
	GroupDelayMS  int `yaml:"group_delay_ms" mapstructure:"group_delay_ms"`
	MaxPerMinute  int `yaml:"max_per_minute" mapstructure:"max_per_minute"`
	DefaultLimit  int `yaml:"default_limit" mapstructure:"default_limit"`
}

// ScoringConfig points at the benchmark definitions.
type ScoringConfig struct {
	// BenchmarksPath is an optional YAML file overriding the built-in
	// benchmark set.
	BenchmarksPath string `yaml:"benchmarks_path" mapstructure:"benchmarks_path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("COINASSAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "coinassay.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.timeout_secs", 60)
	v.SetDefault("anthropic.temperature", 0.0)
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.requests_per_second", 4)
	v.SetDefault("fetch.max_body_kb", 1024)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("pipeline.chain_phase2", true)
	v.SetDefault("pipeline.annotate_with_ai", false)
	v.SetDefault("batch.group_size", 10)
	v.SetDefault("batch.record_delay_ms", 500)
	v.SetDefault("batch.group_delay_ms", 5000)
	v.SetDefault("batch.max_per_minute", 0)
	v.SetDefault("batch.default_limit", 0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// The config file is optional; defaults plus env are a full config.
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

// Validate checks the configuration needed for the given command mode.
// Defaults keep most values sane; this catches the fields that have no
// usable default, like credentials and connection strings.
func (c *Config) Validate(mode string) error {
	var problems []string

	requireStore := func() {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				problems = append(problems, "store.database_url is required for the postgres driver")
			}
		case "sqlite":
			if c.Store.SQLitePath == "" {
				problems = append(problems, "store.sqlite_path is required for the sqlite driver")
			}
		default:
			problems = append(problems, "store.driver must be postgres or sqlite")
		}
	}

	switch mode {
	case "analyze", "batch", "status", "export":
		requireStore()
	case "serve":
		requireStore()
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
	case "import":
		requireStore()
		if c.Notion.Token == "" {
			problems = append(problems, "notion.token is required")
		}
		if c.Notion.QueueDB == "" {
			problems = append(problems, "notion.queue_db is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Pipeline.AnnotateWithAI && !c.Anthropic.Enabled() {
		problems = append(problems, "anthropic.key is required when pipeline.annotate_with_ai is set")
	}
	if c.Fetch.TimeoutSecs < 1 || c.Fetch.TimeoutSecs > 300 {
		problems = append(problems, "fetch.timeout_secs must be between 1 and 300")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
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
