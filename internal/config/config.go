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
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Classify   ClassifyConfig   `yaml:"classify" mapstructure:"classify"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the job database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// JinaConfig holds Jina AI Search settings.
type JinaConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	SearchBaseURL string  `yaml:"search_base_url" mapstructure:"search_base_url"`
	MaxResults    int     `yaml:"max_results" mapstructure:"max_results"`
	RatePerSec    float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// PerplexityConfig holds Perplexity API settings for search summaries.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// ClassifyConfig tunes the classification engine.
type ClassifyConfig struct {
	BatchSize                 int `yaml:"batch_size" mapstructure:"batch_size"`
	MaxConcurrentSearches     int `yaml:"max_concurrent_searches" mapstructure:"max_concurrent_searches"`
	BatchTimeoutSecs          int `yaml:"batch_timeout_secs" mapstructure:"batch_timeout_secs"`
	SearchClassifyTimeoutSecs int `yaml:"search_classify_timeout_secs" mapstructure:"search_classify_timeout_secs"`
	TargetLevel               int `yaml:"target_level" mapstructure:"target_level"`
}

// BatchTimeout returns the per-batch model call bound.
func (c ClassifyConfig) BatchTimeout() time.Duration {
	return time.Duration(c.BatchTimeoutSecs) * time.Second
}

// SearchClassifyTimeout returns the per-vendor fallback bound.
func (c ClassifyConfig) SearchClassifyTimeout() time.Duration {
	return time.Duration(c.SearchClassifyTimeoutSecs) * time.Second
}

// Validate rejects tuning values the engine cannot honor.
func (c ClassifyConfig) Validate() error {
	if c.TargetLevel < 1 || c.TargetLevel > 5 {
		return eris.Errorf("config: target_level must be 1-5, got %d", c.TargetLevel)
	}
	if c.BatchSize < 1 {
		return eris.Errorf("config: batch_size must be positive, got %d", c.BatchSize)
	}
	if c.MaxConcurrentSearches < 1 {
		return eris.Errorf("config: max_concurrent_searches must be positive, got %d", c.MaxConcurrentSearches)
	}
	return nil
}

// RetryConfig configures retry behavior for gateway calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// ServerConfig configures the job status API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CLASSIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "classify.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("jina.max_results", 5)
	v.SetDefault("jina.rate_per_sec", 3)
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("classify.batch_size", 20)
	v.SetDefault("classify.max_concurrent_searches", 5)
	v.SetDefault("classify.batch_timeout_secs", 120)
	v.SetDefault("classify.search_classify_timeout_secs", 180)
	v.SetDefault("classify.target_level", 5)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)

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

	if err := cfg.Classify.Validate(); err != nil {
		return nil, err
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
