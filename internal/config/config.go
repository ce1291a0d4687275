package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Engines EnginesConfig `yaml:"engines" mapstructure:"engines"`
	Batch   BatchConfig   `yaml:"batch" mapstructure:"batch"`
	Limits  LimitsConfig  `yaml:"limits" mapstructure:"limits"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run-history database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the evaluation API server.
type ServerConfig struct {
	Port           int     `yaml:"port" mapstructure:"port"`
	MaxUploadBytes int64   `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
	RateLimit      float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second, 0 disables
	RateBurst      int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// EnginesConfig configures the available OCR engines.
type EnginesConfig struct {
	Tesseract TesseractConfig `yaml:"tesseract" mapstructure:"tesseract"`
	Mistral   MistralConfig   `yaml:"mistral" mapstructure:"mistral"`
	Claude    ClaudeConfig    `yaml:"claude" mapstructure:"claude"`
	SpecFile  string          `yaml:"spec_file" mapstructure:"spec_file"` // optional engines.yaml with command engines
}

// TesseractConfig configures the embedded Tesseract engine.
type TesseractConfig struct {
	Enabled   bool     `yaml:"enabled" mapstructure:"enabled"`
	Languages []string `yaml:"languages" mapstructure:"languages"`
}

// MistralConfig configures the Mistral vision OCR engine.
type MistralConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// ClaudeConfig configures the Claude vision OCR engine.
type ClaudeConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// BatchConfig configures dataset batch evaluation.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// LimitsConfig bounds input sizes before they reach the metrics core.
type LimitsConfig struct {
	MaxTextLen int `yaml:"max_text_len" mapstructure:"max_text_len"` // code points per input string
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
	v.SetEnvPrefix("OCREVAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "ocreval.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_bytes", 16*1024*1024)
	v.SetDefault("server.rate_limit", 20)
	v.SetDefault("server.rate_burst", 40)
	v.SetDefault("engines.tesseract.enabled", true)
	v.SetDefault("engines.tesseract.languages", []string{"eng"})
	v.SetDefault("engines.mistral.model", "pixtral-large-latest")
	v.SetDefault("engines.claude.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("engines.claude.max_tokens", 2048)
	v.SetDefault("batch.concurrency", 4)
	v.SetDefault("limits.max_text_len", 100_000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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
