// Package config loads application configuration from YAML and the
// environment.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/hualiang/home-ledger/internal/extraction"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Assets   AssetsConfig   `mapstructure:"assets"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// OpenAIConfig holds extraction oracle configuration
type OpenAIConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	FallbackModels []string      `mapstructure:"fallback_models"`
	Temperature    float32       `mapstructure:"temperature"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// AssetsConfig holds asset store configuration
type AssetsConfig struct {
	Dir     string `mapstructure:"dir"`
	BaseURL string `mapstructure:"base_url"`
}

// PipelineConfig holds ingest worker tuning plus the confidence and
// duplicate heuristics' constants. Keys absent from the YAML keep the
// shipped defaults.
type PipelineConfig struct {
	PollInterval   time.Duration              `mapstructure:"poll_interval"`
	BatchSize      int                        `mapstructure:"batch_size"`
	ProcessTimeout time.Duration              `mapstructure:"process_timeout"`
	Concurrency    int                        `mapstructure:"concurrency"`
	Confidence     extraction.EvaluatorConfig `mapstructure:"confidence"`
	Duplicate      extraction.DetectorConfig  `mapstructure:"duplicate"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	// seed the heuristics with their shipped constants so the YAML only
	// needs to name the ones it changes
	cfg.Pipeline.Confidence = extraction.DefaultEvaluatorConfig()
	cfg.Pipeline.Duplicate = extraction.DefaultDetectorConfig()
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("database.path", "data/homeledger.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	viper.SetDefault("openai.model", "gpt-4o")
	viper.SetDefault("openai.fallback_models", []string{"gpt-4o-mini"})
	viper.SetDefault("openai.temperature", 0.2)
	viper.SetDefault("openai.max_tokens", 2000)
	viper.SetDefault("openai.timeout", 60*time.Second)

	viper.SetDefault("assets.dir", "data/assets")
	viper.SetDefault("assets.base_url", "http://localhost:8080/assets")

	viper.SetDefault("pipeline.poll_interval", 2*time.Second)
	viper.SetDefault("pipeline.batch_size", 5)
	viper.SetDefault("pipeline.process_timeout", 120*time.Second)
	viper.SetDefault("pipeline.concurrency", 3)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds credentials that must never land in the YAML file
func bindEnvVars() {
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Assets.Dir == "" {
		return fmt.Errorf("assets.dir is required")
	}
	if c.Pipeline.BatchSize < 1 {
		return fmt.Errorf("pipeline.batch_size must be at least 1")
	}
	if t := c.Pipeline.Confidence.ConfirmThreshold; t <= 0 || t > 1 {
		return fmt.Errorf("pipeline.confidence.confirm_threshold must be in (0, 1]")
	}
	if c.Pipeline.Confidence.RetakeThreshold >= c.Pipeline.Confidence.ConfirmThreshold {
		return fmt.Errorf("pipeline.confidence.retake_threshold must be below confirm_threshold")
	}
	if r := c.Pipeline.Duplicate.MatchRatio; r <= 0 || r > 1 {
		return fmt.Errorf("pipeline.duplicate.match_ratio must be in (0, 1]")
	}
	return nil
}
