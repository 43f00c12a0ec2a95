// Package config loads pdfqa settings from YAML, .env files and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/ziadkadry99/pdf-inquiry/internal/logging"
)

// EnvPrefix prefixes environment overrides. Nested keys use a double
// underscore: PDFQA_STORAGE__DRIVER sets storage.driver.
const EnvPrefix = "PDFQA_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (PDFQA_*). A .env file next to the config
// file is loaded into the environment first; it never replaces variables
// that are already set.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	cfg := DefaultConfig()

	dotenv := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(dotenv); err == nil {
		if err := godotenv.Load(dotenv); err != nil {
			return nil, fmt.Errorf("reading %s: %w", dotenv, err)
		}
	}

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if cfg.Storage.MongoURI == "" {
		cfg.Storage.MongoURI = os.Getenv("MONGO_URI")
	}

	return cfg, nil
}

// envKey maps PDFQA_STORAGE__MONGO_URI to storage.mongo_uri.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validProviders is the set of recognized provider values.
var validProviders = map[ProviderType]bool{
	ProviderMistral:    true,
	ProviderOpenAI:     true,
	ProviderOpenRouter: true,
	ProviderOllama:     true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("provider is required")
	}
	if !validProviders[c.Provider] {
		return fmt.Errorf("invalid provider %q: must be one of mistral, openai, openrouter, ollama", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.EmbeddingProvider != "" && !validProviders[c.EmbeddingProvider] {
		return fmt.Errorf("invalid embedding_provider %q", c.EmbeddingProvider)
	}
	if c.EmbeddingDimensions < 0 {
		return fmt.Errorf("embedding_dimensions must be non-negative")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if err := c.LoggingOptions().Validate(); err != nil {
		return err
	}

	switch c.Storage.Driver {
	case StorageSQLite:
	case StorageMongo:
		if c.Storage.MongoURI == "" {
			return fmt.Errorf("storage.mongo_uri (or MONGO_URI) is required for the mongo driver")
		}
		if c.Storage.MongoDatabase == "" {
			return fmt.Errorf("storage.mongo_database is required for the mongo driver")
		}
	default:
		return fmt.Errorf("invalid storage.driver %q: must be sqlite or mongo", c.Storage.Driver)
	}

	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be non-negative and smaller than chunking.size")
	}

	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("retrieval.top_k must be positive")
	}
	if c.Retrieval.SummaryPassages <= 0 || c.Retrieval.SummaryChars <= 0 {
		return fmt.Errorf("retrieval.summary_passages and retrieval.summary_chars must be positive")
	}

	if c.Answer.QATimeoutSeconds <= 0 || c.Answer.SummaryTimeoutSeconds <= 0 {
		return fmt.Errorf("answer timeouts must be positive")
	}
	if c.Answer.QATemperature < 0 || c.Answer.QATemperature > 2 ||
		c.Answer.SummaryTemperature < 0 || c.Answer.SummaryTemperature > 2 {
		return fmt.Errorf("answer temperatures must be between 0 and 2")
	}
	if c.Answer.RequestsPerMinute < 0 {
		return fmt.Errorf("answer.requests_per_minute must be non-negative")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.TokenTTLHours <= 0 {
		return fmt.Errorf("server.token_ttl_hours must be positive")
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}

	return nil
}

// LoggingOptions returns the logger settings.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{Level: c.LogLevel, Format: c.LogFormat}
}

// SQLitePath returns the database file, defaulting to data_dir/pdfqa.db.
func (c *Config) SQLitePath() string {
	if c.Storage.SQLitePath != "" {
		return c.Storage.SQLitePath
	}
	return filepath.Join(c.DataDir, "pdfqa.db")
}

// QATimeout returns the question answering timeout.
func (c *Config) QATimeout() time.Duration {
	return time.Duration(c.Answer.QATimeoutSeconds) * time.Second
}

// SummaryTimeout returns the summary timeout.
func (c *Config) SummaryTimeout() time.Duration {
	return time.Duration(c.Answer.SummaryTimeoutSeconds) * time.Second
}

// TokenTTL returns the lifetime of issued login tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Server.TokenTTLHours) * time.Hour
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderMistral:
		return "MISTRAL_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	default:
		return ""
	}
}
