// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.docchat/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: generation model, embedder model
//   - Storage: PostgreSQL connection (see storage.go)
//   - RAG: chunking, retrieval, context assembly knobs
//   - Server: HTTP listen address, upload limits
//
// Sensitive data (passwords) is never logged; validation lives in
// validation.go with sentinel errors for errors.Is() checks.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderGoogleAI = "googleai"
)

const (
	// DefaultEmbedderModel is the default Gemini embedder model.
	// gemini-embedding-001 outputs 3072 dimensions by default but supports
	// truncation to 768 via OutputDimensionality; the pgvector schema uses
	// 768 dimensions (see embedding.VectorDimension).
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultChunkSize is the chunk window size in characters.
	DefaultChunkSize = 800

	// DefaultChunkOverlap is the overlap between adjacent chunks.
	DefaultChunkOverlap = 150

	// DefaultTopK is the number of chunks retrieved per query.
	DefaultTopK = 10

	// DefaultContextBudget caps the total characters of retrieved context
	// assembled into a generation prompt.
	DefaultContextBudget = 8000

	// DefaultMaxHistoryMessages is the number of conversation messages
	// loaded as generation context.
	DefaultMaxHistoryMessages int32 = 20

	// DefaultEmbedBatchSize is the number of texts embedded per upstream call.
	DefaultEmbedBatchSize = 32

	// DefaultIngestWorkers bounds concurrent parse+embed work during ingestion.
	DefaultIngestWorkers = 4

	// DefaultMinChunkChars drops chunks shorter than this after cleaning.
	DefaultMinChunkChars = 20

	// DefaultMaxUploadBytes caps a single uploaded PDF (20 MiB).
	DefaultMaxUploadBytes int64 = 20 << 20
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON.
type Config struct {
	// AI provider and model configuration
	Provider      string `mapstructure:"provider" json:"provider"`
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// RAG configuration
	ChunkSize          int   `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap       int   `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	TopK               int   `mapstructure:"top_k" json:"top_k"`
	ContextBudget      int   `mapstructure:"context_budget" json:"context_budget"`
	MaxHistoryMessages int32 `mapstructure:"max_history_messages" json:"max_history_messages"`
	EmbedBatchSize     int   `mapstructure:"embed_batch_size" json:"embed_batch_size"`
	IngestWorkers      int   `mapstructure:"ingest_workers" json:"ingest_workers"`
	MinChunkChars      int   `mapstructure:"min_chunk_chars" json:"min_chunk_chars"`

	// Embedding rate limiting (requests per second, burst)
	EmbedRateLimit float64 `mapstructure:"embed_rate_limit" json:"embed_rate_limit"`
	EmbedRateBurst int     `mapstructure:"embed_rate_burst" json:"embed_rate_burst"`

	// Server configuration
	ListenAddr     string `mapstructure:"listen_addr" json:"listen_addr"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes" json:"max_upload_bytes"`

	// Storage configuration (see storage.go)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".docchat")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings when set.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("embedder_model", DefaultEmbedderModel)

	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("chunk_overlap", DefaultChunkOverlap)
	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("context_budget", DefaultContextBudget)
	v.SetDefault("max_history_messages", DefaultMaxHistoryMessages)
	v.SetDefault("embed_batch_size", DefaultEmbedBatchSize)
	v.SetDefault("ingest_workers", DefaultIngestWorkers)
	v.SetDefault("min_chunk_chars", DefaultMinChunkChars)

	v.SetDefault("embed_rate_limit", 10.0)
	v.SetDefault("embed_rate_burst", 30)

	v.SetDefault("listen_addr", "127.0.0.1:8000")
	v.SetDefault("max_upload_bytes", DefaultMaxUploadBytes)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "docchat")
	v.SetDefault("postgres_password", "docchat_dev_password")
	v.SetDefault("postgres_db_name", "docchat")
	v.SetDefault("postgres_ssl_mode", "disable")
}

// bindEnvVariables binds environment overrides explicitly.
// GEMINI_API_KEY is read directly by Genkit, not via Viper; its presence
// is checked in Validate().
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "DOCCHAT_PROVIDER")
	mustBind("model_name", "DOCCHAT_MODEL_NAME")
	mustBind("embedder_model", "DOCCHAT_EMBEDDER_MODEL")
	mustBind("listen_addr", "DOCCHAT_LISTEN_ADDR")
	mustBind("postgres_password", "DOCCHAT_POSTGRES_PASSWORD")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Secrets of 8 chars
// or fewer are fully masked to prevent substring matching.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field
// masking. When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit.
// Example: "googleai/gemini-2.5-flash". If ModelName already contains a
// "/", it is returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	return ProviderGoogleAI + "/" + c.ModelName
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
