// Package config loads Sentinel's configuration the way the teacher's
// internal/config does: spf13/viper layered over defaults, config file,
// and environment, with joho/godotenv picking up a local .env first.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App           App           `mapstructure:"app"`
	AI            AI            `mapstructure:"ai"`
	Database      Database      `mapstructure:"database"`
	Blob          Blob          `mapstructure:"blob"`
	Server        Server        `mapstructure:"server"`
	Pipeline      Pipeline      `mapstructure:"pipeline"`
	Keywords      Keywords      `mapstructure:"keywords"`
	Feeds         Feeds         `mapstructure:"feeds"`
	Guardrail     Guardrail     `mapstructure:"guardrail"`
	Notify        Notify        `mapstructure:"notify"`
	Logging       Logging       `mapstructure:"logging"`
	CLI           CLI           `mapstructure:"cli"`
	Observability Observability `mapstructure:"observability"`
}

// App holds general application configuration.
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
}

// AI holds model-backend configuration for the Gemini-backed
// implementations of RelevanceModel, EntityExtractionModel,
// EmbeddingModel, ModerationModel, and PIIModel.
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig configures the google.golang.org/genai client models.GenAIModel wraps.
type GeminiConfig struct {
	APIKey          string `mapstructure:"api_key"`
	GenerativeModel string `mapstructure:"generative_model"`
	EmbeddingModel  string `mapstructure:"embedding_model"`
}

// Database holds the Postgres/pgvector-backed entity and vector store
// connection settings.
type Database struct {
	ConnectionString string `mapstructure:"connection_string"`
	MaxConnections   int    `mapstructure:"max_connections"`
	IdleConnections  int    `mapstructure:"idle_connections"`
}

// Blob holds the filesystem blob store's root directory and at-rest
// encryption key, hex-encoded (16, 24, or 32 raw bytes for AES-128/192/256).
type Blob struct {
	Directory     string `mapstructure:"directory"`
	EncryptionKey string `mapstructure:"encryption_key"`
}

// Server holds the query/report facade's HTTP server configuration.
type Server struct {
	Host            string          `mapstructure:"host"`
	Port            int             `mapstructure:"port"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	CORS            CORSConfig      `mapstructure:"cors"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// CORSConfig holds CORS configuration for the query facade.
type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig holds rate-limiting configuration for the query facade.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
}

// Pipeline holds the orchestrator's concurrency and deadline settings.
type Pipeline struct {
	MaxConcurrency  int           `mapstructure:"max_concurrency"`
	ArticleDeadline time.Duration `mapstructure:"article_deadline"`
}

// Keywords holds the keyword/target-term registry's location.
type Keywords struct {
	RegistryPath string `mapstructure:"registry_path"`
}

// Feeds holds feed-registry and fetch-scheduling configuration.
type Feeds struct {
	RegistryPath    string `mapstructure:"registry_path"`
	FetchInterval   string `mapstructure:"fetch_interval"`
	Timeout         string `mapstructure:"timeout"`
	UserAgent       string `mapstructure:"user_agent"`
	MaxItemsPerFeed int    `mapstructure:"max_items_per_feed"`
}

// Guardrail holds the guardrail validator's tunable thresholds.
type Guardrail struct {
	MaxMediumViolations int `mapstructure:"max_medium_violations"`
}

// Notify holds the escalator's notification sink configuration.
type Notify struct {
	Slack SlackConfig `mapstructure:"slack"`
}

// SlackConfig configures notify.SlackSink.
type SlackConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Username   string `mapstructure:"username"`
	IconEmoji  string `mapstructure:"icon_emoji"`
}

// Logging holds structured-logging configuration.
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// CLI holds cmd/sentinel's interactive-mode defaults.
type CLI struct {
	Editor      string `mapstructure:"editor"`
	Interactive bool   `mapstructure:"interactive"`
}

// Observability holds metrics-server configuration for the query facade.
type Observability struct {
	MetricsEnabled bool `mapstructure:"metrics_enabled"`
}

var globalConfig *Config

// Load reads configuration from the environment, configFile (or the default
// search path), and defaults, in that precedence order (environment
// overrides the file, the file overrides defaults), and caches the result
// for subsequent Get calls.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".sentinel")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it with defaults if
// Load hasn't been called yet.
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.data_dir", ".sentinel-cache")

	viper.SetDefault("ai.gemini.generative_model", "gemini-flash-lite-latest")
	viper.SetDefault("ai.gemini.embedding_model", "text-embedding-004")

	viper.SetDefault("database.max_connections", 10)
	viper.SetDefault("database.idle_connections", 2)

	viper.SetDefault("blob.directory", ".sentinel-cache/blobs")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.shutdown_timeout", "10s")
	viper.SetDefault("server.cors.enabled", true)
	viper.SetDefault("server.cors.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("server.rate_limit.enabled", true)
	viper.SetDefault("server.rate_limit.requests_per_minute", 60)

	viper.SetDefault("pipeline.max_concurrency", 5)
	viper.SetDefault("pipeline.article_deadline", "120s")

	viper.SetDefault("keywords.registry_path", "configs/keywords.yaml")

	viper.SetDefault("feeds.registry_path", "configs/feeds.yaml")
	viper.SetDefault("feeds.fetch_interval", "1h")
	viper.SetDefault("feeds.timeout", "30s")
	viper.SetDefault("feeds.user_agent", "Sentinel/1.0")
	viper.SetDefault("feeds.max_items_per_feed", 50)

	viper.SetDefault("guardrail.max_medium_violations", 3)

	viper.SetDefault("notify.slack.username", "Sentinel")
	viper.SetDefault("notify.slack.icon_emoji", ":shield:")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	viper.SetDefault("cli.editor", os.Getenv("EDITOR"))
	viper.SetDefault("cli.interactive", false)

	viper.SetDefault("observability.metrics_enabled", true)
}

// bindEnvironmentVariables sets up flexible environment variable binding,
// mirroring the teacher's multi-alias convention for secrets that have
// more than one common environment variable name in the wild.
func bindEnvironmentVariables() {
	bindEnvKeys("ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys("database.connection_string", []string{
		"DATABASE_URL",
		"SENTINEL_DATABASE_URL",
	})

	bindEnvKeys("blob.encryption_key", []string{
		"SENTINEL_BLOB_ENCRYPTION_KEY",
	})

	bindEnvKeys("notify.slack.webhook_url", []string{
		"SLACK_WEBHOOK_URL",
		"SLACK_WEBHOOK",
	})

	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"SENTINEL_DEBUG",
	})

	bindEnvKeys("cli.editor", []string{
		"EDITOR",
		"VISUAL",
	})
}

func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

func postProcessConfig(config *Config) error {
	if config.App.DataDir != "" {
		config.App.DataDir = expandPath(config.App.DataDir)
	}
	if config.Blob.Directory != "" {
		config.Blob.Directory = expandPath(config.Blob.Directory)
	}

	durations := map[string]string{
		"feeds.fetch_interval": config.Feeds.FetchInterval,
		"feeds.timeout":        config.Feeds.Timeout,
	}
	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig ensures required configuration is present.
func validateConfig(config *Config) error {
	var errs []string

	if config.AI.Gemini.APIKey == "" {
		errs = append(errs, "Gemini API key is required. Set GEMINI_API_KEY or ai.gemini.api_key in the config file.")
	}

	if config.Database.ConnectionString == "" {
		errs = append(errs, "a Postgres connection string is required. Set DATABASE_URL or database.connection_string in the config file.")
	}

	if config.Blob.EncryptionKey != "" {
		switch len(config.Blob.EncryptionKey) {
		case 32, 48, 64: // hex-encoded 16/24/32-byte AES keys
		default:
			errs = append(errs, "blob.encryption_key must hex-encode a 16, 24, or 32 byte AES key")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func GetApp() App                     { return Get().App }
func GetAI() AI                       { return Get().AI }
func GetDatabase() Database           { return Get().Database }
func GetBlob() Blob                   { return Get().Blob }
func GetServer() Server               { return Get().Server }
func GetPipeline() Pipeline           { return Get().Pipeline }
func GetKeywords() Keywords           { return Get().Keywords }
func GetFeeds() Feeds                 { return Get().Feeds }
func GetGuardrail() Guardrail         { return Get().Guardrail }
func GetNotify() Notify               { return Get().Notify }
func GetLogging() Logging             { return Get().Logging }
func GetCLI() CLI                     { return Get().CLI }
func GetObservability() Observability { return Get().Observability }
