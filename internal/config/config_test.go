package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

// resetGlobalConfig clears the package-level cache between test cases;
// Load() itself has no reset path since production code only ever loads
// configuration once per process.
func resetGlobalConfig() {
	globalConfig = nil
	viper.Reset()
}

func TestLoadAppliesDefaults(t *testing.T) {
	resetGlobalConfig()
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("DATABASE_URL", "postgres://localhost/sentinel_test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Pipeline.MaxConcurrency != 5 {
		t.Errorf("Pipeline.MaxConcurrency = %d, want 5", cfg.Pipeline.MaxConcurrency)
	}
	if cfg.Pipeline.ArticleDeadline != 120*time.Second {
		t.Errorf("Pipeline.ArticleDeadline = %v, want 120s", cfg.Pipeline.ArticleDeadline)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.AI.Gemini.GenerativeModel == "" {
		t.Error("AI.Gemini.GenerativeModel should have a default")
	}
}

func TestLoadPicksUpAliasedEnvironmentVariables(t *testing.T) {
	resetGlobalConfig()
	t.Setenv("GOOGLE_AI_API_KEY", "aliased-key")
	t.Setenv("DATABASE_URL", "postgres://localhost/sentinel_test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.Gemini.APIKey != "aliased-key" {
		t.Errorf("AI.Gemini.APIKey = %q, want %q", cfg.AI.Gemini.APIKey, "aliased-key")
	}
}

func TestLoadFirstAliasWins(t *testing.T) {
	resetGlobalConfig()
	t.Setenv("GEMINI_API_KEY", "primary")
	t.Setenv("GOOGLE_AI_API_KEY", "secondary")
	t.Setenv("DATABASE_URL", "postgres://localhost/sentinel_test")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.Gemini.APIKey != "primary" {
		t.Errorf("AI.Gemini.APIKey = %q, want %q", cfg.AI.Gemini.APIKey, "primary")
	}
}

func TestLoadMissingRequiredFieldsFails(t *testing.T) {
	resetGlobalConfig()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(""); err == nil {
		t.Fatal("Load() error = nil, want missing-field error")
	}
}

func TestPostProcessConfigExpandsDataDir(t *testing.T) {
	resetGlobalConfig()
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("DATABASE_URL", "postgres://localhost/sentinel_test")

	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir() error = %v", err)
	}

	cfg := &Config{App: App{DataDir: "~/sentinel-data"}}
	if err := postProcessConfig(cfg); err != nil {
		t.Fatalf("postProcessConfig() error = %v", err)
	}
	want := filepath.Join(home, "sentinel-data")
	if cfg.App.DataDir != want {
		t.Errorf("App.DataDir = %q, want %q", cfg.App.DataDir, want)
	}
}

func TestPostProcessConfigRejectsInvalidDuration(t *testing.T) {
	cfg := &Config{Feeds: Feeds{Timeout: "not-a-duration"}}
	if err := postProcessConfig(cfg); err == nil {
		t.Fatal("postProcessConfig() error = nil, want invalid-duration error")
	}
}

func TestValidateConfigRejectsBadBlobKeyLength(t *testing.T) {
	cfg := &Config{
		AI:       AI{Gemini: GeminiConfig{APIKey: "k"}},
		Database: Database{ConnectionString: "postgres://localhost/db"},
		Blob:     Blob{EncryptionKey: "tooshort"},
	}
	if err := validateConfig(cfg); err == nil {
		t.Fatal("validateConfig() error = nil, want encryption-key error")
	}
}
