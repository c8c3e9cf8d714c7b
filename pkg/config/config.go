// Package config provides configuration loading and secret management for
// the aifoundry service. It handles a JSON config file, environment
// variable overrides, and an encrypted secrets file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Config file constants.
const (
	ConfigFilename = "config.json"
	DataDirName    = ".aifoundry"
	SchemaVersion  = "1.0"
)

// AzureOpenAIConfig holds the planner model endpoint settings.
type AzureOpenAIConfig struct {
	Endpoint   string `json:"endpoint"`
	APIVersion string `json:"api_version"`
	Model      string `json:"model"`
}

// GitHubOAuthConfig holds the platform's own OAuth app settings.
// The client secret is resolved through the secrets layer, never stored
// in the config file.
type GitHubOAuthConfig struct {
	ClientID    string `json:"client_id"`
	RedirectURI string `json:"redirect_uri"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Config is the root configuration for the service.
type Config struct {
	SchemaVersion  string            `json:"schema_version"`
	Server         ServerConfig      `json:"server"`
	AzureOpenAI    AzureOpenAIConfig `json:"azure_openai"`
	GitHubOAuth    GitHubOAuthConfig `json:"github_oauth"`
	DevinAPIBase   string            `json:"devin_api_base"`
	DataDir        string            `json:"data_dir"`
	FetchStarCount bool              `json:"fetch_star_count"`
}

//nolint:gochecknoglobals // process-wide config, set once at startup
var (
	globalConfig *Config
	globalMu     sync.RWMutex
)

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		SchemaVersion: SchemaVersion,
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		AzureOpenAI: AzureOpenAIConfig{
			APIVersion: "preview",
			Model:      "gpt-5-nano",
		},
		DevinAPIBase:   "https://api.devin.ai",
		DataDir:        DataDirName,
		FetchStarCount: true,
	}
}

// Load reads configuration from the given directory's config.json, applies
// environment overrides, and installs the result as the process config.
// A missing config file is not an error; defaults plus environment apply.
func Load(dir string) (*Config, error) {
	cfg := Defaults()

	path := filepath.Join(dir, ConfigFilename)
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if cfg.DataDir == "" {
		cfg.DataDir = DataDirName
	}
	if !filepath.IsAbs(cfg.DataDir) {
		cfg.DataDir = filepath.Join(dir, cfg.DataDir)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	globalMu.Lock()
	globalConfig = cfg
	globalMu.Unlock()
	return cfg, nil
}

// Get returns the process configuration installed by Load.
func Get() (*Config, error) {
	globalMu.RLock()
	defer globalMu.RUnlock()
	if globalConfig == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	return globalConfig, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AZURE_OPENAI_ENDPOINT"); v != "" {
		cfg.AzureOpenAI.Endpoint = v
	}
	if v := os.Getenv("API_VERSION"); v != "" {
		cfg.AzureOpenAI.APIVersion = v
	}
	if v := os.Getenv("MODEL_NAME"); v != "" {
		cfg.AzureOpenAI.Model = v
	}
	if v := os.Getenv("GITHUB_CLIENT_ID"); v != "" {
		cfg.GitHubOAuth.ClientID = v
	}
	if v := os.Getenv("GITHUB_REDIRECT_URI"); v != "" {
		cfg.GitHubOAuth.RedirectURI = v
	}
	if v := os.Getenv("DEVIN_API_BASE_URL"); v != "" {
		cfg.DevinAPIBase = v
	}
	if v := os.Getenv("AIFOUNDRY_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
}
