package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config contains all runtime settings for the conversation service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	// DataDir holds the local sqlite store and any scratch files.
	DataDir      string
	StoreBackend string
	DatabaseURL  string

	AssistantMode    string
	AssistantHTTPURL string
	AssistantTimeout time.Duration

	AnonMessageLimit  int
	ReconcileDebounce time.Duration
}

// fileConfig is the optional YAML overlay read from APP_CONFIG_FILE.
// Env variables win over file values.
type fileConfig struct {
	BindAddr         string `yaml:"bind_addr"`
	DataDir          string `yaml:"data_dir"`
	StoreBackend     string `yaml:"store_backend"`
	DatabaseURL      string `yaml:"database_url"`
	AssistantMode    string `yaml:"assistant_mode"`
	AssistantHTTPURL string `yaml:"assistant_http_url"`
	MetricsNamespace string `yaml:"metrics_namespace"`
	AnonMessageLimit *int   `yaml:"anon_message_limit"`
}

// Load reads the optional config file, then environment variables, and
// applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:          ":8080",
		MetricsNamespace:  "healthecho",
		DataDir:           defaultDataDir(),
		StoreBackend:      "auto",
		AssistantMode:     "auto",
		AssistantTimeout:  60 * time.Second,
		AnonMessageLimit:  5,
		ShutdownTimeout:   15 * time.Second,
		ReconcileDebounce: 150 * time.Millisecond,
	}

	if path := envTrimmed("APP_CONFIG_FILE"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	cfg.BindAddr = envOrDefault("APP_BIND_ADDR", cfg.BindAddr)
	cfg.MetricsNamespace = envOrDefault("APP_METRICS_NAMESPACE", cfg.MetricsNamespace)
	cfg.DataDir = envOrDefault("APP_DATA_DIR", cfg.DataDir)
	cfg.StoreBackend = strings.ToLower(envOrDefault("APP_STORE_BACKEND", cfg.StoreBackend))
	if v := envTrimmed("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	cfg.AssistantMode = strings.ToLower(envOrDefault("ASSISTANT_MODE", cfg.AssistantMode))
	if v := envTrimmed("ASSISTANT_HTTP_URL"); v != "" {
		cfg.AssistantHTTPURL = v
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AssistantTimeout, err = durationFromEnv("ASSISTANT_TIMEOUT", cfg.AssistantTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ReconcileDebounce, err = durationFromEnv("APP_RECONCILE_DEBOUNCE", cfg.ReconcileDebounce)
	if err != nil {
		return Config{}, err
	}
	cfg.AnonMessageLimit, err = intFromEnv("APP_ANON_MESSAGE_LIMIT", cfg.AnonMessageLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	switch cfg.StoreBackend {
	case "auto", "memory", "sqlite", "postgres":
	default:
		return Config{}, fmt.Errorf("APP_STORE_BACKEND must be auto, memory, sqlite or postgres")
	}
	switch cfg.AssistantMode {
	case "auto", "http", "mock":
	default:
		return Config{}, fmt.Errorf("ASSISTANT_MODE must be auto, http or mock")
	}
	if cfg.AssistantMode == "http" && cfg.AssistantHTTPURL == "" {
		return Config{}, fmt.Errorf("ASSISTANT_HTTP_URL is required when ASSISTANT_MODE=http")
	}
	if cfg.StoreBackend == "postgres" && cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required when APP_STORE_BACKEND=postgres")
	}
	if cfg.AnonMessageLimit <= 0 {
		return Config{}, fmt.Errorf("APP_ANON_MESSAGE_LIMIT must be positive")
	}
	if cfg.ReconcileDebounce < 0 {
		return Config{}, fmt.Errorf("APP_RECONCILE_DEBOUNCE must not be negative")
	}

	return cfg, nil
}

// StorePath returns the sqlite database location inside DataDir.
func (c Config) StorePath() string {
	return filepath.Join(c.DataDir, "healthecho.db")
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	if fc.BindAddr != "" {
		cfg.BindAddr = fc.BindAddr
	}
	if fc.DataDir != "" {
		cfg.DataDir = fc.DataDir
	}
	if fc.StoreBackend != "" {
		cfg.StoreBackend = strings.ToLower(fc.StoreBackend)
	}
	if fc.DatabaseURL != "" {
		cfg.DatabaseURL = fc.DatabaseURL
	}
	if fc.AssistantMode != "" {
		cfg.AssistantMode = strings.ToLower(fc.AssistantMode)
	}
	if fc.AssistantHTTPURL != "" {
		cfg.AssistantHTTPURL = fc.AssistantHTTPURL
	}
	if fc.MetricsNamespace != "" {
		cfg.MetricsNamespace = fc.MetricsNamespace
	}
	if fc.AnonMessageLimit != nil {
		cfg.AnonMessageLimit = *fc.AnonMessageLimit
	}
	return nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".healthecho"
	}
	return filepath.Join(home, ".healthecho")
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
