// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Auth providers.
const (
	AuthProviderFirebase = "firebase"
	AuthProviderLocal    = "local"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Data    DataConfig
	Server  ServerConfig
	Catalog CatalogConfig
	Auth    AuthConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// IsProduction reports whether the app runs in production.
func (a AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// DataConfig holds on-disk storage locations.
type DataConfig struct {
	BasePath string
}

// DBPath returns the badger directory.
func (d DataConfig) DBPath() string {
	return filepath.Join(d.BasePath, "db")
}

// BackupDir returns the default directory for store backups.
func (d DataConfig) BackupDir() string {
	return filepath.Join(d.BasePath, "backups")
}

// CachePath returns the catalog cache database file.
func (d DataConfig) CachePath() string {
	return filepath.Join(d.BasePath, "cache", "catalog.db")
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           string        // Server port (default: 8080)
	ReadTimeout    time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout   time.Duration // HTTP write timeout (default: 30s)
	IdleTimeout    time.Duration // HTTP idle timeout (default: 60s)
	AllowedOrigins []string      // CORS origins (default: http://localhost:3000)
	RateLimitRPS   float64       // Per-IP request rate (default: 20)
	RateLimitBurst int           // Per-IP burst (default: 40)
}

// CatalogConfig holds settings for the external bibliographic catalog.
type CatalogConfig struct {
	BaseURL          string
	Timeout          time.Duration
	RequestsPerSec   float64
	Burst            int
	RetryAttempts    int
	RetryDelay       time.Duration
	BreakerThreshold int
	CacheTTL         time.Duration // zero disables the detail cache
}

// AuthConfig holds identity and session configuration.
type AuthConfig struct {
	Provider          string // firebase or local
	FirebaseProjectID string
	CredentialsFile   string // Optional service account JSON
	// Local provider: a secret to derive the PASETO key from, or a key file.
	LocalSecret  string
	LocalKeyPath string
	SessionTTL   time.Duration
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("bookshare", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := fs.String("data-path", "", "Base path for the database and caches")

	serverPort := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 30s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	origins := fs.String("allowed-origins", "", "Comma separated CORS origins")

	catalogURL := fs.String("catalog-url", "", "Bibliographic catalog endpoint")
	catalogTimeout := fs.String("catalog-timeout", "", "Catalog request timeout (default: 10s)")
	cacheTTL := fs.String("catalog-cache-ttl", "", "Book detail cache TTL, 0 disables (default: 24h)")

	authProvider := fs.String("auth-provider", "", "Identity provider (firebase, local)")
	projectID := fs.String("firebase-project", "", "Firebase project ID")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Data: DataConfig{
			BasePath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*origins, "ALLOWED_ORIGINS", "http://localhost:3000")),
			RateLimitRPS:   getFloatConfigValue("", "RATE_LIMIT_RPS", 20),
			RateLimitBurst: getIntConfigValue("", "RATE_LIMIT_BURST", 40),
		},
		Catalog: CatalogConfig{
			BaseURL:          getConfigValue(*catalogURL, "CATALOG_URL", "https://data.bn.org.pl/api/institutions/bibs.json"),
			RequestsPerSec:   getFloatConfigValue("", "CATALOG_RPS", 5),
			Burst:            getIntConfigValue("", "CATALOG_BURST", 10),
			RetryAttempts:    getIntConfigValue("", "CATALOG_RETRY_ATTEMPTS", 3),
			BreakerThreshold: getIntConfigValue("", "CATALOG_BREAKER_THRESHOLD", 5),
		},
		Auth: AuthConfig{
			Provider:          getConfigValue(*authProvider, "AUTH_PROVIDER", AuthProviderLocal),
			FirebaseProjectID: getConfigValue(*projectID, "FIREBASE_PROJECT_ID", ""),
			CredentialsFile:   getConfigValue("", "GOOGLE_APPLICATION_CREDENTIALS", ""),
			LocalSecret:       getConfigValue("", "AUTH_LOCAL_SECRET", ""),
			LocalKeyPath:      getConfigValue("", "AUTH_LOCAL_KEY_PATH", ""),
		},
	}

	durations := []struct {
		flagValue, envKey, def string
		dst                    *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "30s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{*catalogTimeout, "CATALOG_TIMEOUT", "10s", &cfg.Catalog.Timeout},
		{"", "CATALOG_RETRY_DELAY", "200ms", &cfg.Catalog.RetryDelay},
		{*cacheTTL, "CATALOG_CACHE_TTL", "24h", &cfg.Catalog.CacheTTL},
		{"", "SESSION_TTL", "120h", &cfg.Auth.SessionTTL},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}
	if cfg.Auth.LocalKeyPath == "" {
		cfg.Auth.LocalKeyPath = filepath.Join(cfg.Data.BasePath, "auth.key")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Data.BasePath == "" {
		return errors.New("data base path cannot be empty after expansion")
	}

	if c.Catalog.BaseURL == "" {
		return errors.New("CATALOG_URL is required")
	}
	if c.Catalog.RetryAttempts < 1 {
		return errors.New("CATALOG_RETRY_ATTEMPTS must be at least 1")
	}

	switch c.Auth.Provider {
	case AuthProviderFirebase:
		if c.Auth.FirebaseProjectID == "" {
			return errors.New("FIREBASE_PROJECT_ID is required for the firebase auth provider")
		}
	case AuthProviderLocal:
		if c.App.IsProduction() {
			return errors.New("the local auth provider cannot be used in production")
		}
	default:
		return fmt.Errorf("invalid auth provider: %s (must be firebase or local)", c.Auth.Provider)
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath defaults the data directory to ~/BookShare/data.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "BookShare", "data")

	expanded, err := expandPath(c.Data.BasePath, defaultPath)
	if err != nil {
		return err
	}
	c.Data.BasePath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return result
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Env vars take precedence over the .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
