// Package common provides shared utilities for networth
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/bobmcallan/networth/internal/models"
)

// Config holds all configuration for networth
type Config struct {
	Environment     string        `toml:"environment"`
	DisplayCurrency string        `toml:"display_currency"` // summary currency when none is requested; defaults to the data's base currency
	Server          ServerConfig  `toml:"server"`
	Storage         StorageConfig `toml:"storage"`
	Clients         ClientsConfig `toml:"clients"`
	Auth            AuthConfig    `toml:"auth"`
	Prices          PricesConfig  `toml:"prices"`
	Logging         LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Address returns host:port for net.Listen.
func (c ServerConfig) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// StorageConfig holds the device-local store and the optional cloud store.
type StorageConfig struct {
	Local  LocalConfig  `toml:"local"`
	Remote RemoteConfig `toml:"remote"`
}

// LocalConfig holds the BadgerHold path.
type LocalConfig struct {
	Path string `toml:"path"`
}

// RemoteConfig holds SurrealDB connection settings. An empty Address
// runs the service local-only.
type RemoteConfig struct {
	Address      string `toml:"address"`
	Namespace    string `toml:"namespace"`
	Database     string `toml:"database"`
	Username     string `toml:"username"`
	Password     string `toml:"password"`
	PollInterval string `toml:"poll_interval"`
}

// Enabled reports whether a cloud store is configured.
func (c RemoteConfig) Enabled() bool {
	return strings.TrimSpace(c.Address) != ""
}

// GetPollInterval parses and returns the subscription poll interval
func (c RemoteConfig) GetPollInterval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 2 * time.Second
	}
	return d
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Yahoo     YahooConfig     `toml:"yahoo"`
	CoinGecko CoinGeckoConfig `toml:"coingecko"`
}

// YahooConfig holds Yahoo Finance configuration
type YahooConfig struct {
	BaseURL   string `toml:"base_url"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *YahooConfig) GetTimeout() time.Duration {
	return parseTimeout(c.Timeout)
}

// CoinGeckoConfig holds CoinGecko configuration. APIKey is optional.
type CoinGeckoConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *CoinGeckoConfig) GetTimeout() time.Duration {
	return parseTimeout(c.Timeout)
}

func parseTimeout(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// AuthConfig holds session token verification settings.
type AuthConfig struct {
	JWTSecret   string `toml:"jwt_secret"`
	Issuer      string `toml:"issuer"`
	TokenExpiry string `toml:"token_expiry"` // duration string, default "24h"
}

// GetTokenExpiry parses and returns the token expiry duration.
func (c *AuthConfig) GetTokenExpiry() time.Duration {
	d, err := time.ParseDuration(c.TokenExpiry)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// PricesConfig controls the automatic price refresh and symbol search.
type PricesConfig struct {
	RefreshInterval string `toml:"refresh_interval"`
	SearchCacheTTL  string `toml:"search_cache_ttl"`
}

// GetRefreshInterval returns the automatic refresh period; zero disables it.
func (c *PricesConfig) GetRefreshInterval() time.Duration {
	d, err := time.ParseDuration(c.RefreshInterval)
	if err != nil || d < 0 {
		return time.Minute
	}
	return d
}

// GetSearchCacheTTL returns how long search results are cached.
func (c *PricesConfig) GetSearchCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.SearchCacheTTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Format   string   `toml:"format"`  // "console" or "json"
	Outputs  []string `toml:"outputs"` // "console", "file"
	FilePath string   `toml:"file_path"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8480,
		},
		Storage: StorageConfig{
			Local: LocalConfig{Path: "data/local"},
			Remote: RemoteConfig{
				Namespace:    "networth",
				Database:     "networth",
				PollInterval: "2s",
			},
		},
		Clients: ClientsConfig{
			Yahoo: YahooConfig{
				BaseURL:   "https://query1.finance.yahoo.com",
				RateLimit: 5,
				Timeout:   "15s",
			},
			CoinGecko: CoinGeckoConfig{
				BaseURL:   "https://api.coingecko.com/api/v3",
				RateLimit: 1,
				Timeout:   "15s",
			},
		},
		Auth: AuthConfig{
			JWTSecret:   "dev-jwt-secret-change-in-production",
			Issuer:      "networth",
			TokenExpiry: "24h",
		},
		Prices: PricesConfig{
			RefreshInterval: "60s",
			SearchCacheTTL:  "5m",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "console",
			Outputs:  []string{"console"},
			FilePath: "./logs/networth.log",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// A .env file next to the first config file (or in the working directory)
// is loaded first; variables already set in the environment win.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	loadDotEnv(paths...)

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func loadDotEnv(paths ...string) {
	candidates := []string{".env"}
	for _, p := range paths {
		if p != "" {
			candidates = append(candidates, filepath.Join(filepath.Dir(p), ".env"))
			break
		}
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			_ = godotenv.Load(c)
		}
	}
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("NETWORTH_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("NETWORTH_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("NETWORTH_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("NETWORTH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("NETWORTH_DATA_PATH"); path != "" {
		config.Storage.Local.Path = filepath.Join(path, "local")
	}

	if dc := os.Getenv("NETWORTH_DISPLAY_CURRENCY"); dc != "" {
		config.DisplayCurrency = strings.ToUpper(dc)
	}

	// Remote store
	if v := os.Getenv("NETWORTH_SURREALDB_ADDRESS"); v != "" {
		config.Storage.Remote.Address = v
	}
	if v := os.Getenv("NETWORTH_SURREALDB_USERNAME"); v != "" {
		config.Storage.Remote.Username = v
	}
	if v := os.Getenv("NETWORTH_SURREALDB_PASSWORD"); v != "" {
		config.Storage.Remote.Password = v
	}

	// Clients
	if v := os.Getenv("NETWORTH_COINGECKO_API_KEY"); v != "" {
		config.Clients.CoinGecko.APIKey = v
	}

	// Auth
	if v := os.Getenv("NETWORTH_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("NETWORTH_AUTH_ISSUER"); v != "" {
		config.Auth.Issuer = v
	}

	if v := os.Getenv("NETWORTH_PRICE_REFRESH_INTERVAL"); v != "" {
		config.Prices.RefreshInterval = v
	}
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.DisplayCurrency != "" {
		cur, err := models.ParseCurrency(c.DisplayCurrency)
		if err != nil {
			return fmt.Errorf("display_currency: %w", err)
		}
		c.DisplayCurrency = string(cur)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Storage.Local.Path == "" {
		return fmt.Errorf("storage.local.path is required")
	}
	if c.IsProduction() && c.Auth.JWTSecret == NewDefaultConfig().Auth.JWTSecret {
		return fmt.Errorf("auth.jwt_secret must be set in production")
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
