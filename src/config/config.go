package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"market-dashboard/src/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides applied after the YAML file is parsed.
const (
	EnvLogLevel     = "DASHBOARD_LOG_LEVEL"
	EnvPort         = "DASHBOARD_PORT"
	EnvDBConnString = "DASHBOARD_DB_CONNECTION_STRING"
	EnvNewsAPIKey   = "DASHBOARD_NEWS_API_KEY"
	EnvSymbol       = "DASHBOARD_DEFAULT_SYMBOL"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config from a YAML file, a .env file next to the
// working directory (optional) and DASHBOARD_* environment variables.
func NewConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// Parse decodes YAML on top of the built-in defaults without validating.
func Parse(data []byte) (*Config, error) {
	modelConfig := Defaults()
	if err := yaml.Unmarshal(data, modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}
	return &Config{MConfig: modelConfig}, nil
}

// -----------------------------------------------------------------------------

// Defaults mirror the public Binance endpoints and the dashboard's timings.
func Defaults() *models.MConfig {
	return &models.MConfig{
		Name:     "market-dashboard",
		Host:     "127.0.0.1",
		Port:     8000,
		LogLevel: "INFO",
		GrpcHost: "127.0.0.1",
		GrpcPort: 50051,
		Storage: models.MStorageConfig{
			DBType: "sqlite",
			DBPath: "dashboard.db",
		},
		Network: models.MNetworkConfig{
			RequestTimeout: 10,
			MaxRetries:     2,
		},
		Exchange: models.MExchangeConfig{
			RestBaseURL:            "https://api.binance.com",
			StreamBaseURL:          "wss://stream.binance.com:9443/ws",
			TickerStream:           "!ticker@arr",
			KlineInterval:          "1h",
			KlineLimit:             500,
			MaxCandles:             500,
			SnapshotRefreshSeconds: 60,
			DefaultSymbol:          "BTCUSDT",
		},
		Stream: models.MStreamConfig{
			BaseDelayMs:        1000,
			MaxDelayMs:         30000,
			MaxAttempts:        5,
			TickerThrottleMs:   500,
			KlineThrottleMs:    1000,
			ReadTimeoutSeconds: 60,
		},
		News: models.MNewsConfig{
			BaseURL:         "https://newsapi.org/v2/everything",
			Language:        "en",
			PageSize:        10,
			CacheTTLSeconds: 300,
		},
	}
}

// -----------------------------------------------------------------------------

// LoadDotEnv loads KEY=VALUE pairs into the process environment. A missing
// file is not an error; variables already set win over the file.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file '%s': %w", path, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// ApplyEnv overrides selected fields from DASHBOARD_* variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv(EnvDBConnString); v != "" {
		c.Storage.DBConnectionString = v
	}
	if v := os.Getenv(EnvNewsAPIKey); v != "" {
		c.News.APIKey = v
		c.News.Enabled = true
	}
	if v := os.Getenv(EnvSymbol); v != "" {
		c.Exchange.DefaultSymbol = strings.ToUpper(v)
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort < 0 || c.GrpcPort > 65535 {
		return fmt.Errorf("invalid grpc port number: %d", c.GrpcPort)
	}

	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	default:
		return fmt.Errorf("unsupported database type: %q", c.Storage.DBType)
	}

	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.Network.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	ex := c.Exchange
	if ex.RestBaseURL == "" || ex.StreamBaseURL == "" {
		return fmt.Errorf("exchange rest and stream base urls are required")
	}
	if ex.TickerStream == "" {
		return fmt.Errorf("ticker stream name cannot be empty")
	}
	if ex.KlineInterval == "" {
		return fmt.Errorf("kline interval cannot be empty")
	}
	if ex.KlineLimit <= 0 || ex.KlineLimit > 1000 {
		return fmt.Errorf("kline limit must be between 1 and 1000, got %d", ex.KlineLimit)
	}
	if ex.MaxCandles <= 0 {
		return fmt.Errorf("max candles must be greater than 0")
	}
	if ex.SnapshotRefreshSeconds < 0 {
		return fmt.Errorf("snapshot refresh cannot be negative")
	}
	if ex.DefaultSymbol == "" {
		return fmt.Errorf("default symbol cannot be empty")
	}

	st := c.Stream
	if st.BaseDelayMs <= 0 {
		return fmt.Errorf("stream base delay must be greater than 0")
	}
	if st.MaxDelayMs < st.BaseDelayMs {
		return fmt.Errorf("stream max delay (%dms) is below base delay (%dms)", st.MaxDelayMs, st.BaseDelayMs)
	}
	if st.MaxAttempts < 0 {
		return fmt.Errorf("stream max attempts cannot be negative")
	}
	if st.TickerThrottleMs < 0 || st.KlineThrottleMs < 0 {
		return fmt.Errorf("throttle intervals cannot be negative")
	}

	if c.News.Enabled {
		if c.News.BaseURL == "" {
			return fmt.Errorf("news base url is required when news is enabled")
		}
		if c.News.PageSize <= 0 {
			return fmt.Errorf("news page size must be greater than 0")
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
