package models

// MConfig Structure
type MConfig struct {
	Name      string           `yaml:"name"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	LogLevel  string           `yaml:"log_level"`
	GrpcHost  string           `yaml:"grpc_host"`
	GrpcPort  int              `yaml:"grpc_port"`
	Storage   MStorageConfig   `yaml:"storage"`
	Network   MNetworkConfig   `yaml:"network"`
	Exchange  MExchangeConfig  `yaml:"exchange"`
	Stream    MStreamConfig    `yaml:"stream"`
	Reconcile MReconcileConfig `yaml:"reconcile"`
	News      MNewsConfig      `yaml:"news"`
}

// GetLogLevel lets the logger read the level without importing config.
func (c *MConfig) GetLogLevel() string {
	if c == nil {
		return ""
	}
	return c.LogLevel
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}

type MNetworkConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Proxies        []string `yaml:"proxies"`
	RequestTimeout int      `yaml:"timeout"`
	MaxRetries     int      `yaml:"retries"`
	UserAgent      string   `yaml:"user_agent"`
}

// MExchangeConfig points at the exchange's public REST and stream endpoints.
type MExchangeConfig struct {
	RestBaseURL            string `yaml:"rest_base_url"`
	StreamBaseURL          string `yaml:"stream_base_url"`
	TickerStream           string `yaml:"ticker_stream"`
	KlineInterval          string `yaml:"kline_interval"`
	KlineLimit             int    `yaml:"kline_limit"`
	MaxCandles             int    `yaml:"max_candles"`
	SnapshotRefreshSeconds int    `yaml:"snapshot_refresh_seconds"`
	DefaultSymbol          string `yaml:"default_symbol"`
}

// MStreamConfig drives reconnect backoff and message coalescing.
type MStreamConfig struct {
	BaseDelayMs        int `yaml:"base_delay_ms"`
	MaxDelayMs         int `yaml:"max_delay_ms"`
	MaxAttempts        int `yaml:"max_attempts"`
	TickerThrottleMs   int `yaml:"ticker_throttle_ms"`
	KlineThrottleMs    int `yaml:"kline_throttle_ms"`
	ReadTimeoutSeconds int `yaml:"read_timeout_seconds"`
}

type MReconcileConfig struct {
	IncludeStreamOnly bool `yaml:"include_stream_only"`
}

type MNewsConfig struct {
	Enabled         bool   `yaml:"enabled"`
	BaseURL         string `yaml:"base_url"`
	APIKey          string `yaml:"api_key"`
	Language        string `yaml:"language"`
	PageSize        int    `yaml:"page_size"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}
