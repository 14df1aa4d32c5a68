package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"TrendScan/pkg/util"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	MarketData struct {
		BaseURL   string        `yaml:"base_url"`
		Symbols   []string      `yaml:"symbols"`
		Timeout   time.Duration `yaml:"timeout"`
		CacheTTL  time.Duration `yaml:"cache_ttl"`
		RateLimit struct {
			Requests int           `yaml:"requests"`
			Window   time.Duration `yaml:"window"`
		} `yaml:"rate_limit"`
	} `yaml:"marketdata"`
	Scan struct {
		Workers          int           `yaml:"workers"`
		Degree           int           `yaml:"degree"`
		KStd             float64       `yaml:"kstd"`
		LookbackDays     int           `yaml:"lookback_days"`
		Interval         string        `yaml:"interval"`
		BatchTimeout     time.Duration `yaml:"batch_timeout"`
		ScheduleInterval time.Duration `yaml:"schedule_interval"`
		Retry            struct {
			MaxAttempts int           `yaml:"max_attempts"`
			BaseDelay   time.Duration `yaml:"base_delay"`
			Multiplier  float64       `yaml:"multiplier"`
		} `yaml:"retry"`
	} `yaml:"scan"`
	Backtest struct {
		Enabled        bool    `yaml:"enabled"`
		InitialCapital float64 `yaml:"initial_capital"`
		CommissionPct  float64 `yaml:"commission_pct"`
		StopLossPct    float64 `yaml:"stop_loss_pct"`
		TakeProfitPct  float64 `yaml:"take_profit_pct"`
		ExitThreshold  float64 `yaml:"exit_threshold"`
	} `yaml:"backtest"`
	Sink struct {
		Type string `yaml:"type"` // clickhouse, kafka, or none
	} `yaml:"sink"`
	ClickHouse struct {
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		RequiredAcks int           `yaml:"required_acks"`
		Compression  string        `yaml:"compression"`
		MaxAttempts  int           `yaml:"max_attempts"`
		BatchSize    int           `yaml:"batch_size"`
		Linger       time.Duration `yaml:"linger"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("SYMBOLS"); v != "" {
		c.MarketData.Symbols = strings.Split(v, ",")
	}
	if v := os.Getenv("MARKETDATA_BASE_URL"); v != "" {
		c.MarketData.BaseURL = v
	}
	if v := os.Getenv("SINK"); v != "" {
		c.Sink.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	c.Server.Port = util.ParseIntDefault(os.Getenv("SERVER_PORT"), c.Server.Port)
	c.Scan.Workers = util.ParseIntDefault(os.Getenv("SCAN_WORKERS"), c.Scan.Workers)
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Scan.Workers <= 0 {
		c.Scan.Workers = 8
	}
	if c.Scan.Degree <= 0 {
		c.Scan.Degree = 2
	}
	if c.Scan.KStd == 0 {
		c.Scan.KStd = 2.0
	}
	if c.Scan.LookbackDays <= 0 {
		c.Scan.LookbackDays = 90
	}
	if c.Scan.Interval == "" {
		c.Scan.Interval = "1d"
	}
	if c.Scan.BatchTimeout <= 0 {
		c.Scan.BatchTimeout = 2 * time.Minute
	}
	if c.Scan.Retry.MaxAttempts <= 0 {
		c.Scan.Retry.MaxAttempts = 3
	}
	if c.Scan.Retry.BaseDelay <= 0 {
		c.Scan.Retry.BaseDelay = 500 * time.Millisecond
	}
	if c.Scan.Retry.Multiplier < 1 {
		c.Scan.Retry.Multiplier = 2.0
	}
	if c.MarketData.RateLimit.Requests <= 0 {
		c.MarketData.RateLimit.Requests = 10
	}
	if c.MarketData.RateLimit.Window <= 0 {
		c.MarketData.RateLimit.Window = time.Second
	}
	if c.MarketData.Timeout <= 0 {
		c.MarketData.Timeout = 15 * time.Second
	}
	if c.MarketData.CacheTTL <= 0 {
		c.MarketData.CacheTTL = 5 * time.Minute
	}
	if c.Sink.Type == "" {
		c.Sink.Type = "none"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	switch c.Sink.Type {
	case "clickhouse", "kafka", "none":
	default:
		return fmt.Errorf("sink.type must be 'clickhouse', 'kafka' or 'none', got '%s'", c.Sink.Type)
	}
	if len(c.MarketData.Symbols) == 0 {
		return fmt.Errorf("marketdata.symbols cannot be empty")
	}
	if c.MarketData.BaseURL == "" {
		return fmt.Errorf("marketdata.base_url is required")
	}
	if c.Scan.KStd <= 0 {
		return fmt.Errorf("scan.kstd must be positive")
	}
	if c.Scan.Degree < 1 {
		return fmt.Errorf("scan.degree must be >= 1")
	}
	return nil
}
