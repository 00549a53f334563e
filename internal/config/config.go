package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Orders      OrdersConfig      `yaml:"orders" mapstructure:"orders"`
	Mapping     MappingConfig     `yaml:"mapping" mapstructure:"mapping"`
	Inspections InspectionsConfig `yaml:"inspections" mapstructure:"inspections"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Analytics   AnalyticsConfig   `yaml:"analytics" mapstructure:"analytics"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Monitoring  MonitoringConfig  `yaml:"monitoring" mapstructure:"monitoring"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// OrdersConfig points at the order dataset. Source may be a local path or an
// http(s):// or ftp:// URL.
type OrdersConfig struct {
	Source string `yaml:"source" mapstructure:"source"`
}

// MappingConfig points at the curated restaurant name mapping (JSON or YAML).
type MappingConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// InspectionsConfig configures the open-data inspection provider and its
// refresh policy.
type InspectionsConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	AppToken          string  `yaml:"app_token" mapstructure:"app_token"`
	BatchSize         int     `yaml:"batch_size" mapstructure:"batch_size"`
	MaxRecords        int     `yaml:"max_records" mapstructure:"max_records"`
	MaxAgeDays        int     `yaml:"max_age_days" mapstructure:"max_age_days"`
	CheckIntervalMins int     `yaml:"check_interval_mins" mapstructure:"check_interval_mins"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	BreakerThreshold  int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetMins  int     `yaml:"breaker_reset_mins" mapstructure:"breaker_reset_mins"`
	MappedOnly        bool    `yaml:"mapped_only" mapstructure:"mapped_only"`
}

// CacheConfig selects where the inspection snapshot is persisted between runs.
type CacheConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	Path        string     `yaml:"path" mapstructure:"path"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Blob        BlobConfig `yaml:"blob" mapstructure:"blob"`
}

// BlobConfig configures the Azure Blob Storage cache backend. When
// ConnectionString is empty the default Azure credential chain is used
// against AccountURL.
type BlobConfig struct {
	ConnectionString string `yaml:"connection_string" mapstructure:"connection_string"`
	AccountURL       string `yaml:"account_url" mapstructure:"account_url"`
	Container        string `yaml:"container" mapstructure:"container"`
	Name             string `yaml:"name" mapstructure:"name"`
}

// AnalyticsConfig holds query defaults.
type AnalyticsConfig struct {
	DefaultDays int `yaml:"default_days" mapstructure:"default_days"`
	DefaultTopN int `yaml:"default_top_n" mapstructure:"default_top_n"`
}

// ServerConfig configures the HTTP query surface.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MonitoringConfig configures snapshot health alerts. Alerts are off while
// WebhookURL is empty.
type MonitoringConfig struct {
	WebhookURL        string `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Cache drivers.
const (
	CacheNone     = "none"
	CacheSQLite   = "sqlite"
	CachePostgres = "postgres"
	CacheBlob     = "azblob"
)

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ORDERRISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("orders.source", "data/food_order.csv")
	v.SetDefault("mapping.path", "data/restaurant_mapping.json")
	v.SetDefault("inspections.base_url", "https://data.cityofnewyork.us/resource/43nn-pn8j.json")
	v.SetDefault("inspections.app_token", "")
	v.SetDefault("inspections.batch_size", 10000)
	v.SetDefault("inspections.max_records", 200000)
	v.SetDefault("inspections.max_age_days", 7)
	v.SetDefault("inspections.check_interval_mins", 60)
	v.SetDefault("inspections.timeout_secs", 60)
	v.SetDefault("inspections.requests_per_second", 2.0)
	v.SetDefault("inspections.max_retries", 3)
	v.SetDefault("inspections.breaker_threshold", 3)
	v.SetDefault("inspections.breaker_reset_mins", 30)
	v.SetDefault("inspections.mapped_only", true)
	v.SetDefault("cache.driver", CacheSQLite)
	v.SetDefault("cache.path", "data/inspections.db")
	v.SetDefault("cache.database_url", "")
	v.SetDefault("cache.blob.connection_string", "")
	v.SetDefault("cache.blob.account_url", "")
	v.SetDefault("cache.blob.container", "orderrisk")
	v.SetDefault("cache.blob.name", "inspections.json")
	v.SetDefault("analytics.default_days", 90)
	v.SetDefault("analytics.default_top_n", 10)
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks values that would otherwise fail late, deep inside a
// refresh or a request.
func (c *Config) Validate() error {
	switch c.Cache.Driver {
	case CacheNone, CacheSQLite, CachePostgres, CacheBlob:
	default:
		return eris.Errorf("config: unknown cache driver %q", c.Cache.Driver)
	}
	if c.Cache.Driver == CachePostgres && c.Cache.DatabaseURL == "" {
		return eris.New("config: cache.database_url is required for the postgres cache")
	}
	if c.Cache.Driver == CacheBlob && c.Cache.Blob.ConnectionString == "" && c.Cache.Blob.AccountURL == "" {
		return eris.New("config: cache.blob needs connection_string or account_url")
	}
	if c.Inspections.BatchSize <= 0 {
		return eris.Errorf("config: inspections.batch_size must be positive, got %d", c.Inspections.BatchSize)
	}
	if c.Inspections.MaxAgeDays <= 0 {
		return eris.Errorf("config: inspections.max_age_days must be positive, got %d", c.Inspections.MaxAgeDays)
	}
	if c.Inspections.CheckIntervalMins <= 0 {
		return eris.Errorf("config: inspections.check_interval_mins must be positive, got %d", c.Inspections.CheckIntervalMins)
	}
	if c.Analytics.DefaultDays < 1 {
		return eris.Errorf("config: analytics.default_days must be >= 1, got %d", c.Analytics.DefaultDays)
	}
	if c.Analytics.DefaultTopN < 1 {
		return eris.Errorf("config: analytics.default_top_n must be >= 1, got %d", c.Analytics.DefaultTopN)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
