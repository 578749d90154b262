package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Discovery  DiscoveryConfig  `yaml:"discovery" mapstructure:"discovery"`
	ICP        ICPConfig        `yaml:"icp" mapstructure:"icp"`
	SerpAPI    SerpAPIConfig    `yaml:"serpapi" mapstructure:"serpapi"`
	Directory  DirectoryConfig  `yaml:"directory" mapstructure:"directory"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver   string `yaml:"driver" mapstructure:"driver"`
	DSN      string `yaml:"dsn" mapstructure:"dsn"`
	Path     string `yaml:"path" mapstructure:"path"`
	MaxConns int    `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int    `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DiscoveryConfig configures the discovery engine.
type DiscoveryConfig struct {
	Tenant              string   `yaml:"tenant" mapstructure:"tenant"`
	DailyLimit          int      `yaml:"daily_limit" mapstructure:"daily_limit"`
	Timezone            string   `yaml:"timezone" mapstructure:"timezone"`
	FetchConcurrency    int      `yaml:"fetch_concurrency" mapstructure:"fetch_concurrency"`
	SourceTimeoutSecs   int      `yaml:"source_timeout_secs" mapstructure:"source_timeout_secs"`
	QueryBatch          int      `yaml:"query_batch" mapstructure:"query_batch"`
	RotationWindowDays  int      `yaml:"rotation_window_days" mapstructure:"rotation_window_days"`
	ExhaustionThreshold float64  `yaml:"exhaustion_threshold" mapstructure:"exhaustion_threshold"`
	SourceRestHours     int      `yaml:"source_rest_hours" mapstructure:"source_rest_hours"`
	RetentionDays       int      `yaml:"retention_days" mapstructure:"retention_days"`
	Sources             []string `yaml:"sources" mapstructure:"sources"`
	RetryAttempts       int      `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs      int      `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	RetryMaxBackoffMs   int      `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
	BreakerThreshold    int      `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs    int      `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// ICPConfig points at the ideal-customer-profile document.
type ICPConfig struct {
	Profile string `yaml:"profile" mapstructure:"profile"`
}

// SerpAPIConfig holds SerpAPI credentials and client settings.
type SerpAPIConfig struct {
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// DirectoryConfig points at a business-directory export (CSV or XLSX over
// http, ftp, or a local path). Empty URL disables the directory source.
type DirectoryConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	FTPUser     string `yaml:"ftp_user" mapstructure:"ftp_user"`
	FTPPassword string `yaml:"ftp_password" mapstructure:"ftp_password"`
}

// MonitoringConfig configures the background alert checker. An empty
// webhook URL disables it.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
}

// knownSources are the discovery sources the registry can construct.
var knownSources = map[string]bool{
	"google_maps": true,
	"yelp":        true,
	"directory":   true,
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "leadscout.db")
	v.SetDefault("store.max_conns", 8)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8400)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("discovery.tenant", "default")
	v.SetDefault("discovery.daily_limit", 50)
	v.SetDefault("discovery.timezone", "Pacific/Honolulu")
	v.SetDefault("discovery.fetch_concurrency", 4)
	v.SetDefault("discovery.source_timeout_secs", 30)
	v.SetDefault("discovery.query_batch", 5)
	v.SetDefault("discovery.rotation_window_days", 7)
	v.SetDefault("discovery.exhaustion_threshold", 0.8)
	v.SetDefault("discovery.source_rest_hours", 24)
	v.SetDefault("discovery.retention_days", 30)
	v.SetDefault("discovery.sources", []string{"google_maps", "yelp"})
	v.SetDefault("serpapi.base_url", "https://serpapi.com")
	v.SetDefault("serpapi.rate_limit", 1.0)
	v.SetDefault("serpapi.timeout_secs", 20)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)

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

// Validate checks that the configuration can support the given mode.
// Modes: "store" (migrate/leads/import), "discover" (one-shot pass and
// status/reset), "serve" (HTTP server, implies discover).
func (c *Config) Validate(mode string) error {
	switch mode {
	case "store", "discover", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	var problems []string

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DSN == "" {
			problems = append(problems, "store.dsn is required for the postgres driver")
		}
	case "sqlite":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required for the sqlite driver")
		}
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}

	if mode == "discover" || mode == "serve" {
		if c.Discovery.DailyLimit <= 0 {
			problems = append(problems, "discovery.daily_limit must be > 0")
		}
		if c.Discovery.FetchConcurrency < 1 || c.Discovery.FetchConcurrency > 32 {
			problems = append(problems, "discovery.fetch_concurrency must be between 1 and 32")
		}
		if c.Discovery.ExhaustionThreshold <= 0 || c.Discovery.ExhaustionThreshold > 1 {
			problems = append(problems, "discovery.exhaustion_threshold must be in (0, 1]")
		}
		if _, err := time.LoadLocation(c.Discovery.Timezone); err != nil {
			problems = append(problems, "discovery.timezone is not a valid IANA zone")
		}
		if len(c.Discovery.Sources) == 0 {
			problems = append(problems, "discovery.sources must name at least one source")
		}
		needsSerpAPI := false
		for _, name := range c.Discovery.Sources {
			if !knownSources[name] {
				problems = append(problems, "discovery.sources contains unknown source "+name)
				continue
			}
			if name == "google_maps" || name == "yelp" {
				needsSerpAPI = true
			}
			if name == "directory" && c.Directory.URL == "" {
				problems = append(problems, "directory.url is required when the directory source is enabled")
			}
		}
		if needsSerpAPI && c.SerpAPI.APIKey == "" {
			problems = append(problems, "serpapi.api_key is required")
		}
	}

	if mode == "serve" {
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Monitoring.WebhookURL != "" {
			if c.Monitoring.CheckIntervalSecs <= 0 {
				problems = append(problems, "monitoring.check_interval_secs must be > 0")
			}
			if c.Monitoring.LookbackWindowHours <= 0 {
				problems = append(problems, "monitoring.lookback_window_hours must be > 0")
			}
			if c.Monitoring.FailureRateThreshold <= 0 || c.Monitoring.FailureRateThreshold > 1 {
				problems = append(problems, "monitoring.failure_rate_threshold must be in (0, 1]")
			}
		}
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Location resolves the configured discovery timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Discovery.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "config: timezone %q", c.Discovery.Timezone)
	}
	return loc, nil
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
