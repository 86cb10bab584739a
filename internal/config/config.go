// Package config loads cadastre-cli settings and initializes logging.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Cadastre   CadastreConfig   `yaml:"cadastre" mapstructure:"cadastre"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Jobs       JobsConfig       `yaml:"jobs" mapstructure:"jobs"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// CadastreConfig configures the parcel lookup service and enrichment.
type CadastreConfig struct {
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit    float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RetryDelayMs int     `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	ColumnPrefix string  `yaml:"column_prefix" mapstructure:"column_prefix"`
}

// StorageConfig configures the file store holding input and output tables.
type StorageConfig struct {
	Driver     string      `yaml:"driver" mapstructure:"driver"` // "local", "sqlite", "ftp" or "minio"
	Folder     string      `yaml:"folder" mapstructure:"folder"`
	LocalDir   string      `yaml:"local_dir" mapstructure:"local_dir"`
	SQLitePath string      `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	FTP        FTPConfig   `yaml:"ftp" mapstructure:"ftp"`
	MinIO      MinIOConfig `yaml:"minio" mapstructure:"minio"`
}

// FTPConfig holds FTP file store settings.
type FTPConfig struct {
	Addr        string `yaml:"addr" mapstructure:"addr"`
	User        string `yaml:"user" mapstructure:"user"`
	Password    string `yaml:"password" mapstructure:"password"`
	Dir         string `yaml:"dir" mapstructure:"dir"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// MinIOConfig holds S3-compatible object store settings.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	Region    string `yaml:"region" mapstructure:"region"`
	Prefix    string `yaml:"prefix" mapstructure:"prefix"`
	UseSSL    bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
}

// StoreConfig configures the job record database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// JobsConfig configures the job dispatcher.
type JobsConfig struct {
	Workers     int `yaml:"workers" mapstructure:"workers"`
	QueueSize   int `yaml:"queue_size" mapstructure:"queue_size"`
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
}

// MonitoringConfig configures job outcome alerts.
type MonitoringConfig struct {
	Enabled              bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	MinRowSuccessRate    float64 `yaml:"min_row_success_rate" mapstructure:"min_row_success_rate"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CADASTRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("cadastre.base_url", "https://apicarto.ign.fr/api/cadastre/parcelle")
	v.SetDefault("cadastre.rate_limit", 10.0)
	v.SetDefault("cadastre.timeout_secs", 30)
	v.SetDefault("cadastre.retry_delay_ms", 1000)
	v.SetDefault("cadastre.column_prefix", "cadastre_")
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.folder", "cadastreapi_tmp_storage")
	v.SetDefault("storage.local_dir", "data")
	v.SetDefault("storage.sqlite_path", "files.db")
	v.SetDefault("storage.ftp.addr", "")
	v.SetDefault("storage.ftp.user", "anonymous")
	v.SetDefault("storage.ftp.password", "anonymous@")
	v.SetDefault("storage.ftp.dir", "/")
	v.SetDefault("storage.ftp.timeout_secs", 30)
	v.SetDefault("storage.minio.endpoint", "")
	v.SetDefault("storage.minio.access_key", "")
	v.SetDefault("storage.minio.secret_key", "")
	v.SetDefault("storage.minio.bucket", "cadastre")
	v.SetDefault("storage.minio.region", "")
	v.SetDefault("storage.minio.prefix", "")
	v.SetDefault("storage.minio.use_ssl", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "cadastre.db")
	v.SetDefault("jobs.workers", 2)
	v.SetDefault("jobs.queue_size", 64)
	v.SetDefault("jobs.timeout_secs", 0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_mb", 32)
	v.SetDefault("monitoring.enabled", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.min_row_success_rate", 0.2)
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

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Jobs.Workers < 1 || c.Jobs.Workers > 64 {
			errs = append(errs, "jobs.workers must be between 1 and 64")
		}
		if c.Jobs.QueueSize < 1 {
			errs = append(errs, "jobs.queue_size must be > 0")
		}
	case "enrich", "job":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Cadastre.BaseURL == "" {
		errs = append(errs, "cadastre.base_url is required")
	}
	if c.Monitoring.Enabled && c.Monitoring.WebhookURL == "" {
		errs = append(errs, "monitoring.webhook_url is required when monitoring is enabled")
	}
	if c.Jobs.TimeoutSecs < 0 {
		errs = append(errs, "jobs.timeout_secs must be >= 0")
	}

	switch c.Storage.Driver {
	case "local", "sqlite":
	case "ftp":
		if c.Storage.FTP.Addr == "" {
			errs = append(errs, "storage.ftp.addr is required for the ftp driver")
		}
	case "minio":
		if c.Storage.MinIO.Endpoint == "" || c.Storage.MinIO.Bucket == "" {
			errs = append(errs, "storage.minio.endpoint and storage.minio.bucket are required for the minio driver")
		}
	default:
		errs = append(errs, "storage.driver must be one of local, sqlite, ftp, minio")
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	default:
		errs = append(errs, "store.driver must be sqlite or postgres")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
