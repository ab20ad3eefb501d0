package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tejusbharadwaj/edgemeter/internal/mirror"
	"github.com/tejusbharadwaj/edgemeter/internal/models"
)

// EnvPrefix namespaces environment overrides, e.g. EDGEMETER_STORAGE_ROOT.
const EnvPrefix = "EDGEMETER"

// Registry kinds.
const (
	RegistryStatic   = "static"
	RegistryPostgres = "postgres"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Meter     MeterConfig     `mapstructure:"meter"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Devices   []models.Device `mapstructure:"devices"`
	Influx    mirror.Config   `mapstructure:"influx"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	GRPCPort       int           `mapstructure:"grpc_port"`
	HTTPPort       int           `mapstructure:"http_port"`
	CacheSize      int           `mapstructure:"cache_size"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	RateLimit      float64       `mapstructure:"rate_limit"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
}

type StorageConfig struct {
	Root        string        `mapstructure:"root"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

type MeterConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	Command         string        `mapstructure:"command"`
	TerminalChannel int           `mapstructure:"terminal_channel"`
}

type SchedulerConfig struct {
	Cron string `mapstructure:"cron"`
}

type RegistryConfig struct {
	Type string `mapstructure:"type"`
	DSN  string `mapstructure:"dsn"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
//
// $VAR references in the file are expanded first. Keys missing from the file
// take their defaults, and EDGEMETER_<SECTION>_<KEY> variables override both.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := os.ExpandEnv(string(data))

	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal([]byte(expandedData), &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal raw config: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.MergeConfigMap(rawConfig); err != nil {
		return nil, fmt.Errorf("failed to merge config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks settings that have no usable default.
func (c *Config) Validate() error {
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root is required")
	}
	switch c.Registry.Type {
	case RegistryStatic:
	case RegistryPostgres:
		if c.Registry.DSN == "" {
			return fmt.Errorf("registry.dsn is required for the postgres registry")
		}
	default:
		return fmt.Errorf("invalid registry type: %s", c.Registry.Type)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid logging format: %s", c.Logging.Format)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.http_port", 9090)
	v.SetDefault("server.cache_size", 1000)
	v.SetDefault("server.cache_ttl", "30s")
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_limit_burst", 10)

	v.SetDefault("storage.root", "./data")
	v.SetDefault("storage.busy_timeout", "5s")

	v.SetDefault("meter.timeout", "5s")
	v.SetDefault("meter.command", "read all")
	v.SetDefault("meter.terminal_channel", 13)

	v.SetDefault("scheduler.cron", "0 * * * *")

	v.SetDefault("registry.type", RegistryStatic)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
