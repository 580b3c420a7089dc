package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Sessions SessionsConfig `mapstructure:"sessions"`
	Webhooks WebhooksConfig `mapstructure:"webhooks"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type JWTConfig struct {
	Secret           string        `mapstructure:"secret"`
	OperatorTokenTTL time.Duration `mapstructure:"operator_token_ttl"`
}

// SessionsConfig holds payment session lifecycle knobs.
type SessionsConfig struct {
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	SweepBatch    int           `mapstructure:"sweep_batch"`
}

// WebhooksConfig holds delivery and retry knobs. Passed into the dispatcher
// at construction so tests and deployments can override them.
type WebhooksConfig struct {
	MaxAttempts       int           `mapstructure:"max_attempts"`
	BackoffBase       time.Duration `mapstructure:"backoff_base"`
	BackoffMax        time.Duration `mapstructure:"backoff_max"`
	JitterFraction    float64       `mapstructure:"jitter_fraction"`
	DeliveryTimeout   time.Duration `mapstructure:"delivery_timeout"`
	ClaimLease        time.Duration `mapstructure:"claim_lease"`
	WorkerCount       int           `mapstructure:"worker_count"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	PollBatch         int           `mapstructure:"poll_batch"`
	ResponseBodyLimit int           `mapstructure:"response_body_limit"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine, defaults + env carry the worker in tests
		// and containers. Malformed config is not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "15s")
	viper.SetDefault("server.idle_timeout", "60s")

	viper.SetDefault("database.path", "data/payhub.db")
	viper.SetDefault("database.max_connections", 10)

	viper.SetDefault("jwt.operator_token_ttl", "12h")

	viper.SetDefault("sessions.default_ttl", "30m")
	viper.SetDefault("sessions.sweep_interval", "1m")
	viper.SetDefault("sessions.sweep_batch", 500)

	viper.SetDefault("webhooks.max_attempts", 8)
	viper.SetDefault("webhooks.backoff_base", "30s")
	viper.SetDefault("webhooks.backoff_max", "1h")
	viper.SetDefault("webhooks.jitter_fraction", 0.2)
	viper.SetDefault("webhooks.delivery_timeout", "10s")
	viper.SetDefault("webhooks.claim_lease", "5m")
	viper.SetDefault("webhooks.worker_count", 16)
	viper.SetDefault("webhooks.poll_interval", "10s")
	viper.SetDefault("webhooks.poll_batch", 100)
	viper.SetDefault("webhooks.response_body_limit", 4096)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}
