// Package config loads application settings from pipeline.yaml, ETL_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"go-data-pipeline/internal/logger"
	"go-data-pipeline/internal/model"
	"go-data-pipeline/internal/notify"
	"go-data-pipeline/internal/pipeline"
)

// EnvPrefix namespaces environment overrides, e.g. ETL_SERVER_ADDR.
const EnvPrefix = "ETL"

// Config is the root application configuration.
type Config struct {
	Server  ServerConfig    `mapstructure:"server"`
	Store   StoreConfig     `mapstructure:"store"`
	History HistoryConfig   `mapstructure:"history"`
	Engine  pipeline.Config `mapstructure:"engine"`
	Notify  NotifyConfig    `mapstructure:"notify"`
	Log     logger.Config   `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// StoreConfig locates the definition store.
type StoreConfig struct {
	Dir string `mapstructure:"dir" validate:"required"`
}

// HistoryConfig bounds the in-memory job history and locates its SQLite copy.
// An empty DB keeps history in memory only.
type HistoryConfig struct {
	Limit  int           `mapstructure:"limit" validate:"gt=0"`
	DB     string        `mapstructure:"db"`
	MaxAge time.Duration `mapstructure:"max_age" validate:"gte=0"`
}

// NotifyConfig configures run notifications. Every sink is optional.
type NotifyConfig struct {
	WebhookURL string             `mapstructure:"webhook_url" validate:"omitempty,url"`
	Retry      model.RetryConfig  `mapstructure:"retry"`
	Timeout    time.Duration      `mapstructure:"timeout"`
	Kafka      notify.KafkaConfig `mapstructure:"kafka"`
}

// New returns a viper instance carrying defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	retry := model.DefaultRetryConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("store.dir", "./config")
	v.SetDefault("history.limit", 100)
	v.SetDefault("history.db", "")
	v.SetDefault("history.max_age", 0)
	v.SetDefault("engine.history_limit", 50)
	v.SetDefault("engine.http_timeout", 30*time.Second)
	v.SetDefault("engine.output_dir", "./output")
	v.SetDefault("engine.transform_workers", 4)
	v.SetDefault("engine.disable_fixtures", false)
	v.SetDefault("notify.webhook_url", "")
	v.SetDefault("notify.timeout", 30*time.Second)
	v.SetDefault("notify.retry.max_attempts", retry.MaxAttempts)
	v.SetDefault("notify.retry.initial_delay", retry.InitialDelay)
	v.SetDefault("notify.retry.max_delay", retry.MaxDelay)
	v.SetDefault("notify.retry.backoff_factor", retry.BackoffFactor)
	v.SetDefault("notify.kafka.brokers", []string{})
	v.SetDefault("notify.kafka.topic", "")
	v.SetDefault("notify.kafka.write_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
}

// Load reads file (or pipeline.yaml from the working directory or
// /etc/etl-pipeline when file is empty) into v and decodes the result.
// A missing default file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("pipeline")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/etl-pipeline")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New()

// Validate checks field constraints and that a Kafka sink, when partially
// configured, has both brokers and a topic.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	k := c.Notify.Kafka
	if (len(k.Brokers) > 0) != (k.Topic != "") {
		return fmt.Errorf("invalid configuration: notify.kafka needs both brokers and topic")
	}
	return nil
}
