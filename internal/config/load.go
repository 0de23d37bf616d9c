package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the application reads,
// e.g. ORDERFLOW_REDIS_ADDR for redis.addr.
const EnvPrefix = "ORDERFLOW"

// Load configuration from environment variables and optionally a config file.
// A .env file in the working directory is loaded first if present.
// Environment variables take precedence over values from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyMapDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its validate tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// applyMapDefaults fills in route and schedule entries the config file left
// out. Viper replaces a default map wholesale when the file sets any key of it.
func applyMapDefaults(cfg *Config) {
	cfg.Task.Routes = withDefaults(cfg.Task.Routes, map[string]string{
		"send_notification": "priority",
	})
	cfg.Task.Schedule = withDefaults(cfg.Task.Schedule, map[string]time.Duration{
		"daily_stock_report":   24 * time.Hour,
		"check_pending_orders": 5 * time.Minute,
		"dispatch_outbox":      time.Minute,
	})
}

func withDefaults[V any](configured, defaults map[string]V) map[string]V {
	maps.Copy(defaults, configured)
	return defaults
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.broker_db", 0)
	v.SetDefault("redis.backend_db", 1)
	v.SetDefault("redis.max_connections", 10)
	v.SetDefault("redis.socket_timeout", 5*time.Second)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.health_check_interval", 30*time.Second)
	v.SetDefault("redis.keep_alive", 30*time.Second)

	v.SetDefault("task.worker_count", 2)
	v.SetDefault("task.queues", []string{"priority", "default"})
	v.SetDefault("task.result_ttl", 24*time.Hour)
	v.SetDefault("task.visibility_timeout", time.Hour)
	v.SetDefault("task.poll_timeout", 2*time.Second)
	v.SetDefault("task.task_timeout", 30*time.Minute)
	v.SetDefault("task.max_retries", 3)
	v.SetDefault("task.retry_backoff", 10*time.Second)
	v.SetDefault("task.max_queue_length", 0)

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.mailgun_domain", "")
	v.SetDefault("email.mailgun_api_key", "")
	v.SetDefault("email.from_email", "orders@example.com")
	v.SetDefault("email.from_name", "Order Service")
}
