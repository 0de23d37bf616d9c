package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server ServerConfig `mapstructure:"server" validate:"required"`
	Redis  RedisConfig  `mapstructure:"redis" validate:"required"`
	Task   TaskConfig   `mapstructure:"task" validate:"required"`
	Email  EmailConfig  `mapstructure:"email"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// RedisConfig holds the connection settings shared by the broker and the
// result backend. The two live on separate logical databases of one server.
type RedisConfig struct {
	Addr                string        `mapstructure:"addr" validate:"required,hostname_port"`
	Password            string        `mapstructure:"password"`
	BrokerDB            int           `mapstructure:"broker_db" validate:"gte=0,lte=15"`
	BackendDB           int           `mapstructure:"backend_db" validate:"gte=0,lte=15,nefield=BrokerDB"`
	MaxConnections      int           `mapstructure:"max_connections" validate:"gt=0"`
	SocketTimeout       time.Duration `mapstructure:"socket_timeout" validate:"gt=0"`
	DialTimeout         time.Duration `mapstructure:"dial_timeout" validate:"gt=0"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
	KeepAlive           time.Duration `mapstructure:"keep_alive" validate:"gte=0"`
}

// TaskConfig configures the task runtime. Routes and Schedule are read once
// at process start.
type TaskConfig struct {
	WorkerCount       int                      `mapstructure:"worker_count" validate:"gt=0"`
	Queues            []string                 `mapstructure:"queues" validate:"required,min=1,dive,required"`
	ResultTTL         time.Duration            `mapstructure:"result_ttl" validate:"gt=0"`
	VisibilityTimeout time.Duration            `mapstructure:"visibility_timeout" validate:"gt=0"`
	PollTimeout       time.Duration            `mapstructure:"poll_timeout" validate:"gte=1s"`
	TaskTimeout       time.Duration            `mapstructure:"task_timeout" validate:"gt=0"`
	MaxRetries        int                      `mapstructure:"max_retries" validate:"gte=0"`
	RetryBackoff      time.Duration            `mapstructure:"retry_backoff" validate:"gte=0"`
	MaxQueueLength    int64                    `mapstructure:"max_queue_length" validate:"gte=0"`
	Routes            map[string]string        `mapstructure:"routes" validate:"dive,keys,required,endkeys,required"`
	Schedule          map[string]time.Duration `mapstructure:"schedule" validate:"dive,keys,required,endkeys,gt=0"`
}

// EmailConfig contains Mailgun settings. Without them notifications are
// logged instead of delivered.
type EmailConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	MailgunDomain string `mapstructure:"mailgun_domain" validate:"required_if=Enabled true"`
	MailgunAPIKey string `mapstructure:"mailgun_api_key" validate:"required_if=Enabled true"`
	FromEmail     string `mapstructure:"from_email" validate:"omitempty,email"`
	FromName      string `mapstructure:"from_name"`
}
