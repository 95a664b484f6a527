// Package config provides configuration structures and validation for the
// expense bot services. It covers the HTTP gateway, Kafka messaging, the
// PostgreSQL checkpoint and retry stores, the MongoDB audit store, the chat
// transport, the ERPNext backend, and the retry sweeper.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration with settings for all
// components. Each field represents a major subsystem's configuration and is
// validated during application startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Chat        ChatConfig
	ERPNext     ERPNextConfig
	Catalog     CatalogConfig
	Sweeper     SweeperConfig
	WorkerPool  WorkerPoolConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	MessageTopic      string // Inbound chat messages
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string // Topic for unprocessable inbound messages
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration for the audit store
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// ChatConfig contains chat transport configuration. AllowedSenders is the
// verified identity mapping: messages from any other sender are refused
// before conversation state is created.
type ChatConfig struct {
	APIBaseURL     string
	BotToken       string
	AllowedSenders []int64
	SendTimeout    time.Duration
}

// ERPNextConfig contains accounting backend configuration
type ERPNextConfig struct {
	BaseURL         string
	APIKey          string
	APISecret       string
	Company         string
	DefaultCurrency string
	RequestTimeout  time.Duration
}

// CatalogConfig controls the chart-of-accounts snapshot cache
type CatalogConfig struct {
	RefreshTTL time.Duration
}

// SweeperConfig contains retry sweeper configuration. RetryDeadline bounds
// the total queued lifetime of a job from its creation.
type SweeperConfig struct {
	PollingInterval time.Duration
	BatchSize       int
	BaseBackoff     time.Duration
	RetryDeadline   time.Duration
	MaxAttempts     int
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int // Maximum number of workers in the pool
}

// validate performs comprehensive validation of all configuration values,
// ensuring they meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate Kafka config
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.MessageTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_MESSAGE_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}
	if c.Kafka.DLQTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate Chat config
	if c.Chat.APIBaseURL == "" {
		validationErrors = append(validationErrors, "CHAT_API_BASE_URL is required")
	}
	if c.Chat.BotToken == "" {
		validationErrors = append(validationErrors, "CHAT_BOT_TOKEN is required")
	}
	if c.Chat.SendTimeout <= 0 {
		validationErrors = append(validationErrors, "CHAT_SEND_TIMEOUT must be greater than 0")
	}

	// Validate ERPNext config
	if c.ERPNext.BaseURL == "" {
		validationErrors = append(validationErrors, "ERP_BASE_URL is required")
	}
	if c.ERPNext.APIKey == "" {
		validationErrors = append(validationErrors, "ERP_API_KEY is required")
	}
	if c.ERPNext.APISecret == "" {
		validationErrors = append(validationErrors, "ERP_API_SECRET is required")
	}
	if c.ERPNext.Company == "" {
		validationErrors = append(validationErrors, "ERP_DEFAULT_COMPANY is required")
	}
	if len(c.ERPNext.DefaultCurrency) != 3 {
		validationErrors = append(validationErrors, "ERP_DEFAULT_CURRENCY must be a 3-letter code")
	}
	if c.ERPNext.RequestTimeout <= 0 {
		validationErrors = append(validationErrors, "ERP_REQUEST_TIMEOUT must be greater than 0")
	}

	// Validate Catalog config
	if c.Catalog.RefreshTTL <= 0 {
		validationErrors = append(validationErrors, "CATALOG_REFRESH_TTL must be greater than 0")
	}

	// Validate Sweeper config
	if c.Sweeper.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "SWEEPER_POLLING_INTERVAL must be greater than 0")
	}
	if c.Sweeper.BatchSize <= 0 {
		validationErrors = append(validationErrors, "SWEEPER_BATCH_SIZE must be greater than 0")
	}
	if c.Sweeper.BaseBackoff <= 0 {
		validationErrors = append(validationErrors, "SWEEPER_BASE_BACKOFF must be greater than 0")
	}
	if c.Sweeper.RetryDeadline <= 0 {
		validationErrors = append(validationErrors, "SWEEPER_RETRY_DEADLINE must be greater than 0")
	}
	if c.Sweeper.MaxAttempts <= 0 {
		validationErrors = append(validationErrors, "SWEEPER_MAX_ATTEMPTS must be greater than 0")
	}

	// Validate WorkerPool config
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
