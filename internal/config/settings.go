package config

import (
	"time"

	"github.com/architeacher/svc-icqueue/pkg/queue"
)

// Compile time variables are set by -ldflags.
var (
	ServiceVersion string
	CommitSHA      string
)

const (
	PublisherSourceStdin  = "stdin"
	PublisherSourceOutbox = "outbox"
)

type (
	ServiceConfig struct {
		AppConfig      AppConfig            `json:"app_config"`
		Logging        LoggingConfig        `json:"logging"`
		Telemetry      Telemetry            `json:"telemetry"`
		SecretStorage  SecretStorageConfig  `json:"secret_storage"`
		HTTPServer     HTTPServerConfig     `json:"http_server"`
		Queue          QueueConfig          `json:"queue"`
		Storage        StorageConfig        `json:"storage"`
		Cache          CacheConfig          `json:"cache"`
		Publisher      PublisherConfig      `json:"publisher"`
		Outbox         OutboxConfig         `json:"outbox"`
		Relay          RelayConfig          `json:"relay"`
		Backoff        BackoffConfig        `json:"backoff"`
		CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`
	}

	AppConfig struct {
		ServiceName    string `envconfig:"APP_SERVICE_NAME" default:"svc-icqueue" json:"service_name"`
		ServiceVersion string `envconfig:"APP_SERVICE_VERSION" default:"0.0.0" json:"service_version"`
		CommitSHA      string `envconfig:"APP_COMMIT_SHA" default:"unknown" json:"commit_sha"`
		Env            string `envconfig:"APP_ENVIRONMENT" default:"unknown" json:"env"`
	}

	LoggingConfig struct {
		Level  string `envconfig:"LOGGING_LEVEL" default:"info" json:"level"`
		Format string `envconfig:"LOGGING_FORMAT" default:"json" json:"format"`

		AccessLog AccessLogConfig `json:"access_log"`
	}

	AccessLogConfig struct {
		Enabled         bool `envconfig:"ACCESS_LOG_ENABLED" default:"true" json:"enabled"`
		LogHealthChecks bool `envconfig:"ACCESS_LOG_HEALTH_CHECKS" default:"false" json:"log_health_checks"`
	}

	Telemetry struct {
		ExporterType string `envconfig:"OTEL_EXPORTER" default:"grpc" json:"exporter_type"`

		OtelGRPCHost       string `envconfig:"OTEL_HOST" json:"otel_grpc_host"`
		OtelGRPCPort       string `envconfig:"OTEL_PORT" default:"4317" json:"otel_grpc_port"`
		OtelProductCluster string `envconfig:"OTEL_PRODUCT_CLUSTER" json:"otel_product_cluster"`

		Metrics Metrics `json:"metrics"`
		Traces  Traces  `json:"traces"`
	}

	Metrics struct {
		Enabled bool `envconfig:"METRICS_ENABLED" default:"false" json:"enabled"`
	}

	Traces struct {
		Enabled      bool    `envconfig:"TRACES_ENABLED" default:"false" json:"enabled"`
		SamplerRatio float64 `envconfig:"TRACES_SAMPLER_RATIO" default:"1" json:"sampler_ratio"`
	}

	SecretStorageConfig struct {
		Enabled       bool          `envconfig:"VAULT_ENABLED" default:"false" json:"enabled"`
		Address       string        `envconfig:"VAULT_ADDRESS" default:"http://vault:8200" json:"address"`
		Token         string        `envconfig:"VAULT_TOKEN" json:"-"`
		RoleID        string        `envconfig:"VAULT_ROLE_ID" json:"-"`
		SecretID      string        `envconfig:"VAULT_SECRET_ID" json:"-"`
		AuthMethod    string        `envconfig:"VAULT_AUTH_METHOD" default:"token" json:"auth_method"`
		MountPath     string        `envconfig:"VAULT_MOUNT_PATH" default:"svc-icqueue" json:"mount_path"`
		Namespace     string        `envconfig:"VAULT_NAMESPACE" default:"" json:"namespace,omitempty"`
		Timeout       time.Duration `envconfig:"VAULT_TIMEOUT" default:"30s" json:"timeout"`
		MaxRetries    int           `envconfig:"VAULT_MAX_RETRIES" default:"3" json:"max_retries"`
		TLSSkipVerify bool          `envconfig:"VAULT_TLS_SKIP_VERIFY" default:"false" json:"tls_skip_verify"`
		PollInterval  time.Duration `envconfig:"VAULT_POLL_INTERVAL" default:"24h" json:"poll_interval"`
	}

	// HTTPServerConfig configures the operational server exposing health and metrics.
	HTTPServerConfig struct {
		Enabled         bool          `envconfig:"HTTP_SERVER_ENABLED" default:"true" json:"enabled"`
		Port            int           `envconfig:"HTTP_SERVER_PORT" default:"8088" json:"port"`
		Host            string        `envconfig:"HTTP_SERVER_HOST" default:"0.0.0.0" json:"host"`
		ReadTimeout     time.Duration `envconfig:"HTTP_SERVER_READ_TIMEOUT" default:"30s" json:"read_timeout"`
		WriteTimeout    time.Duration `envconfig:"HTTP_SERVER_WRITE_TIMEOUT" default:"30s" json:"write_timeout"`
		IdleTimeout     time.Duration `envconfig:"HTTP_SERVER_IDLE_TIMEOUT" default:"120s" json:"idle_timeout"`
		ShutdownTimeout time.Duration `envconfig:"HTTP_SERVER_SHUTDOWN_TIMEOUT" default:"30s" json:"shutdown_timeout"`
	}

	// QueueConfig describes the broker. URL wins over the discrete connection settings when both are set.
	QueueConfig struct {
		URL            string            `envconfig:"RABBITMQ_URL" json:"url,omitempty"`
		Scheme         string            `envconfig:"RABBITMQ_SCHEME" default:"amqp" json:"scheme"`
		Host           string            `envconfig:"RABBITMQ_HOST" default:"rabbitmq" json:"host"`
		Port           int               `envconfig:"RABBITMQ_PORT" default:"5672" json:"port"`
		Username       string            `envconfig:"RABBITMQ_USERNAME" default:"guest" json:"username"`
		Password       string            `envconfig:"RABBITMQ_PASSWORD" default:"guest" json:"-"`
		VirtualHost    string            `envconfig:"RABBITMQ_VIRTUAL_HOST" default:"/" json:"virtual_host"`
		ExchangeName   string            `envconfig:"RABBITMQ_EXCHANGE" default:"icqueue" json:"exchange_name"`
		QueueName      string            `envconfig:"RABBITMQ_QUEUE_NAME" default:"icqueue" json:"queue_name"`
		RoutingKeys    queue.RoutingKeys `envconfig:"RABBITMQ_ROUTING_KEYS" default:"#" json:"routing_keys"`
		DeadLetter     bool              `envconfig:"RABBITMQ_DEAD_LETTER" default:"true" json:"dead_letter"`
		ConnectTimeout time.Duration     `envconfig:"RABBITMQ_CONNECT_TIMEOUT" default:"10s" json:"connect_timeout"`
		Heartbeat      time.Duration     `envconfig:"RABBITMQ_HEARTBEAT" default:"10s" json:"heartbeat"`
		PrefetchCount  int               `envconfig:"RABBITMQ_PREFETCH_COUNT" default:"10" json:"prefetch_count"`
		PublishTimeout time.Duration     `envconfig:"RABBITMQ_PUBLISH_TIMEOUT" default:"3s" json:"publish_timeout"`
		ConnectRetries int               `envconfig:"RABBITMQ_CONNECT_RETRIES" default:"5" json:"connect_retries"`
	}

	// StorageConfig configures the Postgres database holding the outbox table.
	StorageConfig struct {
		Host            string        `envconfig:"POSTGRES_HOST" default:"postgres" json:"host"`
		Port            int           `envconfig:"POSTGRES_PORT" default:"5432" json:"port"`
		Database        string        `envconfig:"POSTGRES_DATABASE" default:"icqueue" json:"database"`
		Username        string        `envconfig:"POSTGRES_USERNAME" default:"postgres" json:"username"`
		Password        string        `envconfig:"POSTGRES_PASSWORD" default:"" json:"-"`
		SSLMode         string        `envconfig:"POSTGRES_SSL_MODE" default:"disable" json:"ssl_mode"`
		MaxOpenConns    int           `envconfig:"POSTGRES_MAX_OPEN_CONNS" default:"10" json:"max_open_conns"`
		MaxIdleConns    int           `envconfig:"POSTGRES_MAX_IDLE_CONNS" default:"5" json:"max_idle_conns"`
		ConnMaxLifetime time.Duration `envconfig:"POSTGRES_CONN_MAX_LIFETIME" default:"5m" json:"conn_max_lifetime"`
		ConnMaxIdleTime time.Duration `envconfig:"POSTGRES_CONN_MAX_IDLE_TIME" default:"5m" json:"conn_max_idle_time"`
		ConnectTimeout  time.Duration `envconfig:"POSTGRES_CONNECT_TIMEOUT" default:"10s" json:"connect_timeout"`
	}

	// CacheConfig configures the Redis instance used to remember relayed message ids.
	CacheConfig struct {
		Enabled      bool          `envconfig:"REDIS_ENABLED" default:"false" json:"enabled"`
		Addr         string        `envconfig:"REDIS_ADDR" default:"redis:6379" json:"addr"`
		Password     string        `envconfig:"REDIS_PASSWORD" default:"" json:"-"`
		DB           int           `envconfig:"REDIS_DB" default:"0" json:"db"`
		PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10" json:"pool_size"`
		MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2" json:"min_idle_conns"`
		DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s" json:"dial_timeout"`
		ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s" json:"read_timeout"`
		WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s" json:"write_timeout"`
		MaxRetries   int           `envconfig:"REDIS_MAX_RETRIES" default:"3" json:"max_retries"`
		DedupTTL     time.Duration `envconfig:"REDIS_DEDUP_TTL" default:"24h" json:"dedup_ttl"`
	}

	PublisherConfig struct {
		Source            string `envconfig:"PUBLISHER_SOURCE" default:"stdin" json:"source"`
		DefaultRoutingKey string `envconfig:"PUBLISHER_DEFAULT_ROUTING_KEY" default:"icqueue.message" json:"default_routing_key"`
		Transient         bool   `envconfig:"PUBLISHER_TRANSIENT" default:"false" json:"transient"`
		MaxLineBytes      int    `envconfig:"PUBLISHER_MAX_LINE_BYTES" default:"1048576" json:"max_line_bytes"`
		RatePerSecond     int    `envconfig:"PUBLISHER_RATE_PER_SECOND" default:"0" json:"rate_per_second"`
		RateBurst         int    `envconfig:"PUBLISHER_RATE_BURST" default:"10" json:"rate_burst"`
	}

	OutboxConfig struct {
		PollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"5s" json:"poll_interval"`
		BatchSize    int           `envconfig:"OUTBOX_BATCH_SIZE" default:"10" json:"batch_size"`
		Concurrency  int           `envconfig:"OUTBOX_CONCURRENCY" default:"4" json:"concurrency"`
		// ClaimLease is how long an event may stay in processing before another
		// publisher may claim it again.
		ClaimLease   time.Duration `envconfig:"OUTBOX_CLAIM_LEASE" default:"5m" json:"claim_lease"`
	}

	// RelayConfig configures where the subscriber writes consumed messages.
	RelayConfig struct {
		Output string `envconfig:"RELAY_OUTPUT" default:"stdout" json:"output"`
	}

	BackoffConfig struct {
		// BaseDelay is the amount of time to backoff after the first failure.
		BaseDelay time.Duration `envconfig:"BACKOFF_BASE_DELAY" default:"1s" json:"base_delay"`
		// Multiplier is the factor with which to multiply backoffs after a
		// failed retry. Should ideally be greater than 1.
		Multiplier float64 `envconfig:"BACKOFF_MULTIPLIER" default:"1.6" json:"multiplier"`
		// Jitter is the factor with which backoffs are randomized.
		Jitter float64 `envconfig:"BACKOFF_JITTER" default:"0.2" json:"jitter"`
		// MaxDelay is the upper bound of backoff delay.
		MaxDelay time.Duration `envconfig:"BACKOFF_MAX_DELAY" default:"10s" json:"max_delay"`
	}

	CircuitBreakerConfig struct {
		MaxRequests uint32        `envconfig:"CIRCUIT_BREAKER_MAX_REQUESTS" default:"3" json:"max_requests"`
		Interval    time.Duration `envconfig:"CIRCUIT_BREAKER_INTERVAL" default:"10s" json:"interval"`
		Timeout     time.Duration `envconfig:"CIRCUIT_BREAKER_TIMEOUT" default:"60s" json:"timeout"`
		MaxFailures uint32        `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5" json:"max_failures"`
	}
)

// AMQPURL returns the configured URL, or builds one from the discrete connection settings.
func (c QueueConfig) AMQPURL() string {
	if c.URL != "" {
		return c.URL
	}

	return queue.URLFromParts(c.Scheme, c.Username, c.Password, c.Host, c.Port, c.VirtualHost)
}

// ICQueueConfig maps the service settings onto the facade configuration.
func (c QueueConfig) ICQueueConfig() queue.Config {
	deadLetter := c.DeadLetter

	return queue.Config{
		URL:      c.AMQPURL(),
		Exchange: c.ExchangeName,
		Queue: queue.QueueConfig{
			Name:        c.QueueName,
			RoutingKeys: c.RoutingKeys,
			DeadLetter:  &deadLetter,
		},
	}
}
