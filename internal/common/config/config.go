// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Payments      PaymentConfig           `mapstructure:"payments"`
	Opportunities OpportunityConfig       `mapstructure:"opportunities"`
	Outbox        OutboxConfig            `mapstructure:"outbox"`
	Uploads       UploadConfig            `mapstructure:"uploads"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Auth          AuthConfig              `mapstructure:"auth"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Notifications NotificationConfig      `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string   `mapstructure:"address"`
	ReadTimeout     int      `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int      `mapstructure:"write_timeout"`    // milliseconds
	RequestTimeout  int      `mapstructure:"request_timeout"`  // milliseconds
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"` // milliseconds
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
}

type CamundaConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	BrokerAddress     string `mapstructure:"broker_address"`
	MaxJobsActive     int    `mapstructure:"max_jobs_active"`
	Timeout           int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout    int    `mapstructure:"request_timeout"` // milliseconds
	NotificationProc  string `mapstructure:"notification_process_id"`
	DeployResources   bool   `mapstructure:"deploy_resources"`
	ResourceDirectory string `mapstructure:"resource_directory"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
	AutoMigrate    bool   `mapstructure:"auto_migrate"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Addresses    []string `mapstructure:"addresses"`
	Username     string   `mapstructure:"username"`
	Password     string   `mapstructure:"password"`
	PaymentIndex string   `mapstructure:"payment_index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PaymentConfig holds the manual M-Pesa verification rules.
type PaymentConfig struct {
	ApplicationFee       int64 `mapstructure:"application_fee"`
	AmountTolerance      int64 `mapstructure:"amount_tolerance"`
	RecencyWindowMinutes int   `mapstructure:"recency_window_minutes"`
	RateLimitPerMinute   int   `mapstructure:"rate_limit_per_minute"`
	StatsCacheTTL        int   `mapstructure:"stats_cache_ttl"` // milliseconds
}

type OpportunityConfig struct {
	SweepInterval int `mapstructure:"sweep_interval"` // milliseconds
	LockTTL       int `mapstructure:"lock_ttl"`       // milliseconds
}

type OutboxConfig struct {
	PollInterval int `mapstructure:"poll_interval"` // milliseconds
	BatchSize    int `mapstructure:"batch_size"`
	MaxAttempts  int `mapstructure:"max_attempts"`
	BaseBackoff  int `mapstructure:"base_backoff"` // milliseconds
}

type UploadConfig struct {
	MaxBytes     int64    `mapstructure:"max_bytes"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// WorkerConfig holds the core settings applicable to every job worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// AuthConfig holds the Keycloak settings used for bearer token introspection.
type AuthConfig struct {
	Keycloak struct {
		URL          string `mapstructure:"url"`
		Realm        string `mapstructure:"realm"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		CacheTTL     int    `mapstructure:"cache_ttl"` // milliseconds
	} `mapstructure:"keycloak"`
}

// NotificationConfig holds settings for the send-notification worker.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled  bool   `mapstructure:"enabled"`
		SenderID string `mapstructure:"sender_id"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
	Discord struct {
		Enabled   bool   `mapstructure:"enabled"`
		BotToken  string `mapstructure:"bot_token"`
		ChannelID string `mapstructure:"channel_id"`
	} `mapstructure:"discord"`
	TemplateRegistry string `mapstructure:"template_registry"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
