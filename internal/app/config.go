package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// envPrefix - префикс переменных окружения (CRM_GRPC_ADDR и т.д.).
const envPrefix = "CRM"

// Config описывает настройки запуска сервиса.
type Config struct {
	GRPCAddr string `mapstructure:"grpc_addr"`
	HTTPAddr string `mapstructure:"http_addr"`
	LogLevel string `mapstructure:"log_level"`

	StorageDriver       string `mapstructure:"storage_driver"`
	PostgresDSN         string `mapstructure:"postgres_dsn"`
	PostgresAutoMigrate bool   `mapstructure:"postgres_auto_migrate"`

	PostgresMaxConns        int           `mapstructure:"postgres_max_conns"`
	PostgresConnMaxLifetime time.Duration `mapstructure:"postgres_conn_max_lifetime"`

	KafkaBrokers  []string `mapstructure:"kafka_brokers"`
	KafkaClientID string   `mapstructure:"kafka_client_id"`
	KafkaTopic    string   `mapstructure:"kafka_topic"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	OutboxPollInterval  time.Duration `mapstructure:"outbox_poll_interval"`
	OutboxBatchSize     int           `mapstructure:"outbox_batch_size"`
	OutboxMaxAttempts   int           `mapstructure:"outbox_max_attempts"`
	OutboxRetryDelay    time.Duration `mapstructure:"outbox_retry_delay"`
	OutboxMaxRetryDelay time.Duration `mapstructure:"outbox_max_retry_delay"`

	IdempotencyCleanupInterval  time.Duration `mapstructure:"idempotency_cleanup_interval"`
	IdempotencyCleanupBatchSize int           `mapstructure:"idempotency_cleanup_batch_size"`

	JobsEnabled       bool          `mapstructure:"jobs_enabled"`
	JobsLogDir        string        `mapstructure:"jobs_log_dir"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	ReportInterval    time.Duration `mapstructure:"report_interval"`
	RemindersInterval time.Duration `mapstructure:"reminders_interval"`
	ReminderWindow    time.Duration `mapstructure:"reminder_window"`
	LowStockInterval  time.Duration `mapstructure:"low_stock_interval"`
	LowStockThreshold int           `mapstructure:"low_stock_threshold"`
	LowStockIncrement int           `mapstructure:"low_stock_increment"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// DefaultConfig возвращает настройки для локального запуска без внешних зависимостей.
func DefaultConfig() Config {
	return Config{
		GRPCAddr: ":50051",
		HTTPAddr: ":8080",
		LogLevel: "info",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		PostgresMaxConns:        25,
		PostgresConnMaxLifetime: 30 * time.Minute,

		KafkaClientID: "crm-service",
		KafkaTopic:    "crm.events",

		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    100 * time.Millisecond,
		OutboxMaxRetryDelay: 5 * time.Second,

		IdempotencyCleanupInterval:  time.Minute,
		IdempotencyCleanupBatchSize: 500,

		JobsEnabled:       true,
		JobsLogDir:        os.TempDir(),
		HeartbeatInterval: 5 * time.Minute,
		ReportInterval:    7 * 24 * time.Hour,
		RemindersInterval: 24 * time.Hour,
		ReminderWindow:    7 * 24 * time.Hour,
		LowStockInterval:  12 * time.Hour,
		LowStockThreshold: 10,
		LowStockIncrement: 10,
		ShutdownTimeout:   5 * time.Second,
	}
}

// LoadConfig собирает конфигурацию: значения по умолчанию, затем YAML-файл path (если задан),
// затем переменные окружения CRM_*. Вне production предварительно читается .env, если он есть.
func LoadConfig(path string) (Config, error) {
	if os.Getenv(envPrefix+"_ENV") != "production" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.KafkaBrokers = splitBrokers(cfg.KafkaBrokers)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("grpc_addr", d.GRPCAddr)
	v.SetDefault("http_addr", d.HTTPAddr)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("storage_driver", d.StorageDriver)
	v.SetDefault("postgres_dsn", d.PostgresDSN)
	v.SetDefault("postgres_auto_migrate", d.PostgresAutoMigrate)
	v.SetDefault("postgres_max_conns", d.PostgresMaxConns)
	v.SetDefault("postgres_conn_max_lifetime", d.PostgresConnMaxLifetime)
	v.SetDefault("kafka_brokers", d.KafkaBrokers)
	v.SetDefault("kafka_client_id", d.KafkaClientID)
	v.SetDefault("kafka_topic", d.KafkaTopic)
	v.SetDefault("redis_addr", d.RedisAddr)
	v.SetDefault("redis_password", d.RedisPassword)
	v.SetDefault("redis_db", d.RedisDB)
	v.SetDefault("outbox_poll_interval", d.OutboxPollInterval)
	v.SetDefault("outbox_batch_size", d.OutboxBatchSize)
	v.SetDefault("outbox_max_attempts", d.OutboxMaxAttempts)
	v.SetDefault("outbox_retry_delay", d.OutboxRetryDelay)
	v.SetDefault("outbox_max_retry_delay", d.OutboxMaxRetryDelay)
	v.SetDefault("idempotency_cleanup_interval", d.IdempotencyCleanupInterval)
	v.SetDefault("idempotency_cleanup_batch_size", d.IdempotencyCleanupBatchSize)
	v.SetDefault("jobs_enabled", d.JobsEnabled)
	v.SetDefault("jobs_log_dir", d.JobsLogDir)
	v.SetDefault("heartbeat_interval", d.HeartbeatInterval)
	v.SetDefault("report_interval", d.ReportInterval)
	v.SetDefault("reminders_interval", d.RemindersInterval)
	v.SetDefault("reminder_window", d.ReminderWindow)
	v.SetDefault("low_stock_interval", d.LowStockInterval)
	v.SetDefault("low_stock_threshold", d.LowStockThreshold)
	v.SetDefault("low_stock_increment", d.LowStockIncrement)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("postgres storage requires postgres_dsn")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}
	if c.GRPCAddr == "" || c.HTTPAddr == "" {
		return errors.New("grpc_addr and http_addr are required")
	}
	if c.LowStockThreshold < 0 || c.LowStockIncrement < 0 {
		return errors.New("low stock threshold and increment must not be negative")
	}
	return nil
}

// splitBrokers нормализует список брокеров: "a, b" из env и пустые элементы.
func splitBrokers(raw []string) []string {
	var brokers []string
	for _, item := range raw {
		for _, broker := range strings.Split(item, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				brokers = append(brokers, broker)
			}
		}
	}
	return brokers
}
