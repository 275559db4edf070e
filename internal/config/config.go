package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Queue backends.
const (
	QueueBackendAsynq = "asynq"
	QueueBackendLocal = "local"
)

// Config holds all configuration for the application.
type Config struct {
	// Server configuration
	ServerPort      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Database configuration
	DBHost              string
	DBPort              int
	DBUser              string
	DBPassword          string
	DBName              string
	DBSSLMode           string
	DBMaxConns          int32
	DBMinConns          int32
	DBMaxConnLifetime   time.Duration
	DBMaxConnIdleTime   time.Duration
	DBHealthCheckPeriod time.Duration
	MigrationsPath      string
	RunMigrations       bool

	// Redis / queue configuration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	QueueName     string
	// QueueBackend selects the message transport: "asynq" (Redis) or
	// "local" (in-process worker pool).
	QueueBackend string

	// Worker configuration
	WorkerPoolSize int
	BatchSize      int

	// Upload storage
	UploadDir     string
	MaxUploadSize int64

	// Retry policy
	DefaultMaxRetries  int
	RetryBaseDelay     time.Duration
	RetrySweepInterval time.Duration

	// Retention
	CleanupCron       string
	CleanupDaysToKeep int

	// Progress notifications
	ProgressChannel string

	// Logging configuration
	LogLevel string
}

// Load loads configuration from environment variables and, when CONFIG_PATH
// points at a file, from that file. Environment values win.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config_path"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		ServerPort:          v.GetString("server_port"),
		ReadTimeout:         v.GetDuration("http_read_timeout"),
		WriteTimeout:        v.GetDuration("http_write_timeout"),
		IdleTimeout:         v.GetDuration("http_idle_timeout"),
		ShutdownTimeout:     v.GetDuration("shutdown_timeout"),
		DBHost:              v.GetString("db_host"),
		DBPort:              v.GetInt("db_port"),
		DBUser:              v.GetString("db_user"),
		DBPassword:          v.GetString("db_password"),
		DBName:              v.GetString("db_name"),
		DBSSLMode:           v.GetString("db_ssl_mode"),
		DBMaxConns:          v.GetInt32("db_max_conns"),
		DBMinConns:          v.GetInt32("db_min_conns"),
		DBMaxConnLifetime:   v.GetDuration("db_max_conn_lifetime"),
		DBMaxConnIdleTime:   v.GetDuration("db_max_conn_idle_time"),
		DBHealthCheckPeriod: v.GetDuration("db_health_check_period"),
		MigrationsPath:      v.GetString("migrations_path"),
		RunMigrations:       v.GetBool("run_migrations"),
		RedisAddr:           v.GetString("redis_addr"),
		RedisPassword:       v.GetString("redis_password"),
		RedisDB:             v.GetInt("redis_db"),
		QueueName:           v.GetString("queue_name"),
		QueueBackend:        strings.ToLower(v.GetString("queue_backend")),
		WorkerPoolSize:      v.GetInt("worker_pool_size"),
		BatchSize:           v.GetInt("batch_size"),
		UploadDir:           v.GetString("upload_dir"),
		MaxUploadSize:       v.GetInt64("max_upload_size"),
		DefaultMaxRetries:   v.GetInt("default_max_retries"),
		RetryBaseDelay:      v.GetDuration("retry_base_delay"),
		RetrySweepInterval:  v.GetDuration("retry_sweep_interval"),
		CleanupCron:         v.GetString("cleanup_cron"),
		CleanupDaysToKeep:   v.GetInt("cleanup_days_to_keep"),
		ProgressChannel:     v.GetString("progress_channel"),
		LogLevel:            v.GetString("log_level"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("config_path", "")
	v.SetDefault("server_port", "8080")
	v.SetDefault("http_read_timeout", 30*time.Second)
	v.SetDefault("http_write_timeout", 5*time.Minute)
	v.SetDefault("http_idle_timeout", 120*time.Second)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", 5432)
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "postgres")
	v.SetDefault("db_name", "async_import")
	v.SetDefault("db_ssl_mode", "disable")
	v.SetDefault("db_max_conns", 25)
	v.SetDefault("db_min_conns", 5)
	v.SetDefault("db_max_conn_lifetime", time.Hour)
	v.SetDefault("db_max_conn_idle_time", 30*time.Minute)
	v.SetDefault("db_health_check_period", time.Minute)
	v.SetDefault("migrations_path", "file://migrations")
	v.SetDefault("run_migrations", true)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("queue_name", "imports")
	v.SetDefault("queue_backend", QueueBackendAsynq)
	v.SetDefault("worker_pool_size", 4)
	v.SetDefault("batch_size", 100)
	v.SetDefault("upload_dir", "./uploads")
	v.SetDefault("max_upload_size", int64(50<<20))
	v.SetDefault("default_max_retries", 3)
	v.SetDefault("retry_base_delay", time.Minute)
	v.SetDefault("retry_sweep_interval", time.Minute)
	v.SetDefault("cleanup_cron", "0 3 * * *")
	v.SetDefault("cleanup_days_to_keep", 30)
	v.SetDefault("progress_channel", "import:progress")
	v.SetDefault("log_level", "info")
}

// DatabaseURL returns a postgres URL suitable for golang-migrate.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// validate validates the configuration.
func (c *Config) validate() error {
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}
	if c.DBHost == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.DBUser == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.DBName == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	if c.QueueName == "" {
		return fmt.Errorf("QUEUE_NAME is required")
	}
	if c.QueueBackend != QueueBackendAsynq && c.QueueBackend != QueueBackendLocal {
		return fmt.Errorf("QUEUE_BACKEND must be %q or %q, got %q", QueueBackendAsynq, QueueBackendLocal, c.QueueBackend)
	}
	if c.UploadDir == "" {
		return fmt.Errorf("UPLOAD_DIR is required")
	}
	if c.WorkerPoolSize < 1 {
		return fmt.Errorf("WORKER_POOL_SIZE must be at least 1")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be at least 1")
	}
	if c.DefaultMaxRetries < 0 {
		return fmt.Errorf("DEFAULT_MAX_RETRIES must not be negative")
	}
	if c.RetryBaseDelay <= 0 {
		return fmt.Errorf("RETRY_BASE_DELAY must be positive")
	}
	if c.CleanupDaysToKeep < 1 {
		return fmt.Errorf("CLEANUP_DAYS_TO_KEEP must be at least 1")
	}
	return nil
}
