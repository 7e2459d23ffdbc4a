package configs

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type RabbitMQConfig struct {
	URL string
}

type RESTconfig struct {
	PORT string
}

type DatabaseConfig struct {
	URL      string
	MaxConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StorageConfig где лежат исходные CSV. local подходит только если api и worker
// работают на одной машине (или в режиме all).
type StorageConfig struct {
	Driver      string // local | s3
	LocalDir    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
}

type AuthConfig struct {
	JWTSecret string
}

type ImportConfig struct {
	BatchSize      int
	MaxUploadBytes int64
	QueuedTTL      time.Duration // совпадает с x-message-ttl очереди
	LeaseTTL       time.Duration
	TerminalTTL    time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	CacheTTL       time.Duration
	DLQBatchSize   int
	DLQBatchWait   time.Duration
}

type StdoutLogConfig struct {
	Level string
	JSON  bool
}

type FluentBitConfig struct {
	Host    string
	Port    int
	Enabled bool
	Level   string
}

// AppConfig вся конфигурация приложения
type AppConfig struct {
	AppName      string
	RabbitMQ     RabbitMQConfig
	Rest         RESTconfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Storage      StorageConfig
	Auth         AuthConfig
	Import       ImportConfig
	FluentBit    FluentBitConfig
	StdoutLogger StdoutLogConfig
}

// LoadConfig читает .env (если есть) и переменные окружения
func LoadConfig(envPath ...string) (*AppConfig, error) {
	if err := godotenv.Load(envPath...); err != nil {
		// в контейнере .env обычно нет, все приходит из окружения
		log.Printf("Info: could not load .env file (path: %v): %v", envPath, err)
	}

	cfg := &AppConfig{}
	cfg.AppName = getEnvAsString("APP_NAME", "property-import-service")

	cfg.RabbitMQ.URL = os.Getenv("RABBITMQ_URL")
	cfg.Rest.PORT = getEnvAsString("PORT", "8080")

	cfg.Database.URL = os.Getenv("DATABASE_URL")
	cfg.Database.MaxConns = getEnvAsInt("DATABASE_MAX_CONNS", 10)

	cfg.Redis.Addr = getEnvAsString("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", 0)

	cfg.Storage.Driver = strings.ToLower(getEnvAsString("STORAGE_DRIVER", "local"))
	cfg.Storage.LocalDir = getEnvAsString("STORAGE_LOCAL_DIR", "./uploads")
	cfg.Storage.S3Endpoint = os.Getenv("S3_ENDPOINT")
	cfg.Storage.S3AccessKey = os.Getenv("S3_ACCESS_KEY")
	cfg.Storage.S3SecretKey = os.Getenv("S3_SECRET_KEY")
	cfg.Storage.S3Bucket = getEnvAsString("S3_BUCKET", "imports")
	cfg.Storage.S3UseSSL = getEnvAsBool("S3_USE_SSL", false)

	cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")

	cfg.Import.BatchSize = getEnvAsInt("IMPORT_BATCH_SIZE", 100)
	cfg.Import.MaxUploadBytes = int64(getEnvAsInt("IMPORT_MAX_UPLOAD_MB", 50)) << 20
	cfg.Import.QueuedTTL = getEnvAsDuration("IMPORT_QUEUED_TTL", 24*time.Hour)
	cfg.Import.LeaseTTL = getEnvAsDuration("IMPORT_LEASE_TTL", 30*time.Minute)
	cfg.Import.TerminalTTL = getEnvAsDuration("IMPORT_TERMINAL_TTL", 24*time.Hour)
	cfg.Import.MaxRetries = getEnvAsInt("IMPORT_MAX_RETRIES", 3)
	cfg.Import.RetryDelay = getEnvAsDuration("IMPORT_RETRY_DELAY", 10*time.Second)
	cfg.Import.CacheTTL = getEnvAsDuration("CACHE_TTL", 5*time.Minute)
	cfg.Import.DLQBatchSize = getEnvAsInt("IMPORT_DLQ_BATCH_SIZE", 20)
	cfg.Import.DLQBatchWait = getEnvAsDuration("IMPORT_DLQ_BATCH_WAIT", 5*time.Second)

	cfg.FluentBit.Enabled = getEnvAsBool("FLUENTBIT_ENABLED", false)
	if cfg.FluentBit.Enabled {
		cfg.FluentBit.Host = os.Getenv("FLUENTBIT_HOST")
		if cfg.FluentBit.Host == "" {
			log.Println("WARNING: FLUENTBIT_ENABLED is true, but FLUENTBIT_HOST is not set. Disabling Fluent Bit.")
			cfg.FluentBit.Enabled = false
		}
		cfg.FluentBit.Port = getEnvAsInt("FLUENTBIT_PORT", 24224)
		cfg.FluentBit.Level = getEnvAsString("FLUENTBIT_LOG_LEVEL", "info")
	}

	cfg.StdoutLogger.Level = getEnvAsString("STDOUT_LOG_LEVEL", "debug")
	cfg.StdoutLogger.JSON = getEnvAsBool("STDOUT_LOG_JSON", false)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет обязательные значения и границы
func (c *AppConfig) Validate() error {
	var errs []error
	if c.RabbitMQ.URL == "" {
		errs = append(errs, errors.New("RABBITMQ_URL environment variable is required"))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL environment variable is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET environment variable is required"))
	}
	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.Storage.S3Endpoint == "" {
			errs = append(errs, errors.New("S3_ENDPOINT is required when STORAGE_DRIVER=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q (expected local or s3)", c.Storage.Driver))
	}
	if c.Import.BatchSize <= 0 {
		errs = append(errs, errors.New("IMPORT_BATCH_SIZE must be positive"))
	}
	if c.Import.MaxRetries < 0 {
		errs = append(errs, errors.New("IMPORT_MAX_RETRIES must not be negative"))
	}
	return errors.Join(errs...)
}

func getEnvAsString(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt логирует и берет default, если значение не парсится
func getEnvAsInt(key string, defaultValue int) int {
	valueStr, exists := os.LookupEnv(key)
	if !exists || valueStr == "" {
		return defaultValue
	}
	valueInt, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as int: %v. Using default value: %d", key, valueStr, err, defaultValue)
		return defaultValue
	}
	return valueInt
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valStr, exists := os.LookupEnv(key)
	if !exists || valStr == "" {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Warning: Environment variable %s (value: %s) could not be parsed as bool: %v. Using default value: %t", key, valStr, err, defaultValue)
		return defaultValue
	}
	return valBool
}

// getEnvAsDuration "10s", "30m", "24h"
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valStr, exists := os.LookupEnv(key)
	if !exists || valStr == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(valStr)
	if err != nil || d <= 0 {
		log.Printf("Warning: Environment variable %s (value: %s) is not a positive duration. Using default value: %s", key, valStr, defaultValue)
		return defaultValue
	}
	return d
}
