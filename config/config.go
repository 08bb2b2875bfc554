package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Dosada05/tournament-timer/storage"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix - префикс переменных окружения сервиса.
const EnvPrefix = "TIMER_"

// Бэкенды хранения документов таймеров.
const (
	BackendS3       = "s3"
	BackendR2       = "r2"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	Env       string `koanf:"env" validate:"required"`
	Port      int    `koanf:"port" validate:"min=1,max=65535"`
	LogLevel  string `koanf:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `koanf:"log_format" validate:"oneof=json text"`

	StorageBackend  string `koanf:"storage_backend" validate:"oneof=s3 r2 postgres memory"`
	BucketName      string `koanf:"bucket_name" validate:"required"`
	S3Region        string `koanf:"s3_region"`
	S3Endpoint      string `koanf:"s3_endpoint" validate:"omitempty,url"`
	S3UsePathStyle  bool   `koanf:"s3_use_path_style"`
	AccessKeyID     string `koanf:"s3_access_key_id" validate:"required_if=StorageBackend r2"`
	SecretAccessKey string `koanf:"s3_secret_access_key" validate:"required_if=StorageBackend r2"`
	R2AccountID     string `koanf:"r2_account_id" validate:"required_if=StorageBackend r2"`
	DatabaseURL     string `koanf:"database_url" validate:"required_if=StorageBackend postgres"`

	JWTSecret    string `koanf:"jwt_secret"`
	WriteKeyHash string `koanf:"write_key_hash"`

	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`

	NATSURL           string `koanf:"nats_url" validate:"omitempty,url"`
	NATSSubjectPrefix string `koanf:"nats_subject_prefix" validate:"required"`

	MaxBodyBytes    int64         `koanf:"max_body_bytes" validate:"min=1"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=1s"`
}

// Default возвращает конфигурацию по умолчанию, поверх которой
// накладываются переменные окружения.
func Default() *Config {
	return &Config{
		Env:                "development",
		Port:               8080,
		LogLevel:           "info",
		LogFormat:          "json",
		StorageBackend:     BackendMemory,
		BucketName:         storage.DefaultBucket,
		S3Region:           "us-east-1",
		CORSAllowedOrigins: "*",
		NATSSubjectPrefix:  "timer",
		MaxBodyBytes:       1_048_576, // 1MB
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		IdleTimeout:        120 * time.Second,
		ShutdownTimeout:    15 * time.Second,
	}
}

// Load загружает конфигурацию из переменных окружения с префиксом TIMER_.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Загружаем .env файл, если он есть. Ошибку не считаем фатальной.
	_ = godotenv.Load()

	k := koanf.New(".")
	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// AllowedOrigins возвращает список origin для CORS.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

// WriteAuthEnabled сообщает, защищена ли запись таймеров.
func (c *Config) WriteAuthEnabled() bool {
	return c.JWTSecret != "" || c.WriteKeyHash != ""
}

// SetupLogger создаёт slog.Logger по настройкам формата и уровня.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With(slog.String("env", cfg.Env))
	slog.SetDefault(logger)
	return logger
}
