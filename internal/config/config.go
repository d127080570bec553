// Пакет config — загрузка и валидация конфигурации File Service
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации File Service.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL (Metadata Ledger) ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Пользователь БД
	DBUser string
	// Пароль БД
	DBPassword string
	// Режим SSL (disable, require, verify-full)
	DBSSLMode string

	// --- S3 (Blob Store) ---

	// Endpoint S3-совместимого хранилища (host:port, без схемы)
	S3Endpoint string
	// Access key
	S3AccessKey string
	// Secret key
	S3SecretKey string
	// Имя bucket для объектов
	S3Bucket string
	// Использовать TLS при подключении к S3
	S3UseSSL bool

	// --- NATS (Event Channel) ---

	// URL NATS-сервера (nats://host:4222)
	NATSURL string
	// URL HTTP-мониторинга NATS для dephealth (опционально)
	NATSMonitorURL string

	// --- Лимиты и таймауты ---

	// Максимальный размер загружаемого файла в байтах
	MaxFileSize int64
	// Таймаут одного обращения к backend-подсистеме (blob store, реестр)
	BackendTimeout time.Duration

	// --- Кэш метаданных ---

	// Максимальное количество записей в LRU-кэше
	CacheSize int
	// TTL записи кэша
	CacheTTL time.Duration

	// --- Reconciliation sweep ---

	// Интервал фоновой сверки
	ReconcileInterval time.Duration
	// Grace period: orphan blob моложе этого возраста не удаляется
	// (защита от гонки с in-flight upload)
	ReconcileGrace time.Duration

	// --- HTTP Server Timeouts ---

	// Таймаут чтения HTTP-сервера
	HTTPReadTimeout time.Duration
	// Таймаут записи HTTP-сервера
	HTTPWriteTimeout time.Duration
	// Таймаут простоя HTTP-сервера
	HTTPIdleTimeout time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown
	ShutdownTimeout time.Duration

	// --- Dephealth (topologymetrics) ---

	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration
	// Имя группы в метриках topologymetrics
	DephealthGroup string
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// FS_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("FS_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("FS_PORT: %w", err)
	}

	// FS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FS_LOG_LEVEL: %w", err)
	}

	// FS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("FS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// FS_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("FS_DB_HOST")
	if err != nil {
		return nil, err
	}

	// FS_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("FS_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("FS_DB_PORT: %w", err)
	}

	// FS_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("FS_DB_NAME")
	if err != nil {
		return nil, err
	}

	// FS_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("FS_DB_USER")
	if err != nil {
		return nil, err
	}

	// FS_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("FS_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// FS_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("FS_DB_SSL_MODE", "disable")

	// --- S3 ---

	// FS_S3_ENDPOINT — обязательный (host:port)
	cfg.S3Endpoint, err = getEnvRequired("FS_S3_ENDPOINT")
	if err != nil {
		return nil, err
	}

	// FS_S3_ACCESS_KEY — обязательный
	cfg.S3AccessKey, err = getEnvRequired("FS_S3_ACCESS_KEY")
	if err != nil {
		return nil, err
	}

	// FS_S3_SECRET_KEY — обязательный
	cfg.S3SecretKey, err = getEnvRequired("FS_S3_SECRET_KEY")
	if err != nil {
		return nil, err
	}

	// FS_S3_BUCKET — имя bucket (по умолчанию "primary")
	cfg.S3Bucket = getEnvDefault("FS_S3_BUCKET", "primary")

	// FS_S3_USE_SSL — TLS для S3 (по умолчанию false)
	cfg.S3UseSSL = getEnvDefault("FS_S3_USE_SSL", "false") == "true"

	// --- NATS ---

	// FS_NATS_URL — URL NATS (по умолчанию nats://localhost:4222)
	cfg.NATSURL = getEnvDefault("FS_NATS_URL", "nats://localhost:4222")

	// FS_NATS_MONITOR_URL — HTTP-мониторинг NATS для dephealth (опционально)
	cfg.NATSMonitorURL = getEnvDefault("FS_NATS_MONITOR_URL", "")

	// --- Лимиты и таймауты ---

	// FS_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 1 GB)
	cfg.MaxFileSize, err = getEnvInt64("FS_MAX_FILE_SIZE", 1073741824)
	if err != nil {
		return nil, fmt.Errorf("FS_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("FS_MAX_FILE_SIZE: значение должно быть положительным")
	}

	// FS_BACKEND_TIMEOUT — таймаут одного обращения к подсистеме (по умолчанию 30s)
	cfg.BackendTimeout, err = getEnvDuration("FS_BACKEND_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FS_BACKEND_TIMEOUT: %w", err)
	}

	// --- Кэш ---

	// FS_CACHE_SIZE — размер LRU-кэша (по умолчанию 1000)
	cfg.CacheSize, err = getEnvInt("FS_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("FS_CACHE_SIZE: %w", err)
	}

	// FS_CACHE_TTL — TTL записи кэша (по умолчанию 5m)
	cfg.CacheTTL, err = getEnvDuration("FS_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("FS_CACHE_TTL: %w", err)
	}

	// --- Reconciliation ---

	// FS_RECONCILE_INTERVAL — интервал сверки (по умолчанию 6h)
	cfg.ReconcileInterval, err = getEnvDuration("FS_RECONCILE_INTERVAL", 6*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("FS_RECONCILE_INTERVAL: %w", err)
	}

	// FS_RECONCILE_GRACE — grace period для orphan blobs (по умолчанию 1h)
	cfg.ReconcileGrace, err = getEnvDuration("FS_RECONCILE_GRACE", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("FS_RECONCILE_GRACE: %w", err)
	}

	// --- HTTP Server Timeouts ---

	// FS_HTTP_READ_TIMEOUT — таймаут чтения (по умолчанию 30s)
	cfg.HTTPReadTimeout, err = getEnvDuration("FS_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FS_HTTP_READ_TIMEOUT: %w", err)
	}

	// FS_HTTP_WRITE_TIMEOUT — таймаут записи (по умолчанию 60s)
	cfg.HTTPWriteTimeout, err = getEnvDuration("FS_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FS_HTTP_WRITE_TIMEOUT: %w", err)
	}

	// FS_HTTP_IDLE_TIMEOUT — таймаут простоя (по умолчанию 120s)
	cfg.HTTPIdleTimeout, err = getEnvDuration("FS_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FS_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- Graceful shutdown ---

	// FS_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("FS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FS_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Dephealth ---

	// FS_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("FS_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FS_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// FS_DEPHEALTH_GROUP — имя группы в метриках (по умолчанию "file-service")
	cfg.DephealthGroup = getEnvDefault("FS_DEPHEALTH_GROUP", "file-service")

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения для golang-migrate и dephealth.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
