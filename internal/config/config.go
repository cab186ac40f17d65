// Пакет config — загрузка и валидация конфигурации сервиса приёма
// документов из переменных окружения (префикс RC_).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации.
type Config struct {
	// Адрес и порт HTTP-сервера
	Host string
	Port int
	// Директория хранения классифицированных документов
	UploadDir string
	// Директория временных файлов загрузки (пусто — системная)
	TempDir string
	// Директория статического веб-интерфейса (отсутствует — не раздаётся)
	WebDir string

	// Максимальный размер одного файла в байтах
	MaxFileSize int64
	// Максимальный размер всего multipart-запроса в байтах
	MaxRequestSize int64
	// Максимальное количество файлов в одном запросе
	MaxFilesPerRequest int

	// Размер пула воркеров OCR
	OCRWorkers int
	// Языки Tesseract
	OCRLanguage string
	// Таймаут распознавания одной страницы
	OCRTimeout time.Duration
	// Путь к tessdata (опционально)
	TessdataPrefix string
	// Сколько первых страниц PDF распознавать
	PDFMaxPages int
	// Разрешение растеризации PDF
	PDFDPI int
	// Использовать встроенный текстовый слой PDF
	PDFTextLayer bool
	// Ограничение длинной стороны изображения перед OCR
	ImageMaxSize int
	// Порог накопленного текста для ранней остановки
	TextEarlyStop int
	// Максимальная длина текста для классификации
	TextMaxLength int

	// Размер кэша результатов классификации
	ClassifyCacheSize int
	// YAML-файл переопределения ключевых слов (опционально)
	KeywordsFile string

	// Ограничение частоты загрузок: RateLimit запросов за RateWindow
	RateLimit  int
	RateWindow time.Duration

	// Срок хранения документов в днях (0 — без очистки)
	RetentionDays int
	// Интервал фоновой очистки
	RetentionInterval time.Duration

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration

	// Пути к TLS сертификату и ключу (опционально, только вместе)
	TLSCert string
	TLSKey  string
}

// RetentionMaxAge возвращает срок хранения как time.Duration.
func (c *Config) RetentionMaxAge() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// Addr возвращает адрес прослушивания HTTP-сервера.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadDotEnv загружает переменные из .env-файлов, если они существуют.
// Уже заданные переменные окружения не перезаписываются.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("ошибка загрузки %s: %w", p, err)
		}
	}
	return nil
}

// Load загружает конфигурацию из переменных окружения, валидирует
// значения и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// RC_PORT — порт HTTP-сервера (по умолчанию 5040)
	cfg.Port, err = getEnvInt("RC_PORT", 5040)
	if err != nil {
		return nil, fmt.Errorf("RC_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("RC_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.Host = getEnvDefault("RC_HOST", "")
	cfg.UploadDir = getEnvDefault("RC_UPLOAD_DIR", "uploads")
	cfg.TempDir = getEnvDefault("RC_TEMP_DIR", "")
	cfg.WebDir = getEnvDefault("RC_WEB_DIR", "build/web")

	// RC_MAX_FILE_SIZE — максимальный размер файла (по умолчанию 50 MiB)
	cfg.MaxFileSize, err = getEnvInt64("RC_MAX_FILE_SIZE", 50<<20)
	if err != nil {
		return nil, fmt.Errorf("RC_MAX_FILE_SIZE: %w", err)
	}
	if cfg.MaxFileSize <= 0 {
		return nil, fmt.Errorf("RC_MAX_FILE_SIZE: значение должно быть положительным")
	}

	// RC_MAX_REQUEST_SIZE — максимальный размер запроса (по умолчанию 500 MiB)
	cfg.MaxRequestSize, err = getEnvInt64("RC_MAX_REQUEST_SIZE", 500<<20)
	if err != nil {
		return nil, fmt.Errorf("RC_MAX_REQUEST_SIZE: %w", err)
	}
	if cfg.MaxRequestSize < cfg.MaxFileSize {
		return nil, fmt.Errorf("RC_MAX_REQUEST_SIZE: значение %d должно быть >= RC_MAX_FILE_SIZE (%d)",
			cfg.MaxRequestSize, cfg.MaxFileSize)
	}

	cfg.MaxFilesPerRequest, err = getEnvPositiveInt("RC_MAX_FILES_PER_REQUEST", 20)
	if err != nil {
		return nil, err
	}

	// RC_OCR_WORKERS — размер пула OCR (по умолчанию min(4, NumCPU))
	cfg.OCRWorkers, err = getEnvPositiveInt("RC_OCR_WORKERS", min(4, runtime.NumCPU()))
	if err != nil {
		return nil, err
	}

	cfg.OCRLanguage = getEnvDefault("RC_OCR_LANGUAGE", "rus")
	cfg.TessdataPrefix = getEnvDefault("RC_TESSDATA_PREFIX", "")

	cfg.OCRTimeout, err = getEnvDuration("RC_OCR_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RC_OCR_TIMEOUT: %w", err)
	}
	if cfg.OCRTimeout <= 0 {
		return nil, fmt.Errorf("RC_OCR_TIMEOUT: значение должно быть положительным")
	}

	if cfg.PDFMaxPages, err = getEnvPositiveInt("RC_PDF_MAX_PAGES", 10); err != nil {
		return nil, err
	}
	if cfg.PDFDPI, err = getEnvPositiveInt("RC_PDF_DPI", 200); err != nil {
		return nil, err
	}
	cfg.PDFTextLayer, err = getEnvBool("RC_PDF_TEXT_LAYER", false)
	if err != nil {
		return nil, fmt.Errorf("RC_PDF_TEXT_LAYER: %w", err)
	}
	if cfg.ImageMaxSize, err = getEnvPositiveInt("RC_IMAGE_MAX_SIZE", 2000); err != nil {
		return nil, err
	}
	if cfg.TextEarlyStop, err = getEnvPositiveInt("RC_TEXT_EARLY_STOP", 500); err != nil {
		return nil, err
	}
	if cfg.TextMaxLength, err = getEnvPositiveInt("RC_TEXT_MAX_LENGTH", 5000); err != nil {
		return nil, err
	}

	// RC_CLASSIFY_CACHE_SIZE — 0 отключает кэш
	cfg.ClassifyCacheSize, err = getEnvInt("RC_CLASSIFY_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("RC_CLASSIFY_CACHE_SIZE: %w", err)
	}
	if cfg.ClassifyCacheSize < 0 {
		return nil, fmt.Errorf("RC_CLASSIFY_CACHE_SIZE: значение не может быть отрицательным")
	}
	cfg.KeywordsFile = getEnvDefault("RC_KEYWORDS_FILE", "")

	// RC_RATE_LIMIT — 0 отключает ограничение
	cfg.RateLimit, err = getEnvInt("RC_RATE_LIMIT", 10)
	if err != nil {
		return nil, fmt.Errorf("RC_RATE_LIMIT: %w", err)
	}
	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("RC_RATE_LIMIT: значение не может быть отрицательным")
	}
	cfg.RateWindow, err = getEnvDuration("RC_RATE_WINDOW", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("RC_RATE_WINDOW: %w", err)
	}
	if cfg.RateWindow <= 0 {
		return nil, fmt.Errorf("RC_RATE_WINDOW: значение должно быть положительным")
	}

	// RC_RETENTION_DAYS — 0 отключает очистку
	cfg.RetentionDays, err = getEnvInt("RC_RETENTION_DAYS", 30)
	if err != nil {
		return nil, fmt.Errorf("RC_RETENTION_DAYS: %w", err)
	}
	if cfg.RetentionDays < 0 {
		return nil, fmt.Errorf("RC_RETENTION_DAYS: значение не может быть отрицательным")
	}
	cfg.RetentionInterval, err = getEnvDuration("RC_RETENTION_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("RC_RETENTION_INTERVAL: %w", err)
	}
	if cfg.RetentionInterval <= 0 {
		return nil, fmt.Errorf("RC_RETENTION_INTERVAL: значение должно быть положительным")
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("RC_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("RC_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("RC_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("RC_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.ShutdownTimeout, err = getEnvDuration("RC_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("RC_SHUTDOWN_TIMEOUT: %w", err)
	}

	// RC_TLS_CERT / RC_TLS_KEY — задаются только вместе
	cfg.TLSCert = getEnvDefault("RC_TLS_CERT", "")
	cfg.TLSKey = getEnvDefault("RC_TLS_KEY", "")
	if (cfg.TLSCert == "") != (cfg.TLSKey == "") {
		return nil, fmt.Errorf("RC_TLS_CERT и RC_TLS_KEY должны задаваться вместе")
	}

	return cfg, nil
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

// getEnvPositiveInt — getEnvInt с проверкой n > 0; ошибка содержит имя переменной.
func getEnvPositiveInt(key string, defaultVal int) (int, error) {
	n, err := getEnvInt(key, defaultVal)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s: значение должно быть положительным, получено %d", key, n)
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

// getEnvBool возвращает bool значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное логическое значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1m, 1h)", val)
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
