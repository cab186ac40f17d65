// Точка входа сервиса приёма документов: OCR, классификация по ключевым
// словам и сохранение в файловое хранилище.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/reception/internal/api/handlers"
	"github.com/bigkaa/reception/internal/classify"
	"github.com/bigkaa/reception/internal/config"
	"github.com/bigkaa/reception/internal/ocr"
	"github.com/bigkaa/reception/internal/ratelimit"
	"github.com/bigkaa/reception/internal/server"
	"github.com/bigkaa/reception/internal/service"
	"github.com/bigkaa/reception/internal/storage/filestore"
)

func main() {
	// .env — необязательный, переменные окружения имеют приоритет
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки .env: %v\n", err)
		os.Exit(1)
	}

	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("Сервис приёма документов запускается",
		slog.String("version", config.Version),
		slog.String("addr", cfg.Addr()),
		slog.String("upload_dir", cfg.UploadDir),
		slog.Int("ocr_workers", cfg.OCRWorkers),
	)

	// --- Инициализация компонентов ---

	// 1. Файловое хранилище
	store, err := filestore.New(cfg.UploadDir)
	if err != nil {
		logger.Error("Ошибка инициализации хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.TempDir != "" {
		if err := os.MkdirAll(cfg.TempDir, 0o750); err != nil {
			logger.Error("Ошибка создания временной директории",
				slog.String("temp_dir", cfg.TempDir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// 2. Классификатор
	keywords := classify.DefaultKeywords
	if cfg.KeywordsFile != "" {
		keywords, err = classify.LoadKeywords(cfg.KeywordsFile)
		if err != nil {
			logger.Error("Ошибка загрузки ключевых слов", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("Ключевые слова загружены", slog.String("file", cfg.KeywordsFile))
	}
	classifier, err := classify.New(keywords, cfg.ClassifyCacheSize, logger)
	if err != nil {
		logger.Error("Ошибка инициализации классификатора", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3. OCR: пул воркеров, движок Tesseract, растеризатор PDF
	pool := ocr.NewPool(cfg.OCRWorkers)
	defer pool.Close()

	extractor := ocr.NewExtractor(
		ocr.NewTesseractEngine(cfg.OCRLanguage, cfg.TessdataPrefix),
		&ocr.PdftoppmRasterizer{TempDir: cfg.TempDir},
		ocr.Options{
			MaxPages:       cfg.PDFMaxPages,
			DPI:            cfg.PDFDPI,
			ImageMaxSize:   cfg.ImageMaxSize,
			EarlyStopChars: cfg.TextEarlyStop,
			MaxTextLength:  cfg.TextMaxLength,
			PageTimeout:    cfg.OCRTimeout,
			UseTextLayer:   cfg.PDFTextLayer,
		},
		logger,
	)

	// 4. Конвейер обработки
	pipeline := service.NewPipeline(extractor, classifier, store, pool, logger)

	// 5. Ограничение частоты загрузок
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter := ratelimit.New(cfg.RateLimit, cfg.RateWindow, logger)
	limiter.Start(ctx)
	defer limiter.Stop()

	// 6. Фоновая очистка по сроку хранения
	retention := service.NewRetentionService(store, cfg.RetentionMaxAge(), cfg.RetentionInterval, logger)
	retention.Start(ctx)
	defer retention.Stop()

	// 7. Сервисы и HTTP API
	ingest := service.NewIngestService(pipeline, limiter, service.IngestOptions{
		MaxFileSize:        cfg.MaxFileSize,
		MaxFilesPerRequest: cfg.MaxFilesPerRequest,
		TempDir:            cfg.TempDir,
	}, logger)
	documents := service.NewDocumentService(store, logger)
	apiHandler := handlers.NewAPIHandler(ingest, documents, cfg.UploadDir, cfg.MaxRequestSize, logger)

	srv := server.New(cfg, logger, apiHandler)

	// Запуск сервера (блокирующий вызов с graceful shutdown)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		// os.Exit не выполняет defer: останавливаем фоновые задачи явно
		retention.Stop()
		limiter.Stop()
		pool.Close()
		os.Exit(1)
	}

	logger.Info("Сервис приёма документов остановлен")
}
