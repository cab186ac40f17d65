// Пакет service — бизнес-логика приёма документов.
// pipeline.go — конвейер обработки пакета файлов: извлечение текста,
// классификация, сохранение. Сбой одного файла не влияет на остальные.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/reception/internal/domain/model"
	"github.com/bigkaa/reception/internal/ocr"
	"github.com/bigkaa/reception/internal/storage/filestore"
	"github.com/bigkaa/reception/internal/storage/naming"
	"github.com/bigkaa/reception/internal/storage/staging"
)

// Prometheus метрики конвейера
var (
	pipelineFilesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rc_pipeline_files_total",
		Help: "Общее количество обработанных файлов по статусу и категории",
	}, []string{"status", "category"})

	pipelineRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rc_pipeline_rejected_total",
		Help: "Файлы, отклонённые до извлечения текста (тип не разрешён)",
	})

	pipelineErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rc_pipeline_errors_total",
		Help: "Файлы, обработка которых прервана ошибкой или паникой",
	})

	pipelineFileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rc_pipeline_file_duration_seconds",
		Help:    "Длительность обработки одного файла в секундах",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})
)

// TextExtractor — извлечение текста из содержимого файла.
// Реализация не возвращает ошибок: сбой даёт пустой текст.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, ext string) string
}

// Classifier — определение категории по тексту.
type Classifier interface {
	Classify(text string) model.Category
}

// Pipeline — конвейер обработки загруженных файлов.
type Pipeline struct {
	extractor  TextExtractor
	classifier Classifier
	store      *filestore.FileStore
	pool       *ocr.Pool
	newID      func() string
	logger     *slog.Logger
}

// NewPipeline создаёт конвейер. Извлечение текста выполняется
// в пуле pool, число одновременно обрабатываемых файлов пакета
// ограничено удвоенным размером пула.
func NewPipeline(
	extractor TextExtractor,
	classifier Classifier,
	store *filestore.FileStore,
	pool *ocr.Pool,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		extractor:  extractor,
		classifier: classifier,
		store:      store,
		pool:       pool,
		newID:      func() string { return uuid.New().String() },
		logger:     logger.With(slog.String("component", "pipeline")),
	}
}

// Process обрабатывает пакет загрузок и возвращает результаты в порядке
// завершения. Файлы недопустимого типа отклоняются без извлечения текста.
// Ошибка или паника при обработке файла логируется, результат для него
// не формируется. Временный файл каждой загрузки удаляется в любом случае.
func (p *Pipeline) Process(ctx context.Context, owner model.Owner, uploads []*staging.Upload) []model.ProcessedFile {
	var (
		mu      sync.Mutex
		results = make([]model.ProcessedFile, 0, len(uploads))
	)

	// errgroup без WithContext: ошибка одного файла не отменяет остальные
	var g errgroup.Group
	g.SetLimit(2 * p.pool.Size())

	for _, upload := range uploads {
		if !model.IsAllowedExtension(upload.Ext) || !model.IsAllowedContentType(upload.ContentType) {
			pipelineRejectedTotal.Inc()
			p.logger.Warn("Файл отклонён: недопустимый тип",
				slog.String("filename", upload.OriginalName),
				slog.String("content_type", upload.ContentType),
			)
			p.removeStaged(upload)
			continue
		}

		g.Go(func() error {
			defer p.removeStaged(upload)

			start := time.Now()
			result, err := p.processOne(ctx, owner, upload)
			pipelineFileDuration.Observe(time.Since(start).Seconds())

			if err != nil {
				pipelineErrorsTotal.Inc()
				p.logger.Error("Ошибка обработки файла",
					slog.String("filename", upload.OriginalName),
					slog.String("error", err.Error()),
				)
				return nil
			}

			pipelineFilesTotal.WithLabelValues(string(result.Status), string(result.Category)).Inc()

			mu.Lock()
			results = append(results, *result)
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return results
}

// processOne обрабатывает один файл. Паника превращается в ошибку.
func (p *Pipeline) processOne(ctx context.Context, owner model.Owner, upload *staging.Upload) (result *model.ProcessedFile, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Debug("Стек паники", slog.String("stack", string(debug.Stack())))
			result, err = nil, fmt.Errorf("паника при обработке: %v", r)
		}
	}()

	data, err := upload.ReadAll()
	if err != nil {
		return nil, err
	}

	var text string
	if err := p.pool.Do(ctx, func() {
		text = p.extractor.Extract(ctx, data, upload.Ext)
	}); err != nil {
		return nil, fmt.Errorf("ошибка постановки в пул OCR: %w", err)
	}

	category := p.classifier.Classify(text)

	result = &model.ProcessedFile{
		ID:           p.newID(),
		OriginalName: upload.OriginalName,
		Category:     category,
		Size:         upload.Size,
		ModifiedAt:   time.Now().UTC(),
	}

	if category == model.CategoryUnclassified {
		result.Status = model.StatusUnclassified
		p.logger.Info("Документ не классифицирован",
			slog.String("id", result.ID),
			slog.String("filename", upload.OriginalName),
			slog.Int("text_length", len([]rune(text))),
		)
		return result, nil
	}

	saved, err := p.store.SaveUnique(naming.Params{
		Category:     category,
		FirstName:    owner.FirstName,
		LastName:     owner.LastName,
		OriginalStem: upload.Stem(),
		ID:           result.ID,
		Ext:          upload.Ext,
	}, data)
	if err != nil {
		result.Status = model.StatusFailed
		p.logger.Error("Ошибка сохранения документа",
			slog.String("id", result.ID),
			slog.String("filename", upload.OriginalName),
			slog.String("category", string(category)),
			slog.String("error", err.Error()),
		)
		return result, nil
	}

	result.Status = model.StatusSaved
	result.NewName = saved.Filename
	result.Size = saved.Size
	result.ModifiedAt = saved.ModifiedAt

	p.logger.Info("Документ сохранён",
		slog.String("id", result.ID),
		slog.String("filename", upload.OriginalName),
		slog.String("category", string(category)),
		slog.String("stored_as", saved.Filename),
		slog.Int64("size", saved.Size),
		slog.String("checksum", upload.Checksum),
	)
	return result, nil
}

// removeStaged удаляет временный файл загрузки.
func (p *Pipeline) removeStaged(upload *staging.Upload) {
	if err := upload.Remove(); err != nil {
		p.logger.Warn("Не удалось удалить временный файл",
			slog.String("path", upload.Path),
			slog.String("error", err.Error()),
		)
	}
}
