// ingest.go — приём пакета файлов: допуск по частоте запросов, проверка полей,
// сохранение во временные файлы, запуск конвейера.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	apierrors "github.com/bigkaa/reception/internal/api/errors"
	"github.com/bigkaa/reception/internal/domain/model"
	"github.com/bigkaa/reception/internal/storage/staging"
)

// MaxOwnerNameLength — максимальная длина имени и фамилии.
const MaxOwnerNameLength = 100

// RateLimiter — проверка частоты запросов по идентификатору клиента.
type RateLimiter interface {
	IsLimited(id string) bool
}

// FilePart — один файл multipart-запроса.
type FilePart struct {
	Filename    string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// IngestRequest — запрос на приём пакета документов.
type IngestRequest struct {
	// Requester — идентификатор клиента для ограничения частоты (IP)
	Requester string
	FirstName string
	LastName  string
	Files     []FilePart
}

// IngestError — ошибка уровня пакета с HTTP-кодом.
type IngestError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IngestOptions — ограничения приёма.
type IngestOptions struct {
	MaxFileSize        int64
	MaxFilesPerRequest int
	TempDir            string
}

// IngestService — сервис приёма документов.
type IngestService struct {
	pipeline *Pipeline
	limiter  RateLimiter
	opts     IngestOptions
	logger   *slog.Logger
}

// NewIngestService создаёт сервис приёма. limiter может быть nil.
func NewIngestService(pipeline *Pipeline, limiter RateLimiter, opts IngestOptions, logger *slog.Logger) *IngestService {
	return &IngestService{
		pipeline: pipeline,
		limiter:  limiter,
		opts:     opts,
		logger:   logger.With(slog.String("component", "ingest_service")),
	}
}

// Admit проверяет частоту запросов клиента до чтения тела запроса.
// nil — запрос допущен.
func (s *IngestService) Admit(requester string) *IngestError {
	if s.limiter == nil || !s.limiter.IsLimited(requester) {
		return nil
	}
	s.logger.Warn("Превышена частота загрузок", slog.String("requester", requester))
	return &IngestError{
		StatusCode: http.StatusTooManyRequests,
		Code:       apierrors.CodeRateLimited,
		Message:    "Слишком много запросов, повторите позже",
	}
}

// Ingest принимает пакет файлов, уже допущенный через Admit.
//
// Поток:
//  1. Проверка имени и фамилии (1-100 символов)
//  2. Проверка количества файлов
//  3. Сохранение допустимых файлов во временную директорию
//  4. Конвейер: извлечение текста, классификация, сохранение
//
// Ошибки шагов 1-3 отклоняют весь пакет; ошибки обработки отдельных
// файлов отражаются в их результатах.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) ([]model.ProcessedFile, *IngestError) {
	// 1. Имя и фамилия
	owner := model.Owner{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	}
	if err := validateOwnerField("name", owner.FirstName); err != nil {
		return nil, err
	}
	if err := validateOwnerField("lastname", owner.LastName); err != nil {
		return nil, err
	}

	// 2. Количество файлов
	if len(req.Files) == 0 {
		return nil, &IngestError{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeValidationError,
			Message:    "Файлы не переданы",
		}
	}
	if s.opts.MaxFilesPerRequest > 0 && len(req.Files) > s.opts.MaxFilesPerRequest {
		return nil, &IngestError{
			StatusCode: http.StatusRequestEntityTooLarge,
			Code:       apierrors.CodeTooManyFiles,
			Message: fmt.Sprintf("Передано %d файлов, максимум %d",
				len(req.Files), s.opts.MaxFilesPerRequest),
		}
	}

	// 3. Временные файлы
	uploads, ingestErr := s.stageAll(req.Files)
	if ingestErr != nil {
		return nil, ingestErr
	}
	if len(uploads) == 0 {
		return nil, &IngestError{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeNoValidFiles,
			Message:    "Нет допустимых файлов (разрешены PDF, JPG, PNG)",
		}
	}

	// 4. Конвейер удаляет временные файлы сам
	results := s.pipeline.Process(ctx, owner, uploads)

	s.logger.Info("Пакет обработан",
		slog.String("requester", req.Requester),
		slog.Int("files", len(req.Files)),
		slog.Int("accepted", len(uploads)),
		slog.Int("results", len(results)),
	)
	return results, nil
}

// stageAll сохраняет допустимые файлы во временную директорию.
// Файлы без имени или недопустимого типа пропускаются. При превышении
// размера или ошибке записи уже сохранённые файлы удаляются.
func (s *IngestService) stageAll(parts []FilePart) ([]*staging.Upload, *IngestError) {
	uploads := make([]*staging.Upload, 0, len(parts))

	for _, part := range parts {
		if part.Filename == "" {
			continue
		}

		ext := strings.ToLower(filepath.Ext(part.Filename))
		if !model.IsAllowedExtension(ext) {
			s.logger.Warn("Отклонён файл недопустимого типа",
				slog.String("filename", part.Filename),
			)
			continue
		}
		if !model.IsAllowedContentType(part.ContentType) {
			s.logger.Warn("Отклонён файл с недопустимым Content-Type",
				slog.String("filename", part.Filename),
				slog.String("content_type", part.ContentType),
			)
			continue
		}

		upload, err := s.stageOne(part)
		if err != nil {
			staging.RemoveAll(uploads)
			if errors.Is(err, staging.ErrTooLarge) {
				return nil, &IngestError{
					StatusCode: http.StatusRequestEntityTooLarge,
					Code:       apierrors.CodeFileTooLarge,
					Message: fmt.Sprintf("Файл %s превышает лимит %d байт",
						part.Filename, s.opts.MaxFileSize),
				}
			}
			s.logger.Error("Ошибка сохранения загрузки",
				slog.String("filename", part.Filename),
				slog.String("error", err.Error()),
			)
			return nil, &IngestError{
				StatusCode: http.StatusBadRequest,
				Code:       apierrors.CodeValidationError,
				Message:    fmt.Sprintf("Не удалось сохранить файл %s", part.Filename),
			}
		}
		uploads = append(uploads, upload)
	}

	return uploads, nil
}

func (s *IngestService) stageOne(part FilePart) (*staging.Upload, error) {
	rc, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия части запроса: %w", err)
	}
	defer rc.Close()

	return staging.Stage(rc, part.Filename, part.ContentType, s.opts.TempDir, s.opts.MaxFileSize)
}

// validateOwnerField проверяет длину имени или фамилии.
func validateOwnerField(field, value string) *IngestError {
	n := utf8.RuneCountInString(value)
	if n == 0 || n > MaxOwnerNameLength {
		return &IngestError{
			StatusCode: http.StatusBadRequest,
			Code:       apierrors.CodeValidationError,
			Message: fmt.Sprintf("Поле %s должно содержать от 1 до %d символов",
				field, MaxOwnerNameLength),
		}
	}
	return nil
}
