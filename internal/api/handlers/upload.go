// upload.go — обработчик POST /upload (приём пакета документов).
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"

	apierrors "github.com/bigkaa/reception/internal/api/errors"
	"github.com/bigkaa/reception/internal/api/generated"
	"github.com/bigkaa/reception/internal/domain/model"
	"github.com/bigkaa/reception/internal/service"
)

// multipartMemory — часть формы, которая держится в памяти; остальное
// multipart сбрасывает во временные файлы.
const multipartMemory = 32 << 20

// Upload обрабатывает POST /upload.
// Поля формы: name, lastname, files (несколько файлов).
// Ответ — список результатов обработки в порядке завершения.
func (h *APIHandler) Upload(w http.ResponseWriter, r *http.Request) {
	requester := clientIP(r)

	// Частота запросов проверяется до чтения тела
	if admitErr := h.ingest.Admit(requester); admitErr != nil {
		apierrors.WriteError(w, admitErr.StatusCode, admitErr.Code, admitErr.Message)
		return
	}

	if h.maxRequestSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestSize)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			apierrors.FileTooLarge(w, "Размер запроса превышает допустимый")
			return
		}
		apierrors.ValidationError(w, "Некорректный multipart-запрос: "+err.Error())
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	req := service.IngestRequest{
		Requester: requester,
		FirstName: r.FormValue("name"),
		LastName:  r.FormValue("lastname"),
		Files:     fileParts(r.MultipartForm),
	}

	results, ingestErr := h.ingest.Ingest(r.Context(), req)
	if ingestErr != nil {
		apierrors.WriteError(w, ingestErr.StatusCode, ingestErr.Code, ingestErr.Message)
		return
	}

	h.logger.Debug("Загрузка обработана",
		slog.String("requester", req.Requester),
		slog.Int("results", len(results)),
	)
	resp := make([]generated.ProcessedFile, 0, len(results))
	for _, res := range results {
		resp = append(resp, toAPIProcessedFile(res))
	}
	writeJSON(w, http.StatusOK, resp)
}

// toAPIProcessedFile преобразует результат обработки в модель API.
func toAPIProcessedFile(res model.ProcessedFile) generated.ProcessedFile {
	out := generated.ProcessedFile{
		Category:     generated.Category(res.Category),
		OriginalName: res.OriginalName,
		Size:         res.Size,
		ModifiedAt:   res.ModifiedAt,
		Status:       generated.ProcessedFileStatus(res.Status),
	}
	if id, err := uuid.Parse(res.ID); err == nil {
		out.Id = id
	}
	if res.NewName != "" {
		out.NewName = &res.NewName
	}
	return out
}

// fileParts собирает файлы формы из полей files и files[].
func fileParts(form *multipart.Form) []service.FilePart {
	var headers []*multipart.FileHeader
	headers = append(headers, form.File["files"]...)
	headers = append(headers, form.File["files[]"]...)

	parts := make([]service.FilePart, 0, len(headers))
	for _, fh := range headers {
		parts = append(parts, service.FilePart{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		})
	}
	return parts
}
