// documents.go — просмотр, скачивание, удаление и ZIP-экспорт документов.
//
//	GET    /documents               — список (фильтр name + lastname)
//	GET    /documents/{id}          — скачивание по id
//	GET    /documents/{id}/metadata — метаданные по id
//	DELETE /documents/{id}          — удаление по id
//	GET    /files/{filename}        — скачивание по имени файла
//	DELETE /delete_file?filename=   — удаление по имени файла
//	GET    /download_zip            — архив документов владельца
package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	apierrors "github.com/bigkaa/reception/internal/api/errors"
	"github.com/bigkaa/reception/internal/api/generated"
	"github.com/bigkaa/reception/internal/domain/model"
	"github.com/bigkaa/reception/internal/storage/filestore"
	"github.com/bigkaa/reception/internal/storage/naming"
)

// ListDocuments обрабатывает GET /documents.
func (h *APIHandler) ListDocuments(w http.ResponseWriter, _ *http.Request, params generated.ListDocumentsParams) {
	owner := ownerFromParams(params.Name, params.Lastname)

	docs, err := h.documents.List(owner)
	if err != nil {
		h.logger.Error("Ошибка получения списка документов",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при получении списка документов")
		return
	}

	items := make([]generated.StoredDocument, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toAPIDocument(doc))
	}
	writeJSON(w, http.StatusOK, generated.DocumentList{
		Documents: items,
		Total:     len(items),
	})
}

// GetDocumentMetadata обрабатывает GET /documents/{id}/metadata.
func (h *APIHandler) GetDocumentMetadata(w http.ResponseWriter, _ *http.Request, id generated.DocumentId) {
	doc, err := h.documents.Get(id.String())
	if err != nil {
		h.writeStoreError(w, err, "id", id.String())
		return
	}
	writeJSON(w, http.StatusOK, toAPIDocument(doc))
}

// DownloadDocument обрабатывает GET /documents/{id}.
func (h *APIHandler) DownloadDocument(w http.ResponseWriter, r *http.Request, id generated.DocumentId) {
	f, doc, err := h.documents.OpenByID(id.String())
	if err != nil {
		h.writeStoreError(w, err, "id", id.String())
		return
	}
	defer f.Close()

	serveFile(w, r, f, doc.Filename)
}

// DeleteDocument обрабатывает DELETE /documents/{id}.
func (h *APIHandler) DeleteDocument(w http.ResponseWriter, _ *http.Request, id generated.DocumentId) {
	doc, err := h.documents.DeleteByID(id.String())
	if err != nil {
		h.writeStoreError(w, err, "id", id.String())
		return
	}

	writeJSON(w, http.StatusOK, generated.DeleteResult{
		Status:   generated.DeleteResultStatusDeleted,
		Id:       &doc.ID,
		Filename: doc.Filename,
	})
}

// DownloadFile обрабатывает GET /files/{filename}.
// Имя уже декодировано из пути при разборе параметров.
func (h *APIHandler) DownloadFile(w http.ResponseWriter, r *http.Request, filename string) {
	f, err := h.documents.OpenByName(filename)
	if err != nil {
		h.writeStoreError(w, err, "filename", filename)
		return
	}
	defer f.Close()

	serveFile(w, r, f, filename)
}

// DeleteFile обрабатывает DELETE /delete_file?filename=.
func (h *APIHandler) DeleteFile(w http.ResponseWriter, _ *http.Request, params generated.DeleteFileParams) {
	if err := h.documents.DeleteByName(params.Filename); err != nil {
		h.writeStoreError(w, err, "filename", params.Filename)
		return
	}

	writeJSON(w, http.StatusOK, generated.DeleteResult{
		Status:   generated.DeleteResultStatusDeleted,
		Filename: params.Filename,
	})
}

// DownloadZip обрабатывает GET /download_zip?name=&lastname=.
// Оба параметра обязательны; архив передаётся потоком.
func (h *APIHandler) DownloadZip(w http.ResponseWriter, _ *http.Request, params generated.DownloadZipParams) {
	owner := ownerFromParams(&params.Name, &params.Lastname)
	if owner.FirstName == "" || owner.LastName == "" {
		apierrors.ValidationError(w, "Параметры name и lastname обязательны")
		return
	}

	docs, err := h.documents.List(owner)
	if err != nil {
		h.logger.Error("Ошибка получения документов для архива",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при формировании архива")
		return
	}
	if len(docs) == 0 {
		apierrors.NotFound(w, "Документы не найдены")
		return
	}

	archiveName := naming.OwnerKey(owner.FirstName, owner.LastName) + ".zip"
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", attachment(archiveName))
	w.WriteHeader(http.StatusOK)

	// Заголовки уже отправлены: ошибку можно только залогировать
	n, err := h.documents.WriteZip(w, docs)
	if err != nil {
		h.logger.Error("Ошибка записи архива",
			slog.String("archive", archiveName),
			slog.String("error", err.Error()),
		)
		return
	}
	h.logger.Info("Архив отправлен",
		slog.String("archive", archiveName),
		slog.Int("files", n),
	)
}

// writeStoreError преобразует ошибку хранилища в HTTP-ответ.
func (h *APIHandler) writeStoreError(w http.ResponseWriter, err error, key, value string) {
	switch {
	case errors.Is(err, filestore.ErrInvalidName):
		apierrors.Forbidden(w, "Недопустимое имя файла")
	case errors.Is(err, filestore.ErrNotFound):
		apierrors.NotFound(w, fmt.Sprintf("Документ не найден: %s", value))
	default:
		h.logger.Error("Ошибка доступа к хранилищу",
			slog.String(key, value),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка хранилища")
	}
}

// ownerFromParams собирает владельца из необязательных name и lastname.
func ownerFromParams(name, lastname *string) model.Owner {
	var owner model.Owner
	if name != nil {
		owner.FirstName = strings.TrimSpace(*name)
	}
	if lastname != nil {
		owner.LastName = strings.TrimSpace(*lastname)
	}
	return owner
}

// toAPIDocument преобразует документ хранилища в модель API.
func toAPIDocument(doc *model.StoredDocument) generated.StoredDocument {
	return generated.StoredDocument{
		Id:             doc.ID,
		Category:       generated.Category(doc.Category),
		Owner:          doc.Owner,
		Original:       doc.OriginalStem,
		CollisionIndex: doc.CollisionIndex,
		Filename:       doc.Filename,
		Size:           doc.Size,
		ModifiedAt:     doc.ModifiedAt,
	}
}

// serveFile отдаёт файл как вложение с поддержкой Range.
func serveFile(w http.ResponseWriter, r *http.Request, f *os.File, filename string) {
	var modTime time.Time
	if info, err := f.Stat(); err == nil {
		modTime = info.ModTime()
	}
	w.Header().Set("Content-Disposition", attachment(filename))
	http.ServeContent(w, r, filename, modTime, f)
}
