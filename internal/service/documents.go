// documents.go — просмотр, скачивание, удаление и архивирование
// сохранённых документов. Индексом служит сама директория хранилища.
package service

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bigkaa/reception/internal/domain/model"
	"github.com/bigkaa/reception/internal/storage/filestore"
)

// DocumentService — операции над сохранёнными документами.
type DocumentService struct {
	store  *filestore.FileStore
	logger *slog.Logger
}

// NewDocumentService создаёт сервис документов.
func NewDocumentService(store *filestore.FileStore, logger *slog.Logger) *DocumentService {
	return &DocumentService{
		store:  store,
		logger: logger.With(slog.String("component", "document_service")),
	}
}

// StoreStats — сводка по хранилищу.
type StoreStats struct {
	Documents  int   `json:"documents"`
	TotalBytes int64 `json:"total_bytes"`
}

// List возвращает все документы или, если задано имя, документы владельца.
func (s *DocumentService) List(owner model.Owner) ([]*model.StoredDocument, error) {
	if owner.FirstName == "" && owner.LastName == "" {
		return s.store.List()
	}
	return s.store.ListByOwner(owner.FirstName, owner.LastName)
}

// Get возвращает документ по id.
func (s *DocumentService) Get(id string) (*model.StoredDocument, error) {
	return s.store.FindByID(id)
}

// OpenByID открывает файл документа по id.
// Вызывающий код обязан закрыть файл.
func (s *DocumentService) OpenByID(id string) (*os.File, *model.StoredDocument, error) {
	doc, err := s.store.FindByID(id)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.store.Open(doc.Filename)
	if err != nil {
		return nil, nil, err
	}
	return f, doc, nil
}

// OpenByName открывает файл хранилища по имени.
func (s *DocumentService) OpenByName(filename string) (*os.File, error) {
	return s.store.Open(filename)
}

// DeleteByID удаляет документ по id.
func (s *DocumentService) DeleteByID(id string) (*model.StoredDocument, error) {
	doc, err := s.store.FindByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(doc.Filename); err != nil {
		return nil, err
	}
	s.logger.Info("Документ удалён",
		slog.String("id", id),
		slog.String("filename", doc.Filename),
	)
	return doc, nil
}

// DeleteByName удаляет файл хранилища по имени.
func (s *DocumentService) DeleteByName(filename string) error {
	if err := s.store.Delete(filename); err != nil {
		return err
	}
	s.logger.Info("Файл удалён", slog.String("filename", filename))
	return nil
}

// WriteZip записывает ZIP-архив с документами docs в w.
// Документы, удалённые после получения списка, пропускаются.
// Возвращает количество файлов в архиве.
func (s *DocumentService) WriteZip(w io.Writer, docs []*model.StoredDocument) (int, error) {
	zw := zip.NewWriter(w)

	written := 0
	for _, doc := range docs {
		ok, err := s.addToZip(zw, doc)
		if err != nil {
			_ = zw.Close()
			return written, err
		}
		if ok {
			written++
		}
	}

	if err := zw.Close(); err != nil {
		return written, fmt.Errorf("ошибка завершения архива: %w", err)
	}
	return written, nil
}

// addToZip добавляет один файл в архив; false — файл исчез.
func (s *DocumentService) addToZip(zw *zip.Writer, doc *model.StoredDocument) (bool, error) {
	f, err := s.store.Open(doc.Filename)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	header := &zip.FileHeader{
		Name:     doc.Filename,
		Method:   zip.Deflate,
		Modified: doc.ModifiedAt,
	}
	entry, err := zw.CreateHeader(header)
	if err != nil {
		return false, fmt.Errorf("ошибка создания записи архива %s: %w", doc.Filename, err)
	}
	if _, err := io.Copy(entry, f); err != nil {
		return false, fmt.Errorf("ошибка записи %s в архив: %w", doc.Filename, err)
	}
	return true, nil
}

// Stats возвращает количество документов и их суммарный размер.
func (s *DocumentService) Stats() (*StoreStats, error) {
	docs, err := s.store.List()
	if err != nil {
		return nil, err
	}
	stats := &StoreStats{Documents: len(docs)}
	for _, d := range docs {
		stats.TotalBytes += d.Size
	}
	return stats, nil
}
