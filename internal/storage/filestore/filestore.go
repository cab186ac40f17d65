// Пакет filestore — операции с классифицированными файлами на диске.
//
// Хранилище — плоская директория без индекса: список файлов и есть индекс,
// метаданные восстанавливаются декодированием имён (пакет naming).
// Запись выполняется атомарно: temp файл в той же директории → fsync → rename.
package filestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bigkaa/reception/internal/domain/model"
	"github.com/bigkaa/reception/internal/storage/naming"
)

// MaxCollisions — максимальное число попыток подобрать свободное имя.
const MaxCollisions = 1000

// tmpPattern — шаблон временных файлов атомарной записи.
const tmpPattern = ".*.tmp"

var (
	// ErrNotFound — файл с указанным id или именем отсутствует.
	ErrNotFound = errors.New("файл не найден")
	// ErrCollisionsExhausted — не удалось подобрать свободное имя.
	ErrCollisionsExhausted = errors.New("превышено число коллизий имени файла")
	// ErrInvalidName — имя файла выходит за пределы директории хранилища.
	ErrInvalidName = errors.New("недопустимое имя файла")
)

// FileStore — управление файлами в директории хранилища.
type FileStore struct {
	// dataDir — директория хранения (RC_UPLOAD_DIR)
	dataDir string
}

// SaveResult — результат сохранения файла.
type SaveResult struct {
	// Filename — имя файла в хранилище
	Filename string
	// FullPath — абсолютный путь к файлу
	FullPath string
	// CollisionIndex — индекс, с которым имя оказалось свободным
	CollisionIndex int
	Size           int64
	ModifiedAt     time.Time
}

// Entry — обычный файл директории хранилища (без декодирования имени).
type Entry struct {
	Name       string
	Size       int64
	ModifiedAt time.Time
}

// New создаёт FileStore и при необходимости директорию хранения.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию хранилища %s: %w", dataDir, err)
	}
	return &FileStore{dataDir: dataDir}, nil
}

// DataDir возвращает путь к директории хранилища.
func (s *FileStore) DataDir() string {
	return s.dataDir
}

// WriteAtomic записывает данные в path атомарно.
// Временный файл создаётся в той же директории, поэтому rename атомарен,
// а читатель path никогда не увидит частично записанный файл.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+tmpPattern)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpPath := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Chmod(tmpPath, 0o640); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка установки прав: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// SaveUnique подбирает свободное имя, начиная с индекса коллизии 1,
// и сразу записывает файл. Проверка и запись не атомарны между собой,
// но разные файлы имеют разные id и не могут конфликтовать.
// После MaxCollisions занятых имён возвращает ErrCollisionsExhausted.
func (s *FileStore) SaveUnique(params naming.Params, data []byte) (*SaveResult, error) {
	for index := 1; index <= MaxCollisions; index++ {
		name := naming.Encode(params, index)
		fullPath := filepath.Join(s.dataDir, name)

		_, err := os.Lstat(fullPath)
		if err == nil {
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("ошибка проверки имени %s: %w", name, err)
		}

		if err := WriteAtomic(fullPath, data); err != nil {
			return nil, err
		}

		result := &SaveResult{
			Filename:       name,
			FullPath:       fullPath,
			CollisionIndex: index,
			Size:           int64(len(data)),
			ModifiedAt:     time.Now().UTC(),
		}
		if info, err := os.Stat(fullPath); err == nil {
			result.ModifiedAt = info.ModTime().UTC()
		}
		return result, nil
	}

	return nil, fmt.Errorf("%w: %d попыток", ErrCollisionsExhausted, MaxCollisions)
}

// ResolveName возвращает полный путь к файлу хранилища.
// Имена с разделителями пути или ссылками на родительскую директорию
// отклоняются с ErrInvalidName.
func (s *FileStore) ResolveName(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dataDir, name), nil
}

// Open открывает файл хранилища по имени. Вызывающий код обязан закрыть файл.
func (s *FileStore) Open(name string) (*os.File, error) {
	fullPath, err := s.ResolveName(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", name, err)
	}
	return f, nil
}

// Delete удаляет файл хранилища. Отсутствующий файл — ErrNotFound.
func (s *FileStore) Delete(name string) error {
	fullPath, err := s.ResolveName(name)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("ошибка удаления файла %s: %w", name, err)
	}
	return nil
}

// Entries возвращает все обычные файлы директории хранилища.
// Файлы, исчезнувшие между чтением директории и stat, пропускаются.
func (s *FileStore) Entries() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", s.dataDir, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if !de.Type().IsRegular() {
			continue
		}
		info, err := de.Info()
		if err != nil {
			// Файл удалён параллельно (sweeper, delete) — пропускаем
			continue
		}
		entries = append(entries, Entry{
			Name:       de.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime().UTC(),
		})
	}
	return entries, nil
}

// List возвращает документы хранилища, восстановленные из имён файлов.
// Файлы с нераспознанными именами пропускаются. Сортировка: новые первыми.
func (s *FileStore) List() ([]*model.StoredDocument, error) {
	entries, err := s.Entries()
	if err != nil {
		return nil, err
	}

	docs := make([]*model.StoredDocument, 0, len(entries))
	for _, e := range entries {
		if doc := toDocument(e); doc != nil {
			docs = append(docs, doc)
		}
	}

	sort.Slice(docs, func(i, j int) bool {
		if docs[i].ModifiedAt.Equal(docs[j].ModifiedAt) {
			return docs[i].Filename < docs[j].Filename
		}
		return docs[i].ModifiedAt.After(docs[j].ModifiedAt)
	})
	return docs, nil
}

// ListByOwner возвращает документы владельца (сравнение по нормализованному имени).
func (s *FileStore) ListByOwner(first, last string) ([]*model.StoredDocument, error) {
	docs, err := s.List()
	if err != nil {
		return nil, err
	}

	owner := naming.OwnerKey(first, last)
	result := docs[:0]
	for _, d := range docs {
		if d.Owner == owner {
			result = append(result, d)
		}
	}
	return result, nil
}

// FindByID ищет документ по id полным сканированием директории.
func (s *FileStore) FindByID(id string) (*model.StoredDocument, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: пустой id", ErrNotFound)
	}

	entries, err := s.Entries()
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		d, ok := naming.Decode(e.Name)
		if !ok || d.ID != id {
			continue
		}
		return toDocument(e), nil
	}
	return nil, fmt.Errorf("%w: id %s", ErrNotFound, id)
}

// toDocument декодирует имя файла; nil для нераспознанных имён.
func toDocument(e Entry) *model.StoredDocument {
	d, ok := naming.Decode(e.Name)
	if !ok {
		return nil
	}
	return &model.StoredDocument{
		ID:             d.ID,
		Category:       d.Category,
		Owner:          d.Owner,
		OriginalStem:   d.OriginalStem,
		CollisionIndex: d.CollisionIndex,
		Filename:       e.Name,
		Size:           e.Size,
		ModifiedAt:     e.ModifiedAt,
	}
}
