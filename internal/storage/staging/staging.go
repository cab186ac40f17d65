// Пакет staging — временное хранение загруженных файлов на время обработки.
// Загрузка записывается потоково во временный файл с подсчётом SHA-256
// на лету и ограничением размера.
package staging

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrTooLarge — размер загрузки превышает лимит.
var ErrTooLarge = errors.New("размер файла превышает лимит")

// Upload — загруженный файл во временном хранилище.
// Принадлежит одному запросу и удаляется по окончании обработки.
type Upload struct {
	// OriginalName — имя файла при загрузке
	OriginalName string
	// Ext — расширение в нижнем регистре (".pdf")
	Ext string
	// ContentType — заявленный MIME-тип (может быть пустым)
	ContentType string
	Size        int64
	// Checksum — SHA-256 содержимого
	Checksum string
	// Path — путь к временному файлу
	Path string
}

// Stage записывает reader во временный файл в tempDir.
// При превышении maxSize (maxSize > 0) временный файл удаляется
// и возвращается ошибка, обёртывающая ErrTooLarge.
func Stage(reader io.Reader, originalName, contentType, tempDir string, maxSize int64) (*Upload, error) {
	ext := strings.ToLower(filepath.Ext(originalName))

	f, err := os.CreateTemp(tempDir, "upload_*"+ext)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	tmpPath := f.Name()

	hasher := sha256.New()
	src := reader
	if maxSize > 0 {
		// +1 байт позволяет отличить файл ровно maxSize от превышения
		src = io.LimitReader(reader, maxSize+1)
	}

	size, err := io.Copy(f, io.TeeReader(src, hasher))
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи временного файла: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия временного файла: %w", err)
	}

	if maxSize > 0 && size > maxSize {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: %s (лимит %d байт)", ErrTooLarge, originalName, maxSize)
	}

	return &Upload{
		OriginalName: originalName,
		Ext:          ext,
		ContentType:  contentType,
		Size:         size,
		Checksum:     hex.EncodeToString(hasher.Sum(nil)),
		Path:         tmpPath,
	}, nil
}

// ReadAll читает содержимое временного файла.
func (u *Upload) ReadAll() ([]byte, error) {
	data, err := os.ReadFile(u.Path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения временного файла %s: %w", u.Path, err)
	}
	return data, nil
}

// Stem возвращает исходное имя файла без расширения.
func (u *Upload) Stem() string {
	return strings.TrimSuffix(filepath.Base(u.OriginalName), filepath.Ext(u.OriginalName))
}

// Remove удаляет временный файл. Повторный вызов безопасен.
func (u *Upload) Remove() error {
	err := os.Remove(u.Path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ошибка удаления временного файла %s: %w", u.Path, err)
	}
	return nil
}

// RemoveAll удаляет временные файлы всех загрузок, игнорируя ошибки.
func RemoveAll(uploads []*Upload) {
	for _, u := range uploads {
		_ = u.Remove()
	}
}
