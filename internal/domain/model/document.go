// Пакет model — доменные модели сервиса приёма документов.
// Хранилище не имеет базы данных: имя файла на диске является записью,
// поэтому модели описывают либо результат обработки (ProcessedFile),
// либо декодированное имя файла (StoredDocument).
package model

import (
	"strings"
	"time"
)

// Category — категория документа.
type Category string

const (
	CategoryUdostoverenie Category = "Udostoverenie"
	CategoryENT           Category = "ENT"
	CategoryLgota         Category = "Lgota"
	CategoryDiplom        Category = "Diplom"
	CategoryPrivivka      Category = "Privivka"
	CategoryMedSpravka    Category = "MedSpravka"
	// CategoryUnclassified — ни одно ключевое слово не найдено
	CategoryUnclassified Category = "Unclassified"
)

// Categories — классифицируемые категории в порядке перечисления.
// Порядок важен: при равенстве совпадений побеждает более ранняя категория.
var Categories = []Category{
	CategoryUdostoverenie,
	CategoryENT,
	CategoryLgota,
	CategoryDiplom,
	CategoryPrivivka,
	CategoryMedSpravka,
}

// ParseCategory возвращает категорию по её строковому имени.
// Unclassified не является допустимой категорией хранения и не распознаётся.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// FileStatus — итог обработки одного файла.
type FileStatus string

const (
	// StatusSaved — документ классифицирован и сохранён
	StatusSaved FileStatus = "saved"
	// StatusUnclassified — категория не определена, файл не сохраняется
	StatusUnclassified FileStatus = "unclassified"
	// StatusFailed — ошибка записи в хранилище
	StatusFailed FileStatus = "failed"
)

// ProcessedFile — результат обработки одного загруженного файла.
// Создаётся один раз в конце обработки и больше не изменяется.
type ProcessedFile struct {
	// ID — UUID v4, входит в имя сохранённого файла
	ID string `json:"id"`
	// OriginalName — имя файла при загрузке
	OriginalName string `json:"original_name"`
	// Category — определённая категория (в т.ч. Unclassified)
	Category Category `json:"category"`
	// NewName — имя файла в хранилище; пусто, если файл не сохранён
	NewName string `json:"new_name,omitempty"`
	// Size — размер файла в байтах
	Size int64 `json:"size"`
	// ModifiedAt — время последнего изменения сохранённого файла
	ModifiedAt time.Time  `json:"modified_at"`
	Status     FileStatus `json:"status"`
}

// StoredDocument — файл хранилища, восстановленный из имени.
type StoredDocument struct {
	ID             string    `json:"id"`
	Category       Category  `json:"category"`
	Owner          string    `json:"owner"`
	OriginalStem   string    `json:"original"`
	CollisionIndex int       `json:"collision_index"`
	Filename       string    `json:"filename"`
	Size           int64     `json:"size"`
	ModifiedAt     time.Time `json:"modified_at"`
}

// Owner — имя и фамилия владельца документов.
type Owner struct {
	FirstName string
	LastName  string
}

// AllowedExtensions — допустимые расширения загружаемых файлов.
var AllowedExtensions = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// AllowedContentTypes — допустимые заявленные MIME-типы.
var AllowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"image/pjpeg":     true,
}

// IsAllowedExtension проверяет расширение без учёта регистра.
func IsAllowedExtension(ext string) bool {
	return AllowedExtensions[strings.ToLower(ext)]
}

// IsAllowedContentType проверяет заявленный MIME-тип.
// Пустой тип допускается: клиент мог его не указать.
// Параметры (charset и т.д.) отбрасываются.
func IsAllowedContentType(contentType string) bool {
	if contentType == "" {
		return true
	}
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	return AllowedContentTypes[strings.ToLower(strings.TrimSpace(contentType))]
}
