// Пакет naming — нормализация пользовательских строк и кодирование
// метаданных документа в имя файла.
//
// Формат имени:
//
//	{category}__{first}_{last}__{stem}_{id}_{collision_index}{ext}
//
// Имя файла — единственный долговременный индекс хранилища,
// поэтому Decode(Encode(...)) обязан возвращать исходные значения.
package naming

import (
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/bigkaa/reception/internal/domain/model"
)

const (
	// Separator разделяет категорию, имя владельца и остаток.
	// Sanitize схлопывает повторные "_", поэтому внутри сегментов
	// разделитель встретиться не может.
	Separator = "__"

	// AnonToken — результат Sanitize для пустой строки.
	AnonToken = "anon"

	// MaxNameLength — ограничение длины имени и фамилии (в рунах).
	MaxNameLength = 50
	// MaxStemLength — ограничение длины исходного имени файла (в рунах).
	MaxStemLength = 50

	idLength = 36
)

// Sanitize приводит строку к безопасному фрагменту имени файла:
// всё, кроме букв, цифр, "_" и "-", заменяется на "_", повторные "_"
// схлопываются, крайние "_" обрезаются, длина ограничивается maxLen рун
// (maxLen <= 0 — без ограничения). Пустой результат заменяется на "anon".
func Sanitize(name string, maxLen int) string {
	name = norm.NFC.String(name)

	var b strings.Builder
	b.Grow(len(name))
	prevUnderscore := false
	for _, r := range name {
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-') {
			r = '_'
		}
		if r == '_' {
			if prevUnderscore {
				continue
			}
			prevUnderscore = true
		} else {
			prevUnderscore = false
		}
		b.WriteRune(r)
	}

	result := strings.Trim(b.String(), "_")
	if maxLen > 0 {
		runes := []rune(result)
		if len(runes) > maxLen {
			result = strings.Trim(string(runes[:maxLen]), "_")
		}
	}

	if result == "" {
		return AnonToken
	}
	return result
}

// Params — данные для формирования имени файла.
type Params struct {
	Category     model.Category
	FirstName    string
	LastName     string
	OriginalStem string
	ID           string
	Ext          string
}

// OwnerKey возвращает нормализованный сегмент имени владельца.
func OwnerKey(first, last string) string {
	return Sanitize(first, MaxNameLength) + "_" + Sanitize(last, MaxNameLength)
}

// Encode формирует имя файла хранилища.
func Encode(p Params, collisionIndex int) string {
	var b strings.Builder
	b.WriteString(string(p.Category))
	b.WriteString(Separator)
	b.WriteString(OwnerKey(p.FirstName, p.LastName))
	b.WriteString(Separator)
	b.WriteString(Sanitize(p.OriginalStem, MaxStemLength))
	b.WriteByte('_')
	b.WriteString(p.ID)
	b.WriteByte('_')
	b.WriteString(strconv.Itoa(collisionIndex))
	b.WriteString(strings.ToLower(p.Ext))
	return b.String()
}

// Decoded — метаданные, восстановленные из имени файла.
type Decoded struct {
	Category       model.Category
	Owner          string
	OriginalStem   string
	ID             string
	CollisionIndex int
	Ext            string
}

// Decode разбирает имя файла хранилища.
// Возвращает false для имён, не соответствующих формату
// (файлы старых версий, временные файлы и т.п.), — такие файлы пропускаются.
func Decode(filename string) (Decoded, bool) {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	parts := strings.Split(base, Separator)
	if len(parts) < 3 {
		return Decoded{}, false
	}

	category, ok := model.ParseCategory(parts[0])
	if !ok {
		return Decoded{}, false
	}
	if parts[1] == "" {
		return Decoded{}, false
	}

	remainder := strings.Join(parts[2:], Separator)
	if remainder == "" {
		return Decoded{}, false
	}

	d := Decoded{
		Category:     category,
		Owner:        parts[1],
		OriginalStem: remainder,
		Ext:          ext,
	}

	tokens := strings.Split(remainder, "_")
	n := len(tokens)
	switch {
	case n >= 3 && len(tokens[n-2]) == idLength:
		// {stem}_{id}_{index}
		if idx, err := strconv.Atoi(tokens[n-1]); err == nil {
			d.ID = tokens[n-2]
			d.CollisionIndex = idx
			d.OriginalStem = strings.Join(tokens[:n-2], "_")
		}
	case n >= 2 && len(tokens[n-1]) == idLength:
		// {stem}_{id}
		d.ID = tokens[n-1]
		d.OriginalStem = strings.Join(tokens[:n-1], "_")
	}

	return d, true
}
