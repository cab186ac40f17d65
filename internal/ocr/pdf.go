package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	// DefaultMaxPages — сколько первых страниц PDF распознавать.
	DefaultMaxPages = 10
	// DefaultDPI — разрешение растеризации страниц.
	DefaultDPI = 200
)

// Rasterizer — растеризация страниц PDF в изображения.
type Rasterizer interface {
	// Rasterize возвращает PNG-изображения страниц 1..lastPage.
	Rasterize(ctx context.Context, data []byte, lastPage, dpi int) ([][]byte, error)
}

// PdftoppmRasterizer — Rasterizer на базе утилиты pdftoppm (poppler-utils).
type PdftoppmRasterizer struct {
	// Binary — путь к pdftoppm (пусто — поиск в PATH)
	Binary string
	// TempDir — директория для промежуточных файлов (пусто — os.TempDir)
	TempDir string
}

// Rasterize вызывает pdftoppm для страниц 1..lastPage.
func (r *PdftoppmRasterizer) Rasterize(ctx context.Context, data []byte, lastPage, dpi int) ([][]byte, error) {
	dir, err := os.MkdirTemp(r.TempDir, "raster_*")
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временной директории: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(input, data, 0o600); err != nil {
		return nil, fmt.Errorf("ошибка записи PDF: %w", err)
	}

	binary := r.Binary
	if binary == "" {
		binary = "pdftoppm"
	}

	args := []string{
		"-png",
		"-r", strconv.Itoa(dpi),
		"-f", "1",
		"-l", strconv.Itoa(lastPage),
		input,
		filepath.Join(dir, "page"),
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	// pdftoppm дополняет номера страниц нулями до одинаковой ширины,
	// поэтому лексикографическая сортировка совпадает с порядком страниц.
	matches, err := filepath.Glob(filepath.Join(dir, "page*.png"))
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска страниц: %w", err)
	}
	sort.Strings(matches)

	pages := make([][]byte, 0, len(matches))
	for _, m := range matches {
		b, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения страницы %s: %w", filepath.Base(m), err)
		}
		pages = append(pages, b)
	}
	return pages, nil
}

// PageCount возвращает число страниц PDF.
// Разбор выполняется библиотекой ledongthuc/pdf, которая может
// паниковать на повреждённых файлах, — паника превращается в ошибку.
func PageCount(data []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ошибка разбора PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("ошибка разбора PDF: %w", err)
	}
	return reader.NumPage(), nil
}

// TextLayer извлекает встроенный текстовый слой первых maxPages страниц.
// Сканированные документы обычно не имеют текстового слоя — тогда
// результат пуст и требуется OCR.
func TextLayer(data []byte, maxPages int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ошибка разбора PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("ошибка разбора PDF: %w", err)
	}

	last := reader.NumPage()
	if maxPages > 0 && last > maxPages {
		last = maxPages
	}

	var sb strings.Builder
	for i := 1; i <= last; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String()), nil
}
