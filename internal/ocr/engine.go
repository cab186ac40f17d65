// Пакет ocr — извлечение текста из изображений и PDF.
//
// Движок распознавания (Tesseract через gosseract) рассматривается как
// внешний чёрный ящик: медленный и способный завершаться с ошибкой.
// Extractor ограничивает его работу по страницам, размеру и времени
// и никогда не возвращает ошибку — сбой распознавания даёт пустой текст.
package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// Engine — движок распознавания одного изображения (PNG/JPEG в байтах).
type Engine interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

// TesseractEngine — Engine на базе Tesseract.
// Для каждого вызова создаётся отдельный клиент: клиент gosseract
// не потокобезопасен, а вызовы выполняются из нескольких воркеров пула.
type TesseractEngine struct {
	// Language — языки распознавания в формате Tesseract ("rus", "rus+kaz")
	Language string
	// TessdataPrefix — путь к tessdata (пусто — значение по умолчанию)
	TessdataPrefix string
}

// NewTesseractEngine создаёт движок с заданным языком.
func NewTesseractEngine(language, tessdataPrefix string) *TesseractEngine {
	return &TesseractEngine{Language: language, TessdataPrefix: tessdataPrefix}
}

// Recognize распознаёт текст изображения. Режим сегментации — автоматический,
// он быстрее полного анализа макета при достаточном для классификации качестве.
// Начавшийся вызов Tesseract не прерывается по контексту: Extractor
// дожидается его и отбрасывает результат, если таймаут истёк.
func (e *TesseractEngine) Recognize(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if e.TessdataPrefix != "" {
		client.TessdataPrefix = e.TessdataPrefix
	}
	if err := client.SetLanguage(e.Language); err != nil {
		return "", fmt.Errorf("tesseract: язык %q: %w", e.Language, err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return "", fmt.Errorf("tesseract: режим сегментации: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("tesseract: загрузка изображения: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: распознавание: %w", err)
	}
	return text, nil
}
