package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // регистрация декодера JPEG
	"image/png"

	"golang.org/x/image/draw"
)

const (
	// DefaultImageMaxSize — ограничение длинной стороны изображения (px).
	DefaultImageMaxSize = 2000
	// MaxImagePixels — предел площади исходного изображения, проверяемый
	// по заголовку до декодирования.
	MaxImagePixels = 89478485
)

// ErrImageTooLarge — объявленные размеры изображения превышают MaxImagePixels.
var ErrImageTooLarge = errors.New("изображение слишком велико")

// PrepareImage декодирует изображение, переводит в оттенки серого
// и уменьшает так, чтобы длинная сторона не превышала maxSize
// (пропорции сохраняются, maxSize <= 0 — без уменьшения).
// Результат кодируется в PNG для передачи движку. Изображения с площадью
// больше MaxImagePixels отклоняются без декодирования пикселей.
func PrepareImage(data []byte, maxSize int) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения заголовка изображения: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("пустое изображение %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("ошибка декодирования изображения: %w", err)
	}

	dst := toGrayscale(src, maxSize)

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("ошибка кодирования PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// toGrayscale возвращает копию изображения в оттенках серого
// с ограничением длинной стороны.
func toGrayscale(src image.Image, maxSize int) *image.Gray {
	b := src.Bounds()
	w, h := fitSize(b.Dx(), b.Dy(), maxSize)

	dst := image.NewGray(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Copy(dst, image.Point{}, src, b, draw.Src, nil)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// fitSize вычисляет размеры с длинной стороной не более maxSize.
func fitSize(w, h, maxSize int) (int, int) {
	longest := max(w, h)
	if maxSize <= 0 || longest <= maxSize {
		return w, h
	}
	nw := max(1, w*maxSize/longest)
	nh := max(1, h*maxSize/longest)
	return nw, nh
}
