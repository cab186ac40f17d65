package ocr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// DefaultEarlyStopChars — порог накопленного текста для остановки обхода страниц.
	DefaultEarlyStopChars = 500
	// DefaultMaxTextLength — жёсткое ограничение длины итогового текста (символы).
	DefaultMaxTextLength = 5000
	// DefaultPageTimeout — таймаут распознавания одной страницы.
	DefaultPageTimeout = 60 * time.Second
)

// Prometheus-метрики распознавания.
var (
	ocrDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rc_ocr_page_duration_seconds",
		Help:    "Длительность распознавания одной страницы.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})
	ocrFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rc_ocr_failures_total",
		Help: "Общее количество сбоев извлечения текста.",
	}, []string{"reason"})
	ocrPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rc_ocr_pages_total",
		Help: "Общее количество распознанных страниц.",
	})
)

// ErrTimeout — распознавание страницы не уложилось в таймаут.
var ErrTimeout = errors.New("таймаут распознавания")

// Options — ограничения извлечения текста.
type Options struct {
	// MaxPages — сколько первых страниц PDF обрабатывать
	MaxPages int
	// DPI — разрешение растеризации PDF
	DPI int
	// ImageMaxSize — ограничение длинной стороны изображения (px)
	ImageMaxSize int
	// EarlyStopChars — остановка после накопления более чем стольких символов
	EarlyStopChars int
	// MaxTextLength — итоговый текст обрезается до этой длины (символы)
	MaxTextLength int
	// PageTimeout — таймаут распознавания одной страницы
	PageTimeout time.Duration
	// UseTextLayer — использовать встроенный текстовый слой PDF, если он есть
	UseTextLayer bool
}

// DefaultOptions возвращает ограничения по умолчанию.
func DefaultOptions() Options {
	return Options{
		MaxPages:       DefaultMaxPages,
		DPI:            DefaultDPI,
		ImageMaxSize:   DefaultImageMaxSize,
		EarlyStopChars: DefaultEarlyStopChars,
		MaxTextLength:  DefaultMaxTextLength,
		PageTimeout:    DefaultPageTimeout,
	}
}

// Extractor извлекает текст из PDF и изображений.
type Extractor struct {
	engine     Engine
	rasterizer Rasterizer
	opts       Options
	logger     *slog.Logger
}

// NewExtractor создаёт Extractor.
func NewExtractor(engine Engine, rasterizer Rasterizer, opts Options, logger *slog.Logger) *Extractor {
	return &Extractor{
		engine:     engine,
		rasterizer: rasterizer,
		opts:       opts,
		logger:     logger.With(slog.String("component", "ocr")),
	}
}

// Extract возвращает текст документа. ext — расширение в нижнем регистре
// с точкой (".pdf", ".png", ...). Ошибки не возвращаются: при сбое
// распознавания результат пуст или содержит текст успешных страниц.
func (e *Extractor) Extract(ctx context.Context, data []byte, ext string) string {
	var text string
	if ext == ".pdf" {
		text = e.extractPDF(ctx, data)
	} else {
		text = e.extractImage(ctx, data)
	}
	return truncateRunes(strings.TrimSpace(text), e.opts.MaxTextLength)
}

// extractImage распознаёт одиночное изображение.
func (e *Extractor) extractImage(ctx context.Context, data []byte) string {
	prepared, err := PrepareImage(data, e.opts.ImageMaxSize)
	if err != nil {
		ocrFailuresTotal.WithLabelValues("decode").Inc()
		e.logger.Warn("Не удалось подготовить изображение",
			slog.String("error", err.Error()),
		)
		return ""
	}
	return e.recognizePage(ctx, prepared, 1)
}

// extractPDF растеризует первые страницы PDF и распознаёт их по очереди
// до накопления EarlyStopChars символов.
func (e *Extractor) extractPDF(ctx context.Context, data []byte) string {
	if e.opts.UseTextLayer {
		if text, err := TextLayer(data, e.opts.MaxPages); err == nil &&
			utf8.RuneCountInString(text) > e.opts.EarlyStopChars {
			e.logger.Debug("Использован текстовый слой PDF",
				slog.Int("chars", utf8.RuneCountInString(text)),
			)
			return text
		}
	}

	lastPage := e.opts.MaxPages
	if n, err := PageCount(data); err == nil && n > 0 && n < lastPage {
		lastPage = n
	}

	// Растеризация ограничена суммарным таймаутом всех страниц
	rctx := ctx
	if e.opts.PageTimeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, e.opts.PageTimeout*time.Duration(lastPage))
		defer cancel()
	}

	pages, err := e.rasterizer.Rasterize(rctx, data, lastPage, e.opts.DPI)
	if err != nil {
		ocrFailuresTotal.WithLabelValues("rasterize").Inc()
		e.logger.Warn("Ошибка растеризации PDF",
			slog.String("error", err.Error()),
		)
		return ""
	}

	texts := make([]string, 0, len(pages))
	for i, page := range pages {
		if i >= lastPage {
			break
		}
		prepared, err := PrepareImage(page, e.opts.ImageMaxSize)
		if err != nil {
			ocrFailuresTotal.WithLabelValues("decode").Inc()
			e.logger.Warn("Не удалось подготовить страницу",
				slog.Int("page", i+1),
				slog.String("error", err.Error()),
			)
			texts = append(texts, "")
			continue
		}

		texts = append(texts, e.recognizePage(ctx, prepared, i+1))

		combined := strings.Join(texts, "\n")
		if utf8.RuneCountInString(combined) > e.opts.EarlyStopChars {
			e.logger.Debug("Достаточно текста, остановка",
				slog.Int("pages", i+1),
				slog.Int("chars", utf8.RuneCountInString(combined)),
			)
			break
		}
	}

	return strings.Join(texts, "\n")
}

// recognizePage распознаёт одну страницу с таймаутом.
// Ошибка или таймаут дают пустую строку.
func (e *Extractor) recognizePage(ctx context.Context, image []byte, page int) string {
	start := time.Now()
	text, err := e.recognize(ctx, image)
	ocrDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		reason := "engine"
		if errors.Is(err, ErrTimeout) {
			reason = "timeout"
		}
		ocrFailuresTotal.WithLabelValues(reason).Inc()
		e.logger.Warn("Ошибка распознавания страницы",
			slog.Int("page", page),
			slog.String("error", err.Error()),
		)
		return ""
	}

	ocrPagesTotal.Inc()
	return text
}

// recognize вызывает движок в отдельной горутине и ждёт результат
// не дольше PageTimeout. После таймаута контекст движка отменяется,
// но возврат происходит только после завершения вызова: слот пула
// воркеров остаётся занятым, пока движок реально работает.
func (e *Extractor) recognize(ctx context.Context, image []byte) (string, error) {
	if e.opts.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.PageTimeout)
		defer cancel()
	}

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("паника движка: %v", r)}
			}
		}()
		text, err := e.engine.Recognize(ctx, image)
		ch <- result{text: text, err: err}
	}()

	select {
	case r := <-ch:
		return r.text, r.err
	case <-ctx.Done():
		// Движок получил отмену, дожидаемся фактического завершения
		<-ch
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s", ErrTimeout, e.opts.PageTimeout)
		}
		return "", ctx.Err()
	}
}

// truncateRunes обрезает строку до limit символов (limit <= 0 — без ограничения).
func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
