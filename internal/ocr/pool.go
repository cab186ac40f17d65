package ocr

import (
	"context"
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrPoolClosed — пул остановлен и не принимает задачи.
var ErrPoolClosed = errors.New("пул OCR остановлен")

var (
	poolBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rc_ocr_pool_busy_workers",
		Help: "Количество занятых воркеров пула OCR.",
	})
	poolWaitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rc_ocr_pool_wait_seconds",
		Help:    "Время ожидания свободного воркера пула OCR.",
		Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60},
	})
)

// Pool — пул воркеров фиксированного размера для CPU-ёмкой работы
// (распознавания). Создаётся при старте, Close ждёт завершения
// выполняющихся задач.
type Pool struct {
	jobs chan func()
	size int

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewPool запускает size воркеров (минимум один).
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		jobs: make(chan func()),
		size: size,
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Size возвращает количество воркеров.
func (p *Pool) Size() int {
	return p.size
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		poolBusy.Inc()
		job()
		poolBusy.Dec()
	}
}

// Do выполняет fn на одном из воркеров и ждёт завершения.
// Контекст ограничивает только ожидание свободного воркера:
// начатая задача выполняется до конца. Паника внутри fn
// передаётся в горутину вызывающего.
func (p *Pool) Do(ctx context.Context, fn func()) error {
	var panicValue any
	done := make(chan struct{})
	job := func() {
		defer func() {
			if r := recover(); r != nil {
				panicValue = r
			}
			close(done)
		}()
		fn()
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	waitTimer := prometheus.NewTimer(poolWaitDuration)
	select {
	case p.jobs <- job:
		waitTimer.ObserveDuration()
	case <-ctx.Done():
		p.mu.RUnlock()
		return ctx.Err()
	}
	p.mu.RUnlock()

	<-done
	if panicValue != nil {
		panic(panicValue)
	}
	return nil
}

// Close прекращает приём задач и ждёт завершения выполняющихся.
// Повторный вызов безопасен.
func (p *Pool) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
