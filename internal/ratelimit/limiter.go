// Пакет ratelimit — ограничение частоты запросов по идентификатору
// клиента скользящим окном.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rc_ratelimit_rejected_total",
		Help: "Общее количество запросов, отклонённых ограничителем частоты.",
	})
	trackedIdentifiers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rc_ratelimit_tracked_identifiers",
		Help: "Количество отслеживаемых идентификаторов.",
	})
)

// Limiter — ограничитель со скользящим окном: не более rate
// запросов за window для каждого идентификатора.
type Limiter struct {
	rate   int
	window time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	requests map[string][]time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// New создаёт ограничитель. rate <= 0 отключает ограничение.
func New(rate int, window time.Duration, logger *slog.Logger) *Limiter {
	return &Limiter{
		rate:     rate,
		window:   window,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "ratelimit")),
		requests: make(map[string][]time.Time),
	}
}

// SetClock подменяет источник времени (для тестов).
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// IsLimited проверяет и, если лимит не исчерпан, учитывает запрос.
// Отклонённый запрос не записывается в окно.
func (l *Limiter) IsLimited(id string) bool {
	if l.rate <= 0 {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	stamps := l.requests[id]
	// Метки упорядочены по времени: отбрасываем префикс устаревших
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	stamps = stamps[i:]

	if len(stamps) >= l.rate {
		l.requests[id] = stamps
		rejectedTotal.Inc()
		return true
	}

	if _, ok := l.requests[id]; !ok {
		trackedIdentifiers.Inc()
	}
	l.requests[id] = append(stamps, now)
	return false
}

// Sweep удаляет идентификаторы, последний запрос которых старше 2×window.
// Возвращает число удалённых идентификаторов.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-2 * l.window)
	removed := 0
	for id, stamps := range l.requests {
		if len(stamps) == 0 || stamps[len(stamps)-1].Before(cutoff) {
			delete(l.requests, id)
			removed++
		}
	}
	trackedIdentifiers.Sub(float64(removed))
	return removed
}

// Len возвращает количество отслеживаемых идентификаторов.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}

// Start запускает фоновую очистку с периодом window.
func (l *Limiter) Start(ctx context.Context) {
	if l.rate <= 0 || l.window <= 0 {
		return
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.done = make(chan struct{})

	go func() {
		defer close(l.done)
		ticker := time.NewTicker(l.window)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := l.Sweep(); removed > 0 {
					l.logger.Debug("Очистка ограничителя частоты",
						slog.Int("removed", removed),
					)
				}
			}
		}
	}()

	l.logger.Info("Ограничитель частоты запущен",
		slog.Int("rate", l.rate),
		slog.Duration("window", l.window),
	)
}

// Stop останавливает фоновую очистку и ждёт её завершения.
func (l *Limiter) Stop() {
	if l.cancel != nil {
		l.cancel()
		<-l.done
	}
}
