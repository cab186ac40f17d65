// retention.go — фоновая очистка хранилища от устаревших документов.
//
// Запускается горутиной с периодическим тикером (RC_RETENTION_INTERVAL)
// независимо от входящих запросов. Удаляются обычные файлы директории
// хранилища, время изменения которых старше RC_RETENTION_DAYS.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/reception/internal/storage/filestore"
)

// Prometheus метрики очистки
var (
	retentionRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rc_retention_runs_total",
		Help: "Общее количество запусков очистки хранилища",
	})

	retentionFilesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rc_retention_files_deleted_total",
		Help: "Общее количество файлов, удалённых по сроку хранения",
	})

	retentionErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rc_retention_errors_total",
		Help: "Общее количество ошибок при очистке",
	})

	retentionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rc_retention_duration_seconds",
		Help:    "Длительность очистки в секундах",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// RetentionResult — результат одного запуска очистки.
type RetentionResult struct {
	// Scanned — количество просмотренных файлов
	Scanned int
	// Deleted — количество удалённых файлов
	Deleted int
	// Errors — количество ошибок удаления
	Errors int
	// Duration — длительность выполнения
	Duration time.Duration
}

// RetentionService — сервис фоновой очистки.
type RetentionService struct {
	store    *filestore.FileStore
	maxAge   time.Duration
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRetentionService создаёт сервис очистки. maxAge <= 0 отключает удаление.
func NewRetentionService(
	store *filestore.FileStore,
	maxAge time.Duration,
	interval time.Duration,
	logger *slog.Logger,
) *RetentionService {
	return &RetentionService{
		store:    store,
		maxAge:   maxAge,
		interval: interval,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "retention")),
	}
}

// Start запускает фоновую горутину очистки.
// Первый проход выполняется сразу после старта.
func (rs *RetentionService) Start(ctx context.Context) {
	if rs.maxAge <= 0 {
		rs.logger.Info("Очистка по сроку хранения отключена")
		return
	}

	ctx, rs.cancel = context.WithCancel(ctx)
	rs.done = make(chan struct{})

	go rs.run(ctx)

	rs.logger.Info("Очистка запущена",
		slog.String("interval", rs.interval.String()),
		slog.String("max_age", rs.maxAge.String()),
	)
}

// Stop останавливает фоновую очистку и ждёт завершения текущего прохода.
func (rs *RetentionService) Stop() {
	if rs.cancel == nil {
		return
	}
	rs.cancel()
	<-rs.done
	rs.logger.Info("Очистка остановлена")
}

func (rs *RetentionService) run(ctx context.Context) {
	defer close(rs.done)

	rs.RunOnce()

	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs.RunOnce()
		}
	}
}

// RunOnce выполняет один проход очистки.
// Ошибки отдельных файлов логируются и не прерывают проход.
func (rs *RetentionService) RunOnce() *RetentionResult {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	start := time.Now()
	result := &RetentionResult{}

	if rs.maxAge <= 0 {
		return result
	}

	cutoff := rs.now().Add(-rs.maxAge)

	entries, err := rs.store.Entries()
	if err != nil {
		rs.logger.Error("Очистка: ошибка чтения хранилища",
			slog.String("error", err.Error()),
		)
		result.Errors++
		retentionErrorsTotal.Inc()
		return result
	}

	for _, e := range entries {
		result.Scanned++
		if !e.ModifiedAt.Before(cutoff) {
			continue
		}

		if err := rs.store.Delete(e.Name); err != nil {
			if errors.Is(err, filestore.ErrNotFound) {
				// Удалён параллельно
				continue
			}
			rs.logger.Error("Очистка: ошибка удаления файла",
				slog.String("filename", e.Name),
				slog.String("error", err.Error()),
			)
			result.Errors++
			continue
		}

		rs.logger.Debug("Очистка: файл удалён",
			slog.String("filename", e.Name),
			slog.Time("modified_at", e.ModifiedAt),
		)
		result.Deleted++
	}

	result.Duration = time.Since(start)

	retentionRunsTotal.Inc()
	retentionFilesDeletedTotal.Add(float64(result.Deleted))
	retentionErrorsTotal.Add(float64(result.Errors))
	retentionDurationSeconds.Observe(result.Duration.Seconds())

	rs.logger.Info("Очистка завершена",
		slog.Int("scanned", result.Scanned),
		slog.Int("deleted", result.Deleted),
		slog.Int("errors", result.Errors),
		slog.Duration("duration", result.Duration),
	)

	return result
}
