// logging.go — журнал HTTP-запросов через slog.
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"time"
)

// RequestLogger пишет одну запись на запрос. Кроме метода, пути
// и статуса в запись попадают шаблон маршрута chi (route), IP клиента
// без порта (requester, тот же ключ, что у ограничителя загрузок)
// и заявленный размер тела для запросов с телом.
// Уровень: INFO (1xx-3xx), WARN (4xx), ERROR (5xx).
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := recorderFor(w)

			next.ServeHTTP(rec, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("route", routePattern(r)),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", rec.written),
				slog.String("requester", requester(r)),
			}
			if r.ContentLength > 0 {
				attrs = append(attrs, slog.Int64("request_bytes", r.ContentLength))
			}

			logger.LogAttrs(r.Context(), levelFor(rec.status), "HTTP-запрос", attrs...)
		})
	}
}

// levelFor выбирает уровень записи по статусу ответа.
func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// requester возвращает IP клиента без порта.
func requester(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
