package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestRequestLogger_Levels(t *testing.T) {
	tests := []struct {
		status    int
		wantLevel string
	}{
		{http.StatusOK, "level=INFO"},
		{http.StatusNotFound, "level=WARN"},
		{http.StatusInternalServerError, "level=ERROR"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte("ok"))
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/documents", nil))

		out := buf.String()
		if !strings.Contains(out, tt.wantLevel) {
			t.Errorf("статус %d: ожидался %s в %q", tt.status, tt.wantLevel, out)
		}
		if !strings.Contains(out, "bytes=2") {
			t.Errorf("статус %d: не записан размер ответа: %q", tt.status, out)
		}
	}
}

func TestRequestLogger_RouteAndRequester(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(RequestLogger(logger))
	r.Use(MetricsMiddleware())
	r.Post("/documents/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	req := httptest.NewRequest(http.MethodPost, "/documents/42", strings.NewReader("тело"))
	req.RemoteAddr = "10.1.2.3:54321"
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{
		"level=WARN",
		"route=/documents/{id}",
		"path=/documents/42",
		"requester=10.1.2.3",
		"status=429",
		"request_bytes=8",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("в записи нет %s: %q", want, out)
		}
	}
	if strings.Contains(out, "54321") {
		t.Errorf("порт клиента попал в журнал: %q", out)
	}
}

func TestRecorderFor_Reuses(t *testing.T) {
	outer := recorderFor(httptest.NewRecorder())
	if inner := recorderFor(outer); inner != outer {
		t.Error("вложенный middleware должен переиспользовать обёртку")
	}
}

func TestRoutePattern(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Get("/documents/{id}", func(_ http.ResponseWriter, req *http.Request) {
		got = routePattern(req)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/documents/abc", nil))
	if got != "/documents/{id}" {
		t.Errorf("ожидался шаблон /documents/{id}, получено %q", got)
	}

	if p := routePattern(httptest.NewRequest(http.MethodGet, "/x", nil)); p != "unmatched" {
		t.Errorf("без маршрута: получено %q", p)
	}
}

func TestMetricsMiddleware_StatusCaptured(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("статус изменён middleware: %d", rec.Code)
	}
}
