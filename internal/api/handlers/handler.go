// handler.go — APIHandler реализует generated.ServerInterface: загрузка,
// операции с документами, health и служебные endpoints.
package handlers

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apierrors "github.com/bigkaa/reception/internal/api/errors"
	"github.com/bigkaa/reception/internal/api/generated"
	"github.com/bigkaa/reception/internal/service"
)

// APIHandler — основной обработчик API.
// Методы разнесены по файлам: upload.go, documents.go, health.go, info.go.
type APIHandler struct {
	ingest    *service.IngestService
	documents *service.DocumentService
	// uploadDir — директория хранилища (readiness и /info)
	uploadDir string
	// maxRequestSize — ограничение тела multipart-запроса
	maxRequestSize int64
	promHandler    http.Handler
	// swagger — разобранный openapi.yaml, загружается при первом запросе
	swagger func() (*openapi3.T, error)
	logger  *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	ingest *service.IngestService,
	documents *service.DocumentService,
	uploadDir string,
	maxRequestSize int64,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		ingest:         ingest,
		documents:      documents,
		uploadDir:      uploadDir,
		maxRequestSize: maxRequestSize,
		promHandler:    promhttp.Handler(),
		swagger:        sync.OnceValues(generated.GetSwagger),
		logger:         logger.With(slog.String("component", "api_handler")),
	}
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.promHandler.ServeHTTP(w, r)
}

// GetOpenAPI отдаёт описание API в формате JSON.
func (h *APIHandler) GetOpenAPI(w http.ResponseWriter, _ *http.Request) {
	swagger, err := h.swagger()
	if err != nil {
		h.logger.Error("Ошибка загрузки описания API", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Описание API недоступно")
		return
	}
	writeJSON(w, http.StatusOK, swagger)
}

// Проверка соответствия интерфейсу на этапе компиляции.
var _ generated.ServerInterface = (*APIHandler)(nil)

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// clientIP возвращает IP клиента из RemoteAddr (без порта).
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// attachment формирует Content-Disposition для скачивания.
// Не-ASCII имена кодируются по RFC 2231.
func attachment(filename string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": filename})
}
