// health.go — обработчики health endpoints.
// /health — liveness (процесс жив)
// /health/ready — readiness (директория хранилища доступна на запись)
package handlers

import (
	"net/http"
	"os"
	"time"

	"github.com/bigkaa/reception/internal/api/generated"
	"github.com/bigkaa/reception/internal/config"
)

// Health обрабатывает GET /health.
func (h *APIHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, generated.HealthStatus{
		Status:  generated.HealthStatusStatusHealthy,
		Version: config.Version,
	})
}

// HealthReady обрабатывает GET /health/ready.
// Возвращает 503, если в директорию хранилища нельзя записать файл.
func (h *APIHandler) HealthReady(w http.ResponseWriter, _ *http.Request) {
	resp := generated.ReadinessStatus{
		Status:    generated.ReadinessStatusStatusOk,
		Timestamp: time.Now().UTC().Truncate(time.Second),
		Version:   config.Version,
	}
	resp.Checks.Storage = checkWritable(h.uploadDir)

	status := http.StatusOK
	if resp.Checks.Storage.Status == generated.CheckResultStatusFail {
		resp.Status = generated.ReadinessStatusStatusFail
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// checkWritable проверяет доступность директории на запись.
func checkWritable(dir string) generated.CheckResult {
	f, err := os.CreateTemp(dir, ".health_*.tmp")
	if err != nil {
		msg := "Директория хранилища недоступна для записи: " + err.Error()
		return generated.CheckResult{
			Status:  generated.CheckResultStatusFail,
			Message: &msg,
		}
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	return generated.CheckResult{Status: generated.CheckResultStatusOk}
}
