// info.go — обработчик GET /info: ёмкость диска и сводка по хранилищу.
package handlers

import (
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/reception/internal/api/errors"
	"github.com/bigkaa/reception/internal/api/generated"
	"github.com/bigkaa/reception/internal/config"
)

// GetInfo обрабатывает GET /info.
// Поле disk отсутствует, если statfs не удался.
func (h *APIHandler) GetInfo(w http.ResponseWriter, _ *http.Request) {
	stats, err := h.documents.Stats()
	if err != nil {
		h.logger.Error("Ошибка получения статистики хранилища",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при получении статистики")
		return
	}

	resp := generated.ServiceInfo{
		Version:        config.Version,
		Documents:      stats.Documents,
		DocumentsBytes: stats.TotalBytes,
	}

	disk, err := diskUsage(h.uploadDir)
	if err != nil {
		h.logger.Warn("Не удалось получить ёмкость диска",
			slog.String("error", err.Error()),
		)
	} else {
		resp.Disk = &disk
	}

	writeJSON(w, http.StatusOK, resp)
}
