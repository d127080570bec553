// handler.go — сборка маршрутов API File Service.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// APIHandler — основной обработчик API File Service.
// Объединяет файловые и health обработчики.
type APIHandler struct {
	files  *FilesHandler
	health *HealthHandler
	logger *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(files *FilesHandler, health *HealthHandler, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		files:  files,
		health: health,
		logger: logger.With(slog.String("component", "api_handler")),
	}
}

// Routes монтирует все маршруты API на chi-router.
func (h *APIHandler) Routes(router chi.Router) {
	router.Get("/health/live", h.health.HealthLive)
	router.Get("/health/ready", h.health.HealthReady)
	router.Get("/metrics", h.health.GetMetrics)

	router.Route("/api/v1/files", func(r chi.Router) {
		r.Post("/", h.files.UploadFile)
		r.Get("/{file_id}", h.files.GetFileMetadata)
		r.Get("/{file_id}/download", h.files.DownloadFile)
		r.Get("/{file_id}/stream", h.files.StreamFile)
		r.Delete("/{file_id}", h.files.DeleteFile)
	})
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
