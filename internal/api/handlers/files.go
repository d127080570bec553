// files.go — обработчики файловых операций.
//
// POST   /api/v1/files                    — загрузка (multipart, поле "file")
// GET    /api/v1/files/{file_id}          — метаданные
// GET    /api/v1/files/{file_id}/download — содержимое, attachment
// GET    /api/v1/files/{file_id}/stream   — содержимое, inline
// DELETE /api/v1/files/{file_id}          — удаление (только владелец)
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/bigkaa/goartstore/file-service/internal/api/errors"
	"github.com/bigkaa/goartstore/file-service/internal/api/middleware"
	"github.com/bigkaa/goartstore/file-service/internal/domain/model"
	"github.com/bigkaa/goartstore/file-service/internal/service"
)

// FilesHandler — обработчик файловых операций.
type FilesHandler struct {
	svc         *service.FileService
	maxFileSize int64
	logger      *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых операций.
func NewFilesHandler(svc *service.FileService, maxFileSize int64, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		svc:         svc,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "files_handler")),
	}
}

// uploadResponse — ответ на успешную загрузку.
type uploadResponse struct {
	*model.FileRecord
	DownloadURL string `json:"download_url"`
	StreamURL   string `json:"stream_url"`
}

// UploadFile — POST /api/v1/files.
// Принимает multipart/form-data с полем "file". Содержимое передаётся
// в Blob Store потоково, без буферизации файла целиком.
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	// Content-Length известен — лимит проверяется до чтения тела
	if r.ContentLength > 0 && r.ContentLength > h.maxFileSize+multipartOverhead {
		apierrors.FileTooLarge(w, fmt.Sprintf("Размер запроса превышает лимит %d байт", h.maxFileSize))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)

	part, err := firstFilePart(r)
	if err != nil {
		apierrors.ValidationError(w, "Ожидается multipart/form-data с полем \"file\"")
		return
	}
	defer part.Close()

	rec, err := h.svc.Upload(r.Context(), service.UploadParams{
		Reader:       part,
		OriginalName: part.FileName(),
		Size:         -1, // размер part неизвестен до полного чтения
		OwnerID:      middleware.CallerFromContext(r.Context()),
	})
	if err != nil {
		// Превышение MaxBytesReader проявляется как отказ записи объекта
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			apierrors.FileTooLarge(w, fmt.Sprintf("Размер файла превышает лимит %d байт", h.maxFileSize))
			return
		}
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		FileRecord:  rec,
		DownloadURL: fmt.Sprintf("/api/v1/files/%s/download", rec.FileID),
		StreamURL:   fmt.Sprintf("/api/v1/files/%s/stream", rec.FileID),
	})
}

// GetFileMetadata — GET /api/v1/files/{file_id}.
func (h *FilesHandler) GetFileMetadata(w http.ResponseWriter, r *http.Request) {
	fileID, ok := h.fileIDParam(w, r)
	if !ok {
		return
	}

	rec, err := h.svc.GetRecord(r.Context(), fileID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// DownloadFile — GET /api/v1/files/{file_id}/download.
// Выдаёт содержимое как attachment.
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	h.serveContent(w, r, "attachment")
}

// StreamFile — GET /api/v1/files/{file_id}/stream.
// Выдаёт содержимое inline (просмотр в браузере, проигрывание медиа).
func (h *FilesHandler) StreamFile(w http.ResponseWriter, r *http.Request) {
	h.serveContent(w, r, "inline")
}

// DeleteFile — DELETE /api/v1/files/{file_id}. Только владелец.
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID, ok := h.fileIDParam(w, r)
	if !ok {
		return
	}

	caller := middleware.CallerFromContext(r.Context())
	if err := h.svc.Delete(r.Context(), fileID, caller); err != nil {
		h.writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// serveContent выдаёт содержимое файла с указанным Content-Disposition.
// Поддерживает одиночный байтовый диапазон (заголовок Range).
func (h *FilesHandler) serveContent(w http.ResponseWriter, r *http.Request, disposition string) {
	fileID, ok := h.fileIDParam(w, r)
	if !ok {
		return
	}

	// Метаданные нужны до открытия потока: размер для валидации Range
	rec, err := h.svc.GetRecord(r.Context(), fileID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	offset, length, partial, rangeErr := parseRange(r.Header.Get("Range"), rec.Size)
	if rangeErr != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", rec.Size))
		apierrors.WriteError(w, http.StatusRequestedRangeNotSatisfiable,
			apierrors.CodeValidationError, "Запрошенный диапазон вне границ файла")
		return
	}

	rec, body, err := h.svc.Download(r.Context(), fileID, offset, length)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("%s; filename=%q", disposition, rec.OriginalName))
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("X-File-SHA256", rec.SHA256)

	if partial {
		w.Header().Set("Content-Range",
			fmt.Sprintf("bytes %d-%d/%d", offset, offset+length-1, rec.Size))
		w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.Header().Set("Content-Length", strconv.FormatInt(rec.Size, 10))
		w.WriteHeader(http.StatusOK)
	}

	if _, err := io.Copy(w, body); err != nil {
		// Заголовки отправлены, ответ менять поздно
		h.logger.Warn("Передача содержимого прервана",
			slog.String("file_id", rec.FileID),
			slog.String("error", err.Error()),
		)
	}
}

// fileIDParam извлекает и валидирует file_id из URL.
func (h *FilesHandler) fileIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	fileID := chi.URLParam(r, "file_id")
	if _, err := uuid.Parse(fileID); err != nil {
		apierrors.ValidationError(w, "Некорректный идентификатор файла")
		return "", false
	}
	return fileID, true
}

// writeServiceError отображает ошибку сервисного слоя в HTTP-ответ.
// Детали backend-сбоев наружу не выдаются.
func (h *FilesHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Файл не найден")
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, "Удалить файл может только владелец")
	case errors.Is(err, service.ErrFileTooLarge):
		apierrors.FileTooLarge(w, err.Error())
	default:
		// BackendError, ErrBlobMissing и прочее — детали только в логах
		h.logger.Error("Внутренняя ошибка файловой операции",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервиса")
	}
}

// multipartOverhead — запас на boundary и заголовки multipart-частей
// при проверке Content-Length против лимита размера файла.
const multipartOverhead = 10 << 10 // 10 KB

// firstFilePart возвращает первую файловую часть multipart-запроса.
// Части без имени файла (обычные поля формы) пропускаются.
func firstFilePart(r *http.Request) (*multipart.Part, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err // io.EOF — файловой части нет
		}
		if part.FileName() != "" {
			return part, nil
		}
		_ = part.Close()
	}
}

// parseRange разбирает заголовок Range (одиночный диапазон "bytes=a-b").
// Возвращает offset, length и признак частичного ответа.
// Пустой или синтаксически незнакомый заголовок — выдача целиком.
// Диапазон вне границ файла — ошибка (416).
func parseRange(header string, size int64) (offset, length int64, partial bool, err error) {
	if header == "" || !strings.HasPrefix(header, "bytes=") {
		return 0, 0, false, nil
	}
	// Пустому объекту любой диапазон не соответствует — выдача целиком
	if size == 0 {
		return 0, 0, false, nil
	}
	spec := strings.TrimPrefix(header, "bytes=")
	if strings.Contains(spec, ",") {
		// Множественные диапазоны не поддерживаются — выдача целиком
		return 0, 0, false, nil
	}

	dash := strings.Index(spec, "-")
	if dash < 0 {
		return 0, 0, false, nil
	}
	startStr, endStr := spec[:dash], spec[dash+1:]

	// Суффиксный диапазон "-N": последние N байт
	if startStr == "" {
		n, parseErr := strconv.ParseInt(endStr, 10, 64)
		if parseErr != nil || n <= 0 {
			return 0, 0, false, nil
		}
		if n > size {
			n = size
		}
		return size - n, n, true, nil
	}

	start, parseErr := strconv.ParseInt(startStr, 10, 64)
	if parseErr != nil || start < 0 {
		return 0, 0, false, nil
	}
	if start >= size {
		return 0, 0, false, fmt.Errorf("начало диапазона %d вне файла размером %d", start, size)
	}

	end := size - 1
	if endStr != "" {
		end, parseErr = strconv.ParseInt(endStr, 10, 64)
		if parseErr != nil || end < start {
			return 0, 0, false, nil
		}
		if end >= size {
			end = size - 1
		}
	}

	return start, end - start + 1, true, nil
}
