// upload.go — операция загрузки файла.
//
// Порядок шагов фиксирован: запись объекта в Blob Store, затем запись
// реестра, затем best-effort событие. Хэш SHA-256 и фактический размер
// вычисляются за один проход потока во время записи объекта.
//
// Политика компенсации: отказ реестра после успешной записи объекта
// оставляет orphan blob, который убирает reconciliation sweep. Инлайновая
// компенсация не выполняется, чтобы не наслаивать отказ на отказ.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/file-service/internal/domain/model"
	"github.com/bigkaa/goartstore/file-service/internal/events"
)

// Prometheus-метрики загрузки.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fs_uploads_total",
		Help: "Общее количество операций загрузки по статусу.",
	}, []string{"status"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_upload_bytes_total",
		Help: "Общее количество байт, принятых при загрузке.",
	})
)

// UploadParams — параметры загрузки файла.
type UploadParams struct {
	// Reader — поток содержимого файла
	Reader io.Reader
	// OriginalName — оригинальное имя файла
	OriginalName string
	// Size — заявленный размер в байтах; < 0, если неизвестен
	Size int64
	// OwnerID — идентификатор вызывающего (будущий владелец)
	OwnerID string
}

// Upload загружает файл: записывает объект в Blob Store, создаёт запись
// реестра и публикует событие file.uploaded.
//
// Ошибки: ErrInvalidInput, ErrFileTooLarge, *BackendError
// (StepBlobPut — чистый отказ, StepLedgerCreate — orphan blob).
func (s *FileService) Upload(ctx context.Context, params UploadParams) (*model.FileRecord, error) {
	if params.Reader == nil || params.OriginalName == "" {
		uploadsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: отсутствует файл или его имя", ErrInvalidInput)
	}
	if params.OwnerID == "" {
		uploadsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: не определён владелец", ErrInvalidInput)
	}
	if params.Size > s.maxFileSize {
		uploadsTotal.WithLabelValues("too_large").Inc()
		return nil, fmt.Errorf("%w: %d байт при лимите %d", ErrFileTooLarge, params.Size, s.maxFileSize)
	}

	// Ключ объекта: {uuid}-{имя файла}. UUID генерируется на каждую
	// загрузку, поэтому повторная загрузка того же файла создаёт
	// независимый объект и независимую запись реестра.
	storageKey := uuid.New().String() + "-" + sanitizeName(params.OriginalName)

	// Один проход потока: счётчик байт и SHA-256 считаются
	// одновременно с записью объекта в Blob Store.
	counter := &countingReader{r: params.Reader}
	hasher := sha256.New()
	stream := io.TeeReader(counter, hasher)

	putCtx, cancelPut := s.withTimeout(ctx)
	defer cancelPut()

	if err := s.blobs.Put(putCtx, storageKey, stream, params.Size); err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		s.logger.Error("Ошибка записи объекта в blob store",
			slog.String("storage_key", storageKey),
			slog.String("error", err.Error()),
		)
		return nil, newBackendError(StepBlobPut, err)
	}

	size := counter.n
	digest := hex.EncodeToString(hasher.Sum(nil))

	createCtx, cancelCreate := s.withTimeout(ctx)
	defer cancelCreate()

	rec, err := s.repo.Create(createCtx, &model.FileRecord{
		StorageKey:   storageKey,
		OriginalName: params.OriginalName,
		Size:         size,
		SHA256:       digest,
		OwnerID:      params.OwnerID,
	})
	if err != nil {
		// Объект записан, записи реестра нет — orphan blob.
		// Компенсация не выполняется: уборка — задача reconciliation sweep.
		uploadsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("Запись реестра не создана, объект остаётся orphan",
			slog.String("storage_key", storageKey),
			slog.String("error", err.Error()),
		)
		return nil, newBackendError(StepLedgerCreate, err)
	}

	s.cache.Set(rec.FileID, rec)
	s.publishEvent(ctx, events.SubjectFileUploaded, model.EventUploaded, rec)

	uploadsTotal.WithLabelValues("success").Inc()
	uploadBytesTotal.Add(float64(size))

	s.logger.Info("Файл загружен",
		slog.String("file_id", rec.FileID),
		slog.String("filename", rec.OriginalName),
		slog.Int64("size", rec.Size),
		slog.String("sha256", rec.SHA256),
		slog.String("owner_id", rec.OwnerID),
	)

	return rec, nil
}

// countingReader считает фактическое количество прочитанных байт.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// sanitizeName убирает из имени файла элементы пути и управляющие
// символы, чтобы ключ объекта оставался плоским.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == '/' || r == '\\' {
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "file"
	}
	return name
}
