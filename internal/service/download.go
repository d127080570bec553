// download.go — операции чтения: метаданные и потоковая выдача содержимого.
//
// Запись реестра без объекта в blob store (orphan ledger row) выдаётся
// как BlobMissing. Запись при этом не трогается: единственный путь
// исправления расхождения — reconciliation sweep.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/file-service/internal/domain/model"
	"github.com/bigkaa/goartstore/file-service/internal/storage/blobstore"
)

// Prometheus-метрики выдачи.
var (
	downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fs_downloads_total",
		Help: "Общее количество операций выдачи содержимого по статусу.",
	}, []string{"status"})
)

// GetRecord возвращает запись реестра по fileID.
// Ошибки: ErrNotFound.
func (s *FileService) GetRecord(ctx context.Context, fileID string) (*model.FileRecord, error) {
	return s.lookup(ctx, fileID)
}

// Download открывает содержимое файла для потоковой выдачи.
// offset/length задают байтовый диапазон: length == 0 — до конца объекта.
// Закрыть io.ReadCloser обязан вызывающий.
//
// Ошибки: ErrNotFound, ErrBlobMissing, *BackendError (StepBlobGet).
func (s *FileService) Download(ctx context.Context, fileID string, offset, length int64) (*model.FileRecord, io.ReadCloser, error) {
	rec, err := s.lookup(ctx, fileID)
	if err != nil {
		downloadsTotal.WithLabelValues("not_found").Inc()
		return nil, nil, err
	}

	getCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	body, err := s.blobs.Get(getCtx, rec.StorageKey, offset, length)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			// Запись реестра есть, объекта нет — расхождение.
			// Запись не удаляется: это задача reconciliation sweep.
			downloadsTotal.WithLabelValues("blob_missing").Inc()
			s.logger.Error("Объект отсутствует при существующей записи реестра",
				slog.String("file_id", rec.FileID),
				slog.String("storage_key", rec.StorageKey),
			)
			return nil, nil, ErrBlobMissing
		}
		downloadsTotal.WithLabelValues("error").Inc()
		return nil, nil, newBackendError(StepBlobGet, err)
	}

	downloadsTotal.WithLabelValues("success").Inc()
	return rec, body, nil
}
