// delete.go — операция удаления файла.
//
// Порядок шагов: проверка владельца, удаление объекта из Blob Store,
// удаление записи реестра, best-effort событие. Объект удаляется первым:
// отказ blob store оставляет файл полностью видимым (fail closed), отказ
// реестра после удаления объекта оставляет orphan запись, которую убирает
// reconciliation sweep. Событие публикуется только после удаления записи.
package service

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/file-service/internal/domain/model"
	"github.com/bigkaa/goartstore/file-service/internal/events"
)

// Prometheus-метрики удаления.
var (
	deletesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fs_deletes_total",
		Help: "Общее количество операций удаления по статусу.",
	}, []string{"status"})
)

// Delete удаляет файл: объект из Blob Store, затем запись реестра.
// Удалить файл может только владелец.
//
// Ошибки: ErrNotFound, ErrForbidden, *BackendError
// (StepBlobDelete — файл не тронут, StepLedgerDelete — orphan запись реестра).
func (s *FileService) Delete(ctx context.Context, fileID, callerID string) error {
	rec, err := s.lookup(ctx, fileID)
	if err != nil {
		deletesTotal.WithLabelValues("not_found").Inc()
		return err
	}

	if !CanDelete(rec, callerID) {
		deletesTotal.WithLabelValues("forbidden").Inc()
		s.logger.Warn("Попытка удаления чужого файла",
			slog.String("file_id", rec.FileID),
			slog.String("owner_id", rec.OwnerID),
			slog.String("caller_id", callerID),
		)
		return ErrForbidden
	}

	blobCtx, cancelBlob := s.withTimeout(ctx)
	defer cancelBlob()

	if err := s.blobs.Delete(blobCtx, rec.StorageKey); err != nil {
		// Объект и запись реестра не тронуты: файл остаётся полностью
		// читаемым и может быть удалён повторно.
		deletesTotal.WithLabelValues("error").Inc()
		s.logger.Error("Ошибка удаления объекта из blob store",
			slog.String("file_id", rec.FileID),
			slog.String("storage_key", rec.StorageKey),
			slog.String("error", err.Error()),
		)
		return newBackendError(StepBlobDelete, err)
	}

	ledgerCtx, cancelLedger := s.withTimeout(ctx)
	defer cancelLedger()

	if err := s.repo.DeleteByID(ledgerCtx, rec.FileID); err != nil {
		// Объект уже удалён, запись осталась — orphan запись реестра.
		// Уборка — задача reconciliation sweep; событие не публикуется.
		deletesTotal.WithLabelValues("error").Inc()
		s.logger.Warn("Запись реестра не удалена, остаётся orphan",
			slog.String("file_id", rec.FileID),
			slog.String("storage_key", rec.StorageKey),
			slog.String("error", err.Error()),
		)
		return newBackendError(StepLedgerDelete, err)
	}

	s.cache.Delete(rec.FileID)
	s.publishEvent(ctx, events.SubjectFileDeleted, model.EventDeleted, rec)

	deletesTotal.WithLabelValues("success").Inc()
	s.logger.Info("Файл удалён",
		slog.String("file_id", rec.FileID),
		slog.String("storage_key", rec.StorageKey),
		slog.String("owner_id", rec.OwnerID),
	)

	return nil
}
