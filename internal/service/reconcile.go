// reconcile.go — сервис фоновой сверки Blob Store и реестра метаданных.
//
// Сверка сравнивает два источника истины:
//   - объекты в Blob Store с записями реестра (orphan blob)
//   - записи реестра с объектами в Blob Store (orphan запись)
//
// Orphan blob — след отказа реестра при загрузке; удаляется из Blob Store
// после истечения grace period (защита от гонки с in-flight загрузкой).
// Orphan запись — след отказа реестра при удалении; удаляется из реестра
// без grace period: объекта уже нет, вернуть файл невозможно.
//
// Запускается как горутина с периодическим тикером (FS_RECONCILE_INTERVAL).
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/file-service/internal/repository"
	"github.com/bigkaa/goartstore/file-service/internal/storage/blobstore"
)

// Prometheus-метрики сверки.
var (
	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_reconcile_runs_total",
		Help: "Общее количество запусков сверки.",
	})

	reconcileOrphansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fs_reconcile_orphans_total",
		Help: "Общее количество убранных расхождений по типу.",
	}, []string{"type"})

	reconcileDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fs_reconcile_duration_seconds",
		Help:    "Длительность одного цикла сверки в секундах.",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})
)

// listPageSize — размер страницы при обходе реестра.
const listPageSize = 500

// ReconcileReport — итог одного цикла сверки.
type ReconcileReport struct {
	// StartedAt/CompletedAt — границы цикла
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	// BlobsChecked — количество проверенных объектов Blob Store
	BlobsChecked int `json:"blobs_checked"`
	// RecordsChecked — количество проверенных записей реестра
	RecordsChecked int `json:"records_checked"`
	// OrphanBlobsRemoved — удалено объектов без записи реестра
	OrphanBlobsRemoved int `json:"orphan_blobs_removed"`
	// OrphanRecordsRemoved — удалено записей реестра без объекта
	OrphanRecordsRemoved int `json:"orphan_records_removed"`
	// Errors — количество ошибок, не остановивших цикл
	Errors int `json:"errors"`
}

// ReconcileService — сервис фоновой сверки.
type ReconcileService struct {
	repo     repository.FileRepository
	blobs    BlobStore
	cache    *CacheService
	interval time.Duration
	grace    time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu        sync.Mutex // защита от параллельного запуска
	inProcess bool
	cancel    context.CancelFunc
}

// NewReconcileService создаёт сервис сверки.
// grace — минимальный возраст объекта, после которого orphan blob удаляется.
func NewReconcileService(
	repo repository.FileRepository,
	blobs BlobStore,
	cache *CacheService,
	interval time.Duration,
	grace time.Duration,
	backendTimeout time.Duration,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		repo:     repo,
		blobs:    blobs,
		cache:    cache,
		interval: interval,
		grace:    grace,
		timeout:  backendTimeout,
		logger:   logger.With(slog.String("component", "reconcile")),
	}
}

// Start запускает фоновую горутину сверки с периодическим тикером.
func (rs *ReconcileService) Start(ctx context.Context) {
	rsCtx, cancel := context.WithCancel(ctx)
	rs.cancel = cancel

	go rs.run(rsCtx)

	rs.logger.Info("Сверка запущена",
		slog.String("interval", rs.interval.String()),
		slog.String("grace", rs.grace.String()),
	)
}

// Stop останавливает фоновую горутину сверки.
func (rs *ReconcileService) Stop() {
	if rs.cancel != nil {
		rs.cancel()
	}
	rs.logger.Info("Сверка остановлена")
}

// IsInProgress возвращает true, если цикл сверки выполняется.
func (rs *ReconcileService) IsInProgress() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.inProcess
}

// run — основной цикл фоновой горутины.
func (rs *ReconcileService) run(ctx context.Context) {
	ticker := time.NewTicker(rs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rs.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл сверки.
// Потокобезопасен: если цикл уже выполняется, возвращает nil, true.
func (rs *ReconcileService) RunOnce(ctx context.Context) (*ReconcileReport, bool) {
	rs.mu.Lock()
	if rs.inProcess {
		rs.mu.Unlock()
		rs.logger.Warn("Сверка уже выполняется, пропуск")
		return nil, true
	}
	rs.inProcess = true
	rs.mu.Unlock()

	defer func() {
		rs.mu.Lock()
		rs.inProcess = false
		rs.mu.Unlock()
	}()

	report := &ReconcileReport{StartedAt: time.Now().UTC()}
	rs.logger.Info("Сверка начата")

	rs.sweepOrphanBlobs(ctx, report)
	rs.sweepOrphanRecords(ctx, report)

	report.CompletedAt = time.Now().UTC()
	duration := report.CompletedAt.Sub(report.StartedAt)

	reconcileRunsTotal.Inc()
	reconcileDurationSeconds.Observe(duration.Seconds())

	rs.logger.Info("Сверка завершена",
		slog.Int("blobs_checked", report.BlobsChecked),
		slog.Int("records_checked", report.RecordsChecked),
		slog.Int("orphan_blobs_removed", report.OrphanBlobsRemoved),
		slog.Int("orphan_records_removed", report.OrphanRecordsRemoved),
		slog.Int("errors", report.Errors),
		slog.Duration("duration", duration),
	)

	return report, false
}

// sweepOrphanBlobs обходит Blob Store и удаляет объекты без записи реестра,
// если они старше grace period.
func (rs *ReconcileService) sweepOrphanBlobs(ctx context.Context, report *ReconcileReport) {
	now := time.Now().UTC()

	err := rs.blobs.Walk(ctx, func(key string, lastModified time.Time) error {
		report.BlobsChecked++

		lookupCtx, cancel := context.WithTimeout(ctx, rs.timeout)
		_, err := rs.repo.GetByStorageKey(lookupCtx, key)
		cancel()

		if err == nil {
			return nil // запись есть, объект не orphan
		}
		if !errors.Is(err, repository.ErrNotFound) {
			report.Errors++
			rs.logger.Warn("Ошибка поиска записи по ключу объекта",
				slog.String("storage_key", key),
				slog.String("error", err.Error()),
			)
			return nil
		}

		// Объект моложе grace period может принадлежать in-flight
		// загрузке, запись которой ещё не создана.
		if now.Sub(lastModified) < rs.grace {
			return nil
		}

		delCtx, cancelDel := context.WithTimeout(ctx, rs.timeout)
		defer cancelDel()

		if err := rs.blobs.Delete(delCtx, key); err != nil {
			report.Errors++
			rs.logger.Warn("Ошибка удаления orphan объекта",
				slog.String("storage_key", key),
				slog.String("error", err.Error()),
			)
			return nil
		}

		report.OrphanBlobsRemoved++
		reconcileOrphansTotal.WithLabelValues("orphan_blob").Inc()
		rs.logger.Info("Удалён orphan объект",
			slog.String("storage_key", key),
			slog.Duration("age", now.Sub(lastModified)),
		)
		return nil
	})
	if err != nil {
		report.Errors++
		rs.logger.Error("Обход Blob Store прерван",
			slog.String("error", err.Error()),
		)
	}
}

// sweepOrphanRecords обходит реестр постранично и удаляет записи,
// у которых нет объекта в Blob Store.
// Удаление записей смещает страницы OFFSET-пагинации; пропущенные из-за
// сдвига записи обрабатываются следующим циклом сверки.
func (rs *ReconcileService) sweepOrphanRecords(ctx context.Context, report *ReconcileReport) {
	offset := 0
	for {
		listCtx, cancel := context.WithTimeout(ctx, rs.timeout)
		page, err := rs.repo.List(listCtx, listPageSize, offset)
		cancel()
		if err != nil {
			report.Errors++
			rs.logger.Error("Ошибка обхода реестра",
				slog.Int("offset", offset),
				slog.String("error", err.Error()),
			)
			return
		}
		if len(page) == 0 {
			return
		}

		for _, rec := range page {
			report.RecordsChecked++

			statCtx, cancelStat := context.WithTimeout(ctx, rs.timeout)
			_, err := rs.blobs.Stat(statCtx, rec.StorageKey)
			cancelStat()

			if err == nil {
				continue // объект на месте
			}
			if !errors.Is(err, blobstore.ErrNotFound) {
				report.Errors++
				rs.logger.Warn("Ошибка stat объекта при сверке",
					slog.String("storage_key", rec.StorageKey),
					slog.String("error", err.Error()),
				)
				continue
			}

			delCtx, cancelDel := context.WithTimeout(ctx, rs.timeout)
			err = rs.repo.DeleteByID(delCtx, rec.FileID)
			cancelDel()
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				report.Errors++
				rs.logger.Warn("Ошибка удаления orphan записи реестра",
					slog.String("file_id", rec.FileID),
					slog.String("error", err.Error()),
				)
				continue
			}

			// Кэш мог выдавать запись до TTL — инвалидируем сразу,
			// чтобы чтение после сверки возвращало NotFound.
			rs.cache.Delete(rec.FileID)

			report.OrphanRecordsRemoved++
			reconcileOrphansTotal.WithLabelValues("orphan_record").Inc()
			rs.logger.Info("Удалена orphan запись реестра",
				slog.String("file_id", rec.FileID),
				slog.String("storage_key", rec.StorageKey),
			)
		}

		if len(page) < listPageSize {
			return
		}
		offset += listPageSize
	}
}
