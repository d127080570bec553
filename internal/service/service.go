// Пакет service — бизнес-логика File Service.
// FileService — координатор загрузки, выдачи и удаления файлов,
// связывающий Blob Store, реестр метаданных и Event Channel.
package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/bigkaa/goartstore/file-service/internal/domain/model"
	"github.com/bigkaa/goartstore/file-service/internal/events"
	"github.com/bigkaa/goartstore/file-service/internal/repository"
)

// BlobStore — интерфейс Blob Store, который использует координатор.
// Реализуется storage/blobstore.Store; в тестах подменяется фейком.
type BlobStore interface {
	// Put записывает объект. size < 0 — длина неизвестна.
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	// Get открывает объект для чтения диапазона.
	// Возвращает blobstore.ErrNotFound, если объекта нет.
	Get(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error)
	// Stat возвращает размер объекта или blobstore.ErrNotFound.
	Stat(ctx context.Context, key string) (int64, error)
	// Delete удаляет объект (идемпотентно).
	Delete(ctx context.Context, key string) error
	// Walk обходит все объекты хранилища.
	Walk(ctx context.Context, fn func(key string, lastModified time.Time) error) error
}

// FileService — координатор файловых операций.
// Сам состояния не хранит: вся персистентность в Blob Store и реестре.
type FileService struct {
	repo           repository.FileRepository
	blobs          BlobStore
	publisher      events.Publisher
	cache          *CacheService
	maxFileSize    int64
	backendTimeout time.Duration
	logger         *slog.Logger
}

// NewFileService создаёт координатор файловых операций.
func NewFileService(
	repo repository.FileRepository,
	blobs BlobStore,
	publisher events.Publisher,
	cache *CacheService,
	maxFileSize int64,
	backendTimeout time.Duration,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		repo:           repo,
		blobs:          blobs,
		publisher:      publisher,
		cache:          cache,
		maxFileSize:    maxFileSize,
		backendTimeout: backendTimeout,
		logger:         logger.With(slog.String("component", "file_service")),
	}
}

// withTimeout ограничивает одно обращение к backend-подсистеме.
func (s *FileService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.backendTimeout)
}

// publishEvent публикует событие жизненного цикла best-effort.
// Ошибка публикации логируется и не влияет на результат операции.
func (s *FileService) publishEvent(ctx context.Context, subject string, eventType model.EventType, rec *model.FileRecord) {
	event := &model.LifecycleEvent{
		Type:       eventType,
		FileID:     rec.FileID,
		StorageKey: rec.StorageKey,
		OwnerID:    rec.OwnerID,
		OccurredAt: time.Now().UTC(),
	}

	if err := s.publisher.Publish(ctx, subject, event); err != nil {
		s.logger.Warn("Событие не опубликовано",
			slog.String("subject", subject),
			slog.String("file_id", rec.FileID),
			slog.String("error", err.Error()),
		)
	}
}

// lookup возвращает запись реестра по fileID, используя кэш.
// ErrNotFound, если записи нет.
func (s *FileService) lookup(ctx context.Context, fileID string) (*model.FileRecord, error) {
	if rec, ok := s.cache.Get(fileID); ok {
		return rec, nil
	}

	dbCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	rec, err := s.repo.GetByID(dbCtx, fileID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, newBackendError(StepLedgerGet, err)
	}

	s.cache.Set(fileID, rec)
	return rec, nil
}
