// Пакет blobstore — Blob Store поверх S3-совместимого хранилища (MinIO).
// Ключи объектов opaque, выбираются координатором. Содержимое передаётся
// потоково, без буферизации целиком в памяти.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bigkaa/goartstore/file-service/internal/config"
)

// ErrNotFound — объект с указанным ключом отсутствует в хранилище.
var ErrNotFound = errors.New("объект не найден в blob store")

// Store — Blob Store поверх MinIO/S3.
type Store struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// New создаёт Store и гарантирует существование bucket.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания S3-клиента: %w", err)
	}

	s := &Store{
		client: client,
		bucket: cfg.S3Bucket,
		logger: logger.With(slog.String("component", "blobstore")),
	}

	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("Blob store инициализирован",
		slog.String("endpoint", cfg.S3Endpoint),
		slog.String("bucket", cfg.S3Bucket),
	)

	return s, nil
}

// ensureBucket создаёт bucket, если он не существует.
func (s *Store) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("ошибка проверки bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("ошибка создания bucket %s: %w", s.bucket, err)
		}
		s.logger.Info("Bucket создан", slog.String("bucket", s.bucket))
	}
	return nil
}

// Put записывает объект с указанным ключом. size — точная длина потока.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("ошибка записи объекта %s: %w", key, err)
	}
	return nil
}

// Get открывает объект для потокового чтения.
// offset/length задают байтовый диапазон: length == 0 — до конца объекта,
// offset == 0 && length == 0 — объект целиком.
// Возвращает ErrNotFound, если объекта нет.
func (s *Store) Get(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	opts := minio.GetObjectOptions{}
	if offset > 0 || length > 0 {
		end := int64(0) // 0 — до конца объекта
		if length > 0 {
			end = offset + length - 1
		}
		if err := opts.SetRange(offset, end); err != nil {
			return nil, fmt.Errorf("некорректный диапазон объекта %s: %w", key, err)
		}
	}

	obj, err := s.client.GetObject(ctx, s.bucket, key, opts)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия объекта %s: %w", key, err)
	}

	// GetObject ленивый: ошибка NoSuchKey проявляется только при чтении.
	// Stat выполняется сразу, чтобы отличить отсутствие объекта от сбоя backend.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения объекта %s: %w", key, err)
	}

	return obj, nil
}

// Stat возвращает размер объекта. ErrNotFound, если объекта нет.
func (s *Store) Stat(ctx context.Context, key string) (int64, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("ошибка stat объекта %s: %w", key, err)
	}
	return info.Size, nil
}

// Delete удаляет объект. Удаление несуществующего объекта — не ошибка
// (S3 DeleteObject идемпотентен).
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("ошибка удаления объекта %s: %w", key, err)
	}
	return nil
}

// Walk обходит все объекты bucket и вызывает fn для каждого.
// Используется reconciliation sweep. Обход прерывается первой ошибкой fn.
func (s *Store) Walk(ctx context.Context, fn func(key string, lastModified time.Time) error) error {
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return fmt.Errorf("ошибка листинга объектов: %w", obj.Err)
		}
		if err := fn(obj.Key, obj.LastModified); err != nil {
			return err
		}
	}
	return nil
}

// CheckReady проверяет доступность blob store для health endpoint.
// Реализует интерфейс handlers.ReadinessChecker.
func (s *Store) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return "fail", fmt.Sprintf("S3 недоступен: %v", err)
	}
	return "ok", "подключение активно"
}

// isNoSuchKey определяет, является ли ошибка S3-ответом NoSuchKey.
func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey"
}
