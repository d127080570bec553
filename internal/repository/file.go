package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/file-service/internal/domain/model"
)

// fileColumns — список столбцов таблицы files для SELECT-запросов.
// DRY: одно место для всех SELECT'ов.
const fileColumns = `id, object_name, original_name, size, sha256, owner_id,
	created_at, updated_at`

// FileRepository — интерфейс доступа к записям реестра метаданных.
// Identity (id) и timestamps назначаются БД при создании.
type FileRepository interface {
	// Create вставляет запись и возвращает её с назначенными id и timestamps.
	Create(ctx context.Context, rec *model.FileRecord) (*model.FileRecord, error)
	// GetByID возвращает запись по UUID или ErrNotFound.
	GetByID(ctx context.Context, fileID string) (*model.FileRecord, error)
	// GetByStorageKey возвращает запись по ключу объекта или ErrNotFound.
	GetByStorageKey(ctx context.Context, storageKey string) (*model.FileRecord, error)
	// DeleteByID удаляет запись. ErrNotFound, если записи нет.
	DeleteByID(ctx context.Context, fileID string) error
	// List возвращает страницу записей (для reconciliation sweep).
	List(ctx context.Context, limit, offset int) ([]*model.FileRecord, error)
}

// fileRepo — реализация FileRepository через pgx.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий файлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

// Create вставляет запись реестра. id, created_at и updated_at
// назначаются БД и возвращаются через RETURNING.
func (r *fileRepo) Create(ctx context.Context, rec *model.FileRecord) (*model.FileRecord, error) {
	query := fmt.Sprintf(`
		INSERT INTO files (object_name, original_name, size, sha256, owner_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING %s`, fileColumns)

	created := &model.FileRecord{}
	err := r.db.QueryRow(ctx, query,
		rec.StorageKey, rec.OriginalName, rec.Size, rec.SHA256, rec.OwnerID,
	).Scan(
		&created.FileID, &created.StorageKey, &created.OriginalName, &created.Size,
		&created.SHA256, &created.OwnerID, &created.CreatedAt, &created.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания записи файла: %w", err)
	}
	return created, nil
}

// GetByID возвращает запись по UUID или ErrNotFound.
func (r *fileRepo) GetByID(ctx context.Context, fileID string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = $1`, fileColumns)

	f := &model.FileRecord{}
	err := r.db.QueryRow(ctx, query, fileID).Scan(
		&f.FileID, &f.StorageKey, &f.OriginalName, &f.Size,
		&f.SHA256, &f.OwnerID, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи файла: %w", err)
	}
	return f, nil
}

// GetByStorageKey возвращает запись по ключу объекта или ErrNotFound.
// Используется reconciliation sweep для поиска orphan blobs.
func (r *fileRepo) GetByStorageKey(ctx context.Context, storageKey string) (*model.FileRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE object_name = $1`, fileColumns)

	f := &model.FileRecord{}
	err := r.db.QueryRow(ctx, query, storageKey).Scan(
		&f.FileID, &f.StorageKey, &f.OriginalName, &f.Size,
		&f.SHA256, &f.OwnerID, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска записи по ключу объекта: %w", err)
	}
	return f, nil
}

// DeleteByID удаляет запись реестра. ErrNotFound, если записи нет.
func (r *fileRepo) DeleteByID(ctx context.Context, fileID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, fileID)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List возвращает страницу записей, отсортированных по created_at.
// Используется reconciliation sweep для обхода реестра.
func (r *fileRepo) List(ctx context.Context, limit, offset int) ([]*model.FileRecord, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM files ORDER BY created_at LIMIT $1 OFFSET $2`, fileColumns)

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		f := &model.FileRecord{}
		if err := rows.Scan(
			&f.FileID, &f.StorageKey, &f.OriginalName, &f.Size,
			&f.SHA256, &f.OwnerID, &f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи файла: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	return result, nil
}
