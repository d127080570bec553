// Пакет model — доменные модели File Service.
// FileRecord — запись реестра метаданных (таблица files в PostgreSQL).
// LifecycleEvent — событие жизненного цикла файла для Event Channel.
package model

import (
	"time"
)

// FileRecord — метаданные файла в реестре.
// Identity (FileID) и timestamps назначаются реестром при создании (RETURNING).
// Все поля кроме UpdatedAt неизменяемы после создания.
type FileRecord struct {
	// FileID — уникальный идентификатор файла (UUID v4, назначается БД)
	FileID string `json:"id"`

	// StorageKey — ключ объекта в Blob Store.
	// Формат: {uuid}-{original_name}. Уникален, неизменяем.
	StorageKey string `json:"object_name"`

	// OriginalName — оригинальное имя файла при загрузке
	OriginalName string `json:"original_name"`

	// Size — размер файла в байтах, равен фактической длине объекта
	Size int64 `json:"size"`

	// SHA256 — hex-представление SHA-256, вычисленного при загрузке
	// над потоком байт в момент записи в Blob Store
	SHA256 string `json:"sha256"`

	// OwnerID — идентификатор владельца (opaque caller identity).
	// Только владелец может удалить файл.
	OwnerID string `json:"owner_id"`

	// CreatedAt — момент создания записи (назначается БД)
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — момент последней мутации записи
	UpdatedAt time.Time `json:"updated_at"`
}

// EventType — тип события жизненного цикла.
type EventType string

const (
	// EventUploaded — файл загружен (blob + запись реестра созданы)
	EventUploaded EventType = "uploaded"
	// EventDeleted — файл удалён (blob и запись реестра удалены)
	EventDeleted EventType = "deleted"
)

// LifecycleEvent — событие жизненного цикла файла.
// Не персистится: публикуется best-effort в Event Channel и живёт
// только в момент доставки. Формат полей — контракт подписчиков.
type LifecycleEvent struct {
	// Type — uploaded или deleted
	Type EventType `json:"type"`
	// FileID — идентификатор файла
	FileID string `json:"file_id"`
	// StorageKey — ключ объекта в Blob Store
	StorageKey string `json:"object_name"`
	// OwnerID — владелец файла
	OwnerID string `json:"owner_id"`
	// OccurredAt — момент завершения операции
	OccurredAt time.Time `json:"timestamp"`
}
