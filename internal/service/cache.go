// cache.go — LRU-кэш записей реестра с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
//
// Кэш ускоряет повторные чтения метаданных (download/stream/metadata).
// Удаление файла инвалидирует запись, поэтому внутри одного экземпляра
// сервиса чтение после удаления всегда возвращает NotFound.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/file-service/internal/domain/model"
)

// Prometheus-метрики кэша метаданных.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш записей реестра.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша записей реестра.",
	})
)

// CacheService — per-instance LRU-кэш записей реестра с автоматическим TTL.
type CacheService struct {
	cache *expirable.LRU[string, *model.FileRecord]
}

// NewCacheService создаёт кэш с указанными размером и TTL записи.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	return &CacheService{
		cache: expirable.NewLRU[string, *model.FileRecord](maxSize, nil, ttl),
	}
}

// Get возвращает запись реестра из кэша по fileID.
// (запись, true) при hit, (nil, false) при miss. Обновляет метрики.
func (c *CacheService) Get(fileID string) (*model.FileRecord, bool) {
	rec, ok := c.cache.Get(fileID)
	if ok {
		cacheHitsTotal.Inc()
		return rec, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *CacheService) Set(fileID string, rec *model.FileRecord) {
	c.cache.Add(fileID, rec)
}

// Delete инвалидирует запись кэша (вызывается при удалении файла).
func (c *CacheService) Delete(fileID string) {
	c.cache.Remove(fileID)
}
