package service

import (
	"testing"
	"time"
)

// TestCacheService_SetGetDelete проверяет базовый цикл кэша.
func TestCacheService_SetGetDelete(t *testing.T) {
	c := NewCacheService(10, time.Minute)
	rec := testRecord()

	if _, ok := c.Get(rec.FileID); ok {
		t.Error("Get() вернул запись из пустого кэша")
	}

	c.Set(rec.FileID, rec)
	got, ok := c.Get(rec.FileID)
	if !ok {
		t.Fatal("Get() не нашёл добавленную запись")
	}
	if got.StorageKey != rec.StorageKey {
		t.Errorf("StorageKey = %s, ожидался %s", got.StorageKey, rec.StorageKey)
	}

	c.Delete(rec.FileID)
	if _, ok := c.Get(rec.FileID); ok {
		t.Error("Get() вернул запись после инвалидации")
	}
}

// TestCacheService_TTL проверяет автоматическое истечение записи.
func TestCacheService_TTL(t *testing.T) {
	c := NewCacheService(10, 50*time.Millisecond)
	rec := testRecord()

	c.Set(rec.FileID, rec)
	time.Sleep(120 * time.Millisecond)

	if _, ok := c.Get(rec.FileID); ok {
		t.Error("запись не истекла после TTL")
	}
}
