package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/file-service/internal/domain/model"
	"github.com/bigkaa/goartstore/file-service/internal/repository"
	"github.com/bigkaa/goartstore/file-service/internal/storage/blobstore"
)

// --- Fake Blob Store ---

// storedBlob — объект в памяти fake blob store.
type storedBlob struct {
	data         []byte
	lastModified time.Time
}

// fakeBlobStore — in-memory Blob Store для тестов.
// Поля *Fn позволяют подменить поведение отдельного метода.
type fakeBlobStore struct {
	mu      sync.Mutex
	objects map[string]storedBlob

	putFn    func(ctx context.Context, key string, r io.Reader, size int64) error
	getFn    func(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error)
	statFn   func(ctx context.Context, key string) (int64, error)
	deleteFn func(ctx context.Context, key string) error
	walkFn   func(ctx context.Context, fn func(key string, lastModified time.Time) error) error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string]storedBlob)}
}

func (f *fakeBlobStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	if f.putFn != nil {
		return f.putFn(ctx, key, r, size)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = storedBlob{data: data, lastModified: time.Now().UTC()}
	return nil
}

func (f *fakeBlobStore) Get(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	if f.getFn != nil {
		return f.getFn(ctx, key, offset, length)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	if !ok {
		return nil, blobstore.ErrNotFound
	}
	data := obj.data
	if offset > 0 || length > 0 {
		if offset > int64(len(data)) {
			offset = int64(len(data))
		}
		data = data[offset:]
		if length > 0 && length < int64(len(data)) {
			data = data[:length]
		}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeBlobStore) Stat(ctx context.Context, key string) (int64, error) {
	if f.statFn != nil {
		return f.statFn(ctx, key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[key]
	if !ok {
		return 0, blobstore.ErrNotFound
	}
	return int64(len(obj.data)), nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, key string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, key)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeBlobStore) Walk(ctx context.Context, fn func(key string, lastModified time.Time) error) error {
	if f.walkFn != nil {
		return f.walkFn(ctx, fn)
	}
	f.mu.Lock()
	snapshot := make(map[string]storedBlob, len(f.objects))
	for k, v := range f.objects {
		snapshot[k] = v
	}
	f.mu.Unlock()

	for k, v := range snapshot {
		if err := fn(k, v.lastModified); err != nil {
			return err
		}
	}
	return nil
}

// setObject помещает объект в fake store с указанным временем модификации.
func (f *fakeBlobStore) setObject(key string, data []byte, lastModified time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = storedBlob{data: data, lastModified: lastModified}
}

// hasObject проверяет наличие объекта.
func (f *fakeBlobStore) hasObject(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok
}

// objectCount возвращает количество объектов.
func (f *fakeBlobStore) objectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

// --- Fake репозиторий ---

// fakeFileRepo — in-memory реализация FileRepository для тестов.
// Поля *Fn позволяют подменить поведение отдельного метода.
type fakeFileRepo struct {
	mu      sync.Mutex
	records map[string]*model.FileRecord

	createFn          func(ctx context.Context, rec *model.FileRecord) (*model.FileRecord, error)
	getByIDFn         func(ctx context.Context, fileID string) (*model.FileRecord, error)
	getByStorageKeyFn func(ctx context.Context, storageKey string) (*model.FileRecord, error)
	deleteByIDFn      func(ctx context.Context, fileID string) error
	listFn            func(ctx context.Context, limit, offset int) ([]*model.FileRecord, error)
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{records: make(map[string]*model.FileRecord)}
}

func (f *fakeFileRepo) Create(ctx context.Context, rec *model.FileRecord) (*model.FileRecord, error) {
	if f.createFn != nil {
		return f.createFn(ctx, rec)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	created := &model.FileRecord{
		FileID:       uuid.New().String(),
		StorageKey:   rec.StorageKey,
		OriginalName: rec.OriginalName,
		Size:         rec.Size,
		SHA256:       rec.SHA256,
		OwnerID:      rec.OwnerID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.records[created.FileID] = created
	return created, nil
}

func (f *fakeFileRepo) GetByID(ctx context.Context, fileID string) (*model.FileRecord, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, fileID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[fileID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

func (f *fakeFileRepo) GetByStorageKey(ctx context.Context, storageKey string) (*model.FileRecord, error) {
	if f.getByStorageKeyFn != nil {
		return f.getByStorageKeyFn(ctx, storageKey)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.records {
		if rec.StorageKey == storageKey {
			return rec, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeFileRepo) DeleteByID(ctx context.Context, fileID string) error {
	if f.deleteByIDFn != nil {
		return f.deleteByIDFn(ctx, fileID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[fileID]; !ok {
		return repository.ErrNotFound
	}
	delete(f.records, fileID)
	return nil
}

func (f *fakeFileRepo) List(ctx context.Context, limit, offset int) ([]*model.FileRecord, error) {
	if f.listFn != nil {
		return f.listFn(ctx, limit, offset)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*model.FileRecord
	for _, rec := range f.records {
		all = append(all, rec)
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// addRecord помещает запись напрямую в fake репозиторий.
func (f *fakeFileRepo) addRecord(rec *model.FileRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.FileID] = rec
}

// hasRecord проверяет наличие записи.
func (f *fakeFileRepo) hasRecord(fileID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.records[fileID]
	return ok
}

// recordCount возвращает количество записей.
func (f *fakeFileRepo) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// --- Fake publisher ---

// publishedEvent — зафиксированное fake publisher событие.
type publishedEvent struct {
	subject string
	event   *model.LifecycleEvent
}

// fakePublisher — Publisher, фиксирующий опубликованные события.
type fakePublisher struct {
	mu        sync.Mutex
	published []publishedEvent

	publishFn func(ctx context.Context, subject string, event *model.LifecycleEvent) error
}

func (f *fakePublisher) Publish(ctx context.Context, subject string, event *model.LifecycleEvent) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, subject, event)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedEvent{subject: subject, event: event})
	return nil
}

// events возвращает копию списка опубликованных событий.
func (f *fakePublisher) events() []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishedEvent, len(f.published))
	copy(out, f.published)
	return out
}

// --- Конструктор тестового сервиса ---

const testMaxFileSize = 1 << 20 // 1 MB

// newTestFileService создаёт FileService с fake-зависимостями.
func newTestFileService(t *testing.T, repo *fakeFileRepo, blobs *fakeBlobStore, pub *fakePublisher) *FileService {
	t.Helper()

	if repo == nil {
		repo = newFakeFileRepo()
	}
	if blobs == nil {
		blobs = newFakeBlobStore()
	}
	if pub == nil {
		pub = &fakePublisher{}
	}

	cache := NewCacheService(100, 5*time.Minute)
	return NewFileService(repo, blobs, pub, cache, testMaxFileSize, 5*time.Second, slog.Default())
}

// newTestReconcileService создаёт ReconcileService с fake-зависимостями
// и собственным кэшем метаданных.
func newTestReconcileService(t *testing.T, repo *fakeFileRepo, blobs *fakeBlobStore, grace time.Duration) *ReconcileService {
	t.Helper()
	cache := NewCacheService(100, 5*time.Minute)
	return NewReconcileService(repo, blobs, cache, time.Hour, grace, 5*time.Second, slog.Default())
}
