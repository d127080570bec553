package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/bigkaa/goartstore/file-service/internal/domain/model"
	"github.com/bigkaa/goartstore/file-service/internal/events"
)

// TestUpload_Success проверяет успешную загрузку: объект записан,
// запись реестра создана, хэш и размер вычислены, событие опубликовано.
func TestUpload_Success(t *testing.T) {
	repo := newFakeFileRepo()
	blobs := newFakeBlobStore()
	pub := &fakePublisher{}
	svc := newTestFileService(t, repo, blobs, pub)

	content := "hello world"
	rec, err := svc.Upload(context.Background(), UploadParams{
		Reader:       strings.NewReader(content),
		OriginalName: "greeting.txt",
		Size:         int64(len(content)),
		OwnerID:      "user-1",
	})
	if err != nil {
		t.Fatalf("Upload() вернул ошибку: %v", err)
	}

	if rec.FileID == "" {
		t.Error("FileID не назначен")
	}
	if rec.Size != 11 {
		t.Errorf("Size = %d, ожидался 11", rec.Size)
	}
	// SHA-256 от "hello world"
	wantSHA := "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"
	if rec.SHA256 != wantSHA {
		t.Errorf("SHA256 = %s, ожидался %s", rec.SHA256, wantSHA)
	}
	if rec.OwnerID != "user-1" {
		t.Errorf("OwnerID = %s, ожидался user-1", rec.OwnerID)
	}
	if !strings.HasSuffix(rec.StorageKey, "-greeting.txt") {
		t.Errorf("StorageKey = %s, ожидался суффикс -greeting.txt", rec.StorageKey)
	}

	if !blobs.hasObject(rec.StorageKey) {
		t.Error("объект не записан в blob store")
	}
	if !repo.hasRecord(rec.FileID) {
		t.Error("запись не создана в реестре")
	}

	published := pub.events()
	if len(published) != 1 {
		t.Fatalf("опубликовано %d событий, ожидалось 1", len(published))
	}
	if published[0].subject != events.SubjectFileUploaded {
		t.Errorf("subject = %s, ожидался %s", published[0].subject, events.SubjectFileUploaded)
	}
	if published[0].event.FileID != rec.FileID {
		t.Errorf("event.FileID = %s, ожидался %s", published[0].event.FileID, rec.FileID)
	}
}

// TestUpload_LedgerFailureLeavesOrphanBlob проверяет политику компенсации:
// отказ реестра после записи объекта оставляет orphan blob в blob store,
// инлайновая уборка не выполняется, событие не публикуется.
func TestUpload_LedgerFailureLeavesOrphanBlob(t *testing.T) {
	repo := newFakeFileRepo()
	repo.createFn = func(_ context.Context, _ *model.FileRecord) (*model.FileRecord, error) {
		return nil, errors.New("реестр недоступен")
	}
	blobs := newFakeBlobStore()
	pub := &fakePublisher{}
	svc := newTestFileService(t, repo, blobs, pub)

	_, err := svc.Upload(context.Background(), UploadParams{
		Reader:       strings.NewReader("data"),
		OriginalName: "doc.pdf",
		Size:         4,
		OwnerID:      "user-1",
	})

	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("Upload() вернул %v, ожидался *BackendError", err)
	}
	if backendErr.Step != StepLedgerCreate {
		t.Errorf("Step = %s, ожидался %s", backendErr.Step, StepLedgerCreate)
	}

	// Orphan blob остаётся до reconciliation sweep
	if blobs.objectCount() != 1 {
		t.Errorf("объектов в blob store = %d, ожидался 1 (orphan)", blobs.objectCount())
	}
	if len(pub.events()) != 0 {
		t.Error("событие опубликовано при неудачной загрузке")
	}
}

// TestUpload_BlobFailureLeavesCleanState проверяет, что отказ blob store
// на первом шаге не оставляет следов: ни объекта, ни записи реестра.
func TestUpload_BlobFailureLeavesCleanState(t *testing.T) {
	repo := newFakeFileRepo()
	blobs := newFakeBlobStore()
	blobs.putFn = func(_ context.Context, _ string, _ io.Reader, _ int64) error {
		return errors.New("S3 недоступен")
	}
	pub := &fakePublisher{}
	svc := newTestFileService(t, repo, blobs, pub)

	_, err := svc.Upload(context.Background(), UploadParams{
		Reader:       strings.NewReader("data"),
		OriginalName: "doc.pdf",
		Size:         4,
		OwnerID:      "user-1",
	})

	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("Upload() вернул %v, ожидался *BackendError", err)
	}
	if backendErr.Step != StepBlobPut {
		t.Errorf("Step = %s, ожидался %s", backendErr.Step, StepBlobPut)
	}

	if repo.recordCount() != 0 {
		t.Error("запись реестра создана при отказе blob store")
	}
	if len(pub.events()) != 0 {
		t.Error("событие опубликовано при неудачной загрузке")
	}
}

// TestUpload_ValidationErrors проверяет отказ при некорректных параметрах.
func TestUpload_ValidationErrors(t *testing.T) {
	svc := newTestFileService(t, nil, nil, nil)

	tests := []struct {
		name   string
		params UploadParams
	}{
		{
			name: "без reader",
			params: UploadParams{
				OriginalName: "doc.pdf",
				OwnerID:      "user-1",
			},
		},
		{
			name: "пустое имя файла",
			params: UploadParams{
				Reader:  strings.NewReader("data"),
				OwnerID: "user-1",
			},
		},
		{
			name: "без владельца",
			params: UploadParams{
				Reader:       strings.NewReader("data"),
				OriginalName: "doc.pdf",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(context.Background(), tt.params)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Upload() вернул %v, ожидался ErrInvalidInput", err)
			}
		})
	}
}

// TestUpload_FileTooLarge проверяет отказ при превышении лимита размера.
func TestUpload_FileTooLarge(t *testing.T) {
	blobs := newFakeBlobStore()
	svc := newTestFileService(t, nil, blobs, nil)

	_, err := svc.Upload(context.Background(), UploadParams{
		Reader:       strings.NewReader("data"),
		OriginalName: "huge.bin",
		Size:         testMaxFileSize + 1,
		OwnerID:      "user-1",
	})
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("Upload() вернул %v, ожидался ErrFileTooLarge", err)
	}
	if blobs.objectCount() != 0 {
		t.Error("объект записан при превышении лимита размера")
	}
}

// TestUpload_PublishFailureDoesNotFailUpload проверяет best-effort
// публикацию: отказ Event Channel не влияет на результат загрузки.
func TestUpload_PublishFailureDoesNotFailUpload(t *testing.T) {
	repo := newFakeFileRepo()
	blobs := newFakeBlobStore()
	pub := &fakePublisher{
		publishFn: func(_ context.Context, _ string, _ *model.LifecycleEvent) error {
			return errors.New("NATS недоступен")
		},
	}
	svc := newTestFileService(t, repo, blobs, pub)

	rec, err := svc.Upload(context.Background(), UploadParams{
		Reader:       strings.NewReader("data"),
		OriginalName: "doc.pdf",
		Size:         4,
		OwnerID:      "user-1",
	})
	if err != nil {
		t.Fatalf("Upload() вернул ошибку при отказе publisher: %v", err)
	}
	if !repo.hasRecord(rec.FileID) {
		t.Error("запись не создана в реестре")
	}
}

// TestUpload_SameContentTwiceCreatesDistinctFiles проверяет, что повторная
// загрузка того же содержимого создаёт независимый файл с другим ключом.
func TestUpload_SameContentTwiceCreatesDistinctFiles(t *testing.T) {
	repo := newFakeFileRepo()
	blobs := newFakeBlobStore()
	svc := newTestFileService(t, repo, blobs, nil)

	params := func() UploadParams {
		return UploadParams{
			Reader:       strings.NewReader("same content"),
			OriginalName: "dup.txt",
			Size:         12,
			OwnerID:      "user-1",
		}
	}

	rec1, err := svc.Upload(context.Background(), params())
	if err != nil {
		t.Fatalf("первая загрузка: %v", err)
	}
	rec2, err := svc.Upload(context.Background(), params())
	if err != nil {
		t.Fatalf("вторая загрузка: %v", err)
	}

	if rec1.FileID == rec2.FileID {
		t.Error("повторная загрузка вернула тот же FileID")
	}
	if rec1.StorageKey == rec2.StorageKey {
		t.Error("повторная загрузка вернула тот же StorageKey")
	}
	if rec1.SHA256 != rec2.SHA256 {
		t.Errorf("SHA256 различаются: %s и %s", rec1.SHA256, rec2.SHA256)
	}
	if blobs.objectCount() != 2 {
		t.Errorf("объектов в blob store = %d, ожидалось 2", blobs.objectCount())
	}
}

// TestSanitizeName проверяет очистку имени файла от элементов пути.
func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"dir/sub/name.txt", "name.txt"},
		{"..", "file"},
		{"", "file"},
	}

	for _, tt := range tests {
		if got := sanitizeName(tt.in); got != tt.want {
			t.Errorf("sanitizeName(%q) = %q, ожидалось %q", tt.in, got, tt.want)
		}
	}
}
