// errors.go — таксономия ошибок координатора.
//
// Sentinel-ошибки описывают исход операции в терминах домена,
// BackendError указывает, на каком шаге отказала backend-подсистема.
// HTTP-коды назначаются на уровне handlers.
package service

import (
	"errors"
	"fmt"
)

// Sentinel-ошибки операций координатора.
var (
	// ErrInvalidInput — некорректные параметры запроса (пустое имя, нет содержимого).
	ErrInvalidInput = errors.New("некорректные параметры запроса")

	// ErrNotFound — запись реестра с указанным идентификатором отсутствует.
	ErrNotFound = errors.New("файл не найден")

	// ErrForbidden — вызывающий не является владельцем файла.
	ErrForbidden = errors.New("доступ запрещён: не владелец файла")

	// ErrBlobMissing — запись реестра существует, но объект в blob store
	// отсутствует (orphan ledger row). Исправляется только reconciliation sweep.
	ErrBlobMissing = errors.New("объект отсутствует в blob store при существующей записи реестра")

	// ErrFileTooLarge — размер файла превышает настроенный лимит.
	ErrFileTooLarge = errors.New("размер файла превышает допустимый лимит")
)

// Шаги операций, на которых может отказать backend-подсистема.
const (
	StepBlobPut      = "blob_put"
	StepLedgerCreate = "ledger_create"
	StepLedgerGet    = "ledger_get"
	StepBlobGet      = "blob_get"
	StepBlobDelete   = "blob_delete"
	StepLedgerDelete = "ledger_delete"
)

// BackendError — отказ backend-подсистемы (blob store или реестр)
// на конкретном шаге операции. Шаг определяет, какой artefact остался:
// ledger_create — orphan blob, ledger_delete — orphan запись реестра.
type BackendError struct {
	// Step — шаг, на котором произошёл отказ (StepBlobPut и т.д.)
	Step string
	// Err — исходная ошибка подсистемы
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("отказ backend на шаге %s: %v", e.Step, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// newBackendError оборачивает ошибку подсистемы с указанием шага.
func newBackendError(step string, err error) *BackendError {
	return &BackendError{Step: step, Err: err}
}
