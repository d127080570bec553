// authz.go — правила авторизации операций над файлами.
package service

import (
	"github.com/bigkaa/goartstore/file-service/internal/domain/model"
)

// CanDelete возвращает true, если вызывающий имеет право удалить файл.
// Удалять файл может только его владелец. Чистая функция от записи
// реестра и идентификатора вызывающего, без обращений к backend.
func CanDelete(rec *model.FileRecord, callerID string) bool {
	return rec.OwnerID == callerID
}
