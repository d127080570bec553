// Пакет events — Event Channel поверх NATS.
// Публикация событий best-effort: подключение ленивое, ошибка публикации
// не влияет на результат операции координатора.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/bigkaa/goartstore/file-service/internal/domain/model"
)

// Subject'ы событий жизненного цикла файлов.
const (
	SubjectFileUploaded = "file.uploaded"
	SubjectFileDeleted  = "file.deleted"
)

// Publisher — интерфейс публикации событий жизненного цикла.
type Publisher interface {
	Publish(ctx context.Context, subject string, event *model.LifecycleEvent) error
}

// natsConn — используемая Bus часть API соединения NATS.
type natsConn interface {
	Publish(subject string, data []byte) error
	IsClosed() bool
	Drain() error
	Close()
}

// Bus — Publisher поверх NATS с ленивым подключением.
// Первое обращение устанавливает соединение; если брокер недоступен,
// попытка повторяется при следующей публикации.
type Bus struct {
	url    string
	logger *slog.Logger
	dial   func(url string) (natsConn, error)

	mu   sync.Mutex
	conn natsConn
}

// NewBus создаёт Bus. Соединение с NATS не устанавливается до первой публикации.
func NewBus(url string, logger *slog.Logger) *Bus {
	return &Bus{
		url:    url,
		logger: logger.With(slog.String("component", "events")),
		dial: func(url string) (natsConn, error) {
			return nats.Connect(url,
				nats.Name("file-service"),
				nats.MaxReconnects(-1),
			)
		},
	}
}

// connect возвращает соединение, устанавливая его при необходимости.
// Незакрытое соединение переиспользуется даже в состоянии reconnect:
// клиент NATS восстанавливает его сам (MaxReconnects без лимита),
// публикации на это время буферизуются. Новое соединение создаётся
// только если прежнего нет или оно закрыто.
func (b *Bus) connect() (natsConn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil && !b.conn.IsClosed() {
		return b.conn, nil
	}

	conn, err := b.dial(b.url)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к NATS: %w", err)
	}

	b.conn = conn
	b.logger.Info("Подключение к NATS установлено", slog.String("url", b.url))
	return conn, nil
}

// Publish сериализует событие в JSON и публикует в указанный subject.
func (b *Bus) Publish(_ context.Context, subject string, event *model.LifecycleEvent) error {
	conn, err := b.connect()
	if err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}

	if err := conn.Publish(subject, data); err != nil {
		return fmt.Errorf("ошибка публикации в %s: %w", subject, err)
	}
	return nil
}

// Close закрывает соединение с NATS, дождавшись отправки буферизованных сообщений.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil {
		if err := b.conn.Drain(); err != nil {
			b.logger.Warn("Ошибка drain соединения NATS", slog.String("error", err.Error()))
			b.conn.Close()
		}
		b.conn = nil
	}
}
