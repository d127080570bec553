// dephealth.go — интеграция с topologymetrics SDK для мониторинга зависимостей.
//
// File Service мониторит:
//   - PostgreSQL — SQL checker через существующий pgxpool (connection pool mode, critical)
//   - S3 — HTTP checker к liveness endpoint MinIO (critical)
//   - NATS — HTTP checker к monitoring endpoint (не critical: события best-effort)
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	_ "github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/httpcheck" // регистрация HTTP checker factory
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks/pgcheck"

	"github.com/bigkaa/goartstore/file-service/internal/config"
)

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Метрики регистрируются в глобальном Prometheus registry.
//
// db — *sql.DB, полученный из pgxpool через stdlib.OpenDBFromPool():
// проверка через существующий пул отражает реальную способность
// сервиса работать с базой, включая исчерпание пула.
func NewDephealthService(cfg *config.Config, db *sql.DB, logger *slog.Logger) (*DephealthService, error) {
	s3Scheme := "http"
	if cfg.S3UseSSL {
		s3Scheme = "https"
	}
	s3URL := fmt.Sprintf("%s://%s", s3Scheme, cfg.S3Endpoint)

	opts := []dephealth.Option{
		dephealth.WithLogger(logger),
		// PostgreSQL — connection pool mode через существующий pgxpool
		dephealth.AddDependency("postgresql", dephealth.TypePostgres,
			pgcheck.New(pgcheck.WithDB(db)),
			dephealth.FromURL(cfg.DatabaseURL()),
			dephealth.CheckInterval(cfg.DephealthCheckInterval),
			dephealth.Critical(true),
		),
		// S3 — HTTP checker к liveness endpoint MinIO
		dephealth.HTTP("s3",
			dephealth.FromURL(s3URL),
			dephealth.WithHTTPHealthPath("/minio/health/live"),
			dephealth.CheckInterval(cfg.DephealthCheckInterval),
			dephealth.Critical(true),
		),
	}

	// NATS мониторится только при настроенном monitoring endpoint.
	// Не critical: публикация событий best-effort, недоступность брокера
	// не ломает файловые операции.
	if cfg.NATSMonitorURL != "" {
		opts = append(opts, dephealth.HTTP("nats",
			dephealth.FromURL(cfg.NATSMonitorURL),
			dephealth.WithHTTPHealthPath("/healthz"),
			dephealth.CheckInterval(cfg.DephealthCheckInterval),
			dephealth.Critical(false),
		))
	}

	dh, err := dephealth.New("file-service", cfg.DephealthGroup, opts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен (PostgreSQL + S3 + NATS)")
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — имя зависимости, значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
