// Точка входа File Service — сервиса загрузки и выдачи файлов.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/file-service/internal/api/handlers"
	"github.com/bigkaa/goartstore/file-service/internal/api/middleware"
	"github.com/bigkaa/goartstore/file-service/internal/config"
	"github.com/bigkaa/goartstore/file-service/internal/database"
	"github.com/bigkaa/goartstore/file-service/internal/events"
	"github.com/bigkaa/goartstore/file-service/internal/repository"
	"github.com/bigkaa/goartstore/file-service/internal/server"
	"github.com/bigkaa/goartstore/file-service/internal/service"
	"github.com/bigkaa/goartstore/file-service/internal/storage/blobstore"
)

func main() {
	// Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	// Настройка логгера
	logger := config.SetupLogger(cfg)
	logger.Info("File Service запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("bucket", cfg.S3Bucket),
	)

	// --- Инициализация компонентов ---

	// 1. Миграции схемы реестра
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка применения миграций", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Пул соединений PostgreSQL
	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelInit()

	pool, err := database.Connect(initCtx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 3. Репозиторий реестра
	fileRepo := repository.NewFileRepository(pool)

	// 4. Blob store (S3/MinIO)
	blobs, err := blobstore.New(initCtx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка инициализации blob store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Event Channel (NATS, ленивое подключение)
	bus := events.NewBus(cfg.NATSURL, logger)
	defer bus.Close()

	// 6. Кэш метаданных
	cache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)

	// 7. Координатор файловых операций
	fileSvc := service.NewFileService(
		fileRepo, blobs, bus, cache,
		cfg.MaxFileSize, cfg.BackendTimeout, logger,
	)

	// --- Фоновые процессы ---

	ctx := context.Background()

	// 8. Reconciliation — фоновая сверка blob store и реестра
	reconcileSvc := service.NewReconcileService(
		fileRepo, blobs, cache,
		cfg.ReconcileInterval, cfg.ReconcileGrace, cfg.BackendTimeout,
		logger,
	)
	reconcileSvc.Start(ctx)
	defer reconcileSvc.Stop()

	// 9. topologymetrics — мониторинг зависимостей
	sqlDB := stdlib.OpenDBFromPool(pool)
	dephealthSvc, dephealthErr := service.NewDephealthService(cfg, sqlDB, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			defer dephealthSvc.Stop()
			logger.Info("topologymetrics запущен",
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// --- HTTP-слой ---

	// 10. Handlers
	filesHandler := handlers.NewFilesHandler(fileSvc, cfg.MaxFileSize, logger)
	healthHandler := handlers.NewHealthHandler(
		database.NewReadinessChecker(pool),
		blobs,
	)
	apiHandler := handlers.NewAPIHandler(filesHandler, healthHandler, logger)

	// 11. HTTP-сервер: метрики, логирование, идентификация вызывающего
	srv := server.New(cfg, logger, apiHandler,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
		middleware.CallerIdentity(),
	)

	// 12. Запуск сервера (блокирующий вызов с graceful shutdown)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("File Service остановлен")
}
