package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/api"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/api/handler"
	apimiddleware "github.com/ManupriyaNagar/flyolaIn-sub001/internal/api/middleware"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/application"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/config"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/inventory"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/domain/seatmap"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/infrastructure/memory"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/infrastructure/postgres"
	redisinfra "github.com/ManupriyaNagar/flyolaIn-sub001/internal/infrastructure/redis"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/pkg/logger"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/pkg/metrics"
	"github.com/ManupriyaNagar/flyolaIn-sub001/internal/worker"
)

func main() {
	cfg := config.Load()

	// ロガー初期化
	logger.Set(logger.NewLogger(os.Getenv("APP_ENV")))
	defer logger.Sync()

	// メトリクス初期化
	m := metrics.Init()

	// 座席数テーブル
	capacities := seatmap.NewCapacityTableWithDefault(cfg.Inventory.DefaultSeatLimit)

	// Redis（任意。接続できなければキャッシュ・分散ロックなしで動作する）
	var cache *redisinfra.AvailabilityCache
	var lockManager *redisinfra.LockManager
	redisClient := redisinfra.NewClient(&cfg.Redis)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	if err := redisinfra.Ping(ctx, redisClient); err != nil {
		logger.Warn("Redisに接続できないためキャッシュと分散ロックを無効化します", zap.Error(err))
		redisClient = nil
	} else {
		cache = redisinfra.NewAvailabilityCache(redisClient)
		lockManager = redisinfra.NewLockManager(redisClient)
	}
	cancel()

	// 台帳の選択（LEDGER=postgres で耐久性のあるSQL台帳に切り替え）
	var ledger inventory.Ledger
	switch os.Getenv("LEDGER") {
	case "postgres":
		db, err := postgres.NewConnection(&cfg.Database)
		if err != nil {
			logger.Fatal("データベース接続に失敗しました", zap.Error(err))
		}
		defer db.Close()

		if path := os.Getenv("MIGRATIONS_PATH"); path != "" {
			if err := postgres.RunMigrations(db.DB, path); err != nil {
				logger.Fatal("マイグレーションに失敗しました", zap.Error(err))
			}
		}

		ledger = postgres.NewLedger(db, capacities)
		// 複数プロセス構成ではキー単位の分散ロックで変更操作を直列化する
		if lockManager != nil {
			ledger = redisinfra.NewLockedLedger(ledger, lockManager)
		}
		logger.Info("SQL台帳で起動します")
	default:
		ledger = memory.NewLedger(capacities)
		logger.Info("インメモリ台帳で起動します")
	}

	// アプリケーションサービス
	bookingService := application.NewBookingService(ledger, cache, m, cfg.Inventory.HoldTTL)
	inventoryService := application.NewInventoryService(ledger, capacities, cache)

	// 失効仮押さえスイーパー
	sweeper := worker.NewHoldSweeper(ledger, cfg.Inventory.SweepInterval)
	sweeperCtx, sweeperCancel := context.WithCancel(context.Background())
	go sweeper.Start(sweeperCtx)

	// Echoサーバー
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	apimiddleware.SetupMiddleware(e)
	e.Use(apimiddleware.PrometheusMiddleware(m))

	// ハンドラー
	healthHandler := handler.NewHealthHandler()
	inventoryHandler := handler.NewInventoryHandler(inventoryService)
	bookingHandler := handler.NewBookingHandler(bookingService)

	// ルーティング
	v1 := e.Group("/api/v1")
	v1.GET("/health", healthHandler.Check)
	v1.GET("/inventory/available-seats", inventoryHandler.AvailableSeats)
	v1.GET("/inventory/available-count", inventoryHandler.AvailableCount)
	v1.POST("/schedules", inventoryHandler.RegisterSchedule)
	v1.POST("/bookings", bookingHandler.Create)
	v1.POST("/bookings/joyride", bookingHandler.CreateJoyride)
	v1.POST("/bookings/:ticket_id/confirm", bookingHandler.Confirm)
	v1.GET("/bookings/:booking_id", bookingHandler.GetByID)
	v1.POST("/quotes/joyride", bookingHandler.QuoteJoyride)
	v1.POST("/cancellation/cancel/:booking_id", bookingHandler.Cancel)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), apimiddleware.MetricsBasicAuth())

	// サーバー起動
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("サーバー起動", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	// スイーパー停止
	sweeperCancel()
	sweeper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("サーバーシャットダウンエラー", zap.Error(err))
	}

	if redisClient != nil {
		redisClient.Close()
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}
