package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/nemonet1337/zaiStockLedger/internal/config"
	"github.com/nemonet1337/zaiStockLedger/internal/logger"
	"github.com/nemonet1337/zaiStockLedger/pkg/inventory"
	"github.com/nemonet1337/zaiStockLedger/pkg/inventory/publisher"
	"github.com/nemonet1337/zaiStockLedger/pkg/inventory/storage"
)

// backend is the storage plus the product catalog it serves
type backend interface {
	inventory.Storage
	inventory.ProductCatalog
}

func main() {
	// 設定読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("設定読み込みに失敗しました: ", err)
	}

	// ログ設定
	zapLogger, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatal("ログ初期化に失敗しました: ", err)
	}
	defer zapLogger.Sync()

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Fatal("サーバーが異常終了しました", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	// イベント発行（ブローカー未設定なら無効）
	var events inventory.EventPublisher
	if cfg.Kafka.Enabled() {
		kafka, err := publisher.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ClientID, logger)
		if err != nil {
			return err
		}
		defer kafka.Close()
		events = kafka
	} else {
		logger.Info("Kafkaブローカーが未設定のためイベント発行は無効です")
	}

	// メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// 在庫マネージャー初期化
	manager := inventory.NewManager(store, store, events, inventory.NewMetrics(registry), logger, cfg.Inventory.ManagerConfig())

	// HTTPハンドラー設定
	handlers := NewHandlers(manager, logger)
	router := setupRouter(handlers, newHTTPMetrics(registry))
	if cfg.API.EnableMetrics {
		router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")
	}

	var handler http.Handler = router
	if cfg.API.EnableCORS {
		handler = cors.New(cors.Options{
			AllowedOrigins: cfg.API.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", headerUserID, headerRequestID},
			ExposedHeaders: []string{headerRequestID},
		}).Handler(router)
	}

	// HTTPサーバー設定
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.API.Port),
		Handler:      handler,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
		IdleTimeout:  cfg.API.IdleTimeout,
	}

	// グレースフルシャットダウン設定
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("在庫台帳APIサーバーを開始します",
			zap.Int("port", cfg.API.Port),
			zap.String("storage", cfg.Storage.Driver),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// シャットダウンシグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return fmt.Errorf("サーバー開始に失敗しました: %w", err)
	case <-quit:
	}

	logger.Info("サーバーをシャットダウンしています...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.API.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("サーバーシャットダウンに失敗しました", zap.Error(err))
	}

	logger.Info("サーバーが正常に停止しました")
	return nil
}

// openStorage connects the configured storage driver
// 設定されたストレージに接続
func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (backend, error) {
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Warn("インメモリストレージを使用します（再起動でデータは失われます）")
		return storage.NewMemoryStorage(), nil
	default:
		store, err := storage.NewPostgreSQLStorage(ctx, cfg.DSN(), storage.Options{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("データベース接続に失敗しました: %w", err)
		}
		return store, nil
	}
}

// setupRouter sets up HTTP routes
// HTTPルートを設定
func setupRouter(handlers *Handlers, metrics *httpMetrics) *mux.Router {
	router := mux.NewRouter()

	// ヘルスチェック
	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	// API v1ルート
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(actorMiddleware)

	// 在庫照会（固定パスは {productId} より先に登録）
	api.HandleFunc("/inventory/low-stock", handlers.LowStock).Methods("GET")
	api.HandleFunc("/inventory/out-of-stock", handlers.OutOfStock).Methods("GET")
	api.HandleFunc("/inventory/overstock", handlers.Overstock).Methods("GET")
	api.HandleFunc("/inventory/reorder", handlers.ReorderRequired).Methods("GET")
	api.HandleFunc("/inventory/movements", handlers.ListMovements).Methods("GET")
	api.HandleFunc("/inventory/report", handlers.Report).Methods("GET")
	api.HandleFunc("/inventory/valuation", handlers.Valuation).Methods("GET")
	api.HandleFunc("/inventory/{productId:[0-9]+}", handlers.GetLevel).Methods("GET")
	api.HandleFunc("/inventory/{productId:[0-9]+}/levels", handlers.ListLevels).Methods("GET")
	api.HandleFunc("/inventory/{productId:[0-9]+}/audit", handlers.VerifyChain).Methods("GET")

	// 在庫操作
	api.HandleFunc("/inventory", handlers.CreateItem).Methods("POST")
	api.HandleFunc("/inventory/batch", handlers.BatchOperation).Methods("POST")
	api.HandleFunc("/inventory/{productId:[0-9]+}/update", handlers.UpdateStock).Methods("POST")
	api.HandleFunc("/inventory/{productId:[0-9]+}/adjust", handlers.AdjustStock).Methods("POST")
	api.HandleFunc("/inventory/{productId:[0-9]+}/thresholds", handlers.UpdateThresholds).Methods("PUT")

	// 予約管理
	api.HandleFunc("/inventory/{productId:[0-9]+}/reserve", handlers.ReserveStock).Methods("POST")
	api.HandleFunc("/inventory/{productId:[0-9]+}/release", handlers.ReleaseReservation).Methods("POST")
	api.HandleFunc("/inventory/{productId:[0-9]+}/confirm", handlers.ConfirmReservation).Methods("POST")

	// アラート
	api.HandleFunc("/alerts", handlers.ListAlerts).Methods("GET")
	api.HandleFunc("/alerts/refresh", handlers.RefreshAlerts).Methods("POST")
	api.HandleFunc("/alerts/{alertId:[0-9]+}/resolve", handlers.ResolveAlert).Methods("POST")

	// ロケーション管理
	api.HandleFunc("/locations", handlers.CreateLocation).Methods("POST")
	api.HandleFunc("/locations", handlers.ListLocations).Methods("GET")
	api.HandleFunc("/locations/{locationId:[0-9]+}", handlers.GetLocation).Methods("GET")
	api.HandleFunc("/locations/{locationId:[0-9]+}", handlers.UpdateLocation).Methods("PUT")
	api.HandleFunc("/locations/{locationId:[0-9]+}/deactivate", handlers.DeactivateLocation).Methods("POST")
	api.HandleFunc("/locations/{locationId:[0-9]+}/activate", handlers.ActivateLocation).Methods("POST")

	// 在庫移動依頼
	api.HandleFunc("/transfers", handlers.CreateTransfer).Methods("POST")
	api.HandleFunc("/transfers", handlers.ListTransfers).Methods("GET")
	api.HandleFunc("/transfers/{transferId:[0-9]+}", handlers.GetTransfer).Methods("GET")
	api.HandleFunc("/transfers/{transferId:[0-9]+}/approve", handlers.ApproveTransfer).Methods("POST")
	api.HandleFunc("/transfers/{transferId:[0-9]+}/reject", handlers.RejectTransfer).Methods("POST")
	api.HandleFunc("/transfers/{transferId:[0-9]+}/ship", handlers.ShipTransfer).Methods("POST")
	api.HandleFunc("/transfers/{transferId:[0-9]+}/complete", handlers.CompleteTransfer).Methods("POST")

	// ログとメトリクス
	router.Use(requestIDMiddleware)
	router.Use(loggingMiddleware(handlers.logger))
	if metrics != nil {
		router.Use(metrics.middleware)
	}

	return router
}
