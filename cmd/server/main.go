package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	authapp "spark-ledger/internal/application/auth"
	deductionapp "spark-ledger/internal/application/deduction"
	grantapp "spark-ledger/internal/application/grant"
	historyapp "spark-ledger/internal/application/history"
	refreshapp "spark-ledger/internal/application/refresh"
	sweepapp "spark-ledger/internal/application/sweep"
	webhookapp "spark-ledger/internal/application/webhook"
	"spark-ledger/internal/domain/costtable"
	"spark-ledger/internal/domain/service"
	"spark-ledger/internal/infrastructure/config"
	otelinfra "spark-ledger/internal/infrastructure/observability/otel"
	"spark-ledger/internal/infrastructure/persistence/mysql"
	"spark-ledger/internal/infrastructure/scheduler"
	"spark-ledger/internal/presentation/rest"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// OpenTelemetryの初期化
	tracerShutdown, err := otelinfra.InitTracer(&cfg.OpenTelemetry)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerShutdown(ctx); err != nil {
			log.Printf("Failed to shutdown tracer: %v", err)
		}
	}()

	meterShutdown, err := otelinfra.InitMeter(&cfg.OpenTelemetry)
	if err != nil {
		log.Fatalf("Failed to initialize meter: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := meterShutdown(ctx); err != nil {
			log.Printf("Failed to shutdown meter: %v", err)
		}
	}()

	// ロガーとメトリクスの初期化
	tracer := otelinfra.Tracer("spark-ledger")
	logger := otelinfra.NewLogger(tracer)
	metrics, err := otelinfra.NewMetrics("spark-ledger")
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	// データベース接続の初期化
	db, err := mysql.NewDB(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// リポジトリの初期化
	balanceRepo := mysql.NewBalanceRepository(db)
	allocationRepo := mysql.NewAllocationRepository(db)
	entryRepo := mysql.NewLedgerEntryRepository(db)
	subscriptionRepo := mysql.NewSubscriptionRepository(db)
	processedEventRepo := mysql.NewPaymentEventRepository(db)

	// トランザクションマネージャーの初期化
	txManager := mysql.NewTransactionManager(db)

	// ドメインサービスとコスト表の初期化
	balanceService := service.NewBalanceService(balanceRepo)
	costTable := costtable.Default()

	// アプリケーションサービスの初期化
	deductionAppService := deductionapp.NewDeductionApplicationService(
		balanceRepo,
		allocationRepo,
		entryRepo,
		txManager,
		balanceService,
		logger,
		metrics,
	)

	grantAppService := grantapp.NewGrantApplicationService(
		balanceRepo,
		allocationRepo,
		entryRepo,
		txManager,
		&cfg.Trial,
		logger,
		metrics,
	)

	historyAppService := historyapp.NewHistoryApplicationService(
		entryRepo,
		balanceService,
		logger,
		metrics,
	)

	sweepAppService := sweepapp.NewSweepApplicationService(
		balanceRepo,
		allocationRepo,
		entryRepo,
		txManager,
		logger,
		metrics,
	)

	refreshAppService := refreshapp.NewRefreshApplicationService(
		balanceRepo,
		subscriptionRepo,
		entryRepo,
		txManager,
		logger,
		metrics,
	)

	webhookAppService := webhookapp.NewWebhookApplicationService(
		processedEventRepo,
		subscriptionRepo,
		grantAppService,
		costTable,
		txManager,
		logger,
		metrics,
	)

	authAppService := authapp.NewAuthApplicationService(&cfg.JWT, logger)

	// REST APIルーターの初期化
	router, err := rest.NewRouter(
		cfg,
		logger,
		metrics,
		deductionAppService,
		grantAppService,
		historyAppService,
		sweepAppService,
		refreshAppService,
		webhookAppService,
		authAppService,
		costTable,
	)
	if err != nil {
		log.Fatalf("Failed to create router: %v", err)
	}

	// プロセス内スケジューラの初期化（既定では無効）
	var jobScheduler *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		jobScheduler = scheduler.NewScheduler(
			&cfg.Scheduler,
			sweepAppService,
			refreshAppService,
			logger,
		)
		if err := jobScheduler.Start(); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
	}

	// サーバーアドレスの設定
	address := fmt.Sprintf(":%d", cfg.Server.Port)

	// グレースフルシャットダウンの設定
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	// REST APIサーバーを別ゴルーチンで起動
	go func() {
		log.Printf("REST API server starting on %s", address)
		if err := router.Start(address); err != nil {
			log.Printf("REST API server error: %v", err)
		}
	}()

	// シグナルを待機
	<-quit
	log.Println("Shutting down server...")

	// グレースフルシャットダウン
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// スケジューラのシャットダウン（実行中のジョブの完了を待つ）
	if jobScheduler != nil {
		select {
		case <-jobScheduler.Stop().Done():
		case <-shutdownCtx.Done():
			log.Println("Scheduler shutdown timed out")
		}
	}

	// REST APIサーバーのシャットダウン
	if err := router.Shutdown(); err != nil {
		log.Printf("Error shutting down REST API server: %v", err)
	}

	log.Println("Server stopped")
}
