package rest

import (
	authapp "spark-ledger/internal/application/auth"
	deductionapp "spark-ledger/internal/application/deduction"
	grantapp "spark-ledger/internal/application/grant"
	historyapp "spark-ledger/internal/application/history"
	refreshapp "spark-ledger/internal/application/refresh"
	sweepapp "spark-ledger/internal/application/sweep"
	webhookapp "spark-ledger/internal/application/webhook"
	"spark-ledger/internal/domain/costtable"
	"spark-ledger/internal/infrastructure/config"
	otelinfra "spark-ledger/internal/infrastructure/observability/otel"
	"spark-ledger/internal/presentation/rest/handler"
	restmiddleware "spark-ledger/internal/presentation/rest/middleware"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Router REST APIルーター
type Router struct {
	echo               *echo.Echo
	balanceHandler     *handler.BalanceHandler
	grantHandler       *handler.GrantHandler
	historyHandler     *handler.HistoryHandler
	costHandler        *handler.CostHandler
	authHandler        *handler.AuthHandler
	maintenanceHandler *handler.MaintenanceHandler
	webhookHandler     *handler.WebhookHandler
}

// NewRouter 新しいRouterを作成
func NewRouter(
	cfg *config.Config,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
	deductionService *deductionapp.DeductionApplicationService,
	grantService *grantapp.GrantApplicationService,
	historyService *historyapp.HistoryApplicationService,
	sweepService *sweepapp.SweepApplicationService,
	refreshService *refreshapp.RefreshApplicationService,
	webhookService *webhookapp.WebhookApplicationService,
	authService *authapp.AuthApplicationService,
	costTable *costtable.CostTable,
) (*Router, error) {
	e := echo.New()

	// Echoのデフォルトエラーハンドラーを無効化（カスタムエラーハンドラーを使用）
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		// エラーハンドリングミドルウェアで処理される
	}

	// ミドルウェアの設定
	setupMiddleware(e, cfg, logger, metrics)

	// ハンドラーの作成
	balanceHandler := handler.NewBalanceHandler(deductionService)
	grantHandler := handler.NewGrantHandler(grantService)
	historyHandler := handler.NewHistoryHandler(historyService)
	costHandler := handler.NewCostHandler(costTable)
	authHandler := handler.NewAuthHandler(authService)
	maintenanceHandler := handler.NewMaintenanceHandler(
		sweepService,
		refreshService,
		historyService,
		cfg.Scheduler.SweepBatchLimit,
		cfg.Scheduler.RefreshPageLimit,
	)
	webhookHandler := handler.NewWebhookHandler(webhookService, &cfg.Webhook, logger)

	// ルーティングの設定
	setupRoutes(e, cfg, logger,
		balanceHandler, grantHandler, historyHandler, costHandler,
		authHandler, maintenanceHandler, webhookHandler)

	// Swagger UI / ReDoc統合
	SetupSwagger(e)

	return &Router{
		echo:               e,
		balanceHandler:     balanceHandler,
		grantHandler:       grantHandler,
		historyHandler:     historyHandler,
		costHandler:        costHandler,
		authHandler:        authHandler,
		maintenanceHandler: maintenanceHandler,
		webhookHandler:     webhookHandler,
	}, nil
}

// setupMiddleware ミドルウェアを設定
func setupMiddleware(e *echo.Echo, cfg *config.Config, logger *otelinfra.Logger, metrics *otelinfra.Metrics) {
	// リカバリーミドルウェア
	e.Use(middleware.Recover())

	// CORS設定
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"}, // 本番環境では適切に設定
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	// リクエストIDの設定
	e.Use(middleware.RequestID())

	// セキュリティヘッダー
	e.Use(restmiddleware.SecurityHeadersMiddleware())

	// トレーシングミドルウェア
	e.Use(restmiddleware.TracingMiddleware())

	// ログミドルウェア
	e.Use(restmiddleware.LoggingMiddleware(logger))

	// メトリクスミドルウェア
	if metrics != nil {
		e.Use(restmiddleware.MetricsMiddleware(metrics))
	}

	// エラーハンドリングミドルウェア
	e.Use(restmiddleware.ErrorHandlerMiddleware(logger))
}

// setupRoutes ルーティングを設定
func setupRoutes(
	e *echo.Echo,
	cfg *config.Config,
	logger *otelinfra.Logger,
	balanceHandler *handler.BalanceHandler,
	grantHandler *handler.GrantHandler,
	historyHandler *handler.HistoryHandler,
	costHandler *handler.CostHandler,
	authHandler *handler.AuthHandler,
	maintenanceHandler *handler.MaintenanceHandler,
	webhookHandler *handler.WebhookHandler,
) {
	// API v1グループ
	api := e.Group("/api/v1")

	// トークン生成エンドポイント（認証不要）
	api.POST("/auth/token", authHandler.GenerateToken)

	// 認証が必要なエンドポイント
	authGroup := api.Group("", restmiddleware.AuthMiddleware(&cfg.JWT, logger))

	// 残高・消費関連エンドポイント
	authGroup.GET("/accounts/:account_id/balance", balanceHandler.GetBalance)
	authGroup.GET("/accounts/:account_id/affordability", balanceHandler.GetAffordability)
	authGroup.POST("/accounts/:account_id/deduct", balanceHandler.Deduct)
	authGroup.POST("/accounts/:account_id/refund", balanceHandler.Refund)

	// 付与関連エンドポイント
	authGroup.POST("/accounts/:account_id/trial-grant", grantHandler.GrantTrial)

	// 台帳エントリ関連エンドポイント
	authGroup.GET("/accounts/:account_id/entries", historyHandler.GetEntries)

	// コスト表エンドポイント
	authGroup.GET("/costs", costHandler.GetCosts)

	// メンテナンスエンドポイント（共有シークレットで保護）
	maintenance := e.Group("/internal/maintenance",
		restmiddleware.MaintenanceSecretMiddleware(&cfg.Maintenance, logger))
	maintenance.POST("/sweep-trial", maintenanceHandler.SweepTrial)
	maintenance.POST("/sweep-topup", maintenanceHandler.SweepTopup)
	maintenance.POST("/refresh-subscriptions", maintenanceHandler.RefreshSubscriptions)
	maintenance.GET("/accounts/:account_id/reconciliation", maintenanceHandler.GetReconciliation)

	// 決済Webhookエンドポイント（署名検証で保護）
	e.POST("/webhooks/payment", webhookHandler.HandlePaymentWebhook)

	// ヘルスチェックエンドポイント（認証不要）
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
}

// Start サーバーを起動
func (r *Router) Start(address string) error {
	return r.echo.Start(address)
}

// Shutdown サーバーをシャットダウン
func (r *Router) Shutdown() error {
	return r.echo.Close()
}
