package middleware

import (
	"crypto/subtle"
	"net/http"

	"spark-ledger/internal/infrastructure/config"
	otelinfra "spark-ledger/internal/infrastructure/observability/otel"

	"github.com/labstack/echo/v4"
)

// MaintenanceSecretMiddleware メンテナンスAPI認証ミドルウェア
// 外部スケジューラからのスイープ・リフレッシュ呼び出しを共有シークレットで保護する
func MaintenanceSecretMiddleware(cfg *config.MaintenanceConfig, logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			// メンテナンスAPIが無効化されている場合はエラー
			if !cfg.Enabled {
				logger.Warn(ctx, "Maintenance API is disabled", nil)
				return c.JSON(http.StatusForbidden, ErrorResponse{
					Error:   "forbidden",
					Message: "Maintenance API is disabled",
				})
			}

			// X-Maintenance-Secretヘッダーからシークレットを取得
			secret := c.Request().Header.Get("X-Maintenance-Secret")
			if secret == "" {
				logger.Warn(ctx, "Missing X-Maintenance-Secret header", nil)
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "unauthorized",
					Message: "Missing X-Maintenance-Secret header",
				})
			}

			// タイミング攻撃を避けるため定数時間比較で検証
			if subtle.ConstantTimeCompare([]byte(secret), []byte(cfg.Secret)) != 1 {
				logger.Warn(ctx, "Invalid maintenance secret", nil)
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "unauthorized",
					Message: "Invalid maintenance secret",
				})
			}

			// 次のハンドラーを実行
			return next(c)
		}
	}
}
