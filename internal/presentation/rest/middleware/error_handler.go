package middleware

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net/http"

	"github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"

	"spark-ledger/internal/domain/balance"
	"spark-ledger/internal/domain/ledger"
	"spark-ledger/internal/domain/payment_event"
	"spark-ledger/internal/domain/plan"
	otelinfra "spark-ledger/internal/infrastructure/observability/otel"
)

// ErrorResponse エラーレスポンス
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorHandlerMiddleware エラーハンドリングミドルウェア
func ErrorHandlerMiddleware(logger *otelinfra.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			// エラーハンドリング
			return handleError(c, err, logger)
		}
	}
}

// handleError エラーを処理して適切なHTTPレスポンスを返す
func handleError(c echo.Context, err error, logger *otelinfra.Logger) error {
	ctx := c.Request().Context()

	// ドメインエラーの判定と処理
	if errors.Is(err, balance.ErrInsufficientBalance) {
		logger.Warn(ctx, "Insufficient balance", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusPaymentRequired, ErrorResponse{
			Error:   "insufficient_balance",
			Message: err.Error(),
		})
	}

	if errors.Is(err, balance.ErrInvalidCost) {
		logger.Warn(ctx, "Invalid cost", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_cost",
			Message: err.Error(),
		})
	}

	if errors.Is(err, balance.ErrInvalidAmount) {
		logger.Warn(ctx, "Invalid amount", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_amount",
			Message: err.Error(),
		})
	}

	if errors.Is(err, balance.ErrInvalidAccountID) {
		logger.Warn(ctx, "Invalid account id", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_account_id",
			Message: err.Error(),
		})
	}

	if errors.Is(err, payment_event.ErrInvalidEventType) {
		logger.Warn(ctx, "Invalid event type", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_event_type",
			Message: err.Error(),
		})
	}

	if errors.Is(err, plan.ErrInvalidTier) {
		logger.Warn(ctx, "Invalid tier", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_tier",
			Message: err.Error(),
		})
	}

	if errors.Is(err, balance.ErrBalanceNotFound) {
		logger.Warn(ctx, "Balance not found", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "balance_not_found",
			Message: err.Error(),
		})
	}

	if errors.Is(err, ledger.ErrEntryNotFound) {
		logger.Warn(ctx, "Ledger entry not found", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "entry_not_found",
			Message: err.Error(),
		})
	}

	if errors.Is(err, plan.ErrSubscriptionNotFound) {
		logger.Warn(ctx, "Subscription not found", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "subscription_not_found",
			Message: err.Error(),
		})
	}

	if errors.Is(err, balance.ErrConcurrentUpdate) {
		logger.Warn(ctx, "Concurrent balance update", map[string]interface{}{
			"error": err.Error(),
		})
		return c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "concurrent_update",
			Message: "Balance was modified concurrently, retry the request",
		})
	}

	// ストア層のエラーは一時的な障害として503を返す
	if isStoreError(err) {
		logger.Error(ctx, "Storage unavailable", err, map[string]interface{}{
			"path": c.Request().URL.Path,
		})
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "service_unavailable",
			Message: "Storage temporarily unavailable",
		})
	}

	// EchoのHTTPエラー
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		logger.Warn(ctx, "HTTP error", map[string]interface{}{
			"status_code": httpErr.Code,
			"message":     httpErr.Message,
		})
		message := ""
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(httpErr.Code)
		}
		return c.JSON(httpErr.Code, ErrorResponse{
			Error:   http.StatusText(httpErr.Code),
			Message: message,
		})
	}

	// 予期しないエラー
	logger.Error(ctx, "Internal server error", err, map[string]interface{}{
		"path": c.Request().URL.Path,
	})
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_server_error",
		Message: "An unexpected error occurred",
	})
}

// isStoreError データストア由来のエラーかどうかを判定
func isStoreError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return true
	}
	return errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, sql.ErrTxDone) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded)
}
