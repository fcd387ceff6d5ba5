package handler

import (
	"net/http"
	"strconv"
	"time"

	historyapp "spark-ledger/internal/application/history"
	refreshapp "spark-ledger/internal/application/refresh"
	sweepapp "spark-ledger/internal/application/sweep"

	"github.com/labstack/echo/v4"
)

// MaintenanceHandler メンテナンスAPI関連ハンドラー
// 外部スケジューラから呼び出される失効スイープ・月次リフレッシュと、
// 運用時の台帳照合を提供する。いずれも冪等
type MaintenanceHandler struct {
	sweepService   *sweepapp.SweepApplicationService
	refreshService *refreshapp.RefreshApplicationService
	historyService *historyapp.HistoryApplicationService
	sweepLimit     int
	refreshLimit   int
}

// NewMaintenanceHandler 新しいMaintenanceHandlerを作成
func NewMaintenanceHandler(
	sweepService *sweepapp.SweepApplicationService,
	refreshService *refreshapp.RefreshApplicationService,
	historyService *historyapp.HistoryApplicationService,
	sweepLimit int,
	refreshLimit int,
) *MaintenanceHandler {
	return &MaintenanceHandler{
		sweepService:   sweepService,
		refreshService: refreshService,
		historyService: historyService,
		sweepLimit:     sweepLimit,
		refreshLimit:   refreshLimit,
	}
}

// SweepTrial トライアル失効スイープハンドラー
// @Summary 失効したトライアル割当をスイープ
// @Description 期限切れで残量のあるトライアル割当を没収します。再実行は冪等です
// @Tags maintenance
// @Accept json
// @Produce json
// @Param X-Maintenance-Secret header string true "メンテナンスシークレット"
// @Success 200 {object} SweepResponse "スイープ成功"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /internal/maintenance/sweep-trial [post]
func (h *MaintenanceHandler) SweepTrial(c echo.Context) error {
	resp, err := h.sweepService.SweepTrialExpiry(c.Request().Context(), &sweepapp.SweepRequest{
		Now:   time.Now(),
		Limit: h.sweepLimit,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, SweepResponse{
		Processed:       resp.Processed,
		Skipped:         resp.Skipped,
		ForfeitedSparks: strconv.FormatInt(resp.ForfeitedSparks, 10),
	})
}

// SweepTopup 追加購入失効スイープハンドラー
// @Summary 失効した追加購入割当をスイープ
// @Description 期限切れで残量のある追加購入割当を没収し、失効分の金銭価値を報告します。再実行は冪等です
// @Tags maintenance
// @Accept json
// @Produce json
// @Param X-Maintenance-Secret header string true "メンテナンスシークレット"
// @Success 200 {object} SweepResponse "スイープ成功"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /internal/maintenance/sweep-topup [post]
func (h *MaintenanceHandler) SweepTopup(c echo.Context) error {
	resp, err := h.sweepService.SweepTopupExpiry(c.Request().Context(), &sweepapp.SweepRequest{
		Now:   time.Now(),
		Limit: h.sweepLimit,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, SweepResponse{
		Processed:       resp.Processed,
		Skipped:         resp.Skipped,
		ForfeitedSparks: strconv.FormatInt(resp.ForfeitedSparks, 10),
		BreakageCents:   strconv.FormatInt(resp.BreakageCents, 10),
	})
}

// RefreshSubscriptions 月次リフレッシュハンドラー
// @Summary サブスクリプションプールを月次リフレッシュ
// @Description 有効な全サブスクリプションへ繰越上限つきで月間付与量を補充します
// @Tags maintenance
// @Accept json
// @Produce json
// @Param X-Maintenance-Secret header string true "メンテナンスシークレット"
// @Success 200 {object} RefreshResponse "リフレッシュ成功"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /internal/maintenance/refresh-subscriptions [post]
func (h *MaintenanceHandler) RefreshSubscriptions(c echo.Context) error {
	resp, err := h.refreshService.RefreshSubscriptions(c.Request().Context(), &refreshapp.RefreshRequest{
		Now:       time.Now(),
		PageLimit: h.refreshLimit,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, RefreshResponse{
		Processed:       resp.Processed,
		Skipped:         resp.Skipped,
		GrantedSparks:   strconv.FormatInt(resp.GrantedSparks, 10),
		ForfeitedSparks: strconv.FormatInt(resp.ForfeitedSparks, 10),
	})
}

// GetReconciliation 台帳照合ハンドラー
// @Summary 台帳と残高を照合
// @Description 指定アカウントの全台帳エントリの合計と現在の合計残高を突き合わせます
// @Tags maintenance
// @Accept json
// @Produce json
// @Param X-Maintenance-Secret header string true "メンテナンスシークレット"
// @Param account_id path string true "アカウントID" example(acct123)
// @Success 200 {object} ReconciliationResponse "照合成功"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /internal/maintenance/accounts/{account_id}/reconciliation [get]
func (h *MaintenanceHandler) GetReconciliation(c echo.Context) error {
	accountID := c.Param("account_id")
	if accountID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account_id is required")
	}

	resp, err := h.historyService.Reconcile(c.Request().Context(), &historyapp.ReconcileRequest{
		AccountID: accountID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ReconciliationResponse{
		AccountID:    resp.AccountID,
		LedgerSum:    strconv.FormatInt(resp.LedgerSum, 10),
		CurrentTotal: strconv.FormatInt(resp.CurrentTotal, 10),
		Balanced:     resp.Balanced,
	})
}
