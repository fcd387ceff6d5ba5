package handler

import (
	"net/http"
	"strconv"

	deductionapp "spark-ledger/internal/application/deduction"

	"github.com/labstack/echo/v4"
)

// BalanceHandler 残高関連ハンドラー
type BalanceHandler struct {
	deductionService *deductionapp.DeductionApplicationService
}

// NewBalanceHandler 新しいBalanceHandlerを作成
func NewBalanceHandler(deductionService *deductionapp.DeductionApplicationService) *BalanceHandler {
	return &BalanceHandler{
		deductionService: deductionService,
	}
}

// GetBalance 残高取得ハンドラー
// @Summary 残高を取得
// @Description 指定されたアカウントのプール別残高と合計残高を取得します
// @Tags balance
// @Accept json
// @Produce json
// @Security Bearer
// @Param account_id path string true "アカウントID" example(acct123)
// @Success 200 {object} BalanceResponse "残高取得成功"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /accounts/{account_id}/balance [get]
func (h *BalanceHandler) GetBalance(c echo.Context) error {
	accountID := c.Param("account_id")
	if accountID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account_id is required")
	}

	resp, err := h.deductionService.GetBalance(c.Request().Context(), &deductionapp.GetBalanceRequest{
		AccountID: accountID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, BalanceResponse{
		AccountID: resp.AccountID,
		Pools: PoolBalances{
			Trial:        strconv.FormatInt(resp.TrialSparks, 10),
			Subscription: strconv.FormatInt(resp.SubscriptionSparks, 10),
			Topup:        strconv.FormatInt(resp.TopupSparks, 10),
		},
		TotalSparks: strconv.FormatInt(resp.TotalSparks, 10),
	})
}

// GetAffordability 消費可否チェックハンドラー
// @Summary 消費可否をチェック
// @Description 指定コストを支払えるかの事前確認を行います。確定は消費時点で再検証されます
// @Tags balance
// @Accept json
// @Produce json
// @Security Bearer
// @Param account_id path string true "アカウントID" example(acct123)
// @Param cost query int true "チェックするコスト" example(5)
// @Success 200 {object} AffordabilityResponse "チェック成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /accounts/{account_id}/affordability [get]
func (h *BalanceHandler) GetAffordability(c echo.Context) error {
	accountID := c.Param("account_id")
	if accountID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account_id is required")
	}

	cost, err := strconv.ParseInt(c.QueryParam("cost"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid cost format")
	}

	resp, err := h.deductionService.CanAfford(c.Request().Context(), &deductionapp.CanAffordRequest{
		AccountID: accountID,
		Cost:      cost,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, AffordabilityResponse{
		AccountID:   resp.AccountID,
		Cost:        strconv.FormatInt(resp.Cost, 10),
		Affordable:  resp.Affordable,
		TotalSparks: strconv.FormatInt(resp.TotalSparks, 10),
	})
}

// Deduct 消費ハンドラー
// @Summary スパークを消費
// @Description 指定されたアカウントからtrial → subscription → topupの優先順位でスパークを消費します
// @Tags balance
// @Accept json
// @Produce json
// @Security Bearer
// @Param account_id path string true "アカウントID" example(acct123)
// @Param request body DeductRequest true "消費リクエスト"
// @Success 200 {object} DeductResponse "消費成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Failure 402 {object} ErrorResponse "残高不足"
// @Router /accounts/{account_id}/deduct [post]
func (h *BalanceHandler) Deduct(c echo.Context) error {
	accountID := c.Param("account_id")
	if accountID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account_id is required")
	}

	var reqBody DeductRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	cost, err := strconv.ParseInt(reqBody.Cost, 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid cost format")
	}

	resp, err := h.deductionService.Deduct(c.Request().Context(), &deductionapp.DeductRequest{
		AccountID:   accountID,
		Cost:        cost,
		Action:      reqBody.Action,
		ReferenceID: reqBody.ReferenceID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, DeductResponse{
		EntryID:      resp.EntryID,
		BalanceAfter: strconv.FormatInt(resp.BalanceAfter, 10),
		Pool:         resp.Pool,
		Status:       resp.Status,
	})
}

// Refund 返金ハンドラー
// @Summary スパークを返金
// @Description 指定されたアカウントの追加購入プールへスパークを返金します
// @Tags balance
// @Accept json
// @Produce json
// @Security Bearer
// @Param account_id path string true "アカウントID" example(acct123)
// @Param request body RefundRequest true "返金リクエスト"
// @Success 200 {object} RefundResponse "返金成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /accounts/{account_id}/refund [post]
func (h *BalanceHandler) Refund(c echo.Context) error {
	accountID := c.Param("account_id")
	if accountID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account_id is required")
	}

	var reqBody RefundRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	amount, err := strconv.ParseInt(reqBody.Amount, 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid amount format")
	}

	resp, err := h.deductionService.Refund(c.Request().Context(), &deductionapp.RefundRequest{
		AccountID:   accountID,
		Amount:      amount,
		Reason:      reqBody.Reason,
		ReferenceID: reqBody.ReferenceID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, RefundResponse{
		EntryID:      resp.EntryID,
		BalanceAfter: strconv.FormatInt(resp.BalanceAfter, 10),
		Status:       resp.Status,
	})
}
