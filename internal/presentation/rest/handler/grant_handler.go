package handler

import (
	"net/http"
	"strconv"
	"time"

	grantapp "spark-ledger/internal/application/grant"

	"github.com/labstack/echo/v4"
)

// GrantHandler 付与関連ハンドラー
type GrantHandler struct {
	grantService *grantapp.GrantApplicationService
}

// NewGrantHandler 新しいGrantHandlerを作成
func NewGrantHandler(grantService *grantapp.GrantApplicationService) *GrantHandler {
	return &GrantHandler{
		grantService: grantService,
	}
}

// GrantTrial トライアル付与ハンドラー
// @Summary トライアルスパークを付与
// @Description 指定されたアカウントへ期限付きのトライアルスパークを付与します。付与量と期限の未指定時は設定の既定値が使われます
// @Tags grant
// @Accept json
// @Produce json
// @Security Bearer
// @Param account_id path string true "アカウントID" example(acct123)
// @Param request body GrantTrialRequest true "トライアル付与リクエスト"
// @Success 200 {object} GrantTrialResponse "付与成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /accounts/{account_id}/trial-grant [post]
func (h *GrantHandler) GrantTrial(c echo.Context) error {
	accountID := c.Param("account_id")
	if accountID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account_id is required")
	}

	var reqBody GrantTrialRequest
	if err := c.Bind(&reqBody); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	var sparks int64
	if reqBody.Sparks != "" {
		parsed, err := strconv.ParseInt(reqBody.Sparks, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid sparks format")
		}
		sparks = parsed
	}

	var expiresAt *time.Time
	if reqBody.ExpiresAt != "" {
		parsed, err := time.Parse(time.RFC3339, reqBody.ExpiresAt)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid expires_at format")
		}
		expiresAt = &parsed
	}

	resp, err := h.grantService.GrantTrial(c.Request().Context(), &grantapp.GrantTrialRequest{
		AccountID: accountID,
		Sparks:    sparks,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, GrantTrialResponse{
		AllocationID: resp.AllocationID,
		EntryID:      resp.EntryID,
		Sparks:       strconv.FormatInt(resp.Sparks, 10),
		ExpiresAt:    resp.ExpiresAt.Format(time.RFC3339),
		BalanceAfter: strconv.FormatInt(resp.BalanceAfter, 10),
		Status:       resp.Status,
	})
}
