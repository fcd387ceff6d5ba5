package handler

import (
	"net/http"
	"strconv"
	"time"

	historyapp "spark-ledger/internal/application/history"

	"github.com/labstack/echo/v4"
)

// HistoryHandler 台帳エントリ関連ハンドラー
type HistoryHandler struct {
	historyService *historyapp.HistoryApplicationService
}

// NewHistoryHandler 新しいHistoryHandlerを作成
func NewHistoryHandler(historyService *historyapp.HistoryApplicationService) *HistoryHandler {
	return &HistoryHandler{
		historyService: historyService,
	}
}

// GetEntries 台帳エントリ一覧取得ハンドラー
// @Summary 台帳エントリ一覧を取得
// @Description 指定アカウントの台帳エントリを新しい順で取得します
// @Tags history
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param account_id path string true "アカウントID" example(acct123)
// @Param limit query int false "取得件数（デフォルト: 50、最大: 100）" example(50)
// @Param offset query int false "オフセット（デフォルト: 0）" example(0)
// @Param pool query string false "プールでフィルタ" Enums(trial, subscription, topup)
// @Param entry_type query string false "エントリ種別でフィルタ" Enums(deduction, grant, purchase, refund, expiry_forfeiture, subscription_refresh, rollover_cap_forfeiture)
// @Success 200 {object} EntriesResponse "取得成功"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /accounts/{account_id}/entries [get]
func (h *HistoryHandler) GetEntries(c echo.Context) error {
	accountID := c.Param("account_id")
	if accountID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account_id is required")
	}

	limit := 0
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit format")
		}
		limit = parsed
	}

	offset := 0
	if offsetStr := c.QueryParam("offset"); offsetStr != "" {
		parsed, err := strconv.Atoi(offsetStr)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid offset format")
		}
		offset = parsed
	}

	resp, err := h.historyService.GetEntries(c.Request().Context(), &historyapp.GetEntriesRequest{
		AccountID: accountID,
		Limit:     limit,
		Offset:    offset,
		Pool:      c.QueryParam("pool"),
		EntryType: c.QueryParam("entry_type"),
	})
	if err != nil {
		return err
	}

	entries := make([]EntryModel, 0, len(resp.Entries))
	for _, entry := range resp.Entries {
		m := EntryModel{
			EntryID:      entry.EntryID(),
			AccountID:    entry.AccountID(),
			Amount:       strconv.FormatInt(entry.Amount(), 10),
			Pool:         entry.Pool().String(),
			EntryType:    entry.EntryType().String(),
			Action:       entry.Action(),
			BalanceAfter: strconv.FormatInt(entry.BalanceAfter(), 10),
			CreatedAt:    entry.CreatedAt().UTC().Format(time.RFC3339),
		}
		if ref := entry.ReferenceID(); ref != nil {
			m.ReferenceID = *ref
		}
		entries = append(entries, m)
	}

	return c.JSON(http.StatusOK, EntriesResponse{
		Entries: entries,
		Total:   resp.Total,
		Limit:   resp.Limit,
		Offset:  resp.Offset,
	})
}
