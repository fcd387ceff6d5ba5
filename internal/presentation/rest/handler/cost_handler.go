package handler

import (
	"net/http"
	"strconv"

	"spark-ledger/internal/domain/costtable"

	"github.com/labstack/echo/v4"
)

// CostHandler コスト表関連ハンドラー
type CostHandler struct {
	costTable *costtable.CostTable
}

// NewCostHandler 新しいCostHandlerを作成
func NewCostHandler(costTable *costtable.CostTable) *CostHandler {
	return &CostHandler{
		costTable: costTable,
	}
}

// GetCosts コスト表取得ハンドラー
// @Summary 機能別コスト表を取得
// @Description 各機能の消費Spark数を返します。クライアントは消費前にこの表を参照できます
// @Tags cost
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} CostsResponse "取得成功"
// @Failure 401 {object} ErrorResponse "認証エラー"
// @Router /costs [get]
func (h *CostHandler) GetCosts(c echo.Context) error {
	actions := h.costTable.Actions()
	costs := make([]CostModel, 0, len(actions))
	for _, action := range actions {
		cost, ok := h.costTable.Cost(action)
		if !ok {
			continue
		}
		costs = append(costs, CostModel{
			Action: action,
			Sparks: strconv.FormatInt(cost, 10),
		})
	}

	return c.JSON(http.StatusOK, CostsResponse{
		Costs: costs,
	})
}
