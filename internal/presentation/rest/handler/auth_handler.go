package handler

import (
	"net/http"

	authapp "spark-ledger/internal/application/auth"

	"github.com/labstack/echo/v4"
)

// AuthHandler 認証関連ハンドラー
type AuthHandler struct {
	authService *authapp.AuthApplicationService
}

// NewAuthHandler 新しいAuthHandlerを作成
func NewAuthHandler(authService *authapp.AuthApplicationService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// GenerateToken トークン生成ハンドラー
// @Summary JWTトークンを生成
// @Description アカウントIDからJWTトークンを生成します（開発・テスト用）
// @Tags auth
// @Accept json
// @Produce json
// @Param request body GenerateTokenRequest true "トークン生成リクエスト"
// @Success 200 {object} GenerateTokenResponse "生成成功"
// @Failure 400 {object} ErrorResponse "不正なリクエスト"
// @Router /auth/token [post]
func (h *AuthHandler) GenerateToken(c echo.Context) error {
	var req GenerateTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.AccountID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "account_id is required")
	}

	resp, err := h.authService.GenerateToken(c.Request().Context(), &authapp.GenerateTokenRequest{
		AccountID: req.AccountID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, GenerateTokenResponse{
		Token:     resp.Token,
		ExpiresIn: resp.ExpiresIn,
		TokenType: resp.TokenType,
	})
}
