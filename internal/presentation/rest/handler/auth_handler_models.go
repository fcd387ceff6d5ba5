package handler

// GenerateTokenRequest トークン生成リクエスト
// @Description トークン生成リクエスト
type GenerateTokenRequest struct {
	AccountID string `json:"account_id" example:"acct123" validate:"required"`
}

// GenerateTokenResponse トークン生成レスポンス
// @Description トークン生成レスポンス
type GenerateTokenResponse struct {
	Token     string `json:"token" example:"eyJhbGciOiJIUzI1NiIs..."`
	ExpiresIn int64  `json:"expires_in" example:"86400"`
	TokenType string `json:"token_type" example:"Bearer"`
}
