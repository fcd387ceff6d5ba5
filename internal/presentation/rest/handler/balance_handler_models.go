package handler

// PoolBalances プール別残高
// @Description プール別残高
type PoolBalances struct {
	Trial        string `json:"trial" example:"50"`
	Subscription string `json:"subscription" example:"300"`
	Topup        string `json:"topup" example:"120"`
}

// BalanceResponse 残高レスポンス
// @Description 残高レスポンス
type BalanceResponse struct {
	AccountID   string       `json:"account_id" example:"acct123"`
	Pools       PoolBalances `json:"pools"`
	TotalSparks string       `json:"total_sparks" example:"470"`
}

// AffordabilityResponse 消費可否チェックレスポンス
// @Description 消費可否チェックレスポンス
type AffordabilityResponse struct {
	AccountID   string `json:"account_id" example:"acct123"`
	Cost        string `json:"cost" example:"5"`
	Affordable  bool   `json:"affordable" example:"true"`
	TotalSparks string `json:"total_sparks" example:"470"`
}

// DeductRequest 消費リクエスト
// @Description 消費リクエスト
type DeductRequest struct {
	Cost        string  `json:"cost" example:"5"`
	Action      string  `json:"action" example:"flashcards.generate"`
	ReferenceID *string `json:"reference_id,omitempty" example:"req_abc123"`
}

// DeductResponse 消費レスポンス
// @Description 消費レスポンス
type DeductResponse struct {
	EntryID      string `json:"entry_id" example:"ent_8a1c"`
	BalanceAfter string `json:"balance_after" example:"465"`
	Pool         string `json:"pool" example:"trial"`
	Status       string `json:"status" example:"completed"`
}

// RefundRequest 返金リクエスト
// @Description 返金リクエスト
type RefundRequest struct {
	Amount      string  `json:"amount" example:"5"`
	Reason      string  `json:"reason" example:"generation_failed"`
	ReferenceID *string `json:"reference_id,omitempty" example:"ent_8a1c"`
}

// RefundResponse 返金レスポンス
// @Description 返金レスポンス
type RefundResponse struct {
	EntryID      string `json:"entry_id" example:"ent_9b2d"`
	BalanceAfter string `json:"balance_after" example:"470"`
	Status       string `json:"status" example:"completed"`
}

// ErrorResponse エラーレスポンス
// @Description エラーレスポンス
type ErrorResponse struct {
	Error   string `json:"error" example:"insufficient_balance"`
	Message string `json:"message" example:"insufficient balance"`
	Code    string `json:"code,omitempty"`
}
