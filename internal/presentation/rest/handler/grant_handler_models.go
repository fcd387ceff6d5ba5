package handler

// GrantTrialRequest トライアル付与リクエスト
// @Description トライアル付与リクエスト。未指定の項目には設定の既定値が使われる
type GrantTrialRequest struct {
	Sparks    string `json:"sparks,omitempty" example:"50"`
	ExpiresAt string `json:"expires_at,omitempty" example:"2026-09-14T00:00:00Z"`
}

// GrantTrialResponse トライアル付与レスポンス
// @Description トライアル付与レスポンス
type GrantTrialResponse struct {
	AllocationID string `json:"allocation_id" example:"alloc_7f3e"`
	EntryID      string `json:"entry_id" example:"ent_8a1c"`
	Sparks       string `json:"sparks" example:"50"`
	ExpiresAt    string `json:"expires_at" example:"2026-09-14T00:00:00Z"`
	BalanceAfter string `json:"balance_after" example:"50"`
	Status       string `json:"status" example:"completed"`
}
