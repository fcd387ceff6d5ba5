package grant

import "time"

// GrantTrialRequest トライアル付与リクエスト
// SparksとExpiresAtが未指定の場合は設定値の既定が適用される
type GrantTrialRequest struct {
	AccountID string
	Sparks    int64
	ExpiresAt *time.Time
}

// GrantTrialResponse トライアル付与レスポンス
type GrantTrialResponse struct {
	AllocationID string
	EntryID      string
	Sparks       int64
	ExpiresAt    time.Time
	BalanceAfter int64
	Status       string
}

// GrantTopupRequest 追加購入付与リクエスト
type GrantTopupRequest struct {
	AccountID   string
	Sparks      int64
	PriceCents  int64
	ExpiresAt   *time.Time
	ReferenceID *string
}

// GrantTopupResponse 追加購入付与レスポンス
type GrantTopupResponse struct {
	AllocationID string
	EntryID      string
	Sparks       int64
	BalanceAfter int64
	Status       string
}
