package deduction

// GetBalanceRequest 残高取得リクエスト
type GetBalanceRequest struct {
	AccountID string
}

// GetBalanceResponse 残高取得レスポンス
type GetBalanceResponse struct {
	AccountID          string
	TrialSparks        int64
	SubscriptionSparks int64
	TopupSparks        int64
	TotalSparks        int64
}

// CanAffordRequest 消費可否チェックリクエスト
type CanAffordRequest struct {
	AccountID string
	Cost      int64
}

// CanAffordResponse 消費可否チェックレスポンス
// 事前確認の結果であり、Deduct時点の再検証が常に優先される
type CanAffordResponse struct {
	AccountID   string
	Cost        int64
	Affordable  bool
	TotalSparks int64
}

// DeductRequest 消費リクエスト
type DeductRequest struct {
	AccountID   string
	Cost        int64
	Action      string
	ReferenceID *string
}

// DeductResponse 消費レスポンス
type DeductResponse struct {
	EntryID      string
	BalanceAfter int64
	Pool         string
	Status       string
}

// RefundRequest 返金リクエスト
type RefundRequest struct {
	AccountID   string
	Amount      int64
	Reason      string
	ReferenceID *string
}

// RefundResponse 返金レスポンス
type RefundResponse struct {
	EntryID      string
	BalanceAfter int64
	Status       string
}
