package handler

// SweepResponse 失効スイープレスポンス
// @Description 失効スイープレスポンス。breakage_centsは追加購入スイープのみ
type SweepResponse struct {
	Processed       int    `json:"processed" example:"12"`
	Skipped         int    `json:"skipped" example:"0"`
	ForfeitedSparks string `json:"forfeited_sparks" example:"340"`
	BreakageCents   string `json:"breakage_cents,omitempty" example:"150"`
}

// RefreshResponse 月次リフレッシュレスポンス
// @Description 月次リフレッシュレスポンス
type RefreshResponse struct {
	Processed       int    `json:"processed" example:"42"`
	Skipped         int    `json:"skipped" example:"0"`
	GrantedSparks   string `json:"granted_sparks" example:"12600"`
	ForfeitedSparks string `json:"forfeited_sparks" example:"75"`
}

// ReconciliationResponse 台帳照合レスポンス
// @Description 台帳照合レスポンス
type ReconciliationResponse struct {
	AccountID    string `json:"account_id" example:"acct123"`
	LedgerSum    string `json:"ledger_sum" example:"470"`
	CurrentTotal string `json:"current_total" example:"470"`
	Balanced     bool   `json:"balanced" example:"true"`
}
