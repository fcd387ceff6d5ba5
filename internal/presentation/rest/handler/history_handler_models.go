package handler

// EntryModel 台帳エントリ
// @Description 残高を変動させた事象の追記専用レコード
type EntryModel struct {
	EntryID      string `json:"entry_id" example:"ent_8a1c"`
	AccountID    string `json:"account_id" example:"acct123"`
	Amount       string `json:"amount" example:"-10"`
	Pool         string `json:"pool" example:"subscription" enums:"trial,subscription,topup"`
	EntryType    string `json:"entry_type" example:"deduction" enums:"deduction,grant,purchase,refund,expiry_forfeiture,subscription_refresh,rollover_cap_forfeiture"`
	Action       string `json:"action" example:"lesson.generate"`
	ReferenceID  string `json:"reference_id,omitempty" example:"req_55f0"`
	BalanceAfter string `json:"balance_after" example:"290"`
	CreatedAt    string `json:"created_at" example:"2026-08-31T12:00:00Z"`
}

// EntriesResponse 台帳エントリ一覧レスポンス
// @Description 台帳エントリ一覧レスポンス
type EntriesResponse struct {
	Entries []EntryModel `json:"entries"`
	Total   int          `json:"total" example:"3"`
	Limit   int          `json:"limit" example:"50"`
	Offset  int          `json:"offset" example:"0"`
}
