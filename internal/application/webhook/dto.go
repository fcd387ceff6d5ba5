package webhook

import "time"

// HandleEventRequest 決済イベント処理リクエスト
// 署名検証はREST境界で済んでいる前提。Sparksが0でActionが指定されている場合は
// コスト表からSparksを解決する（機能単位の購入）
type HandleEventRequest struct {
	EventID    string
	EventType  string
	AccountID  string
	Sparks     int64
	PriceCents int64
	Action     string
	Tier       string
	ExpiresAt  *time.Time
}

// HandleEventResponse 決済イベント処理レスポンス
// Duplicateがtrueの場合、副作用は発生していない（再配信の受領確認のみ）
type HandleEventResponse struct {
	EventID   string
	Status    string
	Duplicate bool
}
