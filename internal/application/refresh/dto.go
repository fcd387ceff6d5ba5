package refresh

import "time"

// RefreshRequest 月次リフレッシュリクエスト
type RefreshRequest struct {
	Now       time.Time
	PageLimit int
}

// RefreshResponse 月次リフレッシュレスポンス
type RefreshResponse struct {
	Processed       int
	Skipped         int
	GrantedSparks   int64
	ForfeitedSparks int64
}
