package sweep

import "time"

// SweepRequest 失効スイープリクエスト
type SweepRequest struct {
	Now   time.Time
	Limit int
}

// SweepResponse 失効スイープレスポンス
// BreakageCentsは追加購入スイープのみ報告される（観測用の値であり台帳には載らない）
type SweepResponse struct {
	Processed       int
	Skipped         int
	ForfeitedSparks int64
	BreakageCents   int64
}
