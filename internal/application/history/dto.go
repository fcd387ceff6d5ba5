package history

import "spark-ledger/internal/domain/ledger"

// GetEntriesRequest 台帳エントリ一覧取得リクエスト
type GetEntriesRequest struct {
	AccountID string
	Limit     int
	Offset    int
	Pool      string // optional: "trial", "subscription", "topup"
	EntryType string // optional: "deduction", "grant", etc.
}

// GetEntriesResponse 台帳エントリ一覧取得レスポンス
type GetEntriesResponse struct {
	Entries []*ledger.Entry
	Total   int
	Limit   int
	Offset  int
}

// ReconcileRequest 照合リクエスト
type ReconcileRequest struct {
	AccountID string
}

// ReconcileResponse 照合レスポンス
// 全エントリの金額合計と現在の合計残高が一致していればBalancedがtrue
type ReconcileResponse struct {
	AccountID    string
	LedgerSum    int64
	CurrentTotal int64
	Balanced     bool
}
