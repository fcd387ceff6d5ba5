package ledger

import (
	"context"
)

// EntryFilter エントリ一覧取得の絞り込み条件
// 空文字列のフィールドは条件なしとして扱う
type EntryFilter struct {
	Pool      string
	EntryType string
}

// EntryRepository 台帳エントリリポジトリインターフェース
type EntryRepository interface {
	// Save エントリを保存（追記のみ）
	Save(ctx context.Context, entry *Entry) error

	// FindByEntryID エントリIDでエントリを取得
	FindByEntryID(ctx context.Context, entryID string) (*Entry, error)

	// FindByAccountID アカウントIDでエントリ一覧を取得（新しい順、ページネーション対応）
	// 絞り込みはSQL側で適用されるため、ページサイズはフィルタ後の件数に対して保証される
	FindByAccountID(ctx context.Context, accountID string, filter EntryFilter, limit, offset int) ([]*Entry, error)

	// SumByAccountID アカウントの全エントリの金額合計を取得（照合用）
	SumByAccountID(ctx context.Context, accountID string) (int64, error)
}
