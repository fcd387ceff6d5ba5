package balance

import (
	"context"
)

// BalanceRepository 残高リポジトリインターフェース
type BalanceRepository interface {
	// FindByAccountID アカウントIDで残高を取得
	FindByAccountID(ctx context.Context, accountID string) (*Balance, error)

	// Save 残高を保存（更新、楽観的ロック対応）
	Save(ctx context.Context, balance *Balance) error

	// Create 新しい残高行を作成
	Create(ctx context.Context, balance *Balance) error
}
