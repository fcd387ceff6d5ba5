package plan

import (
	"context"
)

// SubscriptionRepository サブスクリプションリポジトリインターフェース
type SubscriptionRepository interface {
	// FindByAccountID アカウントIDでサブスクリプションを取得
	FindByAccountID(ctx context.Context, accountID string) (*Subscription, error)

	// Upsert サブスクリプションを作成または更新
	Upsert(ctx context.Context, subscription *Subscription) error

	// FindActive 有効なサブスクリプション一覧を取得（ページネーション対応）
	FindActive(ctx context.Context, limit, offset int) ([]*Subscription, error)
}
