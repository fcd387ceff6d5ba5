package ledger

import (
	"context"
)

// TransactionManager トランザクション管理インターフェース
// fnに渡されるcontextを通じてリポジトリが同一トランザクションに参加する
type TransactionManager interface {
	// WithTransaction トランザクション内で関数を実行
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	// InTransaction contextが既にトランザクションに参加しているかどうかを返す
	InTransaction(ctx context.Context) bool
}
