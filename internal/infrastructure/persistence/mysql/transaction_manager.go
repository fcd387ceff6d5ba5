package mysql

import (
	"context"
	"database/sql"
)

// txContextKey contextにトランザクションを載せるためのキー
type txContextKey struct{}

// txFromContext contextからトランザクションを取り出す
func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txContextKey{}).(*sql.Tx)
	return tx
}

// TransactionManager トランザクション管理を提供
// fnに渡すcontextへトランザクションを載せ、配下のリポジトリ呼び出しを同一トランザクションで実行する
type TransactionManager struct {
	db *DB
}

// NewTransactionManager 新しいトランザクションマネージャーを作成
func NewTransactionManager(db *DB) *TransactionManager {
	return &TransactionManager{db: db}
}

// InTransaction contextが既にトランザクションに参加しているかどうかを返す
func (tm *TransactionManager) InTransaction(ctx context.Context) bool {
	return txFromContext(ctx) != nil
}

// WithTransaction トランザクション内で関数を実行
// contextに既にトランザクションが載っている場合は新規に開始せず、そのまま参加する
func (tm *TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	err = fn(context.WithValue(ctx, txContextKey{}, tx))
	return err
}
