package balance

import "errors"

var (
	// ErrInsufficientBalance 残高不足エラー
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidCost コストが無効（0以下）エラー
	ErrInvalidCost = errors.New("invalid cost")
	// ErrBalanceNotFound 残高が見つからないエラー
	ErrBalanceNotFound = errors.New("balance not found")
	// ErrInvalidPool 無効なプールエラー
	ErrInvalidPool = errors.New("invalid pool")
	// ErrConcurrentUpdate 楽観的ロックの競合エラー（リトライ可能）
	ErrConcurrentUpdate = errors.New("concurrent balance update")
)
