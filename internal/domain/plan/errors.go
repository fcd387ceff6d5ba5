package plan

import "errors"

var (
	// ErrSubscriptionNotFound サブスクリプションが見つからないエラー
	ErrSubscriptionNotFound = errors.New("subscription not found")
)
