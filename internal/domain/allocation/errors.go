package allocation

import "errors"

var (
	// ErrAllocationNotFound 割当が見つからないエラー
	ErrAllocationNotFound = errors.New("allocation not found")
	// ErrInvalidAmount 金額が無効エラー
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientRemaining 残量不足エラー
	ErrInsufficientRemaining = errors.New("insufficient remaining amount")
	// ErrAlreadyDepleted 既に消化済みエラー
	ErrAlreadyDepleted = errors.New("allocation already depleted")
)
