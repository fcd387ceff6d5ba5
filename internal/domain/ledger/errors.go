package ledger

import "errors"

var (
	// ErrEntryNotFound エントリが見つからないエラー
	ErrEntryNotFound = errors.New("ledger entry not found")
	// ErrInvalidEntry 無効なエントリエラー
	ErrInvalidEntry = errors.New("invalid ledger entry")
	// ErrDuplicateEntryID 重複エントリIDエラー
	ErrDuplicateEntryID = errors.New("duplicate ledger entry id")
)
