package payment_event

import "errors"

var (
	// ErrDuplicateEvent 同一イベントIDの再配信エラー
	// 再配信は正常系として扱い、副作用を重ねずに受領応答を返す
	ErrDuplicateEvent = errors.New("duplicate payment event")
	// ErrEventNotFound 処理済みイベントが見つからないエラー
	ErrEventNotFound = errors.New("payment event not found")
)
