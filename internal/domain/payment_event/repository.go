package payment_event

import (
	"context"
)

// ProcessedEventRepository 処理済み決済イベントリポジトリインターフェース
type ProcessedEventRepository interface {
	// Create 処理済みイベントを記録（同一イベントIDが既に存在する場合はErrDuplicateEvent）
	Create(ctx context.Context, event *ProcessedEvent) error

	// FindByEventID イベントIDで処理済みイベントを取得
	FindByEventID(ctx context.Context, eventID string) (*ProcessedEvent, error)
}
