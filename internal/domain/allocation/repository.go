package allocation

import (
	"context"
	"time"
)

// AllocationRepository 割当リポジトリインターフェース
type AllocationRepository interface {
	// Create 新しい割当を作成
	Create(ctx context.Context, allocation *Allocation) error

	// Save 割当を保存（残量の更新）
	Save(ctx context.Context, allocation *Allocation) error

	// FindByAllocationID 割当IDで割当を取得
	FindByAllocationID(ctx context.Context, allocationID string) (*Allocation, error)

	// FindConsumable アカウントと種別で残量のある未失効の割当を取得
	// 有効期限の近い順に並べる（無期限は最後）
	FindConsumable(ctx context.Context, accountID string, kind Kind, now time.Time) ([]*Allocation, error)

	// FindExpired 指定時刻より前に失効し、残量が残っている割当を取得
	FindExpired(ctx context.Context, kind Kind, now time.Time, limit int) ([]*Allocation, error)
}
