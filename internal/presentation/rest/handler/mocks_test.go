package handler

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"spark-ledger/internal/domain/allocation"
	"spark-ledger/internal/domain/balance"
	"spark-ledger/internal/domain/ledger"
	"spark-ledger/internal/domain/payment_event"
	"spark-ledger/internal/domain/plan"
)

// MockBalanceRepository モック残高リポジトリ
type MockBalanceRepository struct {
	mock.Mock
}

func (m *MockBalanceRepository) FindByAccountID(ctx context.Context, accountID string) (*balance.Balance, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*balance.Balance), args.Error(1)
}

func (m *MockBalanceRepository) Save(ctx context.Context, b *balance.Balance) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockBalanceRepository) Create(ctx context.Context, b *balance.Balance) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

// MockAllocationRepository モック割当リポジトリ
type MockAllocationRepository struct {
	mock.Mock
}

func (m *MockAllocationRepository) Create(ctx context.Context, a *allocation.Allocation) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAllocationRepository) Save(ctx context.Context, a *allocation.Allocation) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAllocationRepository) FindByAllocationID(ctx context.Context, allocationID string) (*allocation.Allocation, error) {
	args := m.Called(ctx, allocationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*allocation.Allocation), args.Error(1)
}

func (m *MockAllocationRepository) FindConsumable(ctx context.Context, accountID string, kind allocation.Kind, now time.Time) ([]*allocation.Allocation, error) {
	args := m.Called(ctx, accountID, kind, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*allocation.Allocation), args.Error(1)
}

func (m *MockAllocationRepository) FindExpired(ctx context.Context, kind allocation.Kind, now time.Time, limit int) ([]*allocation.Allocation, error) {
	args := m.Called(ctx, kind, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*allocation.Allocation), args.Error(1)
}

// MockEntryRepository モック台帳エントリリポジトリ
type MockEntryRepository struct {
	mock.Mock
}

func (m *MockEntryRepository) Save(ctx context.Context, e *ledger.Entry) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *MockEntryRepository) FindByEntryID(ctx context.Context, entryID string) (*ledger.Entry, error) {
	args := m.Called(ctx, entryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockEntryRepository) FindByAccountID(ctx context.Context, accountID string, filter ledger.EntryFilter, limit, offset int) ([]*ledger.Entry, error) {
	args := m.Called(ctx, accountID, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockEntryRepository) SumByAccountID(ctx context.Context, accountID string) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

// MockSubscriptionRepository モックサブスクリプションリポジトリ
type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) FindByAccountID(ctx context.Context, accountID string) (*plan.Subscription, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*plan.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) Upsert(ctx context.Context, sub *plan.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) FindActive(ctx context.Context, limit, offset int) ([]*plan.Subscription, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*plan.Subscription), args.Error(1)
}

// MockProcessedEventRepository モック処理済みイベントリポジトリ
type MockProcessedEventRepository struct {
	mock.Mock
}

func (m *MockProcessedEventRepository) Create(ctx context.Context, event *payment_event.ProcessedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockProcessedEventRepository) FindByEventID(ctx context.Context, eventID string) (*payment_event.ProcessedEvent, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment_event.ProcessedEvent), args.Error(1)
}

// MockTransactionManager モックトランザクションマネージャー
type MockTransactionManager struct {
	mock.Mock
	inTx bool
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	// 実際のトランザクションは使わず、関数を直接実行
	if fn != nil {
		return fn(ctx)
	}
	return args.Error(0)
}

func (m *MockTransactionManager) InTransaction(ctx context.Context) bool {
	return m.inTx
}
