package history

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"spark-ledger/internal/domain/balance"
	"spark-ledger/internal/domain/ledger"
	"spark-ledger/internal/domain/service"
	otelinfra "spark-ledger/internal/infrastructure/observability/otel"
)

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

func newTestService(mer *MockEntryRepository, mbr *MockBalanceRepository, t *testing.T) *HistoryApplicationService {
	tracer := otel.Tracer("test")
	logger := otelinfra.NewLogger(tracer)
	metrics, err := otelinfra.NewMetrics("test")
	require.NoError(t, err)
	balanceService := service.NewBalanceService(mbr)

	return NewHistoryApplicationService(mer, balanceService, logger, metrics)
}

func strPtr(s string) *string {
	return &s
}

func deductionEntry() *ledger.Entry {
	return ledger.MustNewEntry("ent_3", "acct123", -10, balance.PoolSubscription,
		ledger.EntryTypeDeduction, "lesson.generate", strPtr("req_1"), 340)
}

func trialEntry() *ledger.Entry {
	return ledger.MustNewEntry("ent_1", "acct123", 50, balance.PoolTrial,
		ledger.EntryTypeGrant, "trial_grant", nil, 50)
}

func testEntries() []*ledger.Entry {
	return []*ledger.Entry{
		deductionEntry(),
		ledger.MustNewEntry("ent_2", "acct123", 300, balance.PoolSubscription,
			ledger.EntryTypeSubscriptionRefresh, "subscription_refresh", nil, 350),
		trialEntry(),
	}
}

func TestHistoryApplicationService_GetEntries(t *testing.T) {
	tests := []struct {
		name       string
		req        *GetEntriesRequest
		setupMocks func(*MockEntryRepository)
		wantError  bool
		checkFunc  func(*testing.T, *GetEntriesResponse)
	}{
		{
			name: "正常系: エントリ一覧を取得",
			req: &GetEntriesRequest{
				AccountID: "acct123",
				Limit:     50,
				Offset:    0,
			},
			setupMocks: func(mer *MockEntryRepository) {
				mer.On("FindByAccountID", mock.Anything, "acct123", ledger.EntryFilter{}, 50, 0).Return(testEntries(), nil)
			},
			checkFunc: func(t *testing.T, resp *GetEntriesResponse) {
				assert.Len(t, resp.Entries, 3)
				assert.Equal(t, 3, resp.Total)
				assert.Equal(t, 50, resp.Limit)
				assert.Equal(t, 0, resp.Offset)
			},
		},
		{
			name: "正常系: limit未指定はデフォルト50を適用",
			req: &GetEntriesRequest{
				AccountID: "acct123",
			},
			setupMocks: func(mer *MockEntryRepository) {
				mer.On("FindByAccountID", mock.Anything, "acct123", ledger.EntryFilter{}, 50, 0).Return([]*ledger.Entry{}, nil)
			},
			checkFunc: func(t *testing.T, resp *GetEntriesResponse) {
				assert.Equal(t, 50, resp.Limit)
			},
		},
		{
			name: "正常系: limitの上限は100",
			req: &GetEntriesRequest{
				AccountID: "acct123",
				Limit:     500,
			},
			setupMocks: func(mer *MockEntryRepository) {
				mer.On("FindByAccountID", mock.Anything, "acct123", ledger.EntryFilter{}, 100, 0).Return([]*ledger.Entry{}, nil)
			},
			checkFunc: func(t *testing.T, resp *GetEntriesResponse) {
				assert.Equal(t, 100, resp.Limit)
			},
		},
		{
			name: "正常系: プールのフィルタはリポジトリへ渡される",
			req: &GetEntriesRequest{
				AccountID: "acct123",
				Limit:     50,
				Pool:      "trial",
			},
			setupMocks: func(mer *MockEntryRepository) {
				mer.On("FindByAccountID", mock.Anything, "acct123", ledger.EntryFilter{Pool: "trial"}, 50, 0).
					Return([]*ledger.Entry{trialEntry()}, nil)
			},
			checkFunc: func(t *testing.T, resp *GetEntriesResponse) {
				require.Len(t, resp.Entries, 1)
				assert.Equal(t, "ent_1", resp.Entries[0].EntryID())
			},
		},
		{
			name: "正常系: エントリ種別のフィルタはリポジトリへ渡される",
			req: &GetEntriesRequest{
				AccountID: "acct123",
				Limit:     50,
				EntryType: "deduction",
			},
			setupMocks: func(mer *MockEntryRepository) {
				mer.On("FindByAccountID", mock.Anything, "acct123", ledger.EntryFilter{EntryType: "deduction"}, 50, 0).
					Return([]*ledger.Entry{deductionEntry()}, nil)
			},
			checkFunc: func(t *testing.T, resp *GetEntriesResponse) {
				require.Len(t, resp.Entries, 1)
				assert.Equal(t, "ent_3", resp.Entries[0].EntryID())
			},
		},
		{
			name: "正常系: フィルタ指定時もページサイズ分の行がそのまま返る",
			req: &GetEntriesRequest{
				AccountID: "acct123",
				Limit:     2,
				Pool:      "subscription",
			},
			setupMocks: func(mer *MockEntryRepository) {
				page := []*ledger.Entry{
					ledger.MustNewEntry("ent_5", "acct123", -10, balance.PoolSubscription,
						ledger.EntryTypeDeduction, "quiz.generate", strPtr("req_2"), 330),
					deductionEntry(),
				}
				mer.On("FindByAccountID", mock.Anything, "acct123", ledger.EntryFilter{Pool: "subscription"}, 2, 0).
					Return(page, nil)
			},
			checkFunc: func(t *testing.T, resp *GetEntriesResponse) {
				assert.Len(t, resp.Entries, 2)
				assert.Equal(t, 2, resp.Total)
			},
		},
		{
			name: "正常系: 不正なフィルタ値は条件なしとして扱う",
			req: &GetEntriesRequest{
				AccountID: "acct123",
				Limit:     50,
				Pool:      "bogus",
				EntryType: "bogus",
			},
			setupMocks: func(mer *MockEntryRepository) {
				mer.On("FindByAccountID", mock.Anything, "acct123", ledger.EntryFilter{}, 50, 0).Return(testEntries(), nil)
			},
			checkFunc: func(t *testing.T, resp *GetEntriesResponse) {
				assert.Len(t, resp.Entries, 3)
			},
		},
		{
			name: "異常系: エントリ取得エラー",
			req: &GetEntriesRequest{
				AccountID: "acct123",
				Limit:     50,
			},
			setupMocks: func(mer *MockEntryRepository) {
				mer.On("FindByAccountID", mock.Anything, "acct123", ledger.EntryFilter{}, 50, 0).Return(nil, errors.New("database error"))
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mer := new(MockEntryRepository)
			mbr := new(MockBalanceRepository)

			tt.setupMocks(mer)

			svc := newTestService(mer, mbr, t)

			ctx := context.Background()
			got, err := svc.GetEntries(ctx, tt.req)

			if tt.wantError {
				assert.Error(t, err)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				if tt.checkFunc != nil {
					tt.checkFunc(t, got)
				}
			}

			mer.AssertExpectations(t)
		})
	}
}

func TestHistoryApplicationService_Reconcile(t *testing.T) {
	tests := []struct {
		name       string
		req        *ReconcileRequest
		setupMocks func(*MockEntryRepository, *MockBalanceRepository)
		want       *ReconcileResponse
		wantError  bool
	}{
		{
			name: "正常系: 台帳と残高が一致",
			req:  &ReconcileRequest{AccountID: "acct123"},
			setupMocks: func(mer *MockEntryRepository, mbr *MockBalanceRepository) {
				b := balance.MustNewBalance("acct123", 50, 300, 120, 1)
				mer.On("SumByAccountID", mock.Anything, "acct123").Return(int64(470), nil)
				mbr.On("FindByAccountID", mock.Anything, "acct123").Return(b, nil)
			},
			want: &ReconcileResponse{
				AccountID:    "acct123",
				LedgerSum:    470,
				CurrentTotal: 470,
				Balanced:     true,
			},
		},
		{
			name: "正常系: 台帳と残高が不一致",
			req:  &ReconcileRequest{AccountID: "acct123"},
			setupMocks: func(mer *MockEntryRepository, mbr *MockBalanceRepository) {
				b := balance.MustNewBalance("acct123", 50, 300, 120, 1)
				mer.On("SumByAccountID", mock.Anything, "acct123").Return(int64(500), nil)
				mbr.On("FindByAccountID", mock.Anything, "acct123").Return(b, nil)
			},
			want: &ReconcileResponse{
				AccountID:    "acct123",
				LedgerSum:    500,
				CurrentTotal: 470,
				Balanced:     false,
			},
		},
		{
			name: "正常系: 残高行もエントリもないアカウントは一致",
			req:  &ReconcileRequest{AccountID: "acct_new"},
			setupMocks: func(mer *MockEntryRepository, mbr *MockBalanceRepository) {
				mer.On("SumByAccountID", mock.Anything, "acct_new").Return(int64(0), nil)
				mbr.On("FindByAccountID", mock.Anything, "acct_new").Return(nil, balance.ErrBalanceNotFound)
			},
			want: &ReconcileResponse{
				AccountID:    "acct_new",
				LedgerSum:    0,
				CurrentTotal: 0,
				Balanced:     true,
			},
		},
		{
			name: "異常系: 合計の取得エラー",
			req:  &ReconcileRequest{AccountID: "acct123"},
			setupMocks: func(mer *MockEntryRepository, mbr *MockBalanceRepository) {
				mer.On("SumByAccountID", mock.Anything, "acct123").Return(int64(0), errors.New("database error"))
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mer := new(MockEntryRepository)
			mbr := new(MockBalanceRepository)

			tt.setupMocks(mer, mbr)

			svc := newTestService(mer, mbr, t)

			ctx := context.Background()
			got, err := svc.Reconcile(ctx, tt.req)

			if tt.wantError {
				assert.Error(t, err)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}

			mer.AssertExpectations(t)
			mbr.AssertExpectations(t)
		})
	}
}
