package balance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBalance(t *testing.T) {
	tests := []struct {
		name               string
		accountID          string
		trialSparks        int64
		subscriptionSparks int64
		topupSparks        int64
		version            int
		wantError          error
	}{
		{
			name:               "正常系: 全プールに残高のある残高を作成",
			accountID:          "acct123",
			trialSparks:        50,
			subscriptionSparks: 300,
			topupSparks:        120,
			version:            1,
			wantError:          nil,
		},
		{
			name:               "正常系: ゼロ残高を作成",
			accountID:          "acct123",
			trialSparks:        0,
			subscriptionSparks: 0,
			topupSparks:        0,
			version:            0,
			wantError:          nil,
		},
		{
			name:               "異常系: アカウントIDが空",
			accountID:          "",
			trialSparks:        0,
			subscriptionSparks: 0,
			topupSparks:        0,
			version:            0,
			wantError:          ErrInvalidAccountID,
		},
		{
			name:               "異常系: プール残高がマイナス",
			accountID:          "acct123",
			trialSparks:        -1,
			subscriptionSparks: 0,
			topupSparks:        0,
			version:            0,
			wantError:          ErrBalanceOutOfRange,
		},
		{
			name:               "異常系: プール残高が上限超過",
			accountID:          "acct123",
			trialSparks:        0,
			subscriptionSparks: MaxSparks + 1,
			topupSparks:        0,
			version:            0,
			wantError:          ErrBalanceOutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewBalance(tt.accountID, tt.trialSparks, tt.subscriptionSparks, tt.topupSparks, tt.version)

			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.accountID, got.AccountID())
			assert.Equal(t, tt.trialSparks, got.TrialSparks())
			assert.Equal(t, tt.subscriptionSparks, got.SubscriptionSparks())
			assert.Equal(t, tt.topupSparks, got.TopupSparks())
			assert.Equal(t, tt.version, got.Version())
		})
	}
}

func TestBalance_TotalSparks(t *testing.T) {
	tests := []struct {
		name    string
		balance *Balance
		want    int64
	}{
		{
			name:    "正常系: 合計は3プールの和",
			balance: MustNewBalance("acct123", 50, 300, 120, 1),
			want:    470,
		},
		{
			name:    "正常系: ゼロ残高の合計は0",
			balance: MustNewBalance("acct123", 0, 0, 0, 1),
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.balance.TotalSparks())
		})
	}
}

func TestBalance_PoolSparks(t *testing.T) {
	b := MustNewBalance("acct123", 50, 300, 120, 1)

	assert.Equal(t, int64(50), b.PoolSparks(PoolTrial))
	assert.Equal(t, int64(300), b.PoolSparks(PoolSubscription))
	assert.Equal(t, int64(120), b.PoolSparks(PoolTopup))
	assert.Equal(t, int64(0), b.PoolSparks(Pool("unknown")))
}

func TestBalance_Credit(t *testing.T) {
	tests := []struct {
		name      string
		balance   *Balance
		pool      Pool
		amount    int64
		wantTotal int64
		wantError error
	}{
		{
			name:      "正常系: トライアルプールに加算",
			balance:   MustNewBalance("acct123", 0, 0, 0, 1),
			pool:      PoolTrial,
			amount:    50,
			wantTotal: 50,
			wantError: nil,
		},
		{
			name:      "正常系: 追加購入プールに加算",
			balance:   MustNewBalance("acct123", 0, 100, 20, 1),
			pool:      PoolTopup,
			amount:    500,
			wantTotal: 620,
			wantError: nil,
		},
		{
			name:      "異常系: ゼロの加算",
			balance:   MustNewBalance("acct123", 0, 0, 0, 1),
			pool:      PoolTrial,
			amount:    0,
			wantError: ErrInvalidAmount,
		},
		{
			name:      "異常系: マイナスの加算",
			balance:   MustNewBalance("acct123", 0, 0, 0, 1),
			pool:      PoolTrial,
			amount:    -10,
			wantError: ErrInvalidAmount,
		},
		{
			name:      "異常系: 上限を超える加算",
			balance:   MustNewBalance("acct123", 0, 0, MaxSparks, 1),
			pool:      PoolTopup,
			amount:    1,
			wantError: ErrBalanceOutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.balance.Credit(tt.pool, tt.amount)

			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, tt.balance.TotalSparks())
		})
	}
}

func TestBalance_Debit(t *testing.T) {
	tests := []struct {
		name      string
		balance   *Balance
		pool      Pool
		amount    int64
		wantPool  int64
		wantError error
	}{
		{
			name:      "正常系: サブスクリプションプールから減算",
			balance:   MustNewBalance("acct123", 0, 300, 0, 1),
			pool:      PoolSubscription,
			amount:    10,
			wantPool:  290,
			wantError: nil,
		},
		{
			name:      "正常系: プール残高をちょうど使い切る",
			balance:   MustNewBalance("acct123", 5, 0, 0, 1),
			pool:      PoolTrial,
			amount:    5,
			wantPool:  0,
			wantError: nil,
		},
		{
			name:      "異常系: プール残高不足",
			balance:   MustNewBalance("acct123", 5, 0, 0, 1),
			pool:      PoolTrial,
			amount:    6,
			wantError: ErrInsufficientBalance,
		},
		{
			name:      "異常系: ゼロの減算",
			balance:   MustNewBalance("acct123", 5, 0, 0, 1),
			pool:      PoolTrial,
			amount:    0,
			wantError: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.balance.Debit(tt.pool, tt.amount)

			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantPool, tt.balance.PoolSparks(tt.pool))
		})
	}
}

func TestBalance_DebitFloored(t *testing.T) {
	tests := []struct {
		name        string
		balance     *Balance
		pool        Pool
		amount      int64
		wantDebited int64
		wantPool    int64
		wantError   error
	}{
		{
			name:        "正常系: 残高の範囲内で減算",
			balance:     MustNewBalance("acct123", 50, 0, 0, 1),
			pool:        PoolTrial,
			amount:      40,
			wantDebited: 40,
			wantPool:    10,
		},
		{
			name:        "正常系: 残高を超える減算は残高までに抑えられる",
			balance:     MustNewBalance("acct123", 30, 0, 0, 1),
			pool:        PoolTrial,
			amount:      40,
			wantDebited: 30,
			wantPool:    0,
		},
		{
			name:        "正常系: 残高ゼロからの減算は0を返す",
			balance:     MustNewBalance("acct123", 0, 0, 0, 1),
			pool:        PoolTrial,
			amount:      40,
			wantDebited: 0,
			wantPool:    0,
		},
		{
			name:      "異常系: ゼロの減算",
			balance:   MustNewBalance("acct123", 50, 0, 0, 1),
			pool:      PoolTrial,
			amount:    0,
			wantError: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			debited, err := tt.balance.DebitFloored(tt.pool, tt.amount)

			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantDebited, debited)
			assert.Equal(t, tt.wantPool, tt.balance.PoolSparks(tt.pool))
		})
	}
}

func TestBalance_SetSubscriptionSparks(t *testing.T) {
	tests := []struct {
		name      string
		balance   *Balance
		amount    int64
		wantError error
	}{
		{
			name:      "正常系: サブスクリプションプールを設定",
			balance:   MustNewBalance("acct123", 0, 35, 0, 1),
			amount:    40,
			wantError: nil,
		},
		{
			name:      "正常系: ゼロに設定",
			balance:   MustNewBalance("acct123", 0, 35, 0, 1),
			amount:    0,
			wantError: nil,
		},
		{
			name:      "異常系: マイナスに設定",
			balance:   MustNewBalance("acct123", 0, 35, 0, 1),
			amount:    -1,
			wantError: ErrBalanceOutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.balance.SetSubscriptionSparks(tt.amount)

			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.amount, tt.balance.SubscriptionSparks())
		})
	}
}
