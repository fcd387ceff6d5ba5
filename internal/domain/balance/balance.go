package balance

import (
	"errors"
	"regexp"
)

var (
	// ErrInvalidAccountID アカウントIDが無効
	ErrInvalidAccountID = errors.New("invalid account id")
	// ErrBalanceOutOfRange 残高が範囲外
	ErrBalanceOutOfRange = errors.New("balance out of range")
	// ErrAmountTooLarge 金額が大きすぎる
	ErrAmountTooLarge = errors.New("amount too large")
	// ErrInvalidAmount 金額が無効
	ErrInvalidAmount = errors.New("invalid amount")
)

const (
	// MaxSparks プールあたりの最大残高 (10兆)
	MaxSparks = 10_000_000_000_000
)

var accountIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,255}$`)

// Balance アカウント残高エンティティ
// 3つのプール残高を保持し、合計残高は常に3プールの和として導出される
type Balance struct {
	accountID          string
	trialSparks        int64
	subscriptionSparks int64
	topupSparks        int64
	version            int // 楽観的ロック用
}

// NewBalance 新しいBalanceエンティティを作成
func NewBalance(accountID string, trialSparks, subscriptionSparks, topupSparks int64, version int) (*Balance, error) {
	if !accountIDRegex.MatchString(accountID) {
		return nil, ErrInvalidAccountID
	}
	for _, v := range []int64{trialSparks, subscriptionSparks, topupSparks} {
		if v < 0 || v > MaxSparks {
			return nil, ErrBalanceOutOfRange
		}
	}
	return &Balance{
		accountID:          accountID,
		trialSparks:        trialSparks,
		subscriptionSparks: subscriptionSparks,
		topupSparks:        topupSparks,
		version:            version,
	}, nil
}

// AccountID アカウントIDを返す
func (b *Balance) AccountID() string {
	return b.accountID
}

// TrialSparks トライアルプールの残高を返す
func (b *Balance) TrialSparks() int64 {
	return b.trialSparks
}

// SubscriptionSparks サブスクリプションプールの残高を返す
func (b *Balance) SubscriptionSparks() int64 {
	return b.subscriptionSparks
}

// TopupSparks 追加購入プールの残高を返す
func (b *Balance) TopupSparks() int64 {
	return b.topupSparks
}

// TotalSparks 合計残高を返す
// 常に3プールの和として導出されるため、合計と内訳の不変条件は構造的に保証される
func (b *Balance) TotalSparks() int64 {
	return b.trialSparks + b.subscriptionSparks + b.topupSparks
}

// Version バージョンを返す（楽観的ロック用）
func (b *Balance) Version() int {
	return b.version
}

// PoolSparks 指定プールの残高を返す
func (b *Balance) PoolSparks(pool Pool) int64 {
	switch pool {
	case PoolTrial:
		return b.trialSparks
	case PoolSubscription:
		return b.subscriptionSparks
	case PoolTopup:
		return b.topupSparks
	default:
		return 0
	}
}

// Credit 指定プールに残高を加算する
func (b *Balance) Credit(pool Pool, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount > MaxSparks {
		return ErrAmountTooLarge
	}
	cur := b.PoolSparks(pool)
	// オーバーフローチェック
	if cur > MaxSparks-amount {
		return ErrBalanceOutOfRange
	}
	return b.setPool(pool, cur+amount)
}

// Debit 指定プールから残高を減算する（プール残高不足はエラー）
func (b *Balance) Debit(pool Pool, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	cur := b.PoolSparks(pool)
	if cur < amount {
		return ErrInsufficientBalance
	}
	return b.setPool(pool, cur-amount)
}

// DebitFloored 指定プールから残高を減算する（0未満にはせず、実際に減算した額を返す）
// 失効スイープで帳簿とプール残高がずれていた場合の減算に使用
func (b *Balance) DebitFloored(pool Pool, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	cur := b.PoolSparks(pool)
	debited := amount
	if debited > cur {
		debited = cur
	}
	if debited == 0 {
		return 0, nil
	}
	if err := b.setPool(pool, cur-debited); err != nil {
		return 0, err
	}
	return debited, nil
}

// SetSubscriptionSparks サブスクリプションプールの残高を設定する（月次リフレッシュ用）
func (b *Balance) SetSubscriptionSparks(amount int64) error {
	if amount < 0 || amount > MaxSparks {
		return ErrBalanceOutOfRange
	}
	b.subscriptionSparks = amount
	return nil
}

// setPool 指定プールの残高を設定する
func (b *Balance) setPool(pool Pool, value int64) error {
	switch pool {
	case PoolTrial:
		b.trialSparks = value
	case PoolSubscription:
		b.subscriptionSparks = value
	case PoolTopup:
		b.topupSparks = value
	default:
		return ErrInvalidPool
	}
	return nil
}

// MustNewBalance テスト用ヘルパー: NewBalanceを呼び出し、エラーが発生した場合はpanicする
func MustNewBalance(accountID string, trialSparks, subscriptionSparks, topupSparks int64, version int) *Balance {
	b, err := NewBalance(accountID, trialSparks, subscriptionSparks, topupSparks, version)
	if err != nil {
		panic(err)
	}
	return b
}
