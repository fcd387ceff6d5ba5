package allocation

import (
	"errors"
	"regexp"
	"time"
)

var (
	// ErrInvalidAllocationID 割当IDが無効
	ErrInvalidAllocationID = errors.New("invalid allocation id")
	// ErrInvalidAccountID アカウントIDが無効
	ErrInvalidAccountID = errors.New("invalid account id")
	// ErrAmountTooLarge 金額が大きすぎる
	ErrAmountTooLarge = errors.New("amount too large")
	// ErrInvalidPrice 購入価格が無効
	ErrInvalidPrice = errors.New("invalid purchase price")
)

const (
	// MaxAmount 割当あたりの最大付与量 (10兆)
	MaxAmount = 10_000_000_000_000
)

var (
	idRegex        = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,255}$`)
	accountIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,255}$`)
)

// Allocation 割当エンティティ
// トライアル付与と追加購入の1回分を表し、消費・失効で残量が減っていく
type Allocation struct {
	allocationID       string
	accountID          string
	kind               Kind
	amountGranted      int64
	amountRemaining    int64
	purchasePriceCents int64      // 購入総額（セント）。トライアルは0
	expiresAt          *time.Time // nilは無期限（追加購入のみ）
	createdAt          time.Time
	updatedAt          time.Time
}

// NewAllocation 新しいAllocationエンティティを作成
func NewAllocation(
	allocationID string,
	accountID string,
	kind Kind,
	amountGranted int64,
	amountRemaining int64,
	purchasePriceCents int64,
	expiresAt *time.Time,
) (*Allocation, error) {
	if !idRegex.MatchString(allocationID) {
		return nil, ErrInvalidAllocationID
	}
	if !accountIDRegex.MatchString(accountID) {
		return nil, ErrInvalidAccountID
	}
	if amountGranted <= 0 {
		return nil, ErrInvalidAmount
	}
	if amountGranted > MaxAmount {
		return nil, ErrAmountTooLarge
	}
	if amountRemaining < 0 || amountRemaining > amountGranted {
		return nil, ErrInvalidAmount
	}
	if purchasePriceCents < 0 {
		return nil, ErrInvalidPrice
	}

	now := time.Now()
	return &Allocation{
		allocationID:       allocationID,
		accountID:          accountID,
		kind:               kind,
		amountGranted:      amountGranted,
		amountRemaining:    amountRemaining,
		purchasePriceCents: purchasePriceCents,
		expiresAt:          expiresAt,
		createdAt:          now,
		updatedAt:          now,
	}, nil
}

// AllocationID 割当IDを返す
func (a *Allocation) AllocationID() string {
	return a.allocationID
}

// AccountID アカウントIDを返す
func (a *Allocation) AccountID() string {
	return a.accountID
}

// Kind 種別を返す
func (a *Allocation) Kind() Kind {
	return a.kind
}

// AmountGranted 付与量を返す
func (a *Allocation) AmountGranted() int64 {
	return a.amountGranted
}

// AmountRemaining 残量を返す
func (a *Allocation) AmountRemaining() int64 {
	return a.amountRemaining
}

// PurchasePriceCents 購入総額（セント）を返す
func (a *Allocation) PurchasePriceCents() int64 {
	return a.purchasePriceCents
}

// ExpiresAt 有効期限を返す（nilは無期限）
func (a *Allocation) ExpiresAt() *time.Time {
	return a.expiresAt
}

// CreatedAt 作成日時を返す
func (a *Allocation) CreatedAt() time.Time {
	return a.createdAt
}

// UpdatedAt 更新日時を返す
func (a *Allocation) UpdatedAt() time.Time {
	return a.updatedAt
}

// IsExpired 指定時刻の時点で失効しているかどうかを返す
func (a *Allocation) IsExpired(now time.Time) bool {
	return a.expiresAt != nil && a.expiresAt.Before(now)
}

// Consume 残量を消費する
func (a *Allocation) Consume(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if a.amountRemaining == 0 {
		return ErrAlreadyDepleted
	}
	if a.amountRemaining < amount {
		return ErrInsufficientRemaining
	}
	a.amountRemaining -= amount
	a.updatedAt = time.Now()
	return nil
}

// Forfeit 残量を没収し、没収した量を返す
func (a *Allocation) Forfeit() int64 {
	forfeited := a.amountRemaining
	a.amountRemaining = 0
	a.updatedAt = time.Now()
	return forfeited
}

// BreakageCents 没収時の逸失収益（セント）を返す
// 購入価格を付与量で按分した残量相当額。レポート用で帳簿の正しさには関与しない
func (a *Allocation) BreakageCents() int64 {
	if a.purchasePriceCents == 0 || a.amountGranted == 0 {
		return 0
	}
	return a.amountRemaining * a.purchasePriceCents / a.amountGranted
}

// MustNewAllocation テスト用ヘルパー: NewAllocationを呼び出し、エラーが発生した場合はpanicする
func MustNewAllocation(
	allocationID string,
	accountID string,
	kind Kind,
	amountGranted int64,
	amountRemaining int64,
	purchasePriceCents int64,
	expiresAt *time.Time,
) *Allocation {
	a, err := NewAllocation(allocationID, accountID, kind, amountGranted, amountRemaining, purchasePriceCents, expiresAt)
	if err != nil {
		panic(err)
	}
	return a
}
