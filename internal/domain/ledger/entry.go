package ledger

import (
	"errors"
	"regexp"
	"time"

	"spark-ledger/internal/domain/balance"
)

var (
	// ErrInvalidEntryID エントリIDが無効
	ErrInvalidEntryID = errors.New("invalid entry id")
	// ErrInvalidAccountID アカウントIDが無効
	ErrInvalidAccountID = errors.New("invalid account id")
	// ErrInvalidAmount 金額が無効
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrAmountTooLarge 金額が大きすぎる
	ErrAmountTooLarge = errors.New("amount too large")
	// ErrBalanceOutOfRange 残高スナップショットが範囲外
	ErrBalanceOutOfRange = errors.New("balance out of range")
	// ErrAmountSignMismatch 金額の符号がエントリ種別と一致しない
	ErrAmountSignMismatch = errors.New("amount sign does not match entry type")
)

const (
	// MaxAmount エントリあたりの最大金額 (10兆)
	MaxAmount = 10_000_000_000_000
)

var (
	idRegex        = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,255}$`)
	accountIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,255}$`)
)

// Entry 台帳エントリエンティティ
// 残高を変動させたすべての事象の追記専用レコード。作成後の更新・削除は行わない
type Entry struct {
	entryID      string
	accountID    string
	amount       int64 // 符号付き。消費・没収は負、付与・返金は正
	pool         balance.Pool
	entryType    EntryType
	action       string  // 変動の原因（機能名など）の自由記述
	referenceID  *string // 原因となった割当・決済イベント・機能呼び出しへの参照
	balanceAfter int64   // このエントリ適用直後の合計残高
	createdAt    time.Time
}

// NewEntry 新しいEntryエンティティを作成
func NewEntry(
	entryID string,
	accountID string,
	amount int64,
	pool balance.Pool,
	entryType EntryType,
	action string,
	referenceID *string,
	balanceAfter int64,
) (*Entry, error) {
	if !idRegex.MatchString(entryID) {
		return nil, ErrInvalidEntryID
	}
	if !accountIDRegex.MatchString(accountID) {
		return nil, ErrInvalidAccountID
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	if amount > MaxAmount || amount < -MaxAmount {
		return nil, ErrAmountTooLarge
	}
	if !entryType.Valid() {
		return nil, ErrInvalidEntry
	}
	if entryType.IsCredit() != (amount > 0) {
		return nil, ErrAmountSignMismatch
	}
	if balanceAfter < 0 || balanceAfter > MaxAmount {
		return nil, ErrBalanceOutOfRange
	}

	return &Entry{
		entryID:      entryID,
		accountID:    accountID,
		amount:       amount,
		pool:         pool,
		entryType:    entryType,
		action:       action,
		referenceID:  referenceID,
		balanceAfter: balanceAfter,
		createdAt:    time.Now(),
	}, nil
}

// EntryID エントリIDを返す
func (e *Entry) EntryID() string {
	return e.entryID
}

// AccountID アカウントIDを返す
func (e *Entry) AccountID() string {
	return e.accountID
}

// Amount 金額（符号付き）を返す
func (e *Entry) Amount() int64 {
	return e.amount
}

// Pool 対象プールを返す
func (e *Entry) Pool() balance.Pool {
	return e.pool
}

// EntryType エントリ種別を返す
func (e *Entry) EntryType() EntryType {
	return e.entryType
}

// Action 変動の原因を返す
func (e *Entry) Action() string {
	return e.action
}

// ReferenceID 参照IDを返す
func (e *Entry) ReferenceID() *string {
	return e.referenceID
}

// BalanceAfter 適用直後の合計残高を返す
func (e *Entry) BalanceAfter() int64 {
	return e.balanceAfter
}

// CreatedAt 作成日時を返す
func (e *Entry) CreatedAt() time.Time {
	return e.createdAt
}

// MustNewEntry テスト用ヘルパー: NewEntryを呼び出し、エラーが発生した場合はpanicする
func MustNewEntry(
	entryID string,
	accountID string,
	amount int64,
	pool balance.Pool,
	entryType EntryType,
	action string,
	referenceID *string,
	balanceAfter int64,
) *Entry {
	e, err := NewEntry(entryID, accountID, amount, pool, entryType, action, referenceID, balanceAfter)
	if err != nil {
		panic(err)
	}
	return e
}
