package plan

import (
	"errors"
	"regexp"
	"time"
)

var (
	// ErrInvalidAccountID アカウントIDが無効
	ErrInvalidAccountID = errors.New("invalid account id")
	// ErrInvalidTier ティアが無効
	ErrInvalidTier = errors.New("invalid tier")
)

var accountIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,255}$`)

// SubscriptionStatus サブスクリプションのステータス
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"   // 有効
	SubscriptionStatusCanceled SubscriptionStatus = "canceled" // 解約済み
)

// String 文字列表現を返す
func (ss SubscriptionStatus) String() string {
	return string(ss)
}

// Subscription サブスクリプションエンティティ
type Subscription struct {
	accountID       string
	tier            Tier
	status          SubscriptionStatus
	lastRefreshedAt *time.Time
	createdAt       time.Time
	updatedAt       time.Time
}

// NewSubscription 新しいSubscriptionエンティティを作成
func NewSubscription(accountID string, tier Tier, status SubscriptionStatus) (*Subscription, error) {
	if !accountIDRegex.MatchString(accountID) {
		return nil, ErrInvalidAccountID
	}
	if !tier.Valid() {
		return nil, ErrInvalidTier
	}
	now := time.Now()
	return &Subscription{
		accountID: accountID,
		tier:      tier,
		status:    status,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// AccountID アカウントIDを返す
func (s *Subscription) AccountID() string {
	return s.accountID
}

// Tier ティアを返す
func (s *Subscription) Tier() Tier {
	return s.tier
}

// Status ステータスを返す
func (s *Subscription) Status() SubscriptionStatus {
	return s.status
}

// CreatedAt 作成日時を返す
func (s *Subscription) CreatedAt() time.Time {
	return s.createdAt
}

// UpdatedAt 更新日時を返す
func (s *Subscription) UpdatedAt() time.Time {
	return s.updatedAt
}

// LastRefreshedAt 最終リフレッシュ日時を返す（未リフレッシュの場合はnil）
func (s *Subscription) LastRefreshedAt() *time.Time {
	return s.lastRefreshedAt
}

// IsActive 有効なサブスクリプションかどうかを返す
func (s *Subscription) IsActive() bool {
	return s.status == SubscriptionStatusActive
}

// RefreshedInPeriod 指定時点と同じリフレッシュ期間（UTCの暦月）で
// 既にリフレッシュ済みかどうかを返す
func (s *Subscription) RefreshedInPeriod(now time.Time) bool {
	if s.lastRefreshedAt == nil {
		return false
	}
	last := s.lastRefreshedAt.UTC()
	now = now.UTC()
	return last.Year() == now.Year() && last.Month() == now.Month()
}

// MarkRefreshed 最終リフレッシュ日時を記録する
func (s *Subscription) MarkRefreshed(now time.Time) {
	s.lastRefreshedAt = &now
	s.updatedAt = now
}

// RestoreLastRefreshedAt 永続化済みの最終リフレッシュ日時を復元する（リポジトリ用）
func (s *Subscription) RestoreLastRefreshedAt(t *time.Time) {
	s.lastRefreshedAt = t
}

// ChangeTier ティアを変更する
func (s *Subscription) ChangeTier(tier Tier) error {
	if !tier.Valid() {
		return ErrInvalidTier
	}
	s.tier = tier
	s.updatedAt = time.Now()
	return nil
}

// Activate サブスクリプションを有効化する
func (s *Subscription) Activate() {
	s.status = SubscriptionStatusActive
	s.updatedAt = time.Now()
}

// Cancel サブスクリプションを解約する
// 解約後も残っているサブスクリプションプール残高は次回リフレッシュまで消費できる
func (s *Subscription) Cancel() {
	s.status = SubscriptionStatusCanceled
	s.updatedAt = time.Now()
}

// MustNewSubscription テスト用ヘルパー: NewSubscriptionを呼び出し、エラーが発生した場合はpanicする
func MustNewSubscription(accountID string, tier Tier, status SubscriptionStatus) *Subscription {
	s, err := NewSubscription(accountID, tier, status)
	if err != nil {
		panic(err)
	}
	return s
}
