package payment_event

import (
	"errors"
	"regexp"
	"time"
)

var (
	// ErrInvalidEventID イベントIDが無効
	ErrInvalidEventID = errors.New("invalid event id")
	// ErrInvalidEventType イベント種別が無効
	ErrInvalidEventType = errors.New("invalid event type")
)

var eventIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_\-\.\@]{1,255}$`)

// EventType 決済イベント種別
type EventType string

const (
	EventTypePaymentCompleted     EventType = "payment.completed"     // 単発決済完了
	EventTypeSubscriptionActivated EventType = "subscription.activated" // サブスクリプション有効化
	EventTypeSubscriptionUpdated  EventType = "subscription.updated"  // プラン変更
	EventTypeSubscriptionCanceled EventType = "subscription.canceled" // 解約
)

// NewEventType 新しいEventTypeを作成
func NewEventType(s string) (EventType, error) {
	et := EventType(s)
	if !et.Valid() {
		return "", ErrInvalidEventType
	}
	return et, nil
}

// String 文字列表現を返す
func (et EventType) String() string {
	return string(et)
}

// Valid 有効なイベント種別かどうかを返す
func (et EventType) Valid() bool {
	switch et {
	case EventTypePaymentCompleted, EventTypeSubscriptionActivated,
		EventTypeSubscriptionUpdated, EventTypeSubscriptionCanceled:
		return true
	default:
		return false
	}
}

// ProcessedEvent 処理済み決済イベントエンティティ
// 決済プロセッサのat-least-once配信に耐えるため、処理済みイベントIDを記録する
type ProcessedEvent struct {
	eventID     string
	eventType   EventType
	accountID   string
	processedAt time.Time
}

// NewProcessedEvent 新しいProcessedEventエンティティを作成
func NewProcessedEvent(eventID string, eventType EventType, accountID string) (*ProcessedEvent, error) {
	if !eventIDRegex.MatchString(eventID) {
		return nil, ErrInvalidEventID
	}
	if !eventType.Valid() {
		return nil, ErrInvalidEventType
	}
	return &ProcessedEvent{
		eventID:     eventID,
		eventType:   eventType,
		accountID:   accountID,
		processedAt: time.Now(),
	}, nil
}

// EventID イベントIDを返す
func (pe *ProcessedEvent) EventID() string {
	return pe.eventID
}

// EventType イベント種別を返す
func (pe *ProcessedEvent) EventType() EventType {
	return pe.eventType
}

// AccountID アカウントIDを返す
func (pe *ProcessedEvent) AccountID() string {
	return pe.accountID
}

// ProcessedAt 処理日時を返す
func (pe *ProcessedEvent) ProcessedAt() time.Time {
	return pe.processedAt
}

// MustNewProcessedEvent テスト用ヘルパー: NewProcessedEventを呼び出し、エラーが発生した場合はpanicする
func MustNewProcessedEvent(eventID string, eventType EventType, accountID string) *ProcessedEvent {
	pe, err := NewProcessedEvent(eventID, eventType, accountID)
	if err != nil {
		panic(err)
	}
	return pe
}
