package payment_event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProcessedEvent(t *testing.T) {
	tests := []struct {
		name      string
		eventID   string
		eventType EventType
		accountID string
		wantError error
	}{
		{
			name:      "正常系: 決済完了イベントを作成",
			eventID:   "evt_1",
			eventType: EventTypePaymentCompleted,
			accountID: "acct123",
			wantError: nil,
		},
		{
			name:      "正常系: サブスクリプション有効化イベントを作成",
			eventID:   "evt_2",
			eventType: EventTypeSubscriptionActivated,
			accountID: "acct123",
			wantError: nil,
		},
		{
			name:      "異常系: イベントIDが空",
			eventID:   "",
			eventType: EventTypePaymentCompleted,
			accountID: "acct123",
			wantError: ErrInvalidEventID,
		},
		{
			name:      "異常系: 無効なイベント種別",
			eventID:   "evt_3",
			eventType: EventType("payment.failed"),
			accountID: "acct123",
			wantError: ErrInvalidEventType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewProcessedEvent(tt.eventID, tt.eventType, tt.accountID)

			if tt.wantError != nil {
				assert.ErrorIs(t, err, tt.wantError)
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.eventID, got.EventID())
			assert.Equal(t, tt.eventType, got.EventType())
			assert.Equal(t, tt.accountID, got.AccountID())
			assert.False(t, got.ProcessedAt().IsZero())
		})
	}
}

func TestNewEventType(t *testing.T) {
	t.Run("正常系: 有効なイベント種別を作成", func(t *testing.T) {
		for _, s := range []string{
			"payment.completed", "subscription.activated",
			"subscription.updated", "subscription.canceled",
		} {
			et, err := NewEventType(s)
			require.NoError(t, err)
			assert.Equal(t, s, et.String())
			assert.True(t, et.Valid())
		}
	})

	t.Run("異常系: 未知のイベント種別", func(t *testing.T) {
		_, err := NewEventType("payment.refunded")
		assert.ErrorIs(t, err, ErrInvalidEventType)
	})
}
