package ledger

import (
	"fmt"
)

// EntryType 台帳エントリ種別を表す値オブジェクト
type EntryType string

const (
	EntryTypeGrant                 EntryType = "grant"                   // トライアル付与
	EntryTypePurchase              EntryType = "purchase"                // 追加購入
	EntryTypeDeduction             EntryType = "deduction"               // 消費
	EntryTypeRefund                EntryType = "refund"                  // 返金
	EntryTypeExpiryForfeiture      EntryType = "expiry_forfeiture"       // 失効による没収
	EntryTypeSubscriptionRefresh   EntryType = "subscription_refresh"    // 月次リフレッシュ
	EntryTypeRolloverCapForfeiture EntryType = "rollover_cap_forfeiture" // 繰越上限超過による没収
)

// NewEntryType 新しいEntryTypeを作成
func NewEntryType(s string) (EntryType, error) {
	et := EntryType(s)
	if !et.Valid() {
		return "", fmt.Errorf("invalid entry type: %s", s)
	}
	return et, nil
}

// String 文字列表現を返す
func (et EntryType) String() string {
	return string(et)
}

// Valid 有効なエントリ種別かどうかを返す
func (et EntryType) Valid() bool {
	switch et {
	case EntryTypeGrant, EntryTypePurchase, EntryTypeDeduction, EntryTypeRefund,
		EntryTypeExpiryForfeiture, EntryTypeSubscriptionRefresh, EntryTypeRolloverCapForfeiture:
		return true
	default:
		return false
	}
}

// IsCredit 残高を増やすエントリ種別かどうかを返す
func (et EntryType) IsCredit() bool {
	switch et {
	case EntryTypeGrant, EntryTypePurchase, EntryTypeRefund, EntryTypeSubscriptionRefresh:
		return true
	default:
		return false
	}
}
