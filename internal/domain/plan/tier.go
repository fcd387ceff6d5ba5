package plan

import (
	"fmt"
)

// Tier サブスクリプションプランのティアを表す値オブジェクト
type Tier string

const (
	TierStarter Tier = "starter"
	TierPlus    Tier = "plus"
	TierMax     Tier = "max"
)

// monthlyAllowances ティアごとの月間付与量
var monthlyAllowances = map[Tier]int64{
	TierStarter: 100,
	TierPlus:    300,
	TierMax:     1000,
}

// NewTier 新しいTierを作成
func NewTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("invalid plan tier: %s", s)
	}
	return t, nil
}

// String 文字列表現を返す
func (t Tier) String() string {
	return string(t)
}

// Valid 有効なティアかどうかを返す
func (t Tier) Valid() bool {
	_, ok := monthlyAllowances[t]
	return ok
}

// MonthlyAllowance 月間付与量を返す
func (t Tier) MonthlyAllowance() int64 {
	return monthlyAllowances[t]
}

// RolloverCap 繰越上限（月間付与量の2倍）を返す
func (t Tier) RolloverCap() int64 {
	return t.MonthlyAllowance() * 2
}
