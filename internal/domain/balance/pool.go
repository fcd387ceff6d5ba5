package balance

import (
	"fmt"
)

// Pool 残高プールを表す値オブジェクト
type Pool string

const (
	PoolTrial        Pool = "trial"        // トライアルプール
	PoolSubscription Pool = "subscription" // サブスクリプションプール
	PoolTopup        Pool = "topup"        // 追加購入プール
)

// NewPool 新しいPoolを作成
func NewPool(s string) (Pool, error) {
	switch s {
	case "trial", "subscription", "topup":
		return Pool(s), nil
	default:
		return "", fmt.Errorf("invalid pool: %s", s)
	}
}

// String 文字列表現を返す
func (p Pool) String() string {
	return string(p)
}

// Valid 有効なプールかどうかを返す
func (p Pool) Valid() bool {
	switch p {
	case PoolTrial, PoolSubscription, PoolTopup:
		return true
	default:
		return false
	}
}
