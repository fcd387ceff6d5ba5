package allocation

import (
	"fmt"

	"spark-ledger/internal/domain/balance"
)

// Kind 割当の種別を表す値オブジェクト
type Kind string

const (
	KindTrial Kind = "trial" // トライアル付与
	KindTopup Kind = "topup" // 追加購入
)

// NewKind 新しいKindを作成
func NewKind(s string) (Kind, error) {
	switch s {
	case "trial", "topup":
		return Kind(s), nil
	default:
		return "", fmt.Errorf("invalid allocation kind: %s", s)
	}
}

// String 文字列表現を返す
func (k Kind) String() string {
	return string(k)
}

// Valid 有効な種別かどうかを返す
func (k Kind) Valid() bool {
	return k == KindTrial || k == KindTopup
}

// Pool この種別が属する残高プールを返す
func (k Kind) Pool() balance.Pool {
	if k == KindTrial {
		return balance.PoolTrial
	}
	return balance.PoolTopup
}
