package costtable

import (
	"sort"
)

// CostTable 機能名からSparkコストへの静的マッピング
// 呼び出し側が消費前に参照する。台帳側はコストの正当性を検証しない
type CostTable struct {
	costs map[string]int64
}

// New 新しいCostTableを作成
func New(costs map[string]int64) *CostTable {
	copied := make(map[string]int64, len(costs))
	for k, v := range costs {
		copied[k] = v
	}
	return &CostTable{costs: copied}
}

// Default 既定のコスト表を返す
func Default() *CostTable {
	return New(map[string]int64{
		"tutor.reply":         1,
		"flashcards.generate": 5,
		"lesson.generate":     10,
		"quiz.generate":       5,
		"image.generate":      3,
		"audio.generate":      2,
	})
}

// Cost 機能名に対応するコストを返す
func (ct *CostTable) Cost(action string) (int64, bool) {
	cost, ok := ct.costs[action]
	return cost, ok
}

// Actions コスト表に登録されている機能名を返す（辞書順）
func (ct *CostTable) Actions() []string {
	actions := make([]string, 0, len(ct.costs))
	for action := range ct.costs {
		actions = append(actions, action)
	}
	sort.Strings(actions)
	return actions
}
