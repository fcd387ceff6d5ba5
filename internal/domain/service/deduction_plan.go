package service

import (
	"spark-ledger/internal/domain/allocation"
	"spark-ledger/internal/domain/balance"
)

// DeductionStep 消費計画の1ステップ
// AllocationIDが空のステップはプールカウンタのみの減算（サブスクリプションプール）
type DeductionStep struct {
	Pool         balance.Pool
	AllocationID string
	Amount       int64
}

// DeductionPlan 消費計画
// プール優先順位（trial → subscription → topup）と、プール内では
// 有効期限の近い割当から順に消費する規則を明示的な手順列として表す
type DeductionPlan struct {
	Steps []DeductionStep
	Total int64
}

// PrimaryPool 最初に消費するプールを返す
// 複数プールにまたがる消費を1件の台帳エントリに記録する際のプール表記に使う
func (p *DeductionPlan) PrimaryPool() balance.Pool {
	if len(p.Steps) == 0 {
		return balance.PoolTrial
	}
	return p.Steps[0].Pool
}

// BuildDeductionPlan 残高と消費可能な割当から消費計画を構築する
// trialAllocs/topupAllocsは有効期限の近い順に並んでいることを前提とする
// 合計残高がコストに満たない場合はErrInsufficientBalanceを返す
func BuildDeductionPlan(
	b *balance.Balance,
	trialAllocs []*allocation.Allocation,
	topupAllocs []*allocation.Allocation,
	cost int64,
) (*DeductionPlan, error) {
	if cost <= 0 {
		return nil, balance.ErrInvalidCost
	}
	if b.TotalSparks() < cost {
		return nil, balance.ErrInsufficientBalance
	}

	plan := &DeductionPlan{}
	remaining := cost

	// トライアルプール: 割当行を期限の近い順に消費
	remaining = appendAllocationSteps(plan, balance.PoolTrial, trialAllocs, b.TrialSparks(), remaining)

	// サブスクリプションプール: 割当行を持たないカウンタ消費
	if remaining > 0 && b.SubscriptionSparks() > 0 {
		amount := remaining
		if amount > b.SubscriptionSparks() {
			amount = b.SubscriptionSparks()
		}
		plan.Steps = append(plan.Steps, DeductionStep{
			Pool:   balance.PoolSubscription,
			Amount: amount,
		})
		plan.Total += amount
		remaining -= amount
	}

	// 追加購入プール: 割当行を期限の近い順に消費
	remaining = appendAllocationSteps(plan, balance.PoolTopup, topupAllocs, b.TopupSparks(), remaining)

	if remaining > 0 {
		// 合計残高は足りるのに割当行が足りない場合は帳簿とプールの不整合
		return nil, balance.ErrInsufficientBalance
	}

	return plan, nil
}

// appendAllocationSteps 割当行のリストをプール残高の範囲内で順に消費計画へ追加する
func appendAllocationSteps(
	plan *DeductionPlan,
	pool balance.Pool,
	allocs []*allocation.Allocation,
	poolSparks int64,
	remaining int64,
) int64 {
	poolBudget := poolSparks
	for _, a := range allocs {
		if remaining == 0 || poolBudget == 0 {
			break
		}
		if a.AmountRemaining() == 0 {
			continue
		}
		amount := remaining
		if amount > a.AmountRemaining() {
			amount = a.AmountRemaining()
		}
		if amount > poolBudget {
			amount = poolBudget
		}
		plan.Steps = append(plan.Steps, DeductionStep{
			Pool:         pool,
			AllocationID: a.AllocationID(),
			Amount:       amount,
		})
		plan.Total += amount
		remaining -= amount
		poolBudget -= amount
	}
	return remaining
}
