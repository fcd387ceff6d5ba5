package service

import (
	"context"
	"errors"

	"spark-ledger/internal/domain/balance"
)

// BalanceService 残高関連のドメインサービス
type BalanceService struct {
	balanceRepo balance.BalanceRepository
}

// NewBalanceService 新しいBalanceServiceを作成
func NewBalanceService(balanceRepo balance.BalanceRepository) *BalanceService {
	return &BalanceService{
		balanceRepo: balanceRepo,
	}
}

// TotalBalance アカウントの合計残高を取得
// 残高行が未作成のアカウントは残高0として扱う
func (s *BalanceService) TotalBalance(ctx context.Context, accountID string) (int64, error) {
	b, err := s.balanceRepo.FindByAccountID(ctx, accountID)
	if errors.Is(err, balance.ErrBalanceNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return b.TotalSparks(), nil
}

// HasSufficientBalance 指定されたコスト分の残高があるかチェック
// 事前確認用であり、消費時点の再検証を置き換えるものではない
func (s *BalanceService) HasSufficientBalance(ctx context.Context, accountID string, cost int64) (bool, error) {
	if cost <= 0 {
		return false, balance.ErrInvalidCost
	}
	total, err := s.TotalBalance(ctx, accountID)
	if err != nil {
		return false, err
	}
	return total >= cost, nil
}
