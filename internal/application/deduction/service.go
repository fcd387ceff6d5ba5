package deduction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"spark-ledger/internal/domain/allocation"
	"spark-ledger/internal/domain/balance"
	"spark-ledger/internal/domain/ledger"
	"spark-ledger/internal/domain/service"
	otelinfra "spark-ledger/internal/infrastructure/observability/otel"
)

// DeductionApplicationService 消費アプリケーションサービス
// 残高の取得、消費可否チェック、消費、返金を提供する
type DeductionApplicationService struct {
	balanceRepo    balance.BalanceRepository
	allocationRepo allocation.AllocationRepository
	entryRepo      ledger.EntryRepository
	txManager      ledger.TransactionManager
	balanceService *service.BalanceService
	logger         *otelinfra.Logger
	metrics        *otelinfra.Metrics
	tracer         trace.Tracer
	maxRetries     int
}

// NewDeductionApplicationService 新しいDeductionApplicationServiceを作成
func NewDeductionApplicationService(
	balanceRepo balance.BalanceRepository,
	allocationRepo allocation.AllocationRepository,
	entryRepo ledger.EntryRepository,
	txManager ledger.TransactionManager,
	balanceService *service.BalanceService,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *DeductionApplicationService {
	return &DeductionApplicationService{
		balanceRepo:    balanceRepo,
		allocationRepo: allocationRepo,
		entryRepo:      entryRepo,
		txManager:      txManager,
		balanceService: balanceService,
		logger:         logger,
		metrics:        metrics,
		tracer:         otel.Tracer("deduction-service"),
		maxRetries:     3,
	}
}

// GetBalance 残高を取得
// 残高行が未作成のアカウントは全プール0として返す
func (s *DeductionApplicationService) GetBalance(ctx context.Context, req *GetBalanceRequest) (*GetBalanceResponse, error) {
	ctx, span := s.tracer.Start(ctx, "DeductionApplicationService.GetBalance")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", req.AccountID),
	)

	s.logger.Info(ctx, "Getting balance", map[string]interface{}{
		"account_id": req.AccountID,
	})

	b, err := s.balanceRepo.FindByAccountID(ctx, req.AccountID)
	if errors.Is(err, balance.ErrBalanceNotFound) {
		return &GetBalanceResponse{AccountID: req.AccountID}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to find balance", err, map[string]interface{}{
			"account_id": req.AccountID,
		})
		return nil, fmt.Errorf("failed to find balance: %w", err)
	}

	s.metrics.RecordAccountBalance(ctx, req.AccountID, b.TotalSparks())

	return &GetBalanceResponse{
		AccountID:          b.AccountID(),
		TrialSparks:        b.TrialSparks(),
		SubscriptionSparks: b.SubscriptionSparks(),
		TopupSparks:        b.TopupSparks(),
		TotalSparks:        b.TotalSparks(),
	}, nil
}

// CanAfford 消費可否をチェック
// 事前確認用であり、確定はDeduct時点の再検証で行う
func (s *DeductionApplicationService) CanAfford(ctx context.Context, req *CanAffordRequest) (*CanAffordResponse, error) {
	ctx, span := s.tracer.Start(ctx, "DeductionApplicationService.CanAfford")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", req.AccountID),
		attribute.Int64("cost", req.Cost),
	)

	if req.Cost <= 0 {
		err := balance.ErrInvalidCost
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	total, err := s.balanceService.TotalBalance(ctx, req.AccountID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to check affordability", err, map[string]interface{}{
			"account_id": req.AccountID,
			"cost":       req.Cost,
		})
		return nil, fmt.Errorf("failed to check affordability: %w", err)
	}

	return &CanAffordResponse{
		AccountID:   req.AccountID,
		Cost:        req.Cost,
		Affordable:  total >= req.Cost,
		TotalSparks: total,
	}, nil
}

// Deduct スパークを消費
// トランザクション内で残高と割当を再読込し、trial → subscription → topupの
// 優先順位で消費計画を構築・適用する。台帳エントリは消費1回につき1件
func (s *DeductionApplicationService) Deduct(ctx context.Context, req *DeductRequest) (*DeductResponse, error) {
	ctx, span := s.tracer.Start(ctx, "DeductionApplicationService.Deduct")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", req.AccountID),
		attribute.Int64("cost", req.Cost),
		attribute.String("action", req.Action),
	)

	s.logger.Info(ctx, "Deducting sparks", map[string]interface{}{
		"account_id": req.AccountID,
		"cost":       req.Cost,
		"action":     req.Action,
	})

	if req.Cost <= 0 {
		err := balance.ErrInvalidCost
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	entryID := generateEntryID()

	var result *DeductResponse
	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			// 指数バックオフ
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 10 * time.Millisecond
			time.Sleep(backoff)
			s.metrics.RecordLockRetry(ctx, "deduct")
		}

		err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
			r, err := s.deductInTx(ctx, req, entryID)
			if err != nil {
				return err
			}
			result = r
			return nil
		})

		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err

		if errors.Is(err, balance.ErrConcurrentUpdate) && attempt < s.maxRetries-1 {
			continue
		}
		break
	}

	if lastErr != nil {
		span.RecordError(lastErr)
		span.SetStatus(otelcodes.Error, lastErr.Error())
		if errors.Is(lastErr, balance.ErrInsufficientBalance) {
			s.metrics.RecordInsufficientBalance(ctx, req.Action)
		} else {
			s.metrics.RecordError(ctx, "deduct_failed")
		}
		s.logger.Error(ctx, "Failed to deduct sparks", lastErr, map[string]interface{}{
			"account_id": req.AccountID,
			"cost":       req.Cost,
			"action":     req.Action,
		})
		return nil, lastErr
	}

	s.logger.Info(ctx, "Sparks deducted successfully", map[string]interface{}{
		"account_id":    req.AccountID,
		"entry_id":      entryID,
		"balance_after": result.BalanceAfter,
	})

	return result, nil
}

// deductInTx 1回の消費試行をトランザクション内で実行
func (s *DeductionApplicationService) deductInTx(ctx context.Context, req *DeductRequest, entryID string) (*DeductResponse, error) {
	b, err := s.balanceRepo.FindByAccountID(ctx, req.AccountID)
	if errors.Is(err, balance.ErrBalanceNotFound) {
		// 残高行が無いアカウントは残高0扱い
		return nil, balance.ErrInsufficientBalance
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find balance: %w", err)
	}

	now := time.Now()

	trialAllocs, err := s.allocationRepo.FindConsumable(ctx, req.AccountID, allocation.KindTrial, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find trial allocations: %w", err)
	}
	topupAllocs, err := s.allocationRepo.FindConsumable(ctx, req.AccountID, allocation.KindTopup, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find topup allocations: %w", err)
	}

	plan, err := service.BuildDeductionPlan(b, trialAllocs, topupAllocs, req.Cost)
	if err != nil {
		return nil, err
	}

	allocsByID := make(map[string]*allocation.Allocation, len(trialAllocs)+len(topupAllocs))
	for _, a := range trialAllocs {
		allocsByID[a.AllocationID()] = a
	}
	for _, a := range topupAllocs {
		allocsByID[a.AllocationID()] = a
	}

	for _, step := range plan.Steps {
		if step.AllocationID != "" {
			a, ok := allocsByID[step.AllocationID]
			if !ok {
				return nil, fmt.Errorf("deduction plan references unknown allocation: %s", step.AllocationID)
			}
			if err := a.Consume(step.Amount); err != nil {
				return nil, fmt.Errorf("failed to consume allocation: %w", err)
			}
			if err := s.allocationRepo.Save(ctx, a); err != nil {
				return nil, fmt.Errorf("failed to save allocation: %w", err)
			}
		}
		if err := b.Debit(step.Pool, step.Amount); err != nil {
			return nil, fmt.Errorf("failed to debit pool: %w", err)
		}
	}

	if err := s.balanceRepo.Save(ctx, b); err != nil {
		return nil, err
	}

	entry, err := ledger.NewEntry(
		entryID,
		req.AccountID,
		-req.Cost,
		plan.PrimaryPool(),
		ledger.EntryTypeDeduction,
		req.Action,
		req.ReferenceID,
		b.TotalSparks(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build deduction entry: %w", err)
	}
	if err := s.entryRepo.Save(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to save deduction entry: %w", err)
	}

	s.metrics.RecordDeduction(ctx, req.Action, plan.PrimaryPool().String())
	s.metrics.RecordSparksMoved(ctx, ledger.EntryTypeDeduction.String(), plan.PrimaryPool().String(), req.Cost)
	s.metrics.RecordAccountBalance(ctx, req.AccountID, b.TotalSparks())

	return &DeductResponse{
		EntryID:      entryID,
		BalanceAfter: b.TotalSparks(),
		Pool:         plan.PrimaryPool().String(),
		Status:       "completed",
	}, nil
}

// Refund スパークを返金
// 返金は常に追加購入プールへ入り、無期限の割当行を作成する
func (s *DeductionApplicationService) Refund(ctx context.Context, req *RefundRequest) (*RefundResponse, error) {
	ctx, span := s.tracer.Start(ctx, "DeductionApplicationService.Refund")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", req.AccountID),
		attribute.Int64("amount", req.Amount),
	)

	s.logger.Info(ctx, "Refunding sparks", map[string]interface{}{
		"account_id": req.AccountID,
		"amount":     req.Amount,
		"reason":     req.Reason,
	})

	if req.Amount <= 0 {
		err := balance.ErrInvalidAmount
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	entryID := generateEntryID()
	allocationID := generateAllocationID()

	var result *RefundResponse
	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 10 * time.Millisecond
			time.Sleep(backoff)
			s.metrics.RecordLockRetry(ctx, "refund")
		}

		err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
			b, err := s.balanceRepo.FindByAccountID(ctx, req.AccountID)
			if errors.Is(err, balance.ErrBalanceNotFound) {
				b, err = balance.NewBalance(req.AccountID, 0, 0, 0, 0)
				if err != nil {
					return err
				}
				if err := s.balanceRepo.Create(ctx, b); err != nil {
					return fmt.Errorf("failed to create balance: %w", err)
				}
			} else if err != nil {
				return fmt.Errorf("failed to find balance: %w", err)
			}

			if err := b.Credit(balance.PoolTopup, req.Amount); err != nil {
				return err
			}

			a, err := allocation.NewAllocation(allocationID, req.AccountID, allocation.KindTopup, req.Amount, req.Amount, 0, nil)
			if err != nil {
				return fmt.Errorf("failed to build refund allocation: %w", err)
			}
			if err := s.allocationRepo.Create(ctx, a); err != nil {
				return fmt.Errorf("failed to create refund allocation: %w", err)
			}

			if err := s.balanceRepo.Save(ctx, b); err != nil {
				return err
			}

			entry, err := ledger.NewEntry(
				entryID,
				req.AccountID,
				req.Amount,
				balance.PoolTopup,
				ledger.EntryTypeRefund,
				req.Reason,
				req.ReferenceID,
				b.TotalSparks(),
			)
			if err != nil {
				return fmt.Errorf("failed to build refund entry: %w", err)
			}
			if err := s.entryRepo.Save(ctx, entry); err != nil {
				return fmt.Errorf("failed to save refund entry: %w", err)
			}

			s.metrics.RecordSparksMoved(ctx, ledger.EntryTypeRefund.String(), balance.PoolTopup.String(), req.Amount)
			s.metrics.RecordAccountBalance(ctx, req.AccountID, b.TotalSparks())

			result = &RefundResponse{
				EntryID:      entryID,
				BalanceAfter: b.TotalSparks(),
				Status:       "completed",
			}
			return nil
		})

		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err

		if errors.Is(err, balance.ErrConcurrentUpdate) && attempt < s.maxRetries-1 {
			continue
		}
		break
	}

	if lastErr != nil {
		span.RecordError(lastErr)
		span.SetStatus(otelcodes.Error, lastErr.Error())
		s.logger.Error(ctx, "Failed to refund sparks", lastErr, map[string]interface{}{
			"account_id": req.AccountID,
			"amount":     req.Amount,
		})
		s.metrics.RecordError(ctx, "refund_failed")
		return nil, lastErr
	}

	s.logger.Info(ctx, "Sparks refunded successfully", map[string]interface{}{
		"account_id":    req.AccountID,
		"entry_id":      entryID,
		"balance_after": result.BalanceAfter,
	})

	return result, nil
}

// generateEntryID 台帳エントリIDを生成
func generateEntryID() string {
	return fmt.Sprintf("ent_%s", uuid.NewString())
}

// generateAllocationID 割当IDを生成
func generateAllocationID() string {
	return fmt.Sprintf("alloc_%s", uuid.NewString())
}
