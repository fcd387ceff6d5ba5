package grant

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
	"spark-ledger/internal/infrastructure/config"
	otelinfra "spark-ledger/internal/infrastructure/observability/otel"
)

// GrantApplicationService 付与アプリケーションサービス
// トライアル付与と追加購入付与を提供する。追加購入はWebhook経由でも呼ばれる
type GrantApplicationService struct {
	balanceRepo    balance.BalanceRepository
	allocationRepo allocation.AllocationRepository
	entryRepo      ledger.EntryRepository
	txManager      ledger.TransactionManager
	trialConfig    *config.TrialConfig
	logger         *otelinfra.Logger
	metrics        *otelinfra.Metrics
	tracer         trace.Tracer
	maxRetries     int
}

// NewGrantApplicationService 新しいGrantApplicationServiceを作成
func NewGrantApplicationService(
	balanceRepo balance.BalanceRepository,
	allocationRepo allocation.AllocationRepository,
	entryRepo ledger.EntryRepository,
	txManager ledger.TransactionManager,
	trialConfig *config.TrialConfig,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *GrantApplicationService {
	return &GrantApplicationService{
		balanceRepo:    balanceRepo,
		allocationRepo: allocationRepo,
		entryRepo:      entryRepo,
		txManager:      txManager,
		trialConfig:    trialConfig,
		logger:         logger,
		metrics:        metrics,
		tracer:         otel.Tracer("grant-service"),
		maxRetries:     3,
	}
}

// GrantTrial トライアルスパークを付与
func (s *GrantApplicationService) GrantTrial(ctx context.Context, req *GrantTrialRequest) (*GrantTrialResponse, error) {
	ctx, span := s.tracer.Start(ctx, "GrantApplicationService.GrantTrial")
	defer span.End()

	sparks := req.Sparks
	if sparks == 0 {
		sparks = s.trialConfig.Sparks
	}
	expiresAt := time.Now().Add(s.trialConfig.TTL)
	if req.ExpiresAt != nil {
		expiresAt = *req.ExpiresAt
	}

	span.SetAttributes(
		attribute.String("account_id", req.AccountID),
		attribute.Int64("sparks", sparks),
	)

	s.logger.Info(ctx, "Granting trial sparks", map[string]interface{}{
		"account_id": req.AccountID,
		"sparks":     sparks,
		"expires_at": expiresAt,
	})

	if sparks <= 0 {
		err := balance.ErrInvalidAmount
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	allocationID := generateAllocationID()
	entryID := generateEntryID()

	var balanceAfter int64
	err := s.grantWithRetry(ctx, "grant_trial", func(ctx context.Context) error {
		b, err := s.findOrCreateBalance(ctx, req.AccountID)
		if err != nil {
			return err
		}

		if err := b.Credit(balance.PoolTrial, sparks); err != nil {
			return err
		}

		a, err := allocation.NewAllocation(allocationID, req.AccountID, allocation.KindTrial, sparks, sparks, 0, &expiresAt)
		if err != nil {
			return fmt.Errorf("failed to build trial allocation: %w", err)
		}
		if err := s.allocationRepo.Create(ctx, a); err != nil {
			return fmt.Errorf("failed to create trial allocation: %w", err)
		}

		if err := s.balanceRepo.Save(ctx, b); err != nil {
			return err
		}

		entry, err := ledger.NewEntry(
			entryID,
			req.AccountID,
			sparks,
			balance.PoolTrial,
			ledger.EntryTypeGrant,
			"trial_grant",
			strPtr(allocationID),
			b.TotalSparks(),
		)
		if err != nil {
			return fmt.Errorf("failed to build grant entry: %w", err)
		}
		if err := s.entryRepo.Save(ctx, entry); err != nil {
			return fmt.Errorf("failed to save grant entry: %w", err)
		}

		s.metrics.RecordSparksMoved(ctx, ledger.EntryTypeGrant.String(), balance.PoolTrial.String(), sparks)
		s.metrics.RecordAccountBalance(ctx, req.AccountID, b.TotalSparks())

		balanceAfter = b.TotalSparks()
		return nil
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to grant trial sparks", err, map[string]interface{}{
			"account_id": req.AccountID,
			"sparks":     sparks,
		})
		s.metrics.RecordError(ctx, "grant_trial_failed")
		return nil, err
	}

	s.logger.Info(ctx, "Trial sparks granted successfully", map[string]interface{}{
		"account_id":    req.AccountID,
		"allocation_id": allocationID,
		"balance_after": balanceAfter,
	})

	return &GrantTrialResponse{
		AllocationID: allocationID,
		EntryID:      entryID,
		Sparks:       sparks,
		ExpiresAt:    expiresAt,
		BalanceAfter: balanceAfter,
		Status:       "completed",
	}, nil
}

// GrantTopup 追加購入スパークを付与
func (s *GrantApplicationService) GrantTopup(ctx context.Context, req *GrantTopupRequest) (*GrantTopupResponse, error) {
	ctx, span := s.tracer.Start(ctx, "GrantApplicationService.GrantTopup")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", req.AccountID),
		attribute.Int64("sparks", req.Sparks),
		attribute.Int64("price_cents", req.PriceCents),
	)

	s.logger.Info(ctx, "Granting topup sparks", map[string]interface{}{
		"account_id":  req.AccountID,
		"sparks":      req.Sparks,
		"price_cents": req.PriceCents,
	})

	if req.Sparks <= 0 {
		err := balance.ErrInvalidAmount
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	allocationID := generateAllocationID()
	entryID := generateEntryID()

	var balanceAfter int64
	err := s.grantWithRetry(ctx, "grant_topup", func(ctx context.Context) error {
		b, err := s.findOrCreateBalance(ctx, req.AccountID)
		if err != nil {
			return err
		}

		if err := b.Credit(balance.PoolTopup, req.Sparks); err != nil {
			return err
		}

		a, err := allocation.NewAllocation(allocationID, req.AccountID, allocation.KindTopup, req.Sparks, req.Sparks, req.PriceCents, req.ExpiresAt)
		if err != nil {
			return fmt.Errorf("failed to build topup allocation: %w", err)
		}
		if err := s.allocationRepo.Create(ctx, a); err != nil {
			return fmt.Errorf("failed to create topup allocation: %w", err)
		}

		if err := s.balanceRepo.Save(ctx, b); err != nil {
			return err
		}

		referenceID := req.ReferenceID
		if referenceID == nil {
			referenceID = strPtr(allocationID)
		}

		entry, err := ledger.NewEntry(
			entryID,
			req.AccountID,
			req.Sparks,
			balance.PoolTopup,
			ledger.EntryTypePurchase,
			"topup_purchase",
			referenceID,
			b.TotalSparks(),
		)
		if err != nil {
			return fmt.Errorf("failed to build purchase entry: %w", err)
		}
		if err := s.entryRepo.Save(ctx, entry); err != nil {
			return fmt.Errorf("failed to save purchase entry: %w", err)
		}

		s.metrics.RecordSparksMoved(ctx, ledger.EntryTypePurchase.String(), balance.PoolTopup.String(), req.Sparks)
		s.metrics.RecordAccountBalance(ctx, req.AccountID, b.TotalSparks())

		balanceAfter = b.TotalSparks()
		return nil
	})

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to grant topup sparks", err, map[string]interface{}{
			"account_id": req.AccountID,
			"sparks":     req.Sparks,
		})
		s.metrics.RecordError(ctx, "grant_topup_failed")
		return nil, err
	}

	s.logger.Info(ctx, "Topup sparks granted successfully", map[string]interface{}{
		"account_id":    req.AccountID,
		"allocation_id": allocationID,
		"balance_after": balanceAfter,
	})

	return &GrantTopupResponse{
		AllocationID: allocationID,
		EntryID:      entryID,
		Sparks:       req.Sparks,
		BalanceAfter: balanceAfter,
		Status:       "completed",
	}, nil
}

// grantWithRetry 楽観的ロック競合をリトライしながらトランザクション内でfnを実行
func (s *GrantApplicationService) grantWithRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	// 既存トランザクションへ参加する場合、失敗した書き込みはロールバックされずに残るため
	// リトライしても成功し得ない。1回だけ実行して結果をそのまま返す
	if s.txManager.InTransaction(ctx) {
		return s.txManager.WithTransaction(ctx, fn)
	}

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 10 * time.Millisecond
			time.Sleep(backoff)
			s.metrics.RecordLockRetry(ctx, operation)
		}

		err := s.txManager.WithTransaction(ctx, fn)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, balance.ErrConcurrentUpdate) && attempt < s.maxRetries-1 {
			continue
		}
		break
	}
	return lastErr
}

// findOrCreateBalance 残高行を取得し、存在しない場合はゼロ残高で作成
func (s *GrantApplicationService) findOrCreateBalance(ctx context.Context, accountID string) (*balance.Balance, error) {
	b, err := s.balanceRepo.FindByAccountID(ctx, accountID)
	if errors.Is(err, balance.ErrBalanceNotFound) {
		b, err = balance.NewBalance(accountID, 0, 0, 0, 0)
		if err != nil {
			return nil, err
		}
		if err := s.balanceRepo.Create(ctx, b); err != nil {
			return nil, fmt.Errorf("failed to create balance: %w", err)
		}
		return b, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find balance: %w", err)
	}
	return b, nil
}

// generateEntryID 台帳エントリIDを生成
func generateEntryID() string {
	return fmt.Sprintf("ent_%s", uuid.NewString())
}

// generateAllocationID 割当IDを生成
func generateAllocationID() string {
	return fmt.Sprintf("alloc_%s", uuid.NewString())
}

// strPtr 文字列ポインタを返す
func strPtr(s string) *string {
	return &s
}
