package sweep

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
	otelinfra "spark-ledger/internal/infrastructure/observability/otel"
)

// SweepApplicationService 失効スイープアプリケーションサービス
// 失効した割当の残量を没収し、プール残高と台帳へ反映する。
// 残量0の行は選択対象にならないため、再実行は自然に冪等になる
type SweepApplicationService struct {
	balanceRepo    balance.BalanceRepository
	allocationRepo allocation.AllocationRepository
	entryRepo      ledger.EntryRepository
	txManager      ledger.TransactionManager
	logger         *otelinfra.Logger
	metrics        *otelinfra.Metrics
	tracer         trace.Tracer
	maxRetries     int
}

// NewSweepApplicationService 新しいSweepApplicationServiceを作成
func NewSweepApplicationService(
	balanceRepo balance.BalanceRepository,
	allocationRepo allocation.AllocationRepository,
	entryRepo ledger.EntryRepository,
	txManager ledger.TransactionManager,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *SweepApplicationService {
	return &SweepApplicationService{
		balanceRepo:    balanceRepo,
		allocationRepo: allocationRepo,
		entryRepo:      entryRepo,
		txManager:      txManager,
		logger:         logger,
		metrics:        metrics,
		tracer:         otel.Tracer("sweep-service"),
		maxRetries:     3,
	}
}

// SweepTrialExpiry 失効したトライアル割当をスイープ
func (s *SweepApplicationService) SweepTrialExpiry(ctx context.Context, req *SweepRequest) (*SweepResponse, error) {
	return s.sweep(ctx, allocation.KindTrial, req)
}

// SweepTopupExpiry 失効した追加購入割当をスイープ
// 失効時点の未消費購入分の金銭価値（ブレッケージ）をあわせて報告する
func (s *SweepApplicationService) SweepTopupExpiry(ctx context.Context, req *SweepRequest) (*SweepResponse, error) {
	return s.sweep(ctx, allocation.KindTopup, req)
}

// sweep 指定種別の失効割当を1行ずつ独立した原子単位で処理する
// 1行の失敗は記録してスキップし、残りの行の処理を続ける
func (s *SweepApplicationService) sweep(ctx context.Context, kind allocation.Kind, req *SweepRequest) (*SweepResponse, error) {
	ctx, span := s.tracer.Start(ctx, "SweepApplicationService.Sweep")
	defer span.End()

	span.SetAttributes(
		attribute.String("kind", kind.String()),
		attribute.Int("limit", req.Limit),
	)

	s.logger.Info(ctx, "Starting expiry sweep", map[string]interface{}{
		"kind":  kind.String(),
		"limit": req.Limit,
	})

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	expired, err := s.allocationRepo.FindExpired(ctx, kind, now, req.Limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to find expired allocations", err, map[string]interface{}{
			"kind": kind.String(),
		})
		return nil, fmt.Errorf("failed to find expired allocations: %w", err)
	}

	resp := &SweepResponse{}
	for _, a := range expired {
		forfeited, breakage, err := s.sweepOne(ctx, a.AllocationID())
		if err != nil {
			// 失敗した行は記録してスキップ。次回のスイープで再処理される
			s.logger.Error(ctx, "Failed to sweep allocation, skipping", err, map[string]interface{}{
				"allocation_id": a.AllocationID(),
				"account_id":    a.AccountID(),
			})
			s.metrics.RecordError(ctx, "sweep_row_failed")
			resp.Skipped++
			continue
		}
		resp.Processed++
		resp.ForfeitedSparks += forfeited
		resp.BreakageCents += breakage

		if forfeited > 0 {
			s.metrics.RecordForfeitedSparks(ctx, "expiry", kind.Pool().String(), forfeited)
		}
		if breakage > 0 {
			s.metrics.RecordBreakage(ctx, breakage)
		}
	}

	span.SetAttributes(
		attribute.Int("processed", resp.Processed),
		attribute.Int("skipped", resp.Skipped),
		attribute.Int64("forfeited_sparks", resp.ForfeitedSparks),
	)

	s.logger.Info(ctx, "Expiry sweep completed", map[string]interface{}{
		"kind":             kind.String(),
		"processed":        resp.Processed,
		"skipped":          resp.Skipped,
		"forfeited_sparks": resp.ForfeitedSparks,
		"breakage_cents":   resp.BreakageCents,
	})

	return resp, nil
}

// sweepOne 1つの割当の没収をリトライ付きの独立したトランザクションで実行
func (s *SweepApplicationService) sweepOne(ctx context.Context, allocationID string) (int64, int64, error) {
	var forfeited, breakage int64
	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 10 * time.Millisecond
			time.Sleep(backoff)
			s.metrics.RecordLockRetry(ctx, "sweep")
		}

		err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
			// 選択からここまでの間に消費・没収された可能性があるため再読込する
			a, err := s.allocationRepo.FindByAllocationID(ctx, allocationID)
			if err != nil {
				return fmt.Errorf("failed to reload allocation: %w", err)
			}
			if a.AmountRemaining() == 0 {
				forfeited, breakage = 0, 0
				return nil
			}

			breakage = a.BreakageCents()
			forfeited = a.Forfeit()
			if err := s.allocationRepo.Save(ctx, a); err != nil {
				return fmt.Errorf("failed to save forfeited allocation: %w", err)
			}

			b, err := s.balanceRepo.FindByAccountID(ctx, a.AccountID())
			if err != nil {
				return fmt.Errorf("failed to find balance: %w", err)
			}

			// 帳簿と残高がずれていた場合でもプール残高を0未満にはしない
			debited, err := b.DebitFloored(a.Kind().Pool(), forfeited)
			if err != nil {
				return err
			}
			if debited != forfeited {
				s.logger.Warn(ctx, "Pool balance lower than forfeited remainder", map[string]interface{}{
					"allocation_id": allocationID,
					"forfeited":     forfeited,
					"debited":       debited,
				})
			}

			if err := s.balanceRepo.Save(ctx, b); err != nil {
				return err
			}

			// 台帳は残高の実変動を記録する。変動が無ければエントリも作らない
			if debited > 0 {
				entry, err := ledger.NewEntry(
					fmt.Sprintf("ent_%s", uuid.NewString()),
					a.AccountID(),
					-debited,
					a.Kind().Pool(),
					ledger.EntryTypeExpiryForfeiture,
					"expiry_sweep",
					strPtr(allocationID),
					b.TotalSparks(),
				)
				if err != nil {
					return fmt.Errorf("failed to build forfeiture entry: %w", err)
				}
				if err := s.entryRepo.Save(ctx, entry); err != nil {
					return fmt.Errorf("failed to save forfeiture entry: %w", err)
				}
			}

			return nil
		})

		if err == nil {
			return forfeited, breakage, nil
		}
		lastErr = err

		if errors.Is(err, balance.ErrConcurrentUpdate) && attempt < s.maxRetries-1 {
			continue
		}
		break
	}
	return 0, 0, lastErr
}

// strPtr 文字列ポインタを返す
func strPtr(s string) *string {
	return &s
}
