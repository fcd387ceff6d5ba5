package refresh

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

	"spark-ledger/internal/domain/balance"
	"spark-ledger/internal/domain/ledger"
	"spark-ledger/internal/domain/plan"
	otelinfra "spark-ledger/internal/infrastructure/observability/otel"
)

// RefreshApplicationService 月次リフレッシュアプリケーションサービス
// 有効なサブスクリプションのサブスクリプションプールを、繰越上限つきで
// 月間付与量だけ補充する。アカウントごとに独立した原子単位で処理する
type RefreshApplicationService struct {
	balanceRepo      balance.BalanceRepository
	subscriptionRepo plan.SubscriptionRepository
	entryRepo        ledger.EntryRepository
	txManager        ledger.TransactionManager
	logger           *otelinfra.Logger
	metrics          *otelinfra.Metrics
	tracer           trace.Tracer
	maxRetries       int
}

// NewRefreshApplicationService 新しいRefreshApplicationServiceを作成
func NewRefreshApplicationService(
	balanceRepo balance.BalanceRepository,
	subscriptionRepo plan.SubscriptionRepository,
	entryRepo ledger.EntryRepository,
	txManager ledger.TransactionManager,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *RefreshApplicationService {
	return &RefreshApplicationService{
		balanceRepo:      balanceRepo,
		subscriptionRepo: subscriptionRepo,
		entryRepo:        entryRepo,
		txManager:        txManager,
		logger:           logger,
		metrics:          metrics,
		tracer:           otel.Tracer("refresh-service"),
		maxRetries:       3,
	}
}

// RefreshSubscriptions 有効な全サブスクリプションをページングしながらリフレッシュ
func (s *RefreshApplicationService) RefreshSubscriptions(ctx context.Context, req *RefreshRequest) (*RefreshResponse, error) {
	ctx, span := s.tracer.Start(ctx, "RefreshApplicationService.RefreshSubscriptions")
	defer span.End()

	pageLimit := req.PageLimit
	if pageLimit <= 0 {
		pageLimit = 200
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}

	span.SetAttributes(
		attribute.Int("page_limit", pageLimit),
	)

	s.logger.Info(ctx, "Starting subscription refresh", map[string]interface{}{
		"page_limit": pageLimit,
	})

	resp := &RefreshResponse{}
	offset := 0
	for {
		subs, err := s.subscriptionRepo.FindActive(ctx, pageLimit, offset)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			s.logger.Error(ctx, "Failed to list active subscriptions", err, nil)
			return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
		}
		if len(subs) == 0 {
			break
		}

		for _, sub := range subs {
			granted, forfeited, err := s.refreshOne(ctx, sub, now)
			if err != nil {
				s.logger.Error(ctx, "Failed to refresh subscription, skipping", err, map[string]interface{}{
					"account_id": sub.AccountID(),
					"tier":       sub.Tier().String(),
				})
				s.metrics.RecordError(ctx, "refresh_row_failed")
				resp.Skipped++
				continue
			}
			resp.Processed++
			resp.GrantedSparks += granted
			resp.ForfeitedSparks += forfeited

			if forfeited > 0 {
				s.metrics.RecordForfeitedSparks(ctx, "rollover_cap", balance.PoolSubscription.String(), forfeited)
			}
		}

		offset += len(subs)
	}

	span.SetAttributes(
		attribute.Int("processed", resp.Processed),
		attribute.Int("skipped", resp.Skipped),
		attribute.Int64("granted_sparks", resp.GrantedSparks),
		attribute.Int64("forfeited_sparks", resp.ForfeitedSparks),
	)

	s.logger.Info(ctx, "Subscription refresh completed", map[string]interface{}{
		"processed":        resp.Processed,
		"skipped":          resp.Skipped,
		"granted_sparks":   resp.GrantedSparks,
		"forfeited_sparks": resp.ForfeitedSparks,
	})

	return resp, nil
}

// refreshOne 1アカウントのリフレッシュをリトライ付きの独立したトランザクションで実行
// 現残高のうち繰越上限から月間付与量を引いた分までを繰り越し、超過分を没収した上で
// 月間付与量を加算する。リフレッシュ後の残高は繰越上限を超えない。
// 同一期間（UTCの暦月）内で既にリフレッシュ済みのアカウントは二重付与を避けるため何も書き込まない
func (s *RefreshApplicationService) refreshOne(ctx context.Context, sub *plan.Subscription, now time.Time) (int64, int64, error) {
	allowance := sub.Tier().MonthlyAllowance()
	cap := sub.Tier().RolloverCap()

	var granted, forfeited int64
	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * 10 * time.Millisecond
			time.Sleep(backoff)
			s.metrics.RecordLockRetry(ctx, "refresh")
		}

		err := s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
			// トランザクション内で再取得し、最終リフレッシュ日時を行ロック下で判定する
			cur, err := s.subscriptionRepo.FindByAccountID(ctx, sub.AccountID())
			if err != nil {
				return fmt.Errorf("failed to find subscription: %w", err)
			}
			if cur.RefreshedInPeriod(now) {
				granted = 0
				forfeited = 0
				return nil
			}

			b, err := s.balanceRepo.FindByAccountID(ctx, sub.AccountID())
			if errors.Is(err, balance.ErrBalanceNotFound) {
				b, err = balance.NewBalance(sub.AccountID(), 0, 0, 0, 0)
				if err != nil {
					return err
				}
				if err := s.balanceRepo.Create(ctx, b); err != nil {
					return fmt.Errorf("failed to create balance: %w", err)
				}
			} else if err != nil {
				return fmt.Errorf("failed to find balance: %w", err)
			}

			curSparks := b.SubscriptionSparks()
			rolledOver := curSparks
			if rolledOver > cap-allowance {
				rolledOver = cap - allowance
			}
			forfeited = curSparks - rolledOver
			granted = allowance

			totalBefore := b.TotalSparks()
			if err := b.SetSubscriptionSparks(rolledOver + allowance); err != nil {
				return err
			}

			if err := s.balanceRepo.Save(ctx, b); err != nil {
				return err
			}

			// 没収 → 付与の順で台帳に記録し、balance_afterを逐次適用後の値に揃える
			if forfeited > 0 {
				capEntry, err := ledger.NewEntry(
					fmt.Sprintf("ent_%s", uuid.NewString()),
					sub.AccountID(),
					-forfeited,
					balance.PoolSubscription,
					ledger.EntryTypeRolloverCapForfeiture,
					"subscription_refresh",
					nil,
					totalBefore-forfeited,
				)
				if err != nil {
					return fmt.Errorf("failed to build rollover forfeiture entry: %w", err)
				}
				if err := s.entryRepo.Save(ctx, capEntry); err != nil {
					return fmt.Errorf("failed to save rollover forfeiture entry: %w", err)
				}
			}

			refreshEntry, err := ledger.NewEntry(
				fmt.Sprintf("ent_%s", uuid.NewString()),
				sub.AccountID(),
				allowance,
				balance.PoolSubscription,
				ledger.EntryTypeSubscriptionRefresh,
				"subscription_refresh",
				nil,
				b.TotalSparks(),
			)
			if err != nil {
				return fmt.Errorf("failed to build refresh entry: %w", err)
			}
			if err := s.entryRepo.Save(ctx, refreshEntry); err != nil {
				return fmt.Errorf("failed to save refresh entry: %w", err)
			}

			cur.MarkRefreshed(now)
			if err := s.subscriptionRepo.Upsert(ctx, cur); err != nil {
				return fmt.Errorf("failed to record refresh time: %w", err)
			}

			s.metrics.RecordSparksMoved(ctx, ledger.EntryTypeSubscriptionRefresh.String(), balance.PoolSubscription.String(), allowance)
			s.metrics.RecordAccountBalance(ctx, sub.AccountID(), b.TotalSparks())

			return nil
		})

		if err == nil {
			return granted, forfeited, nil
		}
		lastErr = err

		if errors.Is(err, balance.ErrConcurrentUpdate) && attempt < s.maxRetries-1 {
			continue
		}
		break
	}
	return 0, 0, lastErr
}
