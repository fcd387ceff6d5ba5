package webhook

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"spark-ledger/internal/application/grant"
	"spark-ledger/internal/domain/balance"
	"spark-ledger/internal/domain/costtable"
	"spark-ledger/internal/domain/ledger"
	"spark-ledger/internal/domain/payment_event"
	"spark-ledger/internal/domain/plan"
	otelinfra "spark-ledger/internal/infrastructure/observability/otel"
)

// WebhookApplicationService 決済イベント調整アプリケーションサービス
// 決済プロセッサからのイベントを台帳の状態へ反映する。
// 処理済みイベントの記録と副作用は同一トランザクションで行い、
// at-least-once配信に対して冪等になる
type WebhookApplicationService struct {
	processedEventRepo payment_event.ProcessedEventRepository
	subscriptionRepo   plan.SubscriptionRepository
	grantService       *grant.GrantApplicationService
	costTable          *costtable.CostTable
	txManager          ledger.TransactionManager
	logger             *otelinfra.Logger
	metrics            *otelinfra.Metrics
	tracer             trace.Tracer
}

// NewWebhookApplicationService 新しいWebhookApplicationServiceを作成
func NewWebhookApplicationService(
	processedEventRepo payment_event.ProcessedEventRepository,
	subscriptionRepo plan.SubscriptionRepository,
	grantService *grant.GrantApplicationService,
	costTable *costtable.CostTable,
	txManager ledger.TransactionManager,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *WebhookApplicationService {
	return &WebhookApplicationService{
		processedEventRepo: processedEventRepo,
		subscriptionRepo:   subscriptionRepo,
		grantService:       grantService,
		costTable:          costTable,
		txManager:          txManager,
		logger:             logger,
		metrics:            metrics,
		tracer:             otel.Tracer("webhook-service"),
	}
}

// HandleEvent 決済イベントを処理
// 同一イベントIDの再配信は副作用なしで受領確認として扱う
func (s *WebhookApplicationService) HandleEvent(ctx context.Context, req *HandleEventRequest) (*HandleEventResponse, error) {
	ctx, span := s.tracer.Start(ctx, "WebhookApplicationService.HandleEvent")
	defer span.End()

	span.SetAttributes(
		attribute.String("event_id", req.EventID),
		attribute.String("event_type", req.EventType),
		attribute.String("account_id", req.AccountID),
	)

	s.logger.Info(ctx, "Handling payment event", map[string]interface{}{
		"event_id":   req.EventID,
		"event_type": req.EventType,
		"account_id": req.AccountID,
	})

	eventType, err := payment_event.NewEventType(req.EventType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	processed, err := payment_event.NewProcessedEvent(req.EventID, eventType, req.AccountID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	err = s.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		// 主キー挿入が再配信の検出を兼ねる。副作用と同一トランザクションなので
		// 記録だけ残って副作用が消える、あるいはその逆は起こらない
		if err := s.processedEventRepo.Create(ctx, processed); err != nil {
			return err
		}
		return s.applyEvent(ctx, eventType, req)
	})

	if errors.Is(err, payment_event.ErrDuplicateEvent) {
		s.logger.Info(ctx, "Duplicate payment event acknowledged", map[string]interface{}{
			"event_id": req.EventID,
		})
		return &HandleEventResponse{
			EventID:   req.EventID,
			Status:    "acknowledged",
			Duplicate: true,
		}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to handle payment event", err, map[string]interface{}{
			"event_id":   req.EventID,
			"event_type": req.EventType,
		})
		s.metrics.RecordError(ctx, "webhook_failed")
		return nil, err
	}

	s.logger.Info(ctx, "Payment event handled successfully", map[string]interface{}{
		"event_id":   req.EventID,
		"event_type": req.EventType,
	})

	return &HandleEventResponse{
		EventID: req.EventID,
		Status:  "processed",
	}, nil
}

// applyEvent イベント種別ごとの副作用を適用
func (s *WebhookApplicationService) applyEvent(ctx context.Context, eventType payment_event.EventType, req *HandleEventRequest) error {
	switch eventType {
	case payment_event.EventTypePaymentCompleted:
		return s.applyPaymentCompleted(ctx, req)
	case payment_event.EventTypeSubscriptionActivated, payment_event.EventTypeSubscriptionUpdated:
		return s.applySubscriptionChange(ctx, req)
	case payment_event.EventTypeSubscriptionCanceled:
		return s.applySubscriptionCanceled(ctx, req)
	default:
		return payment_event.ErrInvalidEventType
	}
}

// applyPaymentCompleted 単発決済を追加購入付与として反映
func (s *WebhookApplicationService) applyPaymentCompleted(ctx context.Context, req *HandleEventRequest) error {
	sparks := req.Sparks
	if sparks == 0 && req.Action != "" {
		// 機能単位の購入: 付与量をコスト表から解決
		cost, ok := s.costTable.Cost(req.Action)
		if !ok {
			return fmt.Errorf("unknown action in payment event: %s", req.Action)
		}
		sparks = cost
	}
	if sparks <= 0 {
		return balance.ErrInvalidAmount
	}

	_, err := s.grantService.GrantTopup(ctx, &grant.GrantTopupRequest{
		AccountID:   req.AccountID,
		Sparks:      sparks,
		PriceCents:  req.PriceCents,
		ExpiresAt:   req.ExpiresAt,
		ReferenceID: strPtr(req.EventID),
	})
	if err != nil {
		return fmt.Errorf("failed to grant topup for payment event: %w", err)
	}
	return nil
}

// applySubscriptionChange サブスクリプションの有効化・プラン変更を反映
func (s *WebhookApplicationService) applySubscriptionChange(ctx context.Context, req *HandleEventRequest) error {
	tier, err := plan.NewTier(req.Tier)
	if err != nil {
		return err
	}

	sub, err := s.subscriptionRepo.FindByAccountID(ctx, req.AccountID)
	if errors.Is(err, plan.ErrSubscriptionNotFound) {
		sub, err = plan.NewSubscription(req.AccountID, tier, plan.SubscriptionStatusActive)
		if err != nil {
			return err
		}
	} else if err != nil {
		return fmt.Errorf("failed to find subscription: %w", err)
	} else {
		if err := sub.ChangeTier(tier); err != nil {
			return err
		}
		sub.Activate()
	}

	if err := s.subscriptionRepo.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// applySubscriptionCanceled 解約を反映
// 残っているサブスクリプションプール残高は次回リフレッシュまで消費可能なまま残す
func (s *WebhookApplicationService) applySubscriptionCanceled(ctx context.Context, req *HandleEventRequest) error {
	sub, err := s.subscriptionRepo.FindByAccountID(ctx, req.AccountID)
	if errors.Is(err, plan.ErrSubscriptionNotFound) {
		// 解約対象が無い場合は受領確認のみ
		s.logger.Warn(ctx, "Cancel event for unknown subscription", map[string]interface{}{
			"account_id": req.AccountID,
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to find subscription: %w", err)
	}

	sub.Cancel()
	if err := s.subscriptionRepo.Upsert(ctx, sub); err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// strPtr 文字列ポインタを返す
func strPtr(s string) *string {
	return &s
}
