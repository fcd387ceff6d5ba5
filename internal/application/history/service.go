package history

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"spark-ledger/internal/domain/balance"
	"spark-ledger/internal/domain/ledger"
	"spark-ledger/internal/domain/service"
	otelinfra "spark-ledger/internal/infrastructure/observability/otel"
)

// HistoryApplicationService 台帳履歴アプリケーションサービス
type HistoryApplicationService struct {
	entryRepo      ledger.EntryRepository
	balanceService *service.BalanceService
	logger         *otelinfra.Logger
	metrics        *otelinfra.Metrics
	tracer         trace.Tracer
}

// NewHistoryApplicationService 新しいHistoryApplicationServiceを作成
func NewHistoryApplicationService(
	entryRepo ledger.EntryRepository,
	balanceService *service.BalanceService,
	logger *otelinfra.Logger,
	metrics *otelinfra.Metrics,
) *HistoryApplicationService {
	return &HistoryApplicationService{
		entryRepo:      entryRepo,
		balanceService: balanceService,
		logger:         logger,
		metrics:        metrics,
		tracer:         otel.Tracer("history-service"),
	}
}

// GetEntries 台帳エントリ履歴を取得
func (s *HistoryApplicationService) GetEntries(ctx context.Context, req *GetEntriesRequest) (*GetEntriesResponse, error) {
	ctx, span := s.tracer.Start(ctx, "HistoryApplicationService.GetEntries")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", req.AccountID),
		attribute.Int("limit", req.Limit),
		attribute.Int("offset", req.Offset),
	)

	s.logger.Info(ctx, "Getting ledger entries", map[string]interface{}{
		"account_id": req.AccountID,
		"limit":      req.Limit,
		"offset":     req.Offset,
		"pool":       req.Pool,
		"entry_type": req.EntryType,
	})

	// バリデーション
	if req.Limit <= 0 {
		req.Limit = 50 // デフォルト値
	}
	if req.Limit > 100 {
		req.Limit = 100 // 最大値
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	// 絞り込みはSQL側で適用する。LIMIT/OFFSETが絞り込み後の行に効くため、
	// フィルタ指定時もページが欠けない。不正な値は条件なしとして無視する
	filter := ledger.EntryFilter{}
	if req.Pool != "" {
		if pool, err := balance.NewPool(req.Pool); err == nil {
			filter.Pool = pool.String()
		}
	}
	if req.EntryType != "" {
		if entryType, err := ledger.NewEntryType(req.EntryType); err == nil {
			filter.EntryType = entryType.String()
		}
	}

	entries, err := s.entryRepo.FindByAccountID(ctx, req.AccountID, filter, req.Limit, req.Offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to get ledger entries", err, map[string]interface{}{
			"account_id": req.AccountID,
		})
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}

	return &GetEntriesResponse{
		Entries: entries,
		Total:   len(entries),
		Limit:   req.Limit,
		Offset:  req.Offset,
	}, nil
}

// Reconcile 台帳の再生結果と現在残高を照合
// 全エントリの金額合計は、そのアカウントの現在の合計残高と常に一致するはず
func (s *HistoryApplicationService) Reconcile(ctx context.Context, req *ReconcileRequest) (*ReconcileResponse, error) {
	ctx, span := s.tracer.Start(ctx, "HistoryApplicationService.Reconcile")
	defer span.End()

	span.SetAttributes(
		attribute.String("account_id", req.AccountID),
	)

	sum, err := s.entryRepo.SumByAccountID(ctx, req.AccountID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to sum ledger entries", err, map[string]interface{}{
			"account_id": req.AccountID,
		})
		return nil, fmt.Errorf("failed to sum ledger entries: %w", err)
	}

	total, err := s.balanceService.TotalBalance(ctx, req.AccountID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		s.logger.Error(ctx, "Failed to get total balance", err, map[string]interface{}{
			"account_id": req.AccountID,
		})
		return nil, fmt.Errorf("failed to get total balance: %w", err)
	}

	balanced := sum == total
	if !balanced {
		s.logger.Warn(ctx, "Ledger does not reconcile with balance", map[string]interface{}{
			"account_id":    req.AccountID,
			"ledger_sum":    sum,
			"current_total": total,
		})
		s.metrics.RecordError(ctx, "reconcile_mismatch")
	}

	span.SetAttributes(
		attribute.Int64("ledger_sum", sum),
		attribute.Int64("current_total", total),
		attribute.Bool("balanced", balanced),
	)

	return &ReconcileResponse{
		AccountID:    req.AccountID,
		LedgerSum:    sum,
		CurrentTotal: total,
		Balanced:     balanced,
	}, nil
}
