package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"spark-ledger/internal/domain/plan"
)

// SubscriptionRepository MySQL実装のSubscriptionRepository
type SubscriptionRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewSubscriptionRepository 新しいSubscriptionRepositoryを作成
func NewSubscriptionRepository(db *DB) *SubscriptionRepository {
	return &SubscriptionRepository{
		db:     db,
		tracer: otel.Tracer("subscription-repository"),
	}
}

// FindByAccountID アカウントIDでサブスクリプションを取得
func (r *SubscriptionRepository) FindByAccountID(ctx context.Context, accountID string) (*plan.Subscription, error) {
	ctx, span := r.tracer.Start(ctx, "SubscriptionRepository.FindByAccountID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.account_id", accountID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "subscriptions"),
	)

	query := `
		SELECT account_id, tier, status, last_refreshed_at
		FROM subscriptions
		WHERE account_id = ?
	`

	s, err := r.scanSubscription(r.db.executor(ctx).QueryRowContext(ctx, query, accountID))
	if err == sql.ErrNoRows {
		span.SetStatus(otelcodes.Ok, "subscription not found")
		return nil, plan.ErrSubscriptionNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "subscription found")
	return s, nil
}

// Upsert サブスクリプションを作成または更新
func (r *SubscriptionRepository) Upsert(ctx context.Context, subscription *plan.Subscription) error {
	ctx, span := r.tracer.Start(ctx, "SubscriptionRepository.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.account_id", subscription.AccountID()),
		attribute.String("db.tier", subscription.Tier().String()),
		attribute.String("db.status", subscription.Status().String()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "subscriptions"),
	)

	query := `
		INSERT INTO subscriptions (account_id, tier, status, last_refreshed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			tier = VALUES(tier),
			status = VALUES(status),
			last_refreshed_at = VALUES(last_refreshed_at),
			updated_at = VALUES(updated_at)
	`

	_, err := r.db.executor(ctx).ExecContext(ctx, query,
		subscription.AccountID(),
		subscription.Tier().String(),
		subscription.Status().String(),
		subscription.LastRefreshedAt(),
		subscription.CreatedAt(),
		subscription.UpdatedAt(),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "subscription upserted")
	return nil
}

// FindActive 有効なサブスクリプション一覧を取得（ページネーション対応）
// 月次リフレッシュのページング走査に使用する
func (r *SubscriptionRepository) FindActive(ctx context.Context, limit, offset int) ([]*plan.Subscription, error) {
	ctx, span := r.tracer.Start(ctx, "SubscriptionRepository.FindActive")
	defer span.End()

	span.SetAttributes(
		attribute.Int("db.limit", limit),
		attribute.Int("db.offset", offset),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "subscriptions"),
	)

	query := `
		SELECT account_id, tier, status, last_refreshed_at
		FROM subscriptions
		WHERE status = 'active'
		ORDER BY account_id ASC
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.executor(ctx).QueryContext(ctx, query, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find active subscriptions: %w", err)
	}
	defer rows.Close()

	var subscriptions []*plan.Subscription
	for rows.Next() {
		s, err := r.scanSubscription(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subscriptions = append(subscriptions, s)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate subscriptions: %w", err)
	}

	span.SetAttributes(attribute.Int("db.rows", len(subscriptions)))
	span.SetStatus(otelcodes.Ok, "active subscriptions found")
	return subscriptions, nil
}

// scanSubscription 1行をSubscriptionエンティティに変換
func (r *SubscriptionRepository) scanSubscription(row rowScanner) (*plan.Subscription, error) {
	var accountID, tierStr, statusStr string
	var lastRefreshedAt sql.NullTime

	if err := row.Scan(&accountID, &tierStr, &statusStr, &lastRefreshedAt); err != nil {
		return nil, err
	}

	tier, err := plan.NewTier(tierStr)
	if err != nil {
		return nil, fmt.Errorf("invalid tier: %w", err)
	}

	s, err := plan.NewSubscription(accountID, tier, plan.SubscriptionStatus(statusStr))
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct subscription entity: %w", err)
	}
	if lastRefreshedAt.Valid {
		s.RestoreLastRefreshedAt(&lastRefreshedAt.Time)
	}

	return s, nil
}
