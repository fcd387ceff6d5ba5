package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"spark-ledger/internal/domain/balance"
)

// BalanceRepository MySQL実装のBalanceRepository
type BalanceRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewBalanceRepository 新しいBalanceRepositoryを作成
func NewBalanceRepository(db *DB) *BalanceRepository {
	return &BalanceRepository{
		db:     db,
		tracer: otel.Tracer("balance-repository"),
	}
}

// FindByAccountID アカウントIDで残高を取得
func (r *BalanceRepository) FindByAccountID(ctx context.Context, accountID string) (*balance.Balance, error) {
	ctx, span := r.tracer.Start(ctx, "BalanceRepository.FindByAccountID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.account_id", accountID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "account_balances"),
	)

	query := `
		SELECT account_id, trial_sparks, subscription_sparks, topup_sparks, version
		FROM account_balances
		WHERE account_id = ?
	`

	var dbAccountID string
	var trialSparks, subscriptionSparks, topupSparks int64
	var version int

	err := r.db.executor(ctx).QueryRowContext(ctx, query, accountID).Scan(
		&dbAccountID,
		&trialSparks,
		&subscriptionSparks,
		&topupSparks,
		&version,
	)

	if err == sql.ErrNoRows {
		span.SetStatus(otelcodes.Ok, "balance not found")
		return nil, balance.ErrBalanceNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find balance: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("db.total_sparks", trialSparks+subscriptionSparks+topupSparks),
		attribute.Int("db.version", version),
	)
	span.SetStatus(otelcodes.Ok, "balance found")

	b, err := balance.NewBalance(dbAccountID, trialSparks, subscriptionSparks, topupSparks, version)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct balance entity: %w", err)
	}

	return b, nil
}

// Save 残高を保存（更新、楽観的ロック対応）
// total_sparksは常に3プールの和を書き込み、合計と内訳の不変条件を行にも反映する
func (r *BalanceRepository) Save(ctx context.Context, b *balance.Balance) error {
	ctx, span := r.tracer.Start(ctx, "BalanceRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.account_id", b.AccountID()),
		attribute.Int64("db.total_sparks", b.TotalSparks()),
		attribute.Int("db.version", b.Version()),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "account_balances"),
	)

	query := `
		UPDATE account_balances
		SET trial_sparks = ?, subscription_sparks = ?, topup_sparks = ?,
			total_sparks = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE account_id = ? AND version = ?
	`

	result, err := r.db.executor(ctx).ExecContext(ctx, query,
		b.TrialSparks(),
		b.SubscriptionSparks(),
		b.TopupSparks(),
		b.TotalSparks(),
		b.AccountID(),
		b.Version(),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err := fmt.Errorf("optimistic lock failed: %w", balance.ErrConcurrentUpdate)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return err
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
	span.SetStatus(otelcodes.Ok, "balance saved")
	return nil
}

// Create 新しい残高行を作成
func (r *BalanceRepository) Create(ctx context.Context, b *balance.Balance) error {
	ctx, span := r.tracer.Start(ctx, "BalanceRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.account_id", b.AccountID()),
		attribute.Int64("db.total_sparks", b.TotalSparks()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "account_balances"),
	)

	// アカウントが存在するか確認（存在しない場合は作成）
	if err := r.ensureAccountExists(ctx, b.AccountID()); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to ensure account exists: %w", err)
	}

	query := `
		INSERT INTO account_balances (account_id, trial_sparks, subscription_sparks, topup_sparks, total_sparks, version)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.executor(ctx).ExecContext(ctx, query,
		b.AccountID(),
		b.TrialSparks(),
		b.SubscriptionSparks(),
		b.TopupSparks(),
		b.TotalSparks(),
		b.Version(),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to create balance: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "balance created")
	return nil
}

// ensureAccountExists アカウントが存在することを確認（存在しない場合は作成）
func (r *BalanceRepository) ensureAccountExists(ctx context.Context, accountID string) error {
	query := `
		INSERT INTO accounts (account_id)
		VALUES (?)
		ON DUPLICATE KEY UPDATE updated_at = CURRENT_TIMESTAMP
	`

	_, err := r.db.executor(ctx).ExecContext(ctx, query, accountID)
	if err != nil {
		return fmt.Errorf("failed to ensure account exists: %w", err)
	}

	return nil
}
