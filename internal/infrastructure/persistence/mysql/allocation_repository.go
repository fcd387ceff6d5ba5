package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"spark-ledger/internal/domain/allocation"
)

// AllocationRepository MySQL実装のAllocationRepository
type AllocationRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewAllocationRepository 新しいAllocationRepositoryを作成
func NewAllocationRepository(db *DB) *AllocationRepository {
	return &AllocationRepository{
		db:     db,
		tracer: otel.Tracer("allocation-repository"),
	}
}

// Create 新しい割当を作成
func (r *AllocationRepository) Create(ctx context.Context, a *allocation.Allocation) error {
	ctx, span := r.tracer.Start(ctx, "AllocationRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.allocation_id", a.AllocationID()),
		attribute.String("db.account_id", a.AccountID()),
		attribute.String("db.kind", a.Kind().String()),
		attribute.Int64("db.amount_granted", a.AmountGranted()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "allocations"),
	)

	query := `
		INSERT INTO allocations (
			allocation_id, account_id, kind, amount_granted, amount_remaining,
			purchase_price_cents, expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var expiresAt interface{}
	if a.ExpiresAt() != nil {
		expiresAt = *a.ExpiresAt()
	}

	_, err := r.db.executor(ctx).ExecContext(ctx, query,
		a.AllocationID(),
		a.AccountID(),
		a.Kind().String(),
		a.AmountGranted(),
		a.AmountRemaining(),
		a.PurchasePriceCents(),
		expiresAt,
		a.CreatedAt(),
		a.UpdatedAt(),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to create allocation: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "allocation created")
	return nil
}

// Save 割当を保存（残量の更新）
// 減少方向の更新しか発生しないため、現在値以下への条件付き更新で多重消費を防ぐ
func (r *AllocationRepository) Save(ctx context.Context, a *allocation.Allocation) error {
	ctx, span := r.tracer.Start(ctx, "AllocationRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.allocation_id", a.AllocationID()),
		attribute.Int64("db.amount_remaining", a.AmountRemaining()),
		attribute.String("db.operation", "UPDATE"),
		attribute.String("db.table", "allocations"),
	)

	query := `
		UPDATE allocations
		SET amount_remaining = ?, updated_at = CURRENT_TIMESTAMP
		WHERE allocation_id = ? AND amount_remaining >= ?
	`

	result, err := r.db.executor(ctx).ExecContext(ctx, query,
		a.AmountRemaining(),
		a.AllocationID(),
		a.AmountRemaining(),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save allocation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		err := fmt.Errorf("conditional update failed: allocation not found or remaining amount changed")
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return err
	}

	span.SetStatus(otelcodes.Ok, "allocation saved")
	return nil
}

// FindByAllocationID 割当IDで割当を取得
func (r *AllocationRepository) FindByAllocationID(ctx context.Context, allocationID string) (*allocation.Allocation, error) {
	ctx, span := r.tracer.Start(ctx, "AllocationRepository.FindByAllocationID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.allocation_id", allocationID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "allocations"),
	)

	query := `
		SELECT allocation_id, account_id, kind, amount_granted, amount_remaining,
			purchase_price_cents, expires_at
		FROM allocations
		WHERE allocation_id = ?
	`

	a, err := r.scanAllocation(r.db.executor(ctx).QueryRowContext(ctx, query, allocationID))
	if err == sql.ErrNoRows {
		span.SetStatus(otelcodes.Ok, "allocation not found")
		return nil, allocation.ErrAllocationNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find allocation: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "allocation found")
	return a, nil
}

// FindConsumable アカウントと種別で残量のある未失効の割当を取得
// 有効期限の近い順に並べる（無期限は最後）。消費優先順位の根拠となる並び
func (r *AllocationRepository) FindConsumable(ctx context.Context, accountID string, kind allocation.Kind, now time.Time) ([]*allocation.Allocation, error) {
	ctx, span := r.tracer.Start(ctx, "AllocationRepository.FindConsumable")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.account_id", accountID),
		attribute.String("db.kind", kind.String()),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "allocations"),
	)

	query := `
		SELECT allocation_id, account_id, kind, amount_granted, amount_remaining,
			purchase_price_cents, expires_at
		FROM allocations
		WHERE account_id = ? AND kind = ? AND amount_remaining > 0
			AND (expires_at IS NULL OR expires_at >= ?)
		ORDER BY expires_at IS NULL, expires_at ASC, created_at ASC
	`

	rows, err := r.db.executor(ctx).QueryContext(ctx, query, accountID, kind.String(), now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find consumable allocations: %w", err)
	}
	defer rows.Close()

	allocations, err := r.scanAllocations(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("db.rows", len(allocations)))
	span.SetStatus(otelcodes.Ok, "consumable allocations found")
	return allocations, nil
}

// FindExpired 指定時刻より前に失効し、残量が残っている割当を取得
// 残量0の行は選択されないため、スイープの再実行は自然に冪等になる
func (r *AllocationRepository) FindExpired(ctx context.Context, kind allocation.Kind, now time.Time, limit int) ([]*allocation.Allocation, error) {
	ctx, span := r.tracer.Start(ctx, "AllocationRepository.FindExpired")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.kind", kind.String()),
		attribute.Int("db.limit", limit),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "allocations"),
	)

	query := `
		SELECT allocation_id, account_id, kind, amount_granted, amount_remaining,
			purchase_price_cents, expires_at
		FROM allocations
		WHERE kind = ? AND amount_remaining > 0
			AND expires_at IS NOT NULL AND expires_at < ?
		ORDER BY expires_at ASC
		LIMIT ?
	`

	rows, err := r.db.executor(ctx).QueryContext(ctx, query, kind.String(), now, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find expired allocations: %w", err)
	}
	defer rows.Close()

	allocations, err := r.scanAllocations(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("db.rows", len(allocations)))
	span.SetStatus(otelcodes.Ok, "expired allocations found")
	return allocations, nil
}

// rowScanner sql.Rowとsql.Rowsの共通Scanインターフェース
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanAllocation 1行をAllocationエンティティに変換
func (r *AllocationRepository) scanAllocation(row rowScanner) (*allocation.Allocation, error) {
	var allocationID, accountID, kindStr string
	var amountGranted, amountRemaining, purchasePriceCents int64
	var expiresAt sql.NullTime

	if err := row.Scan(
		&allocationID,
		&accountID,
		&kindStr,
		&amountGranted,
		&amountRemaining,
		&purchasePriceCents,
		&expiresAt,
	); err != nil {
		return nil, err
	}

	kind, err := allocation.NewKind(kindStr)
	if err != nil {
		return nil, fmt.Errorf("invalid allocation kind: %w", err)
	}

	var expiresAtPtr *time.Time
	if expiresAt.Valid {
		t := expiresAt.Time
		expiresAtPtr = &t
	}

	a, err := allocation.NewAllocation(allocationID, accountID, kind, amountGranted, amountRemaining, purchasePriceCents, expiresAtPtr)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct allocation entity: %w", err)
	}

	return a, nil
}

// scanAllocations 複数行をAllocationエンティティのスライスに変換
func (r *AllocationRepository) scanAllocations(rows *sql.Rows) ([]*allocation.Allocation, error) {
	var allocations []*allocation.Allocation
	for rows.Next() {
		a, err := r.scanAllocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		allocations = append(allocations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate allocations: %w", err)
	}
	return allocations, nil
}
