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
	"spark-ledger/internal/domain/ledger"
)

// LedgerEntryRepository MySQL実装のEntryRepository
// ledger_entriesは追記専用。UPDATE/DELETEを発行するメソッドは存在しない
type LedgerEntryRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewLedgerEntryRepository 新しいLedgerEntryRepositoryを作成
func NewLedgerEntryRepository(db *DB) *LedgerEntryRepository {
	return &LedgerEntryRepository{
		db:     db,
		tracer: otel.Tracer("ledger-entry-repository"),
	}
}

// Save エントリを保存（追記のみ）
func (r *LedgerEntryRepository) Save(ctx context.Context, entry *ledger.Entry) error {
	ctx, span := r.tracer.Start(ctx, "LedgerEntryRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.entry_id", entry.EntryID()),
		attribute.String("db.account_id", entry.AccountID()),
		attribute.Int64("db.amount", entry.Amount()),
		attribute.String("db.entry_type", entry.EntryType().String()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "ledger_entries"),
	)

	query := `
		INSERT INTO ledger_entries (
			entry_id, account_id, amount, pool, entry_type, action,
			reference_id, balance_after, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var referenceID interface{}
	if entry.ReferenceID() != nil {
		referenceID = *entry.ReferenceID()
	}

	_, err := r.db.executor(ctx).ExecContext(ctx, query,
		entry.EntryID(),
		entry.AccountID(),
		entry.Amount(),
		entry.Pool().String(),
		entry.EntryType().String(),
		entry.Action(),
		referenceID,
		entry.BalanceAfter(),
		entry.CreatedAt(),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to save ledger entry: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "ledger entry saved")
	return nil
}

// FindByEntryID エントリIDでエントリを取得
func (r *LedgerEntryRepository) FindByEntryID(ctx context.Context, entryID string) (*ledger.Entry, error) {
	ctx, span := r.tracer.Start(ctx, "LedgerEntryRepository.FindByEntryID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.entry_id", entryID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "ledger_entries"),
	)

	query := `
		SELECT entry_id, account_id, amount, pool, entry_type, action,
			reference_id, balance_after
		FROM ledger_entries
		WHERE entry_id = ?
	`

	entry, err := r.scanEntry(r.db.executor(ctx).QueryRowContext(ctx, query, entryID))
	if err == sql.ErrNoRows {
		span.SetStatus(otelcodes.Ok, "ledger entry not found")
		return nil, ledger.ErrEntryNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find ledger entry: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "ledger entry found")
	return entry, nil
}

// FindByAccountID アカウントIDでエントリ一覧を取得（新しい順、ページネーション対応）
// filterの指定はWHERE句に反映され、LIMIT/OFFSETは絞り込み後の行に対して適用される
func (r *LedgerEntryRepository) FindByAccountID(ctx context.Context, accountID string, filter ledger.EntryFilter, limit, offset int) ([]*ledger.Entry, error) {
	ctx, span := r.tracer.Start(ctx, "LedgerEntryRepository.FindByAccountID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.account_id", accountID),
		attribute.Int("db.limit", limit),
		attribute.Int("db.offset", offset),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "ledger_entries"),
	)

	query := `
		SELECT entry_id, account_id, amount, pool, entry_type, action,
			reference_id, balance_after
		FROM ledger_entries
		WHERE account_id = ?
	`
	args := []interface{}{accountID}

	if filter.Pool != "" {
		query += " AND pool = ?"
		args = append(args, filter.Pool)
	}
	if filter.EntryType != "" {
		query += " AND entry_type = ?"
		args = append(args, filter.EntryType)
	}

	query += `
		ORDER BY created_at DESC, entry_id DESC
		LIMIT ? OFFSET ?
	`
	args = append(args, limit, offset)

	rows, err := r.db.executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		entry, err := r.scanEntry(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}

	span.SetAttributes(attribute.Int("db.rows", len(entries)))
	span.SetStatus(otelcodes.Ok, "ledger entries found")
	return entries, nil
}

// SumByAccountID アカウントの全エントリの金額合計を取得（照合用）
func (r *LedgerEntryRepository) SumByAccountID(ctx context.Context, accountID string) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "LedgerEntryRepository.SumByAccountID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.account_id", accountID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "ledger_entries"),
	)

	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM ledger_entries
		WHERE account_id = ?
	`

	var sum int64
	err := r.db.executor(ctx).QueryRowContext(ctx, query, accountID).Scan(&sum)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return 0, fmt.Errorf("failed to sum ledger entries: %w", err)
	}

	span.SetAttributes(attribute.Int64("db.sum", sum))
	span.SetStatus(otelcodes.Ok, "ledger entries summed")
	return sum, nil
}

// scanEntry 1行をEntryエンティティに変換
func (r *LedgerEntryRepository) scanEntry(row rowScanner) (*ledger.Entry, error) {
	var entryID, accountID, poolStr, entryTypeStr, action string
	var amount, balanceAfter int64
	var referenceID sql.NullString

	if err := row.Scan(
		&entryID,
		&accountID,
		&amount,
		&poolStr,
		&entryTypeStr,
		&action,
		&referenceID,
		&balanceAfter,
	); err != nil {
		return nil, err
	}

	pool, err := balance.NewPool(poolStr)
	if err != nil {
		return nil, fmt.Errorf("invalid pool: %w", err)
	}

	entryType, err := ledger.NewEntryType(entryTypeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid entry type: %w", err)
	}

	var referenceIDPtr *string
	if referenceID.Valid {
		s := referenceID.String
		referenceIDPtr = &s
	}

	entry, err := ledger.NewEntry(entryID, accountID, amount, pool, entryType, action, referenceIDPtr, balanceAfter)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct ledger entry entity: %w", err)
	}

	return entry, nil
}
