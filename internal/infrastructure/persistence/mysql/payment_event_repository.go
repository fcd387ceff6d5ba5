package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"spark-ledger/internal/domain/payment_event"
)

// mysqlErrDuplicateEntry MySQLの重複キーエラーコード
const mysqlErrDuplicateEntry = 1062

// PaymentEventRepository MySQL実装のProcessedEventRepository
// 残高更新と同一トランザクションでの主キー挿入により、Webhookの再配信を冪等化する
type PaymentEventRepository struct {
	db     *DB
	tracer trace.Tracer
}

// NewPaymentEventRepository 新しいPaymentEventRepositoryを作成
func NewPaymentEventRepository(db *DB) *PaymentEventRepository {
	return &PaymentEventRepository{
		db:     db,
		tracer: otel.Tracer("payment-event-repository"),
	}
}

// Create 処理済みイベントを記録
// 同一イベントIDが既に存在する場合はErrDuplicateEventを返す
func (r *PaymentEventRepository) Create(ctx context.Context, event *payment_event.ProcessedEvent) error {
	ctx, span := r.tracer.Start(ctx, "PaymentEventRepository.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.event_id", event.EventID()),
		attribute.String("db.event_type", event.EventType().String()),
		attribute.String("db.account_id", event.AccountID()),
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.table", "processed_payment_events"),
	)

	query := `
		INSERT INTO processed_payment_events (event_id, event_type, account_id, processed_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := r.db.executor(ctx).ExecContext(ctx, query,
		event.EventID(),
		event.EventType().String(),
		event.AccountID(),
		event.ProcessedAt(),
	)

	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry {
			span.SetStatus(otelcodes.Ok, "duplicate event")
			return payment_event.ErrDuplicateEvent
		}
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return fmt.Errorf("failed to create processed event: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "processed event created")
	return nil
}

// FindByEventID イベントIDで処理済みイベントを取得
func (r *PaymentEventRepository) FindByEventID(ctx context.Context, eventID string) (*payment_event.ProcessedEvent, error) {
	ctx, span := r.tracer.Start(ctx, "PaymentEventRepository.FindByEventID")
	defer span.End()

	span.SetAttributes(
		attribute.String("db.event_id", eventID),
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.table", "processed_payment_events"),
	)

	query := `
		SELECT event_id, event_type, account_id
		FROM processed_payment_events
		WHERE event_id = ?
	`

	var dbEventID, eventTypeStr, accountID string
	err := r.db.executor(ctx).QueryRowContext(ctx, query, eventID).Scan(
		&dbEventID,
		&eventTypeStr,
		&accountID,
	)

	if err == sql.ErrNoRows {
		span.SetStatus(otelcodes.Ok, "processed event not found")
		return nil, payment_event.ErrEventNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return nil, fmt.Errorf("failed to find processed event: %w", err)
	}

	eventType, err := payment_event.NewEventType(eventTypeStr)
	if err != nil {
		return nil, fmt.Errorf("invalid event type: %w", err)
	}

	pe, err := payment_event.NewProcessedEvent(dbEventID, eventType, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct processed event entity: %w", err)
	}

	span.SetStatus(otelcodes.Ok, "processed event found")
	return pe, nil
}
