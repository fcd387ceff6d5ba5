package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics メトリクス定義
type Metrics struct {
	// 消費（Deduct）の件数
	DeductionCount metric.Int64Counter

	// 消費・付与されたスパークの量
	SparksMoved metric.Int64Counter

	// 残高不足による拒否件数
	InsufficientBalanceCount metric.Int64Counter

	// 失効スイープで没収されたスパーク数
	ForfeitedSparks metric.Int64Counter

	// 失効時点の未消費購入分の金銭価値（ブレッケージ、セント）
	BreakageCents metric.Int64Counter

	// 楽観的ロック競合によるリトライ件数
	LockRetryCount metric.Int64Counter

	// アカウント残高の分布
	AccountBalance metric.Int64Gauge

	// リクエスト数
	RequestCount metric.Int64Counter

	// レスポンス時間
	ResponseTime metric.Float64Histogram

	// エラー率
	ErrorCount metric.Int64Counter
}

// NewMetrics 新しいMetricsを作成
func NewMetrics(meterName string) (*Metrics, error) {
	meter := otel.Meter(meterName)

	deductionCount, err := meter.Int64Counter(
		"spark_deductions_total",
		metric.WithDescription("Total number of spark deductions"),
	)
	if err != nil {
		return nil, err
	}

	sparksMoved, err := meter.Int64Counter(
		"sparks_moved_total",
		metric.WithDescription("Total sparks credited or debited, by entry type and pool"),
	)
	if err != nil {
		return nil, err
	}

	insufficientBalanceCount, err := meter.Int64Counter(
		"insufficient_balance_total",
		metric.WithDescription("Total number of deductions rejected for insufficient balance"),
	)
	if err != nil {
		return nil, err
	}

	forfeitedSparks, err := meter.Int64Counter(
		"forfeited_sparks_total",
		metric.WithDescription("Total sparks forfeited by expiry sweeps and rollover caps"),
	)
	if err != nil {
		return nil, err
	}

	breakageCents, err := meter.Int64Counter(
		"breakage_cents_total",
		metric.WithDescription("Monetary value in cents of expired unconsumed purchased sparks"),
	)
	if err != nil {
		return nil, err
	}

	lockRetryCount, err := meter.Int64Counter(
		"optimistic_lock_retries_total",
		metric.WithDescription("Total number of optimistic lock conflicts that triggered a retry"),
	)
	if err != nil {
		return nil, err
	}

	accountBalance, err := meter.Int64Gauge(
		"account_balance_sparks",
		metric.WithDescription("Account spark balance"),
	)
	if err != nil {
		return nil, err
	}

	requestCount, err := meter.Int64Counter(
		"requests_total",
		metric.WithDescription("Total number of requests"),
	)
	if err != nil {
		return nil, err
	}

	responseTime, err := meter.Float64Histogram(
		"response_time_seconds",
		metric.WithDescription("Response time in seconds"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"errors_total",
		metric.WithDescription("Total number of errors"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		DeductionCount:           deductionCount,
		SparksMoved:              sparksMoved,
		InsufficientBalanceCount: insufficientBalanceCount,
		ForfeitedSparks:          forfeitedSparks,
		BreakageCents:            breakageCents,
		LockRetryCount:           lockRetryCount,
		AccountBalance:           accountBalance,
		RequestCount:             requestCount,
		ResponseTime:             responseTime,
		ErrorCount:               errorCount,
	}, nil
}

// RecordDeduction 消費を記録
func (m *Metrics) RecordDeduction(ctx context.Context, action, pool string) {
	m.DeductionCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("action", action),
			attribute.String("pool", pool),
		),
	)
}

// RecordSparksMoved スパークの変動量を記録
func (m *Metrics) RecordSparksMoved(ctx context.Context, entryType, pool string, amount int64) {
	m.SparksMoved.Add(ctx, amount,
		metric.WithAttributes(
			attribute.String("entry_type", entryType),
			attribute.String("pool", pool),
		),
	)
}

// RecordInsufficientBalance 残高不足による拒否を記録
func (m *Metrics) RecordInsufficientBalance(ctx context.Context, action string) {
	m.InsufficientBalanceCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("action", action),
		),
	)
}

// RecordForfeitedSparks 没収されたスパーク数を記録
func (m *Metrics) RecordForfeitedSparks(ctx context.Context, reason, pool string, amount int64) {
	m.ForfeitedSparks.Add(ctx, amount,
		metric.WithAttributes(
			attribute.String("reason", reason),
			attribute.String("pool", pool),
		),
	)
}

// RecordBreakage ブレッケージ（失効した購入分の金銭価値）を記録
func (m *Metrics) RecordBreakage(ctx context.Context, cents int64) {
	m.BreakageCents.Add(ctx, cents)
}

// RecordLockRetry 楽観的ロック競合によるリトライを記録
func (m *Metrics) RecordLockRetry(ctx context.Context, operation string) {
	m.LockRetryCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
		),
	)
}

// RecordAccountBalance アカウント残高を記録
func (m *Metrics) RecordAccountBalance(ctx context.Context, accountID string, balance int64) {
	m.AccountBalance.Record(ctx, balance,
		metric.WithAttributes(
			attribute.String("account_id", accountID),
		),
	)
}

// RecordRequest リクエストを記録
func (m *Metrics) RecordRequest(ctx context.Context, method, path string) {
	m.RequestCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
		),
	)
}

// RecordResponseTime レスポンス時間を記録
func (m *Metrics) RecordResponseTime(ctx context.Context, method, path string, duration float64) {
	m.ResponseTime.Record(ctx, duration,
		metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("path", path),
		),
	)
}

// RecordError エラーを記録
func (m *Metrics) RecordError(ctx context.Context, errorType string) {
	m.ErrorCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error_type", errorType),
		),
	)
}
