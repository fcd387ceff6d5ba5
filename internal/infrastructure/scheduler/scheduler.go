package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"spark-ledger/internal/application/refresh"
	"spark-ledger/internal/application/sweep"
	"spark-ledger/internal/infrastructure/config"
	otelinfra "spark-ledger/internal/infrastructure/observability/otel"
)

// Scheduler プロセス内ジョブスケジューラ
// 外部スケジューラが無い環境向けに、失効スイープと月次リフレッシュを
// cron式で駆動する。既定では無効で、メンテナンスAPIが主経路
type Scheduler struct {
	cron           *cron.Cron
	cfg            *config.SchedulerConfig
	sweepService   *sweep.SweepApplicationService
	refreshService *refresh.RefreshApplicationService
	logger         *otelinfra.Logger
}

// NewScheduler 新しいSchedulerを作成
func NewScheduler(
	cfg *config.SchedulerConfig,
	sweepService *sweep.SweepApplicationService,
	refreshService *refresh.RefreshApplicationService,
	logger *otelinfra.Logger,
) *Scheduler {
	return &Scheduler{
		cron:           cron.New(),
		cfg:            cfg,
		sweepService:   sweepService,
		refreshService: refreshService,
		logger:         logger,
	}
}

// Start ジョブを登録してスケジューラを開始
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.TrialSweepSpec, s.runTrialSweep); err != nil {
		return fmt.Errorf("failed to schedule trial sweep: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.TopupSweepSpec, s.runTopupSweep); err != nil {
		return fmt.Errorf("failed to schedule topup sweep: %w", err)
	}
	if _, err := s.cron.AddFunc(s.cfg.RefreshSpec, s.runRefresh); err != nil {
		return fmt.Errorf("failed to schedule subscription refresh: %w", err)
	}

	s.cron.Start()
	s.logger.Info(context.Background(), "Scheduler started", map[string]interface{}{
		"trial_sweep_spec": s.cfg.TrialSweepSpec,
		"topup_sweep_spec": s.cfg.TopupSweepSpec,
		"refresh_spec":     s.cfg.RefreshSpec,
	})
	return nil
}

// Stop 実行中のジョブの完了を待ってスケジューラを停止
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// runTrialSweep トライアル失効スイープジョブ
func (s *Scheduler) runTrialSweep() {
	ctx := context.Background()
	resp, err := s.sweepService.SweepTrialExpiry(ctx, &sweep.SweepRequest{Limit: s.cfg.SweepBatchLimit})
	if err != nil {
		s.logger.Error(ctx, "Scheduled trial sweep failed", err, nil)
		return
	}
	s.logger.Info(ctx, "Scheduled trial sweep completed", map[string]interface{}{
		"processed":        resp.Processed,
		"forfeited_sparks": resp.ForfeitedSparks,
	})
}

// runTopupSweep 追加購入失効スイープジョブ
func (s *Scheduler) runTopupSweep() {
	ctx := context.Background()
	resp, err := s.sweepService.SweepTopupExpiry(ctx, &sweep.SweepRequest{Limit: s.cfg.SweepBatchLimit})
	if err != nil {
		s.logger.Error(ctx, "Scheduled topup sweep failed", err, nil)
		return
	}
	s.logger.Info(ctx, "Scheduled topup sweep completed", map[string]interface{}{
		"processed":        resp.Processed,
		"forfeited_sparks": resp.ForfeitedSparks,
		"breakage_cents":   resp.BreakageCents,
	})
}

// runRefresh 月次リフレッシュジョブ
func (s *Scheduler) runRefresh() {
	ctx := context.Background()
	resp, err := s.refreshService.RefreshSubscriptions(ctx, &refresh.RefreshRequest{
		Now:       time.Now(),
		PageLimit: s.cfg.RefreshPageLimit,
	})
	if err != nil {
		s.logger.Error(ctx, "Scheduled subscription refresh failed", err, nil)
		return
	}
	s.logger.Info(ctx, "Scheduled subscription refresh completed", map[string]interface{}{
		"processed":        resp.Processed,
		"granted_sparks":   resp.GrantedSparks,
		"forfeited_sparks": resp.ForfeitedSparks,
	})
}
