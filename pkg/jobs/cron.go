package jobs

import (
	"context"
	"log"
	"time"

	"github.com/jordanlanch/couponly/pkg/payout"
	"github.com/robfig/cron/v3"
)

// CronManager manages scheduled jobs
type CronManager struct {
	cron    *cron.Cron
	payouts *payout.Service
	logger  *log.Logger
}

// NewCronManager creates a new cron manager
func NewCronManager(payouts *payout.Service, logger *log.Logger) *CronManager {
	if logger == nil {
		logger = log.Default()
	}

	return &CronManager{
		cron:    cron.New(),
		payouts: payouts,
		logger:  logger,
	}
}

// SetupJobs configures all scheduled jobs
func (cm *CronManager) SetupJobs() error {
	cm.logger.Println("Setting up cron jobs...")

	// Hourly: promote pending conversions past the hold period. The sweep is
	// idempotent, so overlapping or repeated runs are harmless.
	_, err := cm.cron.AddFunc("0 * * * *", func() {
		cm.logger.Println("🕐 Running approval sweep...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		promoted, err := cm.payouts.PromoteEligible(ctx, time.Now())
		if err != nil {
			cm.logger.Printf("❌ Approval sweep failed: %v", err)
			return
		}

		if promoted == 0 {
			cm.logger.Println("✅ Approval sweep: nothing to promote")
			return
		}
		cm.logger.Printf("✅ Approval sweep promoted %d conversions", promoted)
	})

	if err != nil {
		return err
	}

	cm.logger.Println("✅ Cron jobs configured successfully")
	cm.logger.Println("  - Hourly: approval sweep (pending -> available)")

	return nil
}

// RunSweepNow triggers the approval sweep outside the schedule (admin
// endpoint).
func (cm *CronManager) RunSweepNow(ctx context.Context, now time.Time) (int, error) {
	return cm.payouts.PromoteEligible(ctx, now)
}

// Start starts the cron scheduler
func (cm *CronManager) Start() {
	cm.logger.Println("🚀 Starting cron scheduler...")
	cm.cron.Start()
}

// Stop stops the cron scheduler
func (cm *CronManager) Stop() {
	cm.logger.Println("🛑 Stopping cron scheduler...")
	cm.cron.Stop()
}
