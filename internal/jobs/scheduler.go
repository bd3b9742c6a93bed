package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"ExpenseCertify/internal/config"
	"ExpenseCertify/internal/logger"
	"ExpenseCertify/internal/serviceiface"
)

type CronService struct {
	config map[string]interface{}
	refs   Reloader
	runs   Purger
	cron   *cron.Cron
}

func NewCronService(cfg map[string]interface{}, refs Reloader, runs Purger) serviceiface.Service {
	return &CronService{
		config: cfg,
		refs:   refs,
		runs:   runs,
	}
}

func (s *CronService) Name() string {
	return "cron"
}

func (s *CronService) Start() error {
	log := logger.Component("cron")

	tz := serviceiface.StringOption(s.config, "time_zone", config.DefaultTimeZone)
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	s.cron = cron.New(cron.WithLocation(loc))

	refresh := CatalogRefreshConfig{
		Schedule: serviceiface.StringOption(s.config, "catalog_refresh_schedule", config.DefaultCatalogRefreshSchedule),
	}
	if err := ScheduleCatalogRefresh(s.cron, refresh, s.refs); err != nil {
		return err
	}
	log.WithField("schedule", refresh.Schedule).Info("reference catalog refresh scheduled")

	retention := RetentionConfig{
		Schedule: serviceiface.StringOption(s.config, "retention_schedule", config.DefaultRetentionSchedule),
		Days:     serviceiface.IntOption(s.config, "retention_days", config.Load().RetentionDays),
	}
	if retention.Days > 0 {
		if err := ScheduleRetention(s.cron, retention, s.runs); err != nil {
			return err
		}
		log.WithField("schedule", retention.Schedule).WithField("days", retention.Days).Info("run retention scheduled")
	}

	s.cron.Start()
	logger.Audit("Cron service started with %d job(s)", len(s.cron.Entries()))
	return nil
}

func (s *CronService) Stop() error {
	if s.cron == nil {
		return nil
	}
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
		return fmt.Errorf("cron jobs still running after 30s")
	}
	logger.Component("cron").Info("cron service stopped")
	return nil
}

// Entries exposes the scheduled jobs, mostly for tests.
func (s *CronService) Entries() []cron.Entry {
	if s.cron == nil {
		return nil
	}
	return s.cron.Entries()
}

func jobContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Minute)
}
