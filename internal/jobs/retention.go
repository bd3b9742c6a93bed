package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"ExpenseCertify/internal/config"
	"ExpenseCertify/internal/logger"
)

// Purger deletes runs uploaded before a cutoff, cascading to their artifacts.
type Purger interface {
	PurgeRunsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type RetentionConfig struct {
	Schedule string
	Days     int
}

// PurgeExpiredRuns deletes runs older than days relative to now. Fingerprints
// go with their runs, so purged rows are certified again if re-uploaded.
func PurgeExpiredRuns(ctx context.Context, runs Purger, days int, now time.Time) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := now.AddDate(0, 0, -days)
	n, err := runs.PurgeRunsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge runs before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	logger.Component("cron").WithField("cutoff", cutoff).WithField("purged", n).Info("run retention applied")
	return n, nil
}

// ScheduleRetention registers the periodic purge on c.
func ScheduleRetention(c *cron.Cron, cfg RetentionConfig, runs Purger) error {
	if cfg.Schedule == "" {
		cfg.Schedule = config.DefaultRetentionSchedule
	}
	_, err := c.AddFunc(cfg.Schedule, func() {
		ctx, cancel := jobContext()
		defer cancel()
		if _, err := PurgeExpiredRuns(ctx, runs, cfg.Days, time.Now()); err != nil {
			logger.Audit("Run retention failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("unable to schedule run retention: %v", err)
	}
	return nil
}
