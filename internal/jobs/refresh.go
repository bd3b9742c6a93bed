package jobs

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"ExpenseCertify/internal/config"
	"ExpenseCertify/internal/logger"
	"ExpenseCertify/internal/refdata"
)

// Reloader re-reads the reference directory. refdata.Cache satisfies it.
type Reloader interface {
	Reload() (*refdata.Bundle, error)
}

type CatalogRefreshConfig struct {
	Schedule string
}

// RefreshCatalog reloads the reference bundle once. A failed reload keeps the
// previous bundle in service.
func RefreshCatalog(refs Reloader) error {
	b, err := refs.Reload()
	if err != nil {
		return fmt.Errorf("reload reference catalog: %w", err)
	}
	log := logger.Component("cron").WithField("keys", len(b.Catalog.Keys())).WithField("ledger_pairs", b.Ledger.Len())
	if w := b.Warnings(); len(w) > 0 {
		log.WithField("warnings", len(w)).Warn("reference catalog reloaded with warnings")
		return nil
	}
	log.Info("reference catalog reloaded")
	return nil
}

// ScheduleCatalogRefresh registers the periodic reload on c.
func ScheduleCatalogRefresh(c *cron.Cron, cfg CatalogRefreshConfig, refs Reloader) error {
	if cfg.Schedule == "" {
		cfg.Schedule = config.DefaultCatalogRefreshSchedule
	}
	_, err := c.AddFunc(cfg.Schedule, func() {
		if err := RefreshCatalog(refs); err != nil {
			logger.Audit("Catalog refresh failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("unable to schedule catalog refresh: %v", err)
	}
	return nil
}
