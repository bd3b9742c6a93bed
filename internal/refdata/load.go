package refdata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ExpenseCertify/internal/logger"
	"ExpenseCertify/internal/model"
	"ExpenseCertify/internal/tabular"
)

// Bundle is everything the engine reads from the reference directory.
type Bundle struct {
	Catalog  *Catalog
	Ledger   *LedgerCatalog
	Immunity *ImmunitySet
	LoadedAt time.Time
	Dir      string
}

// Warnings collects catalog and pair-file defects.
func (b *Bundle) Warnings() []string {
	if b == nil {
		return nil
	}
	return b.Catalog.Warnings()
}

// Load reads every list named in the manifest. Missing files and columns leave
// the affected list empty and are reported as warnings, never as errors. Only
// an unreadable catalog.yaml fails the load.
func Load(dir string) (*Bundle, error) {
	log := logger.Component("refdata").WithField("dir", dir)

	manifest, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}

	cat := &Catalog{
		lists: make(map[string][]string, len(manifest.Lists)),
		sets:  make(map[string]map[string]struct{}, len(manifest.Lists)),
	}
	warn := func(format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		cat.warnings = append(cat.warnings, msg)
		log.Warn(msg)
	}

	tables := map[string]*tabular.Table{}
	open := func(file string) (*tabular.Table, error) {
		if t, ok := tables[file]; ok {
			return t, nil
		}
		path, err := resolve(dir, file)
		if err != nil {
			return nil, err
		}
		t, err := tabular.ReadFile(path, tabular.Options{})
		if err != nil {
			return nil, err
		}
		tables[file] = t
		return t, nil
	}

	for _, e := range manifest.Lists {
		t, err := open(e.File)
		if err != nil {
			warn("reference list %s: %s: %v", e.Key, e.File, err)
			cat.put(e.Key, nil)
			continue
		}
		if !t.HasColumn(e.Column) {
			warn("reference list %s: column %q missing in %s", e.Key, e.Column, e.File)
			cat.put(e.Key, nil)
			continue
		}
		values := cleanValues(t.Column(e.Column))
		if len(values) == 0 {
			warn("reference list %s: %s has no values", e.Key, e.File)
		}
		cat.put(e.Key, values)
	}

	ledger := loadPairs(dir, manifest.LedgerFile, open, warn)
	immunity := loadPairs(dir, manifest.ImmunityFile, open, warn)

	log.WithFields(logrus.Fields{
		"lists":    len(cat.lists),
		"ledger":   ledger.Len(),
		"immunity": immunity.Len(),
		"warnings": len(cat.warnings),
	}).Info("reference data loaded")

	return &Bundle{
		Catalog:  cat,
		Ledger:   ledger,
		Immunity: immunity,
		LoadedAt: time.Now(),
		Dir:      dir,
	}, nil
}

func loadPairs(dir, file string, open func(string) (*tabular.Table, error), warn func(string, ...interface{})) *LedgerCatalog {
	if file == "" {
		return NewLedgerCatalog(nil)
	}
	t, err := open(file)
	if err != nil {
		warn("pair file %s: %v", file, err)
		return NewLedgerCatalog(nil)
	}
	if missing := t.MissingColumns(model.FieldAccount2, model.FieldSubLedger); len(missing) > 0 {
		warn("pair file %s: missing columns %s", file, strings.Join(missing, ", "))
		return NewLedgerCatalog(nil)
	}
	pairs := make([]model.LedgerPair, 0, t.Len())
	for _, r := range t.Rows {
		p := model.LedgerPair{
			Account2:  tabular.Clean(r.Str(model.FieldAccount2)),
			SubLedger: tabular.Clean(r.Str(model.FieldSubLedger)),
		}
		if p.Account2 == "" && p.SubLedger == "" {
			continue
		}
		pairs = append(pairs, p)
	}
	if len(pairs) == 0 {
		warn("pair file %s has no rows", file)
	}
	return NewLedgerCatalog(pairs)
}

func cleanValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if c := tabular.Clean(v); c != "" {
			out = append(out, c)
		}
	}
	return out
}

var fallbackExts = []string{".xlsx", ".xls", ".csv"}

// resolve finds file in dir, falling back to the same base name with another
// spreadsheet extension.
func resolve(dir, file string) (string, error) {
	path := filepath.Join(dir, file)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	base := strings.TrimSuffix(file, filepath.Ext(file))
	for _, ext := range fallbackExts {
		alt := filepath.Join(dir, base+ext)
		if _, err := os.Stat(alt); err == nil {
			return alt, nil
		}
	}
	return "", fmt.Errorf("%w: %s", os.ErrNotExist, path)
}

// ErrNotLoaded is returned by Cache.Bundle when the first load failed.
var ErrNotLoaded = errors.New("reference data not loaded")
