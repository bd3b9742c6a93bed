package refdata

import (
	"sync"

	"github.com/sirupsen/logrus"

	"ExpenseCertify/internal/logger"
)

// Source hands out the current reference bundle.
type Source interface {
	Bundle() (*Bundle, error)
}

// Cache loads the reference directory on first use and keeps the bundle for
// the life of the process. Reload swaps it atomically for in-flight readers.
type Cache struct {
	dir     string
	mu      sync.RWMutex
	current *Bundle
	loadMu  sync.Mutex
}

// NewCache creates a cache over dir.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

// Dir is the reference directory.
func (c *Cache) Dir() string { return c.dir }

// Bundle returns the cached bundle, loading it on first call.
func (c *Cache) Bundle() (*Bundle, error) {
	c.mu.RLock()
	b := c.current
	c.mu.RUnlock()
	if b != nil {
		return b, nil
	}

	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	c.mu.RLock()
	b = c.current
	c.mu.RUnlock()
	if b != nil {
		return b, nil
	}
	return c.Reload()
}

// Reload re-reads the directory. On failure the previous bundle stays.
func (c *Cache) Reload() (*Bundle, error) {
	b, err := Load(c.dir)
	if err != nil {
		logger.Component("refdata").WithError(err).Error("reference reload failed")
		c.mu.RLock()
		prev := c.current
		c.mu.RUnlock()
		if prev != nil {
			return prev, err
		}
		return nil, err
	}
	c.mu.Lock()
	c.current = b
	c.mu.Unlock()
	logger.Component("refdata").WithFields(logrus.Fields{"loaded_at": b.LoadedAt}).Debug("reference bundle swapped")
	return b, nil
}

// Set installs a prebuilt bundle.
func (c *Cache) Set(b *Bundle) {
	c.mu.Lock()
	c.current = b
	c.mu.Unlock()
}

// Static is a Source over a fixed bundle.
type Static struct{ B *Bundle }

// Bundle returns the fixed bundle.
func (s Static) Bundle() (*Bundle, error) {
	if s.B == nil {
		return nil, ErrNotLoaded
	}
	return s.B, nil
}
