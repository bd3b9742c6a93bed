package resource

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ExpenseCertify/internal/logger"
	"ExpenseCertify/internal/serviceiface"
)

// Pinger is a resource the heartbeat can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ResourceManager holds shared process resources (store, reference cache,
// run lock) and probes the ones that can be pinged on every heartbeat.
type ResourceManager struct {
	resources         map[string]interface{}
	mu                sync.RWMutex
	stopChan          chan struct{}
	stopOnce          sync.Once
	heartbeatInterval time.Duration
	unhealthy         map[string]bool
}

func NewResourceManagerService(cfg map[string]interface{}) serviceiface.Service {
	return NewResourceManager(serviceiface.DurationOption(cfg, "heartbeat_interval", 30*time.Second))
}

func NewResourceManager(interval time.Duration) *ResourceManager {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ResourceManager{
		resources:         make(map[string]interface{}),
		stopChan:          make(chan struct{}),
		heartbeatInterval: interval,
		unhealthy:         make(map[string]bool),
	}
}

func (rm *ResourceManager) Name() string { return "resourcemanager" }

func (rm *ResourceManager) Start() error {
	logger.Audit("resource manager started with %d resource(s), heartbeat %s", len(rm.ListResources()), rm.heartbeatInterval)
	go rm.heartbeatLoop()
	return nil
}

func (rm *ResourceManager) Stop() error {
	rm.stopOnce.Do(func() { close(rm.stopChan) })
	return nil
}

func (rm *ResourceManager) heartbeatLoop() {
	ticker := time.NewTicker(rm.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rm.stopChan:
			return
		case <-ticker.C:
			rm.Check(context.Background())
		}
	}
}

// Check pings every Pinger resource once and returns the failures by key.
// Transitions between healthy and failing are logged.
func (rm *ResourceManager) Check(ctx context.Context) map[string]error {
	rm.mu.RLock()
	targets := make(map[string]Pinger)
	for key, r := range rm.resources {
		if p, ok := r.(Pinger); ok {
			targets[key] = p
		}
	}
	rm.mu.RUnlock()

	failures := make(map[string]error)
	for key, p := range targets {
		pctx, cancel := context.WithTimeout(ctx, rm.heartbeatInterval)
		err := p.Ping(pctx)
		cancel()

		log := logger.Component("resource").WithFields(logrus.Fields{"resource": key})
		rm.mu.Lock()
		was := rm.unhealthy[key]
		rm.unhealthy[key] = err != nil
		rm.mu.Unlock()

		switch {
		case err != nil:
			failures[key] = err
			if !was {
				log.WithError(err).Error("heartbeat check failed")
			}
		case was:
			log.Info("heartbeat check recovered")
		default:
			log.Debug("heartbeat check ok")
		}
	}
	return failures
}

func (rm *ResourceManager) AddResource(key string, resource interface{}) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.resources[key] = resource
}

func (rm *ResourceManager) GetResource(key string) (interface{}, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	resource, exists := rm.resources[key]
	return resource, exists
}

// GetOrCreate returns the resource under key, building it with create on
// first use. A failed create stores nothing. create runs under the manager
// lock and must not call back into it.
func (rm *ResourceManager) GetOrCreate(key string, create func() (interface{}, error)) (interface{}, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if r, ok := rm.resources[key]; ok {
		return r, nil
	}
	r, err := create()
	if err != nil {
		return nil, err
	}
	rm.resources[key] = r
	return r, nil
}

func (rm *ResourceManager) RemoveResource(key string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.resources, key)
	delete(rm.unhealthy, key)
}

func (rm *ResourceManager) ListResources() []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	keys := make([]string, 0, len(rm.resources))
	for key := range rm.resources {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
