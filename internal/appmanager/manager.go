package appmanager

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"ExpenseCertify/api"
	"ExpenseCertify/api/certify"
	"ExpenseCertify/internal/config"
	"ExpenseCertify/internal/jobs"
	"ExpenseCertify/internal/logger"
	"ExpenseCertify/internal/orchestrator"
	"ExpenseCertify/internal/refdata"
	"ExpenseCertify/internal/resource"
	"ExpenseCertify/internal/runlock"
	"ExpenseCertify/internal/serviceiface"
	"ExpenseCertify/internal/store"
)

var db *sql.DB
var pgxPool *pgxpool.Pool

func SetDB(database *sql.DB) {
	db = database
}

func SetPgxPool(pool *pgxpool.Pool) {
	pgxPool = pool
}

// GetDB returns the database connection
func GetDB() *sql.DB {
	return db
}

// GetPgxPool returns the pgx pool connection
func GetPgxPool() *pgxpool.Pool {
	return pgxPool
}

// Resource keys shared through the resource manager.
const (
	ResStore   = "store"
	ResRefdata = "refdata"
	ResLocker  = "runlock"
	ResEngine  = "engine"
)

var (
	resources   *resource.ResourceManager
	resourcesMu sync.Mutex
)

// Resources returns the process resource manager, creating a default one when
// services.yaml does not configure it.
func Resources() *resource.ResourceManager {
	resourcesMu.Lock()
	defer resourcesMu.Unlock()
	if resources == nil {
		resources = resource.NewResourceManager(0)
	}
	return resources
}

func setResources(rm *resource.ResourceManager) {
	resourcesMu.Lock()
	defer resourcesMu.Unlock()
	resources = rm
}

func sharedStore() *store.Store {
	r, _ := Resources().GetOrCreate(ResStore, func() (interface{}, error) {
		var bulk store.BulkWriter
		if pgxPool != nil {
			bulk = store.NewPgxBulk(pgxPool)
		}
		return store.New(db, bulk), nil
	})
	return r.(*store.Store)
}

func sharedRefdata() *refdata.Cache {
	r, _ := Resources().GetOrCreate(ResRefdata, func() (interface{}, error) {
		return refdata.NewCache(config.Load().ReferenceDir), nil
	})
	return r.(*refdata.Cache)
}

// sharedLocker uses Redis when REDIS_URL is set and reachable, otherwise a
// process-local no-op lock.
func sharedLocker() runlock.Locker {
	r, err := Resources().GetOrCreate(ResLocker, func() (interface{}, error) {
		url := config.Load().RedisURL
		if url == "" {
			return runlock.Noop{}, nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return runlock.NewRedis(ctx, url, runlock.Options{})
	})
	if err != nil {
		logger.Component("appmanager").WithError(err).Warn("redis run lock unavailable, runs are serialised per process only")
	}
	if l, ok := r.(runlock.Locker); ok {
		return l
	}
	return runlock.Noop{}
}

func sharedEngine() *orchestrator.Engine {
	st, refs, lock := sharedStore(), sharedRefdata(), sharedLocker()
	r, _ := Resources().GetOrCreate(ResEngine, func() (interface{}, error) {
		return orchestrator.NewEngine(st, refs,
			orchestrator.WithLocker(lock),
			orchestrator.WithWorkers(config.Load().Workers),
		), nil
	})
	return r.(*orchestrator.Engine)
}

var serviceConstructors = map[string]func(map[string]interface{}) serviceiface.Service{
	"logger": func(cfg map[string]interface{}) serviceiface.Service {
		return logger.NewLoggerService(cfg)
	},
	"resourcemanager": func(cfg map[string]interface{}) serviceiface.Service {
		svc := resource.NewResourceManagerService(cfg)
		if rm, ok := svc.(*resource.ResourceManager); ok {
			setResources(rm)
		}
		return svc
	},
	"certify": func(cfg map[string]interface{}) serviceiface.Service {
		refs := sharedRefdata()
		return certify.NewCertifyService(cfg, sharedEngine(), sharedStore(), refs, refs)
	},
	"cron": func(cfg map[string]interface{}) serviceiface.Service {
		return jobs.NewCronService(cfg, sharedRefdata(), sharedStore())
	},
	"gateway": func(cfg map[string]interface{}) serviceiface.Service {
		return api.NewGatewayService(cfg)
	},
}

// ------------------- MANAGER -------------------

type AppManager struct {
	services []serviceiface.Service
	mu       sync.Mutex
}

func NewAppManager() *AppManager {
	return &AppManager{
		services: make([]serviceiface.Service, 0),
	}
}

func (am *AppManager) RegisterService(s serviceiface.Service) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.services = append(am.services, s)
}

func (am *AppManager) StartAll() error {
	am.mu.Lock()
	defer am.mu.Unlock()

	// First pass: start all except resourcemanager
	for _, service := range am.services {
		if service.Name() == "resourcemanager" {
			continue
		}
		logger.Component("appmanager").WithField("service", service.Name()).Info("starting service")
		if err := service.Start(); err != nil {
			return fmt.Errorf("failed to start service %s: %w", service.Name(), err)
		}
	}

	// resourcemanager last, once every shared resource has been created
	for _, service := range am.services {
		if service.Name() == "resourcemanager" {
			logger.Component("appmanager").WithField("service", service.Name()).Info("starting service")
			if err := service.Start(); err != nil {
				return fmt.Errorf("failed to start service %s: %w", service.Name(), err)
			}
		}
	}
	return nil
}

func (am *AppManager) StopAll() error {
	am.mu.Lock()
	defer am.mu.Unlock()
	for i := len(am.services) - 1; i >= 0; i-- {
		svc := am.services[i]
		if err := svc.Stop(); err != nil {
			return fmt.Errorf("failed to stop service %s: %w", svc.Name(), err)
		}
	}
	if r, ok := Resources().GetResource(ResLocker); ok {
		if c, ok := r.(interface{ Close() error }); ok {
			return c.Close()
		}
	}
	return nil
}

// ------------------- YAML CONFIG -------------------

type ServiceSequencer struct {
	Services []ServiceConfig `yaml:"services"`
}

type ServiceConfig struct {
	Name       string                 `yaml:"name"`
	StartOrder int                    `yaml:"start_order"`
	Config     map[string]interface{} `yaml:"config"`
}

func LoadServiceSequence(path string) ([]ServiceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseServiceSequence(data)
}

// ParseServiceSequence decodes services.yaml content sorted by start_order.
func ParseServiceSequence(data []byte) ([]ServiceConfig, error) {
	var seq ServiceSequencer
	if err := yaml.Unmarshal(data, &seq); err != nil {
		return nil, err
	}

	sort.SliceStable(seq.Services, func(i, j int) bool {
		return seq.Services[i].StartOrder < seq.Services[j].StartOrder
	})

	return seq.Services, nil
}

// AutoRegisterServices constructs every known service in start order.
// Unknown names are logged and skipped.
func (am *AppManager) AutoRegisterServices(configs []ServiceConfig) {
	for _, svc := range configs {
		constructor, ok := serviceConstructors[svc.Name]
		if !ok {
			logger.Component("appmanager").WithField("service", svc.Name).Warn("unknown service in sequence, skipped")
			continue
		}
		am.RegisterService(constructor(svc.Config))
	}

	for _, svc := range am.services {
		if l, ok := svc.(*logger.LoggerService); ok {
			logger.SetGlobalLogger(l)
			break
		}
	}
}

func (am *AppManager) GetServiceByName(name string) serviceiface.Service {
	for _, svc := range am.services {
		if svc.Name() == name {
			return svc
		}
	}
	return nil
}
