package appmanager

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sin100007-pixel/customer-qr-login/api"
	"github.com/sin100007-pixel/customer-qr-login/api/ledgerapi"
	"github.com/sin100007-pixel/customer-qr-login/internal/archive"
	"github.com/sin100007-pixel/customer-qr-login/internal/config"
	"github.com/sin100007-pixel/customer-qr-login/internal/ingest"
	"github.com/sin100007-pixel/customer-qr-login/internal/jobs"
	"github.com/sin100007-pixel/customer-qr-login/internal/logger"
	"github.com/sin100007-pixel/customer-qr-login/internal/resource"
	"github.com/sin100007-pixel/customer-qr-login/internal/serviceiface"
	"github.com/sin100007-pixel/customer-qr-login/internal/store"
)

var (
	settings config.Settings
	storeSvc *store.Service
)

// SetSettings hands the process environment to the service constructors.
func SetSettings(s config.Settings) {
	settings = s
}

var serviceConstructors = map[string]func(map[string]interface{}) serviceiface.Service{
	"logger": func(cfg map[string]interface{}) serviceiface.Service {
		l := logger.NewLoggerService(cfg)
		logger.SetGlobalLogger(l)
		return l
	},
	"store": func(cfg map[string]interface{}) serviceiface.Service {
		storeSvc = store.NewService(cfg, settings, logger.L())
		return storeSvc
	},
	"resourcemanager": func(cfg map[string]interface{}) serviceiface.Service {
		rm := resource.NewResourceManagerService(cfg, logger.L())
		rm.AddResource("store", func() resource.Pinger {
			if b := currentBackend(); b != nil {
				return b
			}
			return nil
		})
		return rm
	},
	"retention": func(cfg map[string]interface{}) serviceiface.Service {
		return jobs.NewRetentionService(jobs.RetentionConfigFrom(cfg), func() jobs.Wiper {
			if b := currentBackend(); b != nil {
				return b
			}
			return nil
		}, logger.L())
	},
	"gateway": func(cfg map[string]interface{}) serviceiface.Service {
		return api.NewGatewayService(cfg, settings.HTTPAddr, func() ([]api.Mount, error) {
			return ledgerMounts(cfg)
		}, logger.L())
	},
}

func currentBackend() store.Backend {
	if storeSvc == nil {
		return nil
	}
	return storeSvc.Backend()
}

// ledgerMounts builds the ingestion pipeline over the opened store.
func ledgerMounts(cfg map[string]interface{}) ([]api.Mount, error) {
	backend := currentBackend()
	if backend == nil {
		return nil, fmt.Errorf("gateway requires the store service to start first")
	}
	log := logger.L()

	aliases, err := ingest.LoadAliases(config.String(cfg, "aliases_file", ""))
	if err != nil {
		return nil, err
	}
	opts := []ingest.Option{
		ingest.WithAliases(aliases),
		ingest.WithBatchSize(config.Int(cfg, "batch_size", config.BatchSize)),
		ingest.WithRecorder(backend),
	}
	if config.Bool(cfg, "archive_uploads", settings.S3Enabled) {
		a, err := archive.NewS3(context.Background(), settings.S3Bucket, settings.S3Region, settings.S3Prefix)
		if err != nil {
			return nil, err
		}
		opts = append(opts, ingest.WithArchiver(a))
		log.Info().Str("bucket", settings.S3Bucket).Msg("upload archive enabled")
	}

	return []api.Mount{ledgerapi.Routes(ledgerapi.Deps{
		Importer:   ingest.New(backend, log, opts...),
		Store:      backend,
		AdminToken: settings.AdminClearToken,
		Log:        log,
	})}, nil
}

// ------------------- MANAGER -------------------

type AppManager struct {
	services []serviceiface.Service
	started  int
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

// StartAll starts services in registration order. On failure the services
// already started are left for StopAll.
func (am *AppManager) StartAll() error {
	am.mu.Lock()
	defer am.mu.Unlock()
	for _, service := range am.services[am.started:] {
		lg := logger.L()
		lg.Info().Str("service", service.Name()).Msg("starting service")
		if err := service.Start(); err != nil {
			return fmt.Errorf("failed to start service %s: %w", service.Name(), err)
		}
		am.started++
	}
	return nil
}

// StopAll stops started services in reverse order and reports the first error.
func (am *AppManager) StopAll() error {
	am.mu.Lock()
	defer am.mu.Unlock()
	var first error
	for i := am.started - 1; i >= 0; i-- {
		svc := am.services[i]
		if err := svc.Stop(); err != nil && first == nil {
			first = fmt.Errorf("failed to stop service %s: %w", svc.Name(), err)
		}
	}
	am.started = 0
	return first
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

// ParseServiceSequence decodes services.yaml and sorts it by start_order.
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

// AutoRegisterServices constructs every configured service in order.
func (am *AppManager) AutoRegisterServices(configs []ServiceConfig) error {
	for _, svc := range configs {
		constructor, ok := serviceConstructors[svc.Name]
		if !ok {
			return fmt.Errorf("unknown service %q in services.yaml", svc.Name)
		}
		am.RegisterService(constructor(svc.Config))
	}
	return nil
}

func (am *AppManager) GetServiceByName(name string) serviceiface.Service {
	am.mu.Lock()
	defer am.mu.Unlock()
	for _, svc := range am.services {
		if svc.Name() == name {
			return svc
		}
	}
	return nil
}
