package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"face-attendance-go/config"
	"face-attendance-go/internal/core/enrollment"
	"face-attendance-go/internal/core/ledger"
	"face-attendance-go/internal/core/pipeline"
	"face-attendance-go/internal/db"
	"face-attendance-go/internal/db/repository"
	"face-attendance-go/internal/i18n"
	"face-attendance-go/internal/integrations/homeassistant"
	"face-attendance-go/internal/integrations/mqtt"
	"face-attendance-go/internal/integrations/provider"
	"face-attendance-go/internal/logger"
	"face-attendance-go/internal/metrics"
	"face-attendance-go/internal/util/timezone"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// app hält die gemeinsam genutzten Abhängigkeiten aller Befehle
type app struct {
	cfg        *config.Config
	lang       string
	translator *i18n.Translator
	logCloser  io.Closer

	appDB   *gorm.DB
	ledger  *ledger.Ledger
	runs    *repository.SQLiteRepository
	loader  *enrollment.Loader
	tracker *runTracker

	registry *prometheus.Registry
	metrics  *metrics.Collector

	providersOnce sync.Once
	providers     *provider.Providers
	providersErr  error

	mqttClient *mqtt.Client
}

func newApp(configPath, lang string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logCloser, err := logger.Init(cfg.Log)
	if err != nil {
		log.Errorf("Failed to initialize logger completely: %v", err)
	}

	timezone.Initialize(cfg.Server.Timezone)

	if lang == "" {
		lang = cfg.I18n.DefaultLanguage
	}
	translator, err := i18n.NewTranslator(cfg.I18n.DefaultLanguage)
	if err != nil {
		return nil, err
	}

	appDB, err := db.Open(cfg.DB.File)
	if err != nil {
		return nil, err
	}

	store, err := newLedgerStore(cfg, appDB)
	if err != nil {
		db.Close(appDB)
		return nil, err
	}

	registry := prometheus.NewRegistry()

	return &app{
		cfg:        cfg,
		lang:       lang,
		translator: translator,
		logCloser:  logCloser,
		appDB:      appDB,
		ledger:     ledger.New(store, ledger.WithRetries(cfg.Pipeline.StoreRetries)),
		runs:       repository.NewSQLiteRepository(appDB),
		loader:     enrollment.NewLoader(cfg.Enrollment, nil, nil),
		tracker:    &runTracker{},
		registry:   registry,
		metrics:    metrics.NewCollector(registry),
	}, nil
}

// newLedgerStore wählt das Backend der Anwesenheitsliste
func newLedgerStore(cfg *config.Config, appDB *gorm.DB) (ledger.Store, error) {
	switch cfg.DB.Driver {
	case config.DriverSQLite:
		return ledger.NewGormStore(appDB), nil
	case config.DriverPostgres:
		return ledger.NewPostgresStore(cfg.DB.DSN), nil
	case config.DriverCSV:
		return ledger.NewCSVStore(cfg.DB.CSVFile), nil
	default:
		return nil, fmt.Errorf("unknown db.driver %q", cfg.DB.Driver)
	}
}

func (a *app) tr(id string, data map[string]interface{}) string {
	return a.translator.T(a.lang, id, data)
}

// loadProviders lädt Detektor und Encoder beim ersten Bedarf
func (a *app) loadProviders(ctx context.Context) (*provider.Providers, error) {
	a.providersOnce.Do(func() {
		a.providers, a.providersErr = provider.CreateManager(ctx, a.cfg)
	})
	return a.providers, a.providersErr
}

// startMQTT verbindet den MQTT-Client und meldet die bekannten Personen an Home Assistant.
// Ohne aktiviertes MQTT wird nil zurückgegeben.
func (a *app) startMQTT(names []string) pipeline.EventHandler {
	if !a.cfg.MQTT.Enabled {
		return nil
	}
	if a.mqttClient == nil {
		client := mqtt.NewClient(a.cfg.MQTT)
		if err := client.Start(); err != nil {
			log.Warnf("Failed to start MQTT client: %v. Continuing without MQTT.", err)
			return nil
		}
		a.mqttClient = client
	}

	if a.cfg.MQTT.HomeAssistant.Enabled {
		discovery := homeassistant.NewDiscoveryManager(a.mqttClient, a.cfg.MQTT)
		if err := discovery.RegisterIdentities(names); err != nil {
			log.Warnf("Home Assistant discovery failed: %v", err)
		}
		if err := discovery.PublishAvailability(true); err != nil {
			log.Warnf("Failed to publish availability: %v", err)
		}
	}

	return homeassistant.NewPublisher(a.mqttClient, a.cfg.MQTT)
}

// Close gibt alle Ressourcen frei
func (a *app) Close() {
	if a.mqttClient != nil {
		a.mqttClient.Stop()
	}
	if a.providers != nil {
		if err := a.providers.Close(); err != nil {
			log.Warnf("Failed to release face models: %v", err)
		}
	}
	if err := a.ledger.Close(); err != nil {
		log.Warnf("Failed to close attendance store: %v", err)
	}
	if err := db.Close(a.appDB); err != nil {
		log.Warnf("Failed to close database: %v", err)
	}
	if a.logCloser != nil {
		a.logCloser.Close()
	}
}

// runTracker macht den aktuellen Lauf für die API sichtbar
type runTracker struct {
	mu      sync.Mutex
	current *pipeline.Pipeline
	last    pipeline.RunStats
}

func (t *runTracker) set(p *pipeline.Pipeline) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = p
}

func (t *runTracker) finish(stats pipeline.RunStats) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = nil
	t.last = stats
}

func (t *runTracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current != nil && t.current.Running()
}

func (t *runTracker) Stats() pipeline.RunStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		return t.current.Stats()
	}
	return t.last
}

func (t *runTracker) Stop() {
	t.mu.Lock()
	p := t.current
	t.mu.Unlock()
	if p != nil {
		p.Stop()
	}
}

func (t *runTracker) Pool() *pipeline.WorkerPool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		return t.current.Pool()
	}
	return nil
}
