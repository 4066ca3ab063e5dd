package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/reloop-eco/reloop/internal/api"
	"github.com/reloop-eco/reloop/internal/app/catalog"
	"github.com/reloop-eco/reloop/internal/app/engine"
	"github.com/reloop-eco/reloop/internal/app/notify"
	"github.com/reloop-eco/reloop/internal/domain"
	"github.com/reloop-eco/reloop/internal/health"
	"github.com/reloop-eco/reloop/internal/infra/classify"
	_ "github.com/reloop-eco/reloop/internal/infra/metrics" // register Prometheus metrics
	"github.com/reloop-eco/reloop/internal/infra/sqlite"
)

// Daemon is the core reloop runtime. It wires together all services.
type Daemon struct {
	Config        Config
	DB            *sqlite.DB
	Catalog       *domain.Catalog
	Engine        *engine.Engine
	Notifications *notify.Service
	Server        *api.Server
	Health        *health.Checker

	cron   *cron.Cron
	cancel context.CancelFunc
}

// New creates and initializes a Daemon from the on-disk configuration.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	dataDir := cfg.Storage.Dir
	if dataDir == "" {
		dataDir = reloopHome()
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sqlite.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Rule catalog: built-in defaults, optionally overlaid from file.
	cat := catalog.Default()
	if cfg.Rewards.CatalogFile != "" {
		cat, err = catalog.Load(cfg.Rewards.CatalogFile)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("load catalog: %w", err)
		}
	}
	if err := db.SeedMissions(context.Background(), cat.Missions()); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed missions: %w", err)
	}

	notifier := notify.NewWithPolicy(db, domain.NotificationPolicy{
		MaxPerDay:  cfg.Notifications.MaxPerDay,
		QuietStart: cfg.Notifications.QuietStart,
		QuietEnd:   cfg.Notifications.QuietEnd,
	})

	reward := engine.DefaultRewardConfig()
	if cfg.Rewards.ConfidenceThreshold > 0 {
		reward.ConfidenceThreshold = cfg.Rewards.ConfidenceThreshold
	}
	if cfg.Rewards.ConfidencePenalty > 0 {
		reward.ConfidencePenalty = cfg.Rewards.ConfidencePenalty
	}

	eng := engine.New(db, db, db, cat, notifier, reward, engine.DefaultApplyConfig())

	checker := health.NewChecker(db, dataDir, cat)

	srv := api.NewServer(eng, db, cat)
	srv.SetNotifications(notifier)
	srv.SetClassifier(classify.NewStub(cat))
	srv.SetHealthChecker(checker)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config:        cfg,
		DB:            db,
		Catalog:       cat,
		Engine:        eng,
		Notifications: notifier,
		Server:        srv,
		Health:        checker,
	}, nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.Health.Run(ctx)

	// Mission expiry sweep on a cron schedule, plus once at startup so a
	// restart never leaves stale ACTIVE rows behind.
	if n, err := d.Engine.SweepExpired(ctx, time.Now()); err != nil {
		log.Printf("[daemon] startup sweep: %v", err)
	} else if n > 0 {
		log.Printf("[daemon] startup sweep expired %d mission participations", n)
	}

	schedule := d.Config.Sweep.Schedule
	if schedule == "" {
		schedule = "@hourly"
	}
	d.cron = cron.New()
	if _, err := d.cron.AddFunc(schedule, func() {
		n, err := d.Engine.SweepExpired(context.Background(), time.Now())
		if err != nil {
			log.Printf("[daemon] sweep: %v", err)
			return
		}
		if n > 0 {
			log.Printf("[daemon] sweep expired %d mission participations", n)
		}
	}); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", schedule, err)
	}
	d.cron.Start()

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		stopCtx := d.cron.Stop()
		<-stopCtx.Done()

		_ = httpServer.Shutdown(shutdownCtx)
		_ = d.DB.Close()
	}()

	fmt.Printf("reloop serving on http://%s\n", addr)
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.cron != nil {
		d.cron.Stop()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
