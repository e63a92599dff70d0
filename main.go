package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"caixa-imoveis/config"
	"caixa-imoveis/db"
	"caixa-imoveis/fetcher"
	"caixa-imoveis/filter"
	"caixa-imoveis/geoloc"
	"caixa-imoveis/logger"
	"caixa-imoveis/models"
	"caixa-imoveis/notifier"
	"caixa-imoveis/scheduler"
	"caixa-imoveis/sheets"
	"caixa-imoveis/store"
	"caixa-imoveis/web"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	modeSync     = "sync"
	modeSchedule = "schedule"
	modeServe    = "serve"
	modeSetup    = "setup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	mode := flag.String("mode", modeSync, "sync (one batch), schedule (cron batches), serve (JSON API + cron), setup (create worksheets)")
	backend := flag.String("backend", "", "Store backend override: sheets, postgres or memory")
	regions := flag.String("regions", "", "Comma-separated UF codes overriding the configured regions")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}
	if *backend != "" {
		cfg.Store.Backend = strings.ToLower(*backend)
	}
	if *regions != "" {
		cfg.Regions = strings.Split(*regions, ",")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v\n", err)
	}

	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v\n", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *mode, zl); err != nil {
		zl.Error("exiting", zap.String("mode", *mode), zap.Error(err))
		os.Exit(1)
	}
}

// app holds the components shared by every mode
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	regions  []models.Region
	store    store.Store
	sheets   *sheets.Store
	database *db.DB
}

func run(ctx context.Context, cfg *config.Config, mode string, logger *zap.Logger) error {
	regions, err := cfg.RegionList()
	if err != nil {
		return err
	}

	a := &app{cfg: cfg, logger: logger, regions: regions}
	if err := a.open(ctx); err != nil {
		return err
	}
	defer a.close()

	logger.Info("starting",
		zap.String("mode", mode),
		zap.String("backend", cfg.Store.Backend),
		zap.Int("regions", len(regions)),
	)

	switch mode {
	case modeSetup:
		return a.setup(ctx)
	case modeSync:
		runner, err := a.runner()
		if err != nil {
			return err
		}
		report := runner.RunOnce(ctx)
		if db.RunStatus(report) == "failed" {
			return fmt.Errorf("no region synchronised in run %s", report.ID)
		}
		return nil
	case modeSchedule:
		runner, err := a.runner()
		if err != nil {
			return err
		}
		sched, err := scheduler.NewScheduler(runner, cfg.Schedule.Cron, logger)
		if err != nil {
			return err
		}
		sched.Start()
		<-ctx.Done()
		sched.Stop()
		return nil
	case modeServe:
		return a.serve(ctx)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

// open connects the configured store and, when needed, the database
func (a *app) open(ctx context.Context) error {
	if a.cfg.Store.Backend == config.BackendPostgres || a.cfg.Database.Ledger {
		database, err := db.NewDB(ctx, a.cfg.Database.URL, a.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.database = database
	}

	switch a.cfg.Store.Backend {
	case config.BackendSheets:
		s, err := sheets.NewStore(ctx, a.cfg.Sheets, a.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Google Sheets store: %w", err)
		}
		a.sheets = s
		a.store = s
	case config.BackendPostgres:
		a.store = a.database
	default:
		a.logger.Warn("using in-memory store, nothing will be persisted")
		a.store = store.NewMemory()
	}
	return nil
}

func (a *app) close() {
	if a.database != nil {
		if err := a.database.Close(); err != nil {
			a.logger.Warn("failed to close database", zap.Error(err))
		}
	}
}

// setup creates the region worksheets and the archive on a fresh workbook
func (a *app) setup(ctx context.Context) error {
	if a.sheets == nil {
		a.logger.Info("nothing to set up for backend", zap.String("backend", a.cfg.Store.Backend))
		return nil
	}

	tables := make([]string, 0, len(a.regions)+1)
	for _, r := range a.regions {
		tables = append(tables, r.Table())
	}
	tables = append(tables, models.ArchiveTable)

	created, err := a.sheets.EnsureTables(ctx, tables)
	if err != nil {
		return err
	}
	a.logger.Info("workbook ready", zap.Strings("created", created), zap.Int("tables", len(tables)))
	return nil
}

func (a *app) runner(opts ...scheduler.Option) (*scheduler.Runner, error) {
	f, err := fetcher.NewCollyFetcher(a.cfg.Feed, a.logger)
	if err != nil {
		return nil, err
	}

	if a.cfg.Geoloc.Enabled {
		geocoder, err := geoloc.NewGoogleGeocoder(a.cfg.Geoloc.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create geocoder: %w", err)
		}
		enricher := geoloc.NewEnricher(geocoder, a.cfg.Geoloc.BatchSize, a.cfg.Geoloc.Delay, a.logger)
		opts = append(opts, scheduler.WithEnricher(enricher))
	}

	if a.cfg.Database.Ledger && a.database != nil {
		opts = append(opts, scheduler.WithLedger(a.database))
	}

	if a.cfg.Telegram.Enabled {
		tg, err := notifier.NewTelegram(a.cfg.Telegram, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create telegram notifier: %w", err)
		}
		opts = append(opts, scheduler.WithNotifier(tg))
	}

	return scheduler.NewRunner(f, a.store, a.regions, a.logger, opts...), nil
}

// serve exposes the JSON read surface and runs scheduled batches alongside it
func (a *app) serve(ctx context.Context) error {
	var runs web.RunLister
	if a.database != nil {
		runs = a.database
	}

	handler, err := web.NewHandler(a.store, filter.NewFilter(a.cfg.Filters), a.regions, runs, a.cfg.Server.SummaryTTL, a.logger)
	if err != nil {
		return err
	}
	defer handler.Close()

	runner, err := a.runner(scheduler.OnRegionDone(func(res models.RegionResult) {
		handler.Invalidate(res.Region)
	}))
	if err != nil {
		return err
	}

	var sched *scheduler.Scheduler
	if a.cfg.Schedule.Cron != "" {
		sched, err = scheduler.NewScheduler(runner, a.cfg.Schedule.Cron, a.logger)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	if a.cfg.Log.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	handler.Register(engine)

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http server shutdown", zap.Error(err))
	}
	return nil
}
