package scheduler

import (
	"context"
	"sync"
	"time"

	"caixa-imoveis/fetcher"
	"caixa-imoveis/geoloc"
	"caixa-imoveis/models"
	"caixa-imoveis/parser"
	"caixa-imoveis/reconcile"
	"caixa-imoveis/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Enricher fills coordinates on new listings before they are stored
type Enricher interface {
	Enrich(ctx context.Context, listings []models.Listing) (*geoloc.Report, error)
}

// Ledger records runs and their per-region outcomes
type Ledger interface {
	StartRun(ctx context.Context, runID string, startedAt time.Time) error
	RecordRegion(ctx context.Context, runID string, res models.RegionResult) error
	FinishRun(ctx context.Context, report *models.RunReport) error
}

// Notifier is told about every finished run
type Notifier interface {
	NotifyRun(ctx context.Context, report *models.RunReport) error
}

// Option configures optional collaborators of a Runner
type Option func(*Runner)

// WithEnricher geocodes new listings before they are stored
func WithEnricher(e Enricher) Option {
	return func(r *Runner) { r.enricher = e }
}

// WithLedger records runs in a ledger
func WithLedger(l Ledger) Option {
	return func(r *Runner) { r.ledger = l }
}

// WithNotifier sends the run report when a run ends
func WithNotifier(n Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// OnRegionDone registers a callback invoked after each region, whatever its status
func OnRegionDone(fn func(models.RegionResult)) Option {
	return func(r *Runner) { r.onRegionDone = append(r.onRegionDone, fn) }
}

// Runner drives one batch over the configured regions
type Runner struct {
	fetcher fetcher.Fetcher
	store   store.Store
	regions []models.Region
	logger  *zap.Logger

	enricher     Enricher
	ledger       Ledger
	notifier     Notifier
	now          func() time.Time
	onRegionDone []func(models.RegionResult)

	mu    sync.Mutex
	locks map[models.Region]*sync.Mutex
}

// NewRunner creates a runner over regions, processed in the given order
func NewRunner(f fetcher.Fetcher, s store.Store, regions []models.Region, logger *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		fetcher: f,
		store:   s,
		regions: regions,
		logger:  logger,
		now:     time.Now,
		locks:   make(map[models.Region]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Regions returns the regions this runner processes
func (r *Runner) Regions() []models.Region {
	return r.regions
}

// RunOnce synchronises every region sequentially. A failing region is recorded and the
// batch moves on; cancellation stops the batch before the next region starts.
func (r *Runner) RunOnce(ctx context.Context) *models.RunReport {
	report := &models.RunReport{
		ID:        uuid.NewString(),
		StartedAt: r.now(),
	}
	logger := r.logger.With(zap.String("run_id", report.ID))
	logger.Info("starting run", zap.Int("regions", len(r.regions)))

	if r.ledger != nil {
		if err := r.ledger.StartRun(ctx, report.ID, report.StartedAt); err != nil {
			logger.Warn("failed to record run start", zap.Error(err))
		}
	}

	for _, region := range r.regions {
		if err := ctx.Err(); err != nil {
			logger.Warn("run interrupted", zap.String("next_region", string(region)), zap.Error(err))
			break
		}

		res := r.syncRegion(ctx, region, logger)
		report.Regions = append(report.Regions, res)

		if r.ledger != nil {
			if err := r.ledger.RecordRegion(context.WithoutCancel(ctx), report.ID, res); err != nil {
				logger.Warn("failed to record region", zap.String("region", string(region)), zap.Error(err))
			}
		}
		for _, fn := range r.onRegionDone {
			fn(res)
		}
	}

	report.FinishedAt = r.now()
	counts := report.Counts()
	added, archived := report.Totals()
	logger.Info("run finished",
		zap.Int("done", counts[models.RegionDone]),
		zap.Int("skipped", counts[models.RegionSkipped]),
		zap.Int("failed", counts[models.RegionFailed]),
		zap.Int("added", added),
		zap.Int("archived", archived),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)

	// the run already happened; bookkeeping should not be lost to a shutdown signal
	finishCtx := context.WithoutCancel(ctx)
	if r.ledger != nil {
		if err := r.ledger.FinishRun(finishCtx, report); err != nil {
			logger.Warn("failed to record run end", zap.Error(err))
		}
	}
	if r.notifier != nil {
		if err := r.notifier.NotifyRun(finishCtx, report); err != nil {
			logger.Warn("failed to send run notification", zap.Error(err))
		}
	}
	return report
}

// SyncRegion runs the fetch, normalize, reconcile, apply pipeline for one region
func (r *Runner) SyncRegion(ctx context.Context, region models.Region) models.RegionResult {
	return r.syncRegion(ctx, region, r.logger)
}

func (r *Runner) syncRegion(ctx context.Context, region models.Region, logger *zap.Logger) models.RegionResult {
	lock := r.regionLock(region)
	lock.Lock()
	defer lock.Unlock()

	start := r.now()
	logger = logger.With(zap.String("region", string(region)))
	res := models.RegionResult{Region: region}
	finish := func(status models.RegionStatus, err error) models.RegionResult {
		res.Status = status
		res.Err = err
		res.Duration = r.now().Sub(start)
		switch status {
		case models.RegionDone:
			logger.Info("region synchronised",
				zap.String("plan", res.Plan),
				zap.Int("incoming", res.Incoming),
				zap.Int("new", res.New),
				zap.Int("archived", res.Archived),
			)
		case models.RegionSkipped:
			logger.Warn("region skipped", zap.Bool("rate_limited", fetcher.IsRateLimited(err)), zap.Error(err))
		default:
			logger.Error("region failed", zap.Error(err))
		}
		return res
	}

	table, err := r.fetcher.Fetch(ctx, region)
	if err != nil {
		return finish(models.RegionSkipped, err)
	}

	incoming, err := parser.Normalize(table, region, start)
	if err != nil {
		return finish(models.RegionFailed, err)
	}
	res.Incoming = len(incoming)

	persisted, err := r.store.ReadAll(ctx, region.Table())
	if err != nil {
		return finish(models.RegionFailed, err)
	}
	res.Persisted = len(persisted)

	plan := reconcile.Reconcile(region, incoming, persisted)
	res.Plan = plan.Kind().String()
	res.New = len(plan.New)
	res.Archived = len(plan.Archived)
	res.Duplicates = len(plan.Duplicates)
	if len(plan.Duplicates) > 0 {
		logger.Warn("duplicate ids in feed", zap.Strings("ids", plan.Duplicates))
	}

	applyCtx := ctx
	if r.enricher != nil && len(plan.New) > 0 {
		report, err := r.enricher.Enrich(ctx, plan.New)
		if report != nil {
			res.Geocoded = report.Geocoded
		}
		if err != nil {
			// coordinates of completed batches are already on plan.New; the rest stay empty
			logger.Warn("geocoding interrupted, storing partial coordinates",
				zap.Int("geocoded", res.Geocoded), zap.Error(err))
			applyCtx = context.WithoutCancel(ctx)
		}
	}

	if err := plan.Apply(applyCtx, r.store); err != nil {
		return finish(models.RegionFailed, err)
	}
	return finish(models.RegionDone, nil)
}

func (r *Runner) regionLock(region models.Region) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[region]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[region] = lock
	}
	return lock
}
