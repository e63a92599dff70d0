package web

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"caixa-imoveis/db"
	"caixa-imoveis/filter"
	"caixa-imoveis/models"
	"caixa-imoveis/stats"
	"caixa-imoveis/store"

	"github.com/dgraph-io/ristretto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

// RunLister lists the latest batch runs
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]db.SyncRun, error)
}

// Handler serves the read-only JSON surface over the snapshot store
type Handler struct {
	store   store.Store
	filter  *filter.Filter
	regions map[models.Region]bool
	order   []models.Region
	runs    RunLister
	logger  *zap.Logger

	cache *ristretto.Cache
	ttl   time.Duration
}

// NewHandler creates the handler. Summaries are cached for ttl; a non-positive ttl
// disables the cache. runs may be nil when no ledger is configured.
func NewHandler(s store.Store, f *filter.Filter, regions []models.Region, runs RunLister, ttl time.Duration, logger *zap.Logger) (*Handler, error) {
	h := &Handler{
		store:   s,
		filter:  f,
		regions: make(map[models.Region]bool, len(regions)),
		order:   regions,
		runs:    runs,
		logger:  logger,
		ttl:     ttl,
	}
	for _, r := range regions {
		h.regions[r] = true
	}

	if ttl > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters:        1000,
			MaxCost:            int64(len(models.Regions)) * 4,
			BufferItems:        64,
			IgnoreInternalCost: true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create summary cache: %w", err)
		}
		h.cache = cache
	}
	return h, nil
}

// Register mounts the health check and the read-only /api routes on r
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.health)

	group := r.Group("/api")
	group.GET("/regions", h.listRegions)
	group.GET("/regions/:uf/listings", h.listListings)
	group.GET("/regions/:uf/summary", h.getSummary)
	group.GET("/archive", h.listArchive)
	group.GET("/runs", h.listRuns)
}

// Invalidate drops the cached summary of a region; wired to the runner's region callback
func (h *Handler) Invalidate(region models.Region) {
	if h.cache != nil {
		h.cache.Del(summaryKey(region))
	}
}

// Close releases the summary cache
func (h *Handler) Close() {
	if h.cache != nil {
		h.cache.Close()
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type regionView struct {
	Code  models.Region `json:"code"`
	Name  string        `json:"name"`
	Table string        `json:"table"`
}

func (h *Handler) listRegions(c *gin.Context) {
	out := make([]regionView, 0, len(h.order))
	for _, r := range h.order {
		out = append(out, regionView{Code: r, Name: r.Name(), Table: r.Table()})
	}
	Ok(c, out, map[string]any{"count": len(out)})
}

func (h *Handler) listListings(c *gin.Context) {
	region, ok := h.region(c)
	if !ok {
		return
	}
	all, err := h.store.ReadAll(c.Request.Context(), region.Table())
	if err != nil {
		h.storeError(c, region.Table(), err)
		return
	}
	listings := h.filter.ApplyFilters(all)
	Ok(c, listings, map[string]any{"total": len(all), "count": len(listings)})
}

func (h *Handler) getSummary(c *gin.Context) {
	region, ok := h.region(c)
	if !ok {
		return
	}

	key := summaryKey(region)
	if h.cache != nil {
		if v, found := h.cache.Get(key); found {
			if summary, ok := v.(*stats.Summary); ok {
				Ok(c, summary, map[string]any{"cached": true})
				return
			}
		}
	}

	all, err := h.store.ReadAll(c.Request.Context(), region.Table())
	if err != nil {
		h.storeError(c, region.Table(), err)
		return
	}
	summary := stats.Summarize(region, all, h.filter.ApplyFilters(all))

	if h.cache != nil {
		h.cache.SetWithTTL(key, summary, 1, h.ttl)
		h.cache.Wait()
	}
	Ok(c, summary, map[string]any{"cached": false})
}

func (h *Handler) listArchive(c *gin.Context) {
	archived, err := h.store.ReadAll(c.Request.Context(), models.ArchiveTable)
	if err != nil {
		h.storeError(c, models.ArchiveTable, err)
		return
	}

	if uf := c.Query("uf"); uf != "" {
		region, err := models.ParseRegion(uf)
		if err != nil {
			Error(c, http.StatusNotFound, err.Error(), nil)
			return
		}
		filtered := archived[:0]
		for _, l := range archived {
			if l.Region == region {
				filtered = append(filtered, l)
			}
		}
		archived = filtered
	}
	Ok(c, archived, map[string]any{"count": len(archived)})
}

type runView struct {
	ID               string     `json:"id"`
	Status           string     `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	RegionsDone      int        `json:"regions_done"`
	RegionsSkipped   int        `json:"regions_skipped"`
	RegionsFailed    int        `json:"regions_failed"`
	ListingsAdded    int        `json:"listings_added"`
	ListingsArchived int        `json:"listings_archived"`
}

func (h *Handler) listRuns(c *gin.Context) {
	if h.runs == nil {
		Error(c, http.StatusNotFound, "run ledger not configured", nil)
		return
	}
	limit := intQuery(c, "limit", defaultRunsLimit)
	if limit <= 0 || limit > maxRunsLimit {
		limit = defaultRunsLimit
	}

	runs, err := h.runs.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		h.storeError(c, "sync_runs", err)
		return
	}
	out := make([]runView, 0, len(runs))
	for _, r := range runs {
		v := runView{
			ID:               r.ID,
			Status:           r.Status,
			StartedAt:        r.StartedAt,
			RegionsDone:      r.RegionsDone,
			RegionsSkipped:   r.RegionsSkipped,
			RegionsFailed:    r.RegionsFailed,
			ListingsAdded:    r.ListingsAdded,
			ListingsArchived: r.ListingsArchived,
		}
		if r.FinishedAt.Valid {
			finished := r.FinishedAt.Time
			v.FinishedAt = &finished
		}
		out = append(out, v)
	}
	Ok(c, out, map[string]any{"count": len(out)})
}

// region resolves :uf against the configured regions, answering 404 otherwise
func (h *Handler) region(c *gin.Context) (models.Region, bool) {
	region, err := models.ParseRegion(c.Param("uf"))
	if err != nil || !h.regions[region] {
		Error(c, http.StatusNotFound, "unknown region", map[string]any{"uf": c.Param("uf")})
		return "", false
	}
	return region, true
}

func (h *Handler) storeError(c *gin.Context, table string, err error) {
	h.logger.Warn("store read failed", zap.String("table", table), zap.Error(err))
	Error(c, http.StatusBadGateway, "store unavailable", map[string]any{"table": table})
}

func summaryKey(region models.Region) string {
	return "summary:" + string(region)
}

func intQuery(c *gin.Context, key string, def int) int {
	if val := c.Query(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}
