package fetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"caixa-imoveis/config"
	"caixa-imoveis/models"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// CollyFetcher implements the Fetcher interface using colly
type CollyFetcher struct {
	collector *colly.Collector
	baseURL   string
	logger    *zap.Logger
}

// NewCollyFetcher creates a new CollyFetcher instance
func NewCollyFetcher(cfg config.FeedConfig, logger *zap.Logger) (*CollyFetcher, error) {
	c := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	// SP's feed is several megabytes
	c.MaxBodySize = 0
	if cfg.Timeout > 0 {
		c.SetRequestTimeout(cfg.Timeout)
	}

	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.Delay,
	}); err != nil {
		return nil, fmt.Errorf("failed to set rate limit: %w", err)
	}

	return &CollyFetcher{
		collector: c,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		logger:    logger,
	}, nil
}

// URL returns the feed address for region
func (cf *CollyFetcher) URL(region models.Region) string {
	return fmt.Sprintf("%s/listaweb/Lista_imoveis_%s.csv", cf.baseURL, region)
}

// Fetch implements the Fetcher interface
func (cf *CollyFetcher) Fetch(ctx context.Context, region models.Region) (*models.RawTable, error) {
	if !region.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRegion, region)
	}

	url := cf.URL(region)
	var (
		body       []byte
		status     int
		requestErr error
	)

	// Clones share the rate limit but not callbacks, so concurrent fetches do not mix bodies
	c := cf.collector.Clone()
	c.Context = ctx

	c.OnResponseHeaders(func(r *colly.Response) {
		// The feed is Latin-1 and decoded below; stop colly from converting it first
		r.Headers.Del("Content-Type")
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		requestErr = err
	})

	start := time.Now()
	if err := c.Visit(url); err != nil && requestErr == nil {
		requestErr = err
	}
	c.Wait()

	if requestErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &HTTPFailure{URL: url, StatusCode: status, Err: requestErr}
	}

	cf.logger.Debug("feed downloaded",
		zap.String("region", string(region)),
		zap.Int("status", status),
		zap.Int("bytes", len(body)),
		zap.Duration("elapsed", time.Since(start)),
	)

	table, err := ParseFeed(region, body)
	if err != nil {
		return nil, err
	}
	if table.Skipped > 0 {
		cf.logger.Warn("skipped malformed feed rows",
			zap.String("region", string(region)),
			zap.Int("skipped", table.Skipped),
		)
	}
	return table, nil
}
