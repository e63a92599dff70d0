package geoloc

import (
	"context"
	"fmt"
	"time"

	"caixa-imoveis/models"

	"go.uber.org/zap"
)

const lookupTimeout = 10 * time.Second

// EnrichmentFailure records an address the geocoder could not resolve.
// The listing keeps nil coordinates.
type EnrichmentFailure struct {
	ID      string
	Address string
	Err     error
}

func (f EnrichmentFailure) Error() string {
	return fmt.Sprintf("geocode listing %s (%s): %v", f.ID, f.Address, f.Err)
}

func (f EnrichmentFailure) Unwrap() error {
	return f.Err
}

// Report summarises one enrichment pass
type Report struct {
	Geocoded int
	Failures []EnrichmentFailure
	Batches  int
}

// Enricher fills coordinates on listings in fixed-size batches with a pause between
// batches to stay under the geocoding quota
type Enricher struct {
	geocoder  Geocoder
	batchSize int
	delay     time.Duration
	logger    *zap.Logger
	sleep     func(time.Duration)
}

// NewEnricher creates an Enricher; batchSize below 1 is treated as 1
func NewEnricher(g Geocoder, batchSize int, delay time.Duration, logger *zap.Logger) *Enricher {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Enricher{
		geocoder:  g,
		batchSize: batchSize,
		delay:     delay,
		logger:    logger,
		sleep:     time.Sleep,
	}
}

// Enrich geocodes, in place, every listing that has no coordinates yet.
// A batch always runs to completion; ctx is only consulted between batches, so a
// cancelled run keeps the coordinates of the batches already done.
func (e *Enricher) Enrich(ctx context.Context, listings []models.Listing) (*Report, error) {
	pending := make([]int, 0, len(listings))
	for i := range listings {
		if !listings[i].HasCoordinates() {
			pending = append(pending, i)
		}
	}

	report := &Report{}
	lookupCtx := context.WithoutCancel(ctx)

	for start := 0; start < len(pending); start += e.batchSize {
		if start > 0 {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			e.logger.Info("waiting before next geocoding batch",
				zap.Duration("delay", e.delay),
				zap.Int("remaining", len(pending)-start),
			)
			e.sleep(e.delay)
			if err := ctx.Err(); err != nil {
				return report, err
			}
		}

		end := start + e.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		for _, i := range pending[start:end] {
			l := &listings[i]
			address := l.FullAddress()

			callCtx, cancel := context.WithTimeout(lookupCtx, lookupTimeout)
			lat, lng, err := e.geocoder.Geocode(callCtx, address)
			cancel()
			if err != nil {
				failure := EnrichmentFailure{ID: l.ID, Address: address, Err: err}
				report.Failures = append(report.Failures, failure)
				e.logger.Warn("geocoding failed", zap.String("id", l.ID), zap.Error(err))
				continue
			}
			l.Latitude = models.Float(lat)
			l.Longitude = models.Float(lng)
			report.Geocoded++
		}
		report.Batches++
	}
	return report, nil
}
