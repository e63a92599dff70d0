package filter

import (
	"caixa-imoveis/config"
	"caixa-imoveis/models"

	"github.com/shopspring/decimal"
)

// Filter applies filter criteria to listings
type Filter struct {
	minPrice decimal.Decimal
	maxPrice decimal.Decimal // zero means no upper bound
}

// NewFilter creates a new Filter instance
func NewFilter(cfg config.FilterConfig) *Filter {
	return &Filter{
		minPrice: decimal.NewFromFloat(cfg.MinPrice),
		maxPrice: decimal.NewFromFloat(cfg.MaxPrice),
	}
}

// ApplyFilters returns the listings matching the price range, keeping their order
func (f *Filter) ApplyFilters(listings []models.Listing) []models.Listing {
	filtered := make([]models.Listing, 0, len(listings))

	for _, listing := range listings {
		if f.matchesFilters(listing) {
			filtered = append(filtered, listing)
		}
	}

	return filtered
}

// matchesFilters checks if a listing matches all filter criteria
func (f *Filter) matchesFilters(listing models.Listing) bool {
	// prices under the minimum are data-entry errors in the feed
	if listing.Price.LessThan(f.minPrice) {
		return false
	}

	if f.maxPrice.IsPositive() && listing.Price.GreaterThan(f.maxPrice) {
		return false
	}

	return true
}
