package filter

import (
	"testing"

	"caixa-imoveis/config"
	"caixa-imoveis/models"

	"github.com/shopspring/decimal"
)

func priced(id, price string) models.Listing {
	return models.Listing{ID: id, Price: decimal.RequireFromString(price)}
}

func TestApplyFilters(t *testing.T) {
	listings := []models.Listing{
		priced("1", "0.01"),
		priced("2", "99.99"),
		priced("3", "100"),
		priced("4", "250000"),
		priced("5", "1500000"),
	}

	tests := []struct {
		name string
		cfg  config.FilterConfig
		want []string
	}{
		{"default minimum", config.FilterConfig{MinPrice: 100}, []string{"3", "4", "5"}},
		{"bounded", config.FilterConfig{MinPrice: 100, MaxPrice: 1000000}, []string{"3", "4"}},
		{"no bounds", config.FilterConfig{}, []string{"1", "2", "3", "4", "5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewFilter(tt.cfg).ApplyFilters(listings)
			if len(got) != len(tt.want) {
				t.Fatalf("ApplyFilters() returned %d listings, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("listing %d = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestApplyFiltersEmpty(t *testing.T) {
	got := NewFilter(config.FilterConfig{MinPrice: 100}).ApplyFilters(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("ApplyFilters(nil) = %v, want empty slice", got)
	}
}
