package stats

import (
	"regexp"
	"sort"

	"caixa-imoveis/models"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// topN is how many listings the cheapest and costliest rankings hold
const topN = 3

var directSale = regexp.MustCompile(`Venda Direta Online|Venda Online`)

// Summary is the overview of one region's active table
type Summary struct {
	Region     models.Region `json:"region"`
	RegionName string        `json:"region_name"`
	Total      int           `json:"total"`      // every listing in the table
	Considered int           `json:"considered"` // listings left after filtering

	Cheapest  []models.Listing `json:"cheapest"`
	Costliest []models.Listing `json:"costliest"`

	MinPrice  decimal.Decimal `json:"min_price"`
	MaxPrice  decimal.Decimal `json:"max_price"`
	MeanPrice decimal.Decimal `json:"mean_price"`

	MinPriceBRL  string `json:"min_price_brl"`
	MaxPriceBRL  string `json:"max_price_brl"`
	MeanPriceBRL string `json:"mean_price_brl"`

	BestDiscount *models.Listing `json:"best_discount,omitempty"`
	Discounted   int             `json:"discounted"`

	CommonType     string  `json:"common_type"`
	CommonSaleMode string  `json:"common_sale_mode"`
	DirectSalePct  float64 `json:"direct_sale_pct"`
}

// Summarize computes the overview of a region. all is the whole table, considered the
// subset left by the price filter; every metric except Total is computed over considered.
func Summarize(region models.Region, all, considered []models.Listing) *Summary {
	s := &Summary{
		Region:     region,
		RegionName: region.Name(),
		Total:      len(all),
		Considered: len(considered),
		Cheapest:   []models.Listing{},
		Costliest:  []models.Listing{},
	}
	if len(considered) == 0 {
		return s
	}

	byPrice := make([]models.Listing, len(considered))
	copy(byPrice, considered)
	sort.SliceStable(byPrice, func(i, j int) bool {
		return byPrice[i].Price.LessThan(byPrice[j].Price)
	})
	s.Cheapest = append(s.Cheapest, byPrice[:min(topN, len(byPrice))]...)

	// ties among the costliest keep table order too
	costliest := make([]models.Listing, len(considered))
	copy(costliest, considered)
	sort.SliceStable(costliest, func(i, j int) bool {
		return costliest[i].Price.GreaterThan(costliest[j].Price)
	})
	s.Costliest = append(s.Costliest, costliest[:min(topN, len(costliest))]...)

	s.MinPrice = s.Cheapest[0].Price
	s.MaxPrice = s.Costliest[0].Price

	sum := decimal.Zero
	types := make(map[string]int)
	modes := make(map[string]int)
	direct := 0
	best := 0
	for i, l := range considered {
		sum = sum.Add(l.Price)
		if l.DiscountPct > 0 {
			s.Discounted++
		}
		if l.DiscountPct > considered[best].DiscountPct {
			best = i
		}
		types[l.PropertyType]++
		modes[l.SaleMode]++
		if directSale.MatchString(l.SaleMode) {
			direct++
		}
	}
	s.MeanPrice = sum.Div(decimal.NewFromInt(int64(len(considered)))).Round(2)

	bestListing := considered[best]
	s.BestDiscount = &bestListing

	s.CommonType = mode(types)
	s.CommonSaleMode = mode(modes)
	s.DirectSalePct, _ = decimal.NewFromInt(int64(direct * 100)).
		Div(decimal.NewFromInt(int64(len(considered)))).
		Round(2).
		Float64()

	s.MinPriceBRL = FormatBRL(s.MinPrice)
	s.MaxPriceBRL = FormatBRL(s.MaxPrice)
	s.MeanPriceBRL = FormatBRL(s.MeanPrice)
	return s
}

// FormatBRL renders an amount the Brazilian way, "R$ 1.234,56"
func FormatBRL(v decimal.Decimal) string {
	f, _ := v.Round(2).Float64()
	return "R$ " + humanize.FormatFloat("#.###,##", f)
}

// mode returns the most frequent value; ties go to the lexicographically smallest
func mode(counts map[string]int) string {
	var (
		best  string
		count int
	)
	for v, n := range counts {
		if n > count || (n == count && v < best) {
			best, count = v, n
		}
	}
	return best
}
