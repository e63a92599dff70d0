package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"caixa-imoveis/models"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount is returned when a monetary cell cannot be read as a non-negative amount
	ErrInvalidAmount = errors.New("invalid monetary amount")
	// ErrDivisionUndefined is returned when the appraisal value is zero and no discount can be derived
	ErrDivisionUndefined = errors.New("discount undefined for zero appraisal value")
	// ErrMissingID is returned for a row without an identity key
	ErrMissingID = errors.New("listing without id")
)

var (
	propertyTypePattern = regexp.MustCompile(`^([\p{L}\p{N}_]+)`)
	totalAreaPattern    = regexp.MustCompile(`, (\d+\.\d+) de área total`)
	privateAreaPattern  = regexp.MustCompile(`, (\d+\.\d+) de área privativa`)
	landAreaPattern     = regexp.MustCompile(`, (\d+\.\d+) de área do terreno`)
)

var hundred = decimal.NewFromInt(100)

// RowError ties a normalization failure to the feed row that caused it
type RowError struct {
	Row int // 1-based data row, header excluded
	ID  string
	Err error
}

func (e *RowError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("row %d (id %s): %v", e.Row, e.ID, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// Normalize turns raw feed rows into listings for region. The output keeps the input
// order and has one listing per row; any row with a bad amount or a zero appraisal
// fails the whole call.
func Normalize(table *models.RawTable, region models.Region, now time.Time) ([]models.Listing, error) {
	if table == nil {
		return nil, fmt.Errorf("failed to normalize %s: nil table", region)
	}
	idx, err := columnIndex(table.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize %s: %w", region, err)
	}

	field := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	included := models.Day(now)
	listings := make([]models.Listing, 0, len(table.Rows))
	for n, row := range table.Rows {
		l := models.Listing{
			ID:            field(row, colID),
			Region:        region,
			City:          field(row, colCity),
			Neighborhood:  field(row, colNeighbor),
			Address:       field(row, colAddress),
			Description:   field(row, colDescription),
			SaleMode:      field(row, colSaleMode),
			AccessLink:    field(row, colLink),
			InclusionDate: included,
		}
		if l.ID == "" {
			return nil, &RowError{Row: n + 1, Err: ErrMissingID}
		}

		if l.Price, err = ParseAmount(field(row, colPrice)); err != nil {
			return nil, &RowError{Row: n + 1, ID: l.ID, Err: fmt.Errorf("Preco: %w", err)}
		}
		if l.AppraisalValue, err = ParseAmount(field(row, colAppraisal)); err != nil {
			return nil, &RowError{Row: n + 1, ID: l.ID, Err: fmt.Errorf("Valor_Avaliacao: %w", err)}
		}
		if err := Derive(&l); err != nil {
			return nil, &RowError{Row: n + 1, ID: l.ID, Err: err}
		}
		listings = append(listings, l)
	}
	return listings, nil
}

// ParseAmount reads a pt-BR formatted amount such as "1.234.567,89"
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	clean := strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: negative %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// Derive recomputes the fields that are never taken from the feed: discount,
// property type and the areas embedded in the description.
func Derive(l *models.Listing) error {
	discount, err := Discount(l.Price, l.AppraisalValue)
	if err != nil {
		return err
	}
	l.DiscountPct = discount

	desc := strings.TrimSpace(l.Description)
	l.PropertyType = ""
	if m := propertyTypePattern.FindStringSubmatch(desc); m != nil {
		l.PropertyType = m[1]
	}
	l.TotalArea = extractArea(totalAreaPattern, desc)
	l.PrivateArea = extractArea(privateAreaPattern, desc)
	l.LandArea = extractArea(landAreaPattern, desc)
	return nil
}

// Discount returns (appraisal - price) / appraisal * 100
func Discount(price, appraisal decimal.Decimal) (float64, error) {
	if appraisal.IsZero() {
		return 0, ErrDivisionUndefined
	}
	return appraisal.Sub(price).Div(appraisal).Mul(hundred).InexactFloat64(), nil
}

func extractArea(re *regexp.Regexp, desc string) *float64 {
	m := re.FindStringSubmatch(desc)
	if m == nil {
		return nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &v
}
