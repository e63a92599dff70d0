package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ArchiveTable is the shared table that receives listings withdrawn from any region's feed
const ArchiveTable = "Arquivados"

// DateLayout is how inclusion dates are stored in every backend
const DateLayout = "2006-01-02"

// Listing represents one auctioned property
type Listing struct {
	ID             string          `json:"id"` // identity key, unique within a region
	Region         Region          `json:"region"`
	City           string          `json:"city"`
	Neighborhood   string          `json:"neighborhood"`
	Address        string          `json:"address"`
	Price          decimal.Decimal `json:"price"`
	AppraisalValue decimal.Decimal `json:"appraisal_value"`
	DiscountPct    float64         `json:"discount_pct"` // always recomputed from Price and AppraisalValue
	Description    string          `json:"description"`
	SaleMode       string          `json:"sale_mode"`
	AccessLink     string          `json:"access_link"`
	PropertyType   string          `json:"property_type"` // first word of Description

	// Areas are extracted from the free-text description; nil means not reported
	TotalArea   *float64 `json:"total_area,omitempty"`
	PrivateArea *float64 `json:"private_area,omitempty"`
	LandArea    *float64 `json:"land_area,omitempty"`

	InclusionDate time.Time `json:"inclusion_date"` // first observation, never modified

	// Coordinates are only filled when geolocation is enabled
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// FullAddress joins the address parts the way the geocoder expects them
func (l Listing) FullAddress() string {
	parts := []string{l.Address, l.Neighborhood, l.City, string(l.Region)}
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += p
	}
	return out
}

// HasCoordinates reports whether both latitude and longitude are known
func (l Listing) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// RawTable is a parsed feed before normalization
type RawTable struct {
	Region  Region
	Header  []string
	Rows    [][]string
	Skipped int // malformed rows dropped while parsing
}

// Float returns a pointer to v, for optional numeric fields
func Float(v float64) *float64 {
	return &v
}

// saoPaulo is resolved once; containers without tzdata fall back to the fixed offset
var saoPaulo = func() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		return time.FixedZone("BRT", -3*60*60)
	}
	return loc
}()

// Day truncates t to the calendar day in Brazil's official time zone
func Day(t time.Time) time.Time {
	t = t.In(saoPaulo)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, saoPaulo)
}

// ParseDay parses a stored inclusion date
func ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, saoPaulo)
}

// CalendarDay keeps the calendar date of t, as read from a DATE column, in Brazil's time zone
func CalendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, saoPaulo)
}

// Location returns the time zone inclusion dates and schedules are expressed in
func Location() *time.Location {
	return saoPaulo
}
