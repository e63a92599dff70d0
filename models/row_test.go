package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRowKeepsAbsentAreasAbsent(t *testing.T) {
	l := Listing{
		ID:             "8555512345678",
		Region:         "SP",
		Price:          decimal.RequireFromString("150000.5"),
		AppraisalValue: decimal.RequireFromString("300001"),
		DiscountPct:    50,
		PrivateArea:    Float(0),
		InclusionDate:  Day(time.Date(2024, 3, 13, 15, 0, 0, 0, time.UTC)),
	}

	got, err := ListingFromRow(Columns, l.Row())
	if err != nil {
		t.Fatalf("ListingFromRow() error = %v", err)
	}
	if got.TotalArea != nil {
		t.Errorf("TotalArea = %v, want nil", *got.TotalArea)
	}
	if got.PrivateArea == nil || *got.PrivateArea != 0 {
		t.Errorf("PrivateArea = %v, want measured zero", got.PrivateArea)
	}
	if !got.Price.Equal(l.Price) {
		t.Errorf("Price = %s, want %s", got.Price, l.Price)
	}
	if !got.InclusionDate.Equal(l.InclusionDate) {
		t.Errorf("InclusionDate = %v, want %v", got.InclusionDate, l.InclusionDate)
	}
}

func TestListingFromRowCellVariants(t *testing.T) {
	header := []string{"ID_imovel", "UF", "Preco", "Valor_Avaliacao", "Data_Inclusao", "Area_Total"}

	tests := []struct {
		name      string
		row       []interface{}
		wantID    string
		wantPrice string
		wantDate  string
		wantArea  *float64
		wantErr   bool
	}{
		{"numeric id and serial date", []interface{}{1444419970935.0, "sp", 1000.0, 2000.0, 45364.0, ""}, "1444419970935", "1000", "2024-03-13", nil, false},
		{"decimal comma strings", []interface{}{"0001", "SP", "1234,56", "2000", "2024-03-13", "55,5"}, "0001", "1234.56", "2024-03-13", Float(55.5), false},
		{"short row", []interface{}{"77"}, "77", "0", "", nil, false},
		{"missing id", []interface{}{"", "SP"}, "", "", "", nil, true},
		{"bad price", []interface{}{"9", "SP", "abc"}, "", "", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ListingFromRow(header, tt.row)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ListingFromRow() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if got.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", got.ID, tt.wantID)
			}
			if got.Price.String() != tt.wantPrice {
				t.Errorf("Price = %s, want %s", got.Price, tt.wantPrice)
			}
			date := ""
			if !got.InclusionDate.IsZero() {
				date = got.InclusionDate.Format(DateLayout)
			}
			if date != tt.wantDate {
				t.Errorf("InclusionDate = %q, want %q", date, tt.wantDate)
			}
			if (got.TotalArea == nil) != (tt.wantArea == nil) || (got.TotalArea != nil && *got.TotalArea != *tt.wantArea) {
				t.Errorf("TotalArea = %v, want %v", got.TotalArea, tt.wantArea)
			}
		})
	}
}

func TestParseRegion(t *testing.T) {
	if r, err := ParseRegion(" sp "); err != nil || r != "SP" {
		t.Fatalf("ParseRegion(sp) = %q, %v", r, err)
	}
	if _, err := ParseRegion("XX"); err == nil {
		t.Fatal("ParseRegion(XX) should fail")
	}
	if Region("DF").Name() != "Distrito Federal" {
		t.Errorf("Name() = %q", Region("DF").Name())
	}
}
