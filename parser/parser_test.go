package parser

import (
	"errors"
	"math"
	"testing"
	"time"

	"caixa-imoveis/models"
)

var feedHeader = []string{
	" N° do imóvel", "UF", "Cidade", "Bairro", "Endereço", "Preço", "Valor de avaliação",
	"Desconto", "Descrição", "Modalidade de venda", "Link de acesso",
}

func row(id, price, appraisal, discount, desc string) []string {
	return []string{
		id, "SP", "SAO PAULO", "MOOCA", "RUA DOS TRILHOS, N. 100", price, appraisal, discount, desc,
		"Venda Direta Online", "https://venda-imoveis.caixa.gov.br/sistema/detalhe-imovel.asp?hdnimovel=" + id,
	}
}

func TestNormalize(t *testing.T) {
	now := time.Date(2024, 3, 13, 22, 30, 0, 0, time.UTC)
	table := &models.RawTable{
		Region: "SP",
		Header: feedHeader,
		Rows: [][]string{
			row("1", "100,00", "200,00", "99", "Apartamento, 0.00 de área total, 48.61 de área privativa, 0.00 de área do terreno, 2 qto(s)"),
			row("2", "1.234.567,89", "2.469.135,78", "", "Casa, 120.50 de área total"),
			row("3", "50", "80", "", "Terreno"),
		},
	}

	got, err := Normalize(table, "SP", now)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Normalize() returned %d listings, want 3", len(got))
	}
	for i, want := range []string{"1", "2", "3"} {
		if got[i].ID != want {
			t.Errorf("listing %d ID = %q, want %q", i, got[i].ID, want)
		}
	}

	first := got[0]
	if first.DiscountPct != 50 {
		t.Errorf("DiscountPct = %v, want 50 (feed value ignored)", first.DiscountPct)
	}
	if first.PropertyType != "Apartamento" {
		t.Errorf("PropertyType = %q, want Apartamento", first.PropertyType)
	}
	if first.PrivateArea == nil || *first.PrivateArea != 48.61 {
		t.Errorf("PrivateArea = %v, want 48.61", first.PrivateArea)
	}
	if first.TotalArea == nil || *first.TotalArea != 0 {
		t.Errorf("TotalArea = %v, want measured zero", first.TotalArea)
	}
	if first.Address != "RUA DOS TRILHOS, N. 100" || first.SaleMode != "Venda Direta Online" {
		t.Errorf("text fields not mapped: %+v", first)
	}
	if first.Region != "SP" {
		t.Errorf("Region = %q, want SP", first.Region)
	}
	if d := first.InclusionDate.Format(models.DateLayout); d != "2024-03-13" {
		t.Errorf("InclusionDate = %s, want 2024-03-13 (Sao Paulo day)", d)
	}

	second := got[1]
	if second.Price.String() != "1234567.89" {
		t.Errorf("Price = %s, want 1234567.89", second.Price)
	}
	if second.PrivateArea != nil || second.LandArea != nil {
		t.Errorf("absent areas should stay nil, got private=%v land=%v", second.PrivateArea, second.LandArea)
	}
	if second.TotalArea == nil || *second.TotalArea != 120.5 {
		t.Errorf("TotalArea = %v, want 120.5", second.TotalArea)
	}

	third := got[2]
	if math.Abs(third.DiscountPct-37.5) > 1e-9 {
		t.Errorf("DiscountPct = %v, want 37.5", third.DiscountPct)
	}
	if third.TotalArea != nil {
		t.Errorf("TotalArea = %v, want nil", *third.TotalArea)
	}
}

func TestNormalizeZeroAppraisalFailsCall(t *testing.T) {
	table := &models.RawTable{
		Header: feedHeader,
		Rows: [][]string{
			row("10", "100,00", "200,00", "", "Casa"),
			row("11", "100,00", "0,00", "", "Casa"),
			row("12", "100,00", "300,00", "", "Casa"),
		},
	}

	got, err := Normalize(table, "SP", time.Now())
	if !errors.Is(err, ErrDivisionUndefined) {
		t.Fatalf("Normalize() error = %v, want ErrDivisionUndefined", err)
	}
	if got != nil {
		t.Errorf("Normalize() returned %d listings on failure, want none", len(got))
	}
	var rowErr *RowError
	if !errors.As(err, &rowErr) {
		t.Fatalf("error %T is not a *RowError", err)
	}
	if rowErr.Row != 2 || rowErr.ID != "11" {
		t.Errorf("RowError = row %d id %s, want row 2 id 11", rowErr.Row, rowErr.ID)
	}
}

func TestNormalizeBadAmountFailsCall(t *testing.T) {
	table := &models.RawTable{
		Header: feedHeader,
		Rows:   [][]string{row("20", "R$ abc", "200,00", "", "Casa")},
	}
	_, err := Normalize(table, "SP", time.Now())
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("Normalize() error = %v, want ErrInvalidAmount", err)
	}
}

func TestNormalizeMissingColumn(t *testing.T) {
	table := &models.RawTable{
		Header: []string{"N° do imóvel", "UF", "Cidade"},
		Rows:   [][]string{{"1", "SP", "X"}},
	}
	_, err := Normalize(table, "SP", time.Now())
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("Normalize() error = %v, want ErrMissingColumn", err)
	}
}

func TestFoldHeader(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{" N° do imóvel", "n do imovel"},
		{"Nº do imóvel ", "n do imovel"},
		{"Valor de avaliação", "valor de avaliacao"},
		{"Valor_Avaliacao", "valor avaliacao"},
		{"Link  de   acesso", "link de acesso"},
		{"ENDEREÇO", "endereco"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := foldHeader(tt.in); got != tt.want {
				t.Errorf("foldHeader(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"thousands and cents", "1.234,56", "1234.56", false},
		{"millions", "12.000.000,00", "12000000", false},
		{"plain integer", "850", "850", false},
		{"padded", "  99,90 ", "99.9", false},
		{"empty", "", "", true},
		{"text", "abc", "", true},
		{"negative", "-10,00", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAmount() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.String() != tt.want {
				t.Errorf("ParseAmount() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDeriveUnicodeType(t *testing.T) {
	l := models.Listing{Description: "  Prédio comercial, 300.00 de área do terreno"}
	l.Price, _ = ParseAmount("100")
	l.AppraisalValue, _ = ParseAmount("100")
	if err := Derive(&l); err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if l.PropertyType != "Prédio" {
		t.Errorf("PropertyType = %q, want Prédio", l.PropertyType)
	}
	if l.DiscountPct != 0 {
		t.Errorf("DiscountPct = %v, want 0", l.DiscountPct)
	}
	if l.LandArea == nil || *l.LandArea != 300 {
		t.Errorf("LandArea = %v, want 300", l.LandArea)
	}
}
