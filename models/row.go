package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Columns is the canonical header shared by every region table and the archive
var Columns = []string{
	"ID_imovel", "UF", "Cidade", "Bairro", "Endereco", "Preco", "Valor_Avaliacao", "Desconto",
	"Descricao", "Modalidade_venda", "Link_acesso", "Tipo_Imovel", "Area_Total", "Area_Privativa",
	"Area_Terreno", "Data_Inclusao", "Latitude", "Longitude",
}

// spreadsheet serial dates count days from this epoch
var serialEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// Header returns Columns as a row of cell values
func Header() []interface{} {
	row := make([]interface{}, len(Columns))
	for i, c := range Columns {
		row[i] = c
	}
	return row
}

// Row encodes the listing in Columns order; absent optional values become empty cells
func (l Listing) Row() []interface{} {
	date := ""
	if !l.InclusionDate.IsZero() {
		date = l.InclusionDate.Format(DateLayout)
	}
	return []interface{}{
		l.ID,
		string(l.Region),
		l.City,
		l.Neighborhood,
		l.Address,
		l.Price.InexactFloat64(),
		l.AppraisalValue.InexactFloat64(),
		l.DiscountPct,
		l.Description,
		l.SaleMode,
		l.AccessLink,
		l.PropertyType,
		optional(l.TotalArea),
		optional(l.PrivateArea),
		optional(l.LandArea),
		date,
		optional(l.Latitude),
		optional(l.Longitude),
	}
}

func optional(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

// ListingFromRow decodes a stored row using header to locate columns.
// Cells may hold strings or numbers depending on how the backend renders them.
func ListingFromRow(header []string, row []interface{}) (Listing, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	cell := func(name string) interface{} {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return nil
		}
		return row[i]
	}
	text := func(name string) string {
		return CellString(cell(name))
	}

	var l Listing
	l.ID = text("ID_imovel")
	if l.ID == "" {
		return l, fmt.Errorf("row without ID_imovel")
	}
	l.Region = Region(strings.ToUpper(text("UF")))
	l.City = text("Cidade")
	l.Neighborhood = text("Bairro")
	l.Address = text("Endereco")
	l.Description = text("Descricao")
	l.SaleMode = text("Modalidade_venda")
	l.AccessLink = text("Link_acesso")
	l.PropertyType = text("Tipo_Imovel")

	var err error
	if l.Price, err = cellDecimal(cell("Preco")); err != nil {
		return l, fmt.Errorf("listing %s: invalid Preco: %w", l.ID, err)
	}
	if l.AppraisalValue, err = cellDecimal(cell("Valor_Avaliacao")); err != nil {
		return l, fmt.Errorf("listing %s: invalid Valor_Avaliacao: %w", l.ID, err)
	}
	if d, err := cellFloat(cell("Desconto")); err == nil && d != nil {
		l.DiscountPct = *d
	}
	for name, dst := range map[string]**float64{
		"Area_Total":     &l.TotalArea,
		"Area_Privativa": &l.PrivateArea,
		"Area_Terreno":   &l.LandArea,
		"Latitude":       &l.Latitude,
		"Longitude":      &l.Longitude,
	} {
		v, err := cellFloat(cell(name))
		if err != nil {
			return l, fmt.Errorf("listing %s: invalid %s: %w", l.ID, name, err)
		}
		*dst = v
	}
	if l.InclusionDate, err = cellDate(cell("Data_Inclusao")); err != nil {
		return l, fmt.Errorf("listing %s: invalid Data_Inclusao: %w", l.ID, err)
	}
	return l, nil
}

// CellString renders a cell value as text
func CellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func cellDecimal(v interface{}) (decimal.Decimal, error) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, nil
	case float64:
		return decimal.NewFromFloat(t), nil
	}
	s := CellString(v)
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(storedNumber(s))
}

func cellFloat(v interface{}) (*float64, error) {
	if f, ok := v.(float64); ok {
		return &f, nil
	}
	s := CellString(v)
	if s == "" || strings.EqualFold(s, "nan") {
		return nil, nil
	}
	f, err := strconv.ParseFloat(storedNumber(s), 64)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// storedNumber accepts numbers rendered with a decimal comma by a pt-BR spreadsheet
func storedNumber(s string) string {
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		return strings.Replace(s, ",", ".", 1)
	}
	return s
}

func cellDate(v interface{}) (time.Time, error) {
	if f, ok := v.(float64); ok {
		return CalendarDay(serialEpoch.AddDate(0, 0, int(f))), nil
	}
	s := CellString(v)
	if s == "" {
		return time.Time{}, nil
	}
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	return ParseDay(s)
}
