package parser

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrMissingColumn is returned when the feed header lacks a column the listing needs
var ErrMissingColumn = errors.New("required column missing from feed header")

// Canonical column names used after renaming
const (
	colID          = "ID_imovel"
	colUF          = "UF"
	colCity        = "Cidade"
	colNeighbor    = "Bairro"
	colAddress     = "Endereco"
	colPrice       = "Preco"
	colAppraisal   = "Valor_Avaliacao"
	colDiscount    = "Desconto"
	colDescription = "Descricao"
	colSaleMode    = "Modalidade_venda"
	colLink        = "Link_acesso"
)

// columnAliases maps a folded header (lower case, no accents or ordinal marks) to its canonical name.
// The upstream has shipped both the human headers and, in mirrors, the canonical ones.
var columnAliases = map[string]string{
	"n do imovel":         colID,
	"numero do imovel":    colID,
	"id imovel":           colID,
	"uf":                  colUF,
	"cidade":              colCity,
	"bairro":              colNeighbor,
	"endereco":            colAddress,
	"preco":               colPrice,
	"valor de avaliacao":  colAppraisal,
	"valor avaliacao":     colAppraisal,
	"desconto":            colDiscount,
	"descricao":           colDescription,
	"modalidade de venda": colSaleMode,
	"modalidade venda":    colSaleMode,
	"link de acesso":      colLink,
	"link acesso":         colLink,
}

var requiredColumns = []string{
	colID, colUF, colCity, colNeighbor, colAddress, colPrice, colAppraisal,
	colDescription, colSaleMode, colLink,
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldHeader lowers, strips accents and ordinal indicators, and collapses separators
func foldHeader(h string) string {
	folded, _, err := transform.String(stripMarks, h)
	if err != nil {
		folded = h
	}
	folded = strings.ToLower(folded)
	folded = strings.Map(func(r rune) rune {
		switch r {
		case '°', 'º', '.':
			return -1
		case '_':
			return ' '
		}
		return r
	}, folded)
	return strings.Join(strings.Fields(folded), " ")
}

// columnIndex resolves canonical column name -> position in the raw header
func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		canonical, ok := columnAliases[foldHeader(h)]
		if !ok {
			continue
		}
		if _, dup := idx[canonical]; !dup {
			idx[canonical] = i
		}
	}

	var missing []string
	for _, c := range requiredColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, strings.Join(missing, ", "))
	}
	return idx, nil
}
