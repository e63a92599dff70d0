package models

import (
	"fmt"
	"strings"
)

// Region is a Brazilian federative unit code (UF); each one has its own feed and table
type Region string

// Regions lists every valid code in the order batches process them
var Regions = []Region{
	"AC", "AL", "AM", "AP", "BA", "CE", "DF", "ES", "GO", "MA", "MG", "MS", "MT", "PA",
	"PB", "PE", "PI", "PR", "RJ", "RN", "RO", "RR", "RS", "SC", "SE", "SP", "TO",
}

var regionNames = map[Region]string{
	"AC": "Acre",
	"AL": "Alagoas",
	"AM": "Amazonas",
	"AP": "Amapá",
	"BA": "Bahia",
	"CE": "Ceará",
	"DF": "Distrito Federal",
	"ES": "Espírito Santo",
	"GO": "Goiás",
	"MA": "Maranhão",
	"MG": "Minas Gerais",
	"MS": "Mato Grosso do Sul",
	"MT": "Mato Grosso",
	"PA": "Pará",
	"PB": "Paraíba",
	"PE": "Pernambuco",
	"PI": "Piauí",
	"PR": "Paraná",
	"RJ": "Rio de Janeiro",
	"RN": "Rio Grande do Norte",
	"RO": "Rondônia",
	"RR": "Roraima",
	"RS": "Rio Grande do Sul",
	"SC": "Santa Catarina",
	"SE": "Sergipe",
	"SP": "São Paulo",
	"TO": "Tocantins",
}

// ParseRegion validates a code against the closed set, ignoring case and spaces
func ParseRegion(s string) (Region, error) {
	r := Region(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := regionNames[r]; !ok {
		return "", fmt.Errorf("unknown region %q", s)
	}
	return r, nil
}

// Valid reports whether r belongs to the closed set of codes
func (r Region) Valid() bool {
	_, ok := regionNames[r]
	return ok
}

// Name returns the full state name
func (r Region) Name() string {
	return regionNames[r]
}

// Table returns the name of the region's active table
func (r Region) Table() string {
	return string(r)
}
