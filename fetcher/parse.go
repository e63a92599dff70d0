package fetcher

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"caixa-imoveis/models"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/charmap"
)

// ParseFeed decodes a Latin-1 feed body and splits it into header and rows.
// The first line is a banner; the second is the header.
func ParseFeed(region models.Region, raw []byte) (*models.RawTable, error) {
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decode latin-1: %v", ErrParseFailure, err)
	}

	cleaned := stripNoiseLines(string(decoded))
	if isHTML(cleaned) {
		if title := pageTitle(cleaned); title != "" {
			return nil, fmt.Errorf("%w: upstream served %q", ErrNotTabularData, title)
		}
		return nil, ErrNotTabularData
	}

	r := csv.NewReader(strings.NewReader(cleaned))
	r.Comma = ';'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	// banner
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty feed", ErrParseFailure)
		}
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: feed has no header line", ErrParseFailure)
		}
		return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	header = trimTrailingEmpty(header, 0)

	table := &models.RawTable{Region: region, Header: header}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
		}
		record = trimTrailingEmpty(record, len(header))
		if len(record) != len(header) {
			table.Skipped++
			continue
		}
		table.Rows = append(table.Rows, record)
	}
	return table, nil
}

// stripNoiseLines drops lines made only of separators and whitespace
func stripNoiseLines(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, line := range strings.Split(s, "\n") {
		if strings.Trim(line, "; \t\r") == "" {
			continue
		}
		b.WriteString(strings.TrimRight(line, "\r"))
		b.WriteByte('\n')
	}
	return b.String()
}

func isHTML(s string) bool {
	head := strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

func pageTitle(s string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(s))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// trimTrailingEmpty drops the empty cells left by a trailing ';', keeping at least keep cells
func trimTrailingEmpty(record []string, keep int) []string {
	for len(record) > keep && strings.TrimSpace(record[len(record)-1]) == "" {
		record = record[:len(record)-1]
	}
	return record
}
