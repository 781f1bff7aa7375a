package incc

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
)

// SkipReason explains why a data row was rejected
type SkipReason string

const (
	SkipNoYear       SkipReason = "no_year"       // row before any "Ano:" header
	SkipUnknownMonth SkipReason = "unknown_month" // first cell is not a month abbreviation
	SkipInvalidValue SkipReason = "invalid_value" // second cell is not a pt-BR decimal
)

// SkippedRow records a rejected table row
type SkippedRow struct {
	Year   int
	Month  string
	Value  string
	Reason SkipReason
}

// Extraction is the full outcome of reading publisher markup
type Extraction struct {
	Points  []IndexPoint // in document order
	Skipped []SkippedRow
	Years   int
}

// Series returns the extracted points as a normalized series
func (e Extraction) Series() Series {
	return NewSeries(e.Points)
}

var (
	yearHeaderRe = regexp.MustCompile(`Ano:[\s\x{00A0}]*(\d{4})`)

	monthAbbrev = map[string]time.Month{
		"JAN": time.January,
		"FEV": time.February,
		"MAR": time.March,
		"ABR": time.April,
		"MAI": time.May,
		"JUN": time.June,
		"JUL": time.July,
		"AGO": time.August,
		"SET": time.September,
		"OUT": time.October,
		"NOV": time.November,
		"DEZ": time.December,
	}
)

// Parse extracts the INCC series from publisher markup.
// It returns a *ParseError when no valid point is found.
func Parse(markup string) (Series, error) {
	ext, err := Extract(strings.NewReader(markup))
	if err != nil {
		return Series{}, err
	}
	if len(ext.Points) == 0 {
		return Series{}, &ParseError{Years: ext.Years, Skipped: len(ext.Skipped)}
	}
	return ext.Series(), nil
}

// Extract walks every <table> in document order. A table whose text holds
// an "Ano: YYYY" header sets the current year; the rows of the following
// tables become points for that year. An empty or header-less document
// yields an empty Extraction, not an error.
func Extract(r io.Reader) (Extraction, error) {
	var ext Extraction

	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return ext, fmt.Errorf("read markup: %w", err)
	}

	currentYear := 0
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		if m := yearHeaderRe.FindStringSubmatch(table.Text()); m != nil {
			year, _ := strconv.Atoi(m[1])
			currentYear = year
			ext.Years++
			return
		}

		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td")
			if cells.Length() < 2 {
				return
			}

			month := strings.TrimSpace(cells.Eq(0).Text())
			raw := strings.TrimSpace(cells.Eq(1).Text())

			if currentYear == 0 {
				ext.Skipped = append(ext.Skipped, SkippedRow{Month: month, Value: raw, Reason: SkipNoYear})
				return
			}

			m, ok := monthAbbrev[strings.ToUpper(month)]
			if !ok {
				ext.Skipped = append(ext.Skipped, SkippedRow{Year: currentYear, Month: month, Value: raw, Reason: SkipUnknownMonth})
				return
			}

			value, err := ParseLocaleDecimal(raw)
			if err != nil {
				ext.Skipped = append(ext.Skipped, SkippedRow{Year: currentYear, Month: month, Value: raw, Reason: SkipInvalidValue})
				return
			}

			ext.Points = append(ext.Points, NewIndexPoint(currentYear, m, value))
		})
	})

	return ext, nil
}

// ParseLocaleDecimal converts a pt-BR number ("1.234,56") to a decimal by
// dropping thousands dots and turning the decimal comma into a dot.
func ParseLocaleDecimal(s string) (decimal.Decimal, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty number")
	}
	if !strings.ContainsAny(s, "0123456789") || strings.ContainsAny(s, "eE") {
		return decimal.Zero, fmt.Errorf("invalid number %q", s)
	}
	return decimal.NewFromString(s)
}
