package costing

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Placeholder is shown where a value is missing
const Placeholder = "—"

var (
	nonAmountChars = regexp.MustCompile(`[^0-9.,]`)
	exponentRe     = regexp.MustCompile(`[0-9][eE][+-]?[0-9]`)
)

// ParseAmount coerces a registry cost such as "R$ 1.234,56" or "1234.5".
// Everything but digits and separators is dropped; when a comma is present
// it is the decimal separator and dots are thousands separators. Signs and
// exponents are rejected rather than stripped, since dropping them would
// change the value.
func ParseAmount(raw string) (decimal.Decimal, error) {
	if strings.ContainsAny(raw, "-−") || exponentRe.MatchString(raw) {
		return decimal.Zero, fmt.Errorf("signed or exponent amount %q", raw)
	}
	s := nonAmountChars.ReplaceAllString(raw, "")
	if s == "" {
		return decimal.Zero, fmt.Errorf("no digits in amount %q", raw)
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return d, nil
}

// ParseArea reads a pt-BR area ("1.250", "1.250,5") and requires it to be
// strictly positive.
func ParseArea(raw string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), " ", "")
	s = strings.TrimSuffix(strings.TrimSuffix(s, "m²"), "m2")
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty area")
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid area %q: %w", raw, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("area must be positive, got %q", raw)
	}
	return d, nil
}

var baseDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02/01/2006",
	"01/2006",
	"2006-01",
}

// ParseBaseDate reads the base date formats found in the registries. The
// result is the calendar date at UTC midnight.
func ParseBaseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range baseDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized base date %q", raw)
}

// FormatDecimal renders d with the given number of places using "." for
// thousands and "," for decimals: 1234.5 -> "1.234,50".
func FormatDecimal(d decimal.Decimal, places int32) string {
	fixed := d.StringFixed(places)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}

	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if fracPart != "" {
		b.WriteByte(',')
		b.WriteString(fracPart)
	}
	return b.String()
}

// FormatUnit renders a matrix cell value: two places, no grouping ("1234,50")
func FormatUnit(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1)
}

// FormatMoney renders "R$ 1.234,56"
func FormatMoney(d decimal.Decimal) string {
	return "R$ " + FormatDecimal(d, 2)
}

// FormatIndex renders an INCC value with two places and grouping
func FormatIndex(d decimal.Decimal) string {
	return FormatDecimal(d, 2)
}

// FormatArea rounds to whole square meters with grouping: 1250.4 -> "1.250"
func FormatArea(d decimal.Decimal) string {
	return FormatDecimal(d.Round(0), 0)
}

// FormatDate renders a base date as DD/MM/YYYY, or the placeholder
func FormatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return Placeholder
	}
	return t.Format("02/01/2006")
}
