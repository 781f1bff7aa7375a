package incc

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return string(data)
}

func TestExtract_Fixture(t *testing.T) {
	ext, err := Extract(strings.NewReader(loadFixture(t, "secovi_incc.html")))
	require.NoError(t, err)

	assert.Equal(t, 3, ext.Years)
	require.Len(t, ext.Points, 5)

	assert.Equal(t, date(2023, time.October, 1), ext.Points[0].Date)
	assert.True(t, ext.Points[0].Value.Equal(d("1098.432")))
	assert.Equal(t, date(2024, time.February, 1), ext.Points[4].Date)
	assert.True(t, ext.Points[4].Value.Equal(d("1107.012")), "lowercase month and padded value are accepted")

	require.Len(t, ext.Skipped, 2)
	assert.Equal(t, SkipInvalidValue, ext.Skipped[0].Reason)
	assert.Equal(t, "MAR", ext.Skipped[0].Month)
	assert.Equal(t, 2024, ext.Skipped[0].Year)
	assert.Equal(t, SkipUnknownMonth, ext.Skipped[1].Reason)
}

func TestParse_Fixture(t *testing.T) {
	series, err := Parse(loadFixture(t, "secovi_incc.html"))
	require.NoError(t, err)

	assert.Equal(t, 5, series.Len())
	latest, _ := series.Latest()
	assert.Equal(t, date(2024, time.February, 1), latest.Date)
}

func TestParse_EveryMonthRoundTripsThroughAtOrBefore(t *testing.T) {
	months := []string{"JAN", "FEV", "MAR", "ABR", "MAI", "JUN", "JUL", "AGO", "SET", "OUT", "NOV", "DEZ"}

	var b strings.Builder
	b.WriteString("<table><tr><td>Ano: 2022</td></tr></table><table>")
	for i, m := range months {
		fmt.Fprintf(&b, "<tr><td>%s</td><td>1.%03d,5</td></tr>", m, i+1)
	}
	b.WriteString("</table>")

	series, err := Parse(b.String())
	require.NoError(t, err)
	require.Equal(t, 12, series.Len())

	for i := range months {
		at := date(2022, time.Month(i+1), 1)
		p, ok := series.AtOrBefore(at)
		require.True(t, ok)
		assert.Equal(t, at, p.Date)
		assert.True(t, p.Value.Equal(d(fmt.Sprintf("1%03d.5", i+1))), "month %s got %s", months[i], p.Value)
	}
}

func TestExtract_EdgeCases(t *testing.T) {
	tests := []struct {
		name       string
		markup     string
		wantPoints int
		wantSkip   []SkipReason
	}{
		{
			name:       "empty document",
			markup:     "",
			wantPoints: 0,
		},
		{
			name:       "no year header",
			markup:     `<table><tr><td>JAN</td><td>100,0</td></tr></table>`,
			wantPoints: 0,
			wantSkip:   []SkipReason{SkipNoYear},
		},
		{
			name:       "header without data table",
			markup:     `<table><tr><td>Ano: 2024</td></tr></table>`,
			wantPoints: 0,
		},
		{
			name: "rows with a single cell are ignored",
			markup: `<table><tr><td>Ano: 2024</td></tr></table>
				<table><tr><td>JAN</td></tr><tr><td>FEV</td><td>101,5</td></tr></table>`,
			wantPoints: 1,
		},
		{
			name: "garbled value does not abort extraction",
			markup: `<table><tr><td>Ano: 2024</td></tr></table>
				<table><tr><td>JAN</td><td>1,2,3</td></tr><tr><td>FEV</td><td>abc</td></tr><tr><td>MAR</td><td>1.010,00</td></tr></table>`,
			wantPoints: 1,
			wantSkip:   []SkipReason{SkipInvalidValue, SkipInvalidValue},
		},
		{
			name: "non-breaking space after header colon",
			markup: "<table><tr><td>Ano: 2021</td></tr></table>" +
				`<table><tr><td>DEZ</td><td>900,1</td></tr></table>`,
			wantPoints: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := Extract(strings.NewReader(tt.markup))
			require.NoError(t, err)
			assert.Len(t, ext.Points, tt.wantPoints)

			var reasons []SkipReason
			for _, s := range ext.Skipped {
				reasons = append(reasons, s.Reason)
			}
			assert.Equal(t, tt.wantSkip, reasons)
		})
	}
}

func TestParse_NoPointsIsParseError(t *testing.T) {
	_, err := Parse(`<table><tr><td>Ano: 2024</td></tr></table>`)
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, 1, parseErr.Years)
}

func TestParse_LaterYearHeaderWins(t *testing.T) {
	markup := `<table><tr><td>Ano: 2023</td></tr></table>
		<table><tr><td>Ano: 2024</td></tr></table>
		<table><tr><td>JAN</td><td>10,0</td></tr></table>`

	series, err := Parse(markup)
	require.NoError(t, err)
	p, _ := series.Latest()
	assert.Equal(t, date(2024, time.January, 1), p.Date)
}

func TestParseLocaleDecimal(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1.234,56", "1234.56", false},
		{"1.234.567,8", "1234567.8", false},
		{"987,654", "987.654", false},
		{"100", "100", false},
		{" 1.000,00 ", "1000", false},
		{"", "", true},
		{"-", "", true},
		{"n/d", "", true},
		{"1e5", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLocaleDecimal(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(d(tt.want)), "got %s", got)
		})
	}
}
