package incc

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.csv")
	want := sampleSeries()

	require.NoError(t, WriteSnapshot(path, want))

	got, err := ReadSnapshot(path)
	require.NoError(t, err)
	require.Equal(t, want.Len(), got.Len())
	for i, p := range got.Points() {
		assert.Equal(t, want.Points()[i].Date, p.Date)
		assert.True(t, want.Points()[i].Value.Equal(p.Value))
	}
}

func TestEncodeSnapshot_Layout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeSnapshot(&buf, sampleSeries()))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, utf8BOM+"data,indice\n"))
	assert.Contains(t, out, "01/01/2024,100\n")
	assert.Contains(t, out, "01/03/2024,110\n")
}

func TestDecodeSnapshot(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLen int
		wantErr bool
	}{
		{"with BOM", utf8BOM + "data,indice\n01/02/2024,105.5\n", 1, false},
		{"without BOM", "data,indice\n01/02/2024,105.5\n01/03/2024,106\n", 2, false},
		{"bad rows dropped", "data,indice\n31/13/2024,1\n01/02/2024,abc\n01/03/2024\n01/04/2024,107\n", 1, false},
		{"header only", "data,indice\n", 0, false},
		{"empty file", "", 0, true},
		{"wrong header", "date,value\n01/02/2024,1\n", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series, err := DecodeSnapshot(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLen, series.Len())
		})
	}
}

func TestReadSnapshot_Missing(t *testing.T) {
	_, err := ReadSnapshot(filepath.Join(t.TempDir(), "nope.csv"))
	assert.True(t, errors.Is(err, ErrNoSnapshot))
}

func TestWriteSnapshot_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "series.csv")

	require.NoError(t, WriteSnapshot(path, sampleSeries()))
	require.NoError(t, WriteSnapshot(path, NewSeries([]IndexPoint{NewIndexPoint(2024, time.April, d("111"))})))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "series.csv", entries[0].Name())

	got, err := ReadSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}

func TestWriteSnapshot_ReadersNeverSeePartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.csv")
	small := sampleSeries()

	var points []IndexPoint
	for y := 2000; y < 2024; y++ {
		for m := time.January; m <= time.December; m++ {
			points = append(points, NewIndexPoint(y, m, d("1234.5678")))
		}
	}
	large := NewSeries(points)

	require.NoError(t, WriteSnapshot(path, small))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if i%2 == 0 {
				_ = WriteSnapshot(path, large)
			} else {
				_ = WriteSnapshot(path, small)
			}
		}
	}()

	for i := 0; i < 200; i++ {
		got, err := ReadSnapshot(path)
		require.NoError(t, err)
		assert.Contains(t, []int{small.Len(), large.Len()}, got.Len())
	}
	wg.Wait()
}
