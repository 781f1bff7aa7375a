package incc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/incc/backend/pkg/config"
	"github.com/wonny/incc/backend/pkg/httputil"
	"github.com/wonny/incc/backend/pkg/logger"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) *SecoviSource {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{}
	client := httputil.New(cfg, logger.Nop()).DisableRetry()
	return NewSecoviSource(client, server.URL, logger.Nop())
}

func TestSecoviSource_DecodesLatin1(t *testing.T) {
	// "Índice" and "Mês" in ISO-8859-1
	body := []byte("<table><tr><th>M\xeas</th><th>\xcdndice</th></tr></table>")
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=ISO-8859-1")
		_, _ = w.Write(body)
	})

	markup, err := source.Fetch(context.Background())
	require.NoError(t, err)
	assert.Contains(t, markup, "Mês")
	assert.Contains(t, markup, "Índice")
}

func TestSecoviSource_ParsesFetchedPage(t *testing.T) {
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(march2024Markup))
	})

	markup, err := source.Fetch(context.Background())
	require.NoError(t, err)

	series, err := Parse(markup)
	require.NoError(t, err)
	assert.Equal(t, 3, series.Len())
}

func TestSecoviSource_HTTPError(t *testing.T) {
	source := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := source.Fetch(context.Background())
	assert.Error(t, err)
}

func TestSourceFunc(t *testing.T) {
	var src Source = SourceFunc(func(context.Context) (string, error) { return "ok", nil })
	got, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}
