package incc

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"golang.org/x/net/html/charset"

	"github.com/wonny/incc/backend/pkg/httputil"
	"github.com/wonny/incc/backend/pkg/logger"
)

// Source fetches raw publisher markup
type Source interface {
	Fetch(ctx context.Context) (string, error)
}

// SourceFunc adapts a function to Source
type SourceFunc func(ctx context.Context) (string, error)

// Fetch calls f
func (f SourceFunc) Fetch(ctx context.Context) (string, error) {
	return f(ctx)
}

// SecoviSource reads the monthly INCC page published by Secovi-SP
// ⭐ SSOT: INCC 원본 페이지 호출은 이 클라이언트에서만
type SecoviSource struct {
	client *httputil.Client
	url    string
	logger *logger.Logger
}

// NewSecoviSource creates a source for url
func NewSecoviSource(client *httputil.Client, url string, log *logger.Logger) *SecoviSource {
	return &SecoviSource{
		client: client,
		url:    url,
		logger: log.Component("secovi_source"),
	}
}

// Fetch downloads the page and decodes it to UTF-8 using the declared charset
func (s *SecoviSource) Fetch(ctx context.Context) (string, error) {
	body, contentType, err := s.client.GetBody(ctx, s.url)
	if err != nil {
		return "", fmt.Errorf("fetch incc page: %w", err)
	}

	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", fmt.Errorf("detect charset: %w", err)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("decode incc page: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"url":   s.url,
		"bytes": len(decoded),
	}).Debug("Fetched INCC page")

	return string(decoded), nil
}
