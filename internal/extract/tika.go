// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/pdiddy/docwalk/internal/httputil"
)

// DefaultTikaURL is where a locally started Tika server listens.
const DefaultTikaURL = "http://localhost:9998"

// maxErrorBody caps how much of an error response is quoted.
const maxErrorBody = 512

// TikaExtractor sends documents to an Apache Tika server and reads back
// plain text.
type TikaExtractor struct {
	baseURL    string
	token      string
	maxRetries int
	client     *http.Client
}

// TikaOption configures a TikaExtractor.
type TikaOption func(*TikaExtractor)

// WithToken sets a bearer token sent on every request.
func WithToken(token string) TikaOption {
	return func(t *TikaExtractor) { t.token = token }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) TikaOption {
	return func(t *TikaExtractor) { t.client = c }
}

// WithMaxRetries sets how often a busy server is retried.
func WithMaxRetries(n int) TikaOption {
	return func(t *TikaExtractor) { t.maxRetries = n }
}

// NewTikaExtractor returns an extractor for the Tika server at baseURL.
func NewTikaExtractor(baseURL string, opts ...TikaOption) *TikaExtractor {
	if baseURL == "" {
		baseURL = DefaultTikaURL
	}
	t := &TikaExtractor{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *TikaExtractor) Name() string { return "tika" }

// Extract PUTs the file to /tika and returns the text response.
func (t *TikaExtractor) Extract(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, t.baseURL+"/tika", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("building tika request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("Content-Type", "application/octet-stream")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := httputil.DoWithRetry(ctx, t.client, req, t.maxRetries)
	if err != nil {
		return "", fmt.Errorf("tika request for %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusUnsupportedMediaType:
		return "", fmt.Errorf("tika rejected %s: %w", path, ErrUnsupported)
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", fmt.Errorf("tika returned %d for %s: %s", resp.StatusCode, path, strings.TrimSpace(string(msg)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading tika response for %s: %w", path, err)
	}
	if strings.TrimSpace(string(body)) == "" {
		return "", fmt.Errorf("tika on %s: %w", path, ErrEmptyOutput)
	}
	return string(body), nil
}
