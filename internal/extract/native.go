// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// NativeExtractor reads documents in-process without external services.
// PDFs go through ledongthuc/pdf; Markdown and plain text are returned
// verbatim. Every other type is ErrUnsupported, which sends the file to
// the OCR fallback.
type NativeExtractor struct{}

// NewNativeExtractor returns the in-process extractor.
func NewNativeExtractor() *NativeExtractor { return &NativeExtractor{} }

func (NativeExtractor) Name() string { return "native" }

// Extract returns the text of path based on its extension.
func (n NativeExtractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return n.extractPDF(path)
	case ".md", ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		return string(data), nil
	default:
		return "", fmt.Errorf("native extractor on %s: %w", path, ErrUnsupported)
	}
}

func (NativeExtractor) extractPDF(path string) (text string, err error) {
	// The PDF reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parsing PDF %s: %v", path, r)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return "", fmt.Errorf("parsing PDF %s: %w", path, err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("reading text from %s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("reading text from %s: %w", path, err)
	}
	if strings.TrimSpace(buf.String()) == "" {
		return "", fmt.Errorf("PDF %s: %w", path, ErrEmptyOutput)
	}
	return buf.String(), nil
}
