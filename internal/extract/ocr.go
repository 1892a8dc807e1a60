// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/docwalk/internal/proc"
)

const (
	binPdftoppm  = "pdftoppm"
	binTesseract = "tesseract"

	defaultOCRDPI      = 200
	defaultOCRLanguage = "eng"
)

// pageNumber matches the page suffix pdftoppm appends: page-1.png, page-01.png.
var pageNumber = regexp.MustCompile(`-(\d+)\.png$`)

// TesseractOCR renders PDF pages with pdftoppm and recognises each page
// with tesseract.
type TesseractOCR struct {
	exec     proc.Executor
	dpi      int
	language string
	tempDir  string
}

// OCROption configures TesseractOCR.
type OCROption func(*TesseractOCR)

// WithExecutor replaces the process executor.
func WithExecutor(e proc.Executor) OCROption {
	return func(o *TesseractOCR) { o.exec = e }
}

// WithDPI sets the page render resolution.
func WithDPI(dpi int) OCROption {
	return func(o *TesseractOCR) {
		if dpi > 0 {
			o.dpi = dpi
		}
	}
}

// WithLanguage sets the tesseract language pack.
func WithLanguage(lang string) OCROption {
	return func(o *TesseractOCR) {
		if lang != "" {
			o.language = lang
		}
	}
}

// WithTempDir sets where page images are rendered. Default is os.TempDir.
func WithTempDir(dir string) OCROption {
	return func(o *TesseractOCR) { o.tempDir = dir }
}

// NewTesseractOCR returns the OCR fallback.
func NewTesseractOCR(opts ...OCROption) *TesseractOCR {
	o := &TesseractOCR{
		exec:     proc.Default,
		dpi:      defaultOCRDPI,
		language: defaultOCRLanguage,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Available reports whether both binaries are on PATH.
func (o *TesseractOCR) Available() error {
	for _, bin := range []string{binPdftoppm, binTesseract} {
		if _, err := o.exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found: %w", bin, err)
		}
	}
	return nil
}

// Recognize renders every page of the PDF at path and returns the
// recognised text per page, in page order. Page images are removed before
// returning.
func (o *TesseractOCR) Recognize(ctx context.Context, path string) ([]string, error) {
	if strings.ToLower(filepath.Ext(path)) != ".pdf" {
		return nil, fmt.Errorf("ocr on %s: %w", path, ErrUnsupported)
	}

	dir, err := os.MkdirTemp(o.tempDir, "docwalk-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("creating page directory: %w", err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	args := []string{"-r", strconv.Itoa(o.dpi), "-png", path, prefix}
	if err := o.exec.Run(ctx, binPdftoppm, args, nil, nil); err != nil {
		return nil, fmt.Errorf("rendering pages of %s: %w", path, err)
	}

	images, err := pageImages(dir)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("rendering pages of %s: %w", path, ErrEmptyOutput)
	}

	pages := make([]string, 0, len(images))
	for _, img := range images {
		var out bytes.Buffer
		if err := o.exec.Run(ctx, binTesseract, []string{img, "stdout", "-l", o.language}, nil, &out); err != nil {
			return nil, fmt.Errorf("recognising %s: %w", filepath.Base(img), err)
		}
		pages = append(pages, out.String())
	}
	return pages, nil
}

// pageImages lists rendered pages sorted by page number, not by name, so
// page-10 follows page-9.
func pageImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing pages: %w", err)
	}

	type page struct {
		num  int
		path string
	}
	var pages []page
	for _, e := range entries {
		m := pageNumber.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		pages = append(pages, page{num: n, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].num < pages[j].num })

	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.path
	}
	return out, nil
}
