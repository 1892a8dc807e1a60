// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract turns a document on disk into plain text. A primary
// backend (Tika, markitdown or the in-process reader) is tried first; when
// it yields nothing an OCR fallback renders the pages and recognises them.
//
// The engine knows nothing about fingerprints or caching.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
)

var (
	// ErrUnsupported is returned by a backend that cannot read the file type.
	ErrUnsupported = errors.New("unsupported file type")

	// ErrEmptyOutput is returned by a backend that ran but produced no text.
	ErrEmptyOutput = errors.New("extractor produced no text")
)

// DefaultTimeout bounds a single primary extractor call.
const DefaultTimeout = 180 * time.Second

// Extractor is a primary text backend.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, path string) (string, error)
}

// OCR recognises the text of a document's pages. Pages are returned in
// page order.
type OCR interface {
	Recognize(ctx context.Context, path string) ([]string, error)
}

// Engine combines a primary extractor with an optional OCR fallback.
type Engine struct {
	primary  Extractor
	fallback OCR
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithFallback sets the OCR fallback. Without one, a failed primary
// extraction yields empty text.
func WithFallback(ocr OCR) Option {
	return func(e *Engine) { e.fallback = ocr }
}

// WithTimeout overrides the per-call primary timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger used for per-file diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEngine returns an engine around the given primary extractor.
func NewEngine(primary Extractor, opts ...Option) *Engine {
	e := &Engine{
		primary: primary,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract returns the text of the file at path. It never fails: when
// neither the primary backend nor the fallback produce text the result is
// the empty string, which callers treat as a known extraction failure.
func (e *Engine) Extract(ctx context.Context, path string) string {
	if text, ok := e.TryPrimary(ctx, path); ok {
		return text
	}
	if text, ok := e.TryFallback(ctx, path); ok {
		return text
	}
	return ""
}

// TryPrimary runs the primary backend under the per-call timeout. ok is
// false when the backend errors, panics, returns only whitespace or
// overruns the timeout. A backend that ignores its context is abandoned at
// the deadline; an in-process parse keeps running in the background until
// it returns.
func (e *Engine) TryPrimary(ctx context.Context, path string) (text string, ok bool) {
	if e.primary == nil {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := guard(func() (string, error) { return e.primary.Extract(ctx, path) })
		done <- result{text, err}
	}()

	var err error
	select {
	case r := <-done:
		text, err = r.text, r.err
	case <-ctx.Done():
		err = fmt.Errorf("abandoned after %s: %w", e.timeout, ctx.Err())
	}
	if err != nil {
		e.logger.Debug("primary extraction failed", "backend", e.primary.Name(), "path", path, "error", err)
		return "", false
	}
	if strings.TrimSpace(text) == "" {
		e.logger.Debug("primary extraction empty", "backend", e.primary.Name(), "path", path)
		return "", false
	}
	return text, true
}

// TryFallback runs OCR and joins the page texts in page order with no
// separator. ok is false when OCR is disabled, fails or recognises nothing.
func (e *Engine) TryFallback(ctx context.Context, path string) (text string, ok bool) {
	if e.fallback == nil {
		return "", false
	}
	text, err := guard(func() (string, error) {
		pages, err := e.fallback.Recognize(ctx, path)
		if err != nil {
			return "", err
		}
		return strings.Join(pages, ""), nil
	})
	if err != nil {
		e.logger.Debug("ocr fallback failed", "path", path, "error", err)
		return "", false
	}
	if strings.TrimSpace(text) == "" {
		e.logger.Debug("ocr fallback empty", "path", path)
		return "", false
	}
	return text, true
}

// guard converts a panic inside a backend into an error.
func guard(fn func() (string, error)) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("backend panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return fn()
}
