// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pdiddy/docwalk/internal/container"
	"github.com/pdiddy/docwalk/pkg/types"
)

// SecretTikaToken is the secrets file holding the Tika bearer token.
const SecretTikaToken = "tika-token"

// NewPrimary builds the configured primary backend.
func NewPrimary(ctx context.Context, cfg types.ExtractionConfig, secrets map[string]string) (Extractor, error) {
	switch cfg.Backend {
	case types.BackendTika, "":
		return NewTikaExtractor(cfg.TikaURL,
			WithToken(secrets[SecretTikaToken]),
			WithMaxRetries(cfg.MaxRetries),
		), nil
	case types.BackendMarkitdown:
		rt, err := container.DetectRuntime(ctx)
		if err != nil {
			return nil, err
		}
		return NewMarkitdownExtractor(ctx, rt)
	case types.BackendNative:
		return NewNativeExtractor(), nil
	default:
		return nil, fmt.Errorf("unknown extraction backend %q", cfg.Backend)
	}
}

// NewFromConfig assembles an Engine from configuration. When OCR is
// enabled but its binaries are missing the fallback is disabled with a
// warning rather than failing the run.
func NewFromConfig(ctx context.Context, cfg types.ExtractionConfig, secrets map[string]string, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	primary, err := NewPrimary(ctx, cfg, secrets)
	if err != nil {
		return nil, fmt.Errorf("building %s extractor: %w", cfg.Backend, err)
	}

	opts := []Option{WithTimeout(cfg.Timeout), WithLogger(logger)}
	if cfg.OCR {
		ocr := NewTesseractOCR(WithDPI(cfg.OCRDPI), WithLanguage(cfg.OCRLanguage))
		if err := ocr.Available(); err != nil {
			logger.Warn("ocr fallback disabled", "error", err)
		} else {
			opts = append(opts, WithFallback(ocr))
		}
	}
	return NewEngine(primary, opts...), nil
}
