// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pdiddy/docwalk/internal/container"
)

// ImageMarkitdown is the container image that converts documents to Markdown.
const ImageMarkitdown = "markitdown:latest"

// MarkitdownExtractor pipes documents through the markitdown container
// image. It depends on a container.Runtime (docker or podman) injected at
// construction time.
type MarkitdownExtractor struct {
	runtime container.Runtime
}

// NewMarkitdownExtractor verifies that the markitdown image exists locally
// and returns an extractor that runs it.
func NewMarkitdownExtractor(ctx context.Context, rt container.Runtime) (*MarkitdownExtractor, error) {
	if err := rt.ImageExists(ctx, ImageMarkitdown); err != nil {
		return nil, fmt.Errorf("markitdown image not available in %s: %w", rt.Name(), err)
	}
	return &MarkitdownExtractor{runtime: rt}, nil
}

func (m *MarkitdownExtractor) Name() string { return "markitdown" }

// Extract streams the file into the container and returns its stdout.
func (m *MarkitdownExtractor) Extract(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var out bytes.Buffer
	if err := m.runtime.Run(ctx, ImageMarkitdown, f, &out); err != nil {
		return "", fmt.Errorf("converting %s with markitdown: %w", path, err)
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("markitdown on %s: %w", path, ErrEmptyOutput)
	}
	return out.String(), nil
}
