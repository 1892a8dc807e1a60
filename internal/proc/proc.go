// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package proc runs external programs for the extraction backends. Every
// call is bound to a context so a hung child process is killed when the
// caller's deadline passes.
package proc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// maxStderr caps how much of a child's stderr is kept for error messages.
const maxStderr = 4 << 10

// Executor abstracts process execution for testing.
type Executor interface {
	// LookPath resolves a binary on PATH.
	LookPath(file string) (string, error)
	// Run executes name with args, wiring stdin and stdout. Either may be nil.
	Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error
}

// OSExecutor is the production Executor backed by os/exec.
type OSExecutor struct{}

// LookPath resolves file on PATH.
func (OSExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// Run starts the process and waits for it. On failure the error carries
// the tail of the child's stderr.
func (OSExecutor) Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	var stderr tailBuffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", name, ctxErr)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Default is the shared production executor.
var Default Executor = OSExecutor{}

// tailBuffer keeps the last maxStderr bytes written to it.
type tailBuffer struct {
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - maxStderr; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string { return t.buf.String() }
