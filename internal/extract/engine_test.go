// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	text  string
	err   error
	panic bool
	calls int
	sawDL bool
}

func (f *fakeExtractor) Name() string { return "fake" }

func (f *fakeExtractor) Extract(ctx context.Context, _ string) (string, error) {
	f.calls++
	_, f.sawDL = ctx.Deadline()
	if f.panic {
		panic("corrupt xref table")
	}
	return f.text, f.err
}

type fakeOCR struct {
	pages []string
	err   error
	calls int
}

func (f *fakeOCR) Recognize(context.Context, string) ([]string, error) {
	f.calls++
	return f.pages, f.err
}

func TestEngine_Extract(t *testing.T) {
	tests := []struct {
		name         string
		primary      *fakeExtractor
		ocr          *fakeOCR
		want         string
		wantOCRCalls int
	}{
		{
			name:    "primary text wins",
			primary: &fakeExtractor{text: "hello"},
			ocr:     &fakeOCR{pages: []string{"ocr"}},
			want:    "hello",
		},
		{
			name:         "primary error falls back",
			primary:      &fakeExtractor{err: errors.New("tika down")},
			ocr:          &fakeOCR{pages: []string{"page one ", "page two"}},
			want:         "page one page two",
			wantOCRCalls: 1,
		},
		{
			name:         "primary whitespace falls back",
			primary:      &fakeExtractor{text: " \n\t "},
			ocr:          &fakeOCR{pages: []string{"a", "b", "c"}},
			want:         "abc",
			wantOCRCalls: 1,
		},
		{
			name:         "primary panic falls back",
			primary:      &fakeExtractor{panic: true},
			ocr:          &fakeOCR{pages: []string{"scan"}},
			want:         "scan",
			wantOCRCalls: 1,
		},
		{
			name:         "both fail yields empty",
			primary:      &fakeExtractor{err: ErrUnsupported},
			ocr:          &fakeOCR{err: errors.New("tesseract missing")},
			want:         "",
			wantOCRCalls: 1,
		},
		{
			name:         "ocr recognises nothing",
			primary:      &fakeExtractor{},
			ocr:          &fakeOCR{pages: []string{"", "  "}},
			want:         "",
			wantOCRCalls: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(tt.primary, WithFallback(tt.ocr))
			got := e.Extract(context.Background(), "/docs/x.pdf")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, tt.primary.calls)
			assert.Equal(t, tt.wantOCRCalls, tt.ocr.calls)
		})
	}
}

func TestEngine_NoFallback(t *testing.T) {
	e := NewEngine(&fakeExtractor{err: errors.New("nope")})
	assert.Equal(t, "", e.Extract(context.Background(), "x.pdf"))

	text, ok := e.TryFallback(context.Background(), "x.pdf")
	assert.False(t, ok)
	assert.Empty(t, text)
}

func TestEngine_NilPrimary(t *testing.T) {
	ocr := &fakeOCR{pages: []string{"only ocr"}}
	e := NewEngine(nil, WithFallback(ocr))
	assert.Equal(t, "only ocr", e.Extract(context.Background(), "x.pdf"))
}

func TestEngine_PrimaryRunsUnderTimeout(t *testing.T) {
	p := &fakeExtractor{text: "x"}
	e := NewEngine(p, WithTimeout(time.Minute))
	_, ok := e.TryPrimary(context.Background(), "x.pdf")
	require.True(t, ok)
	assert.True(t, p.sawDL, "primary call must carry a deadline")
}

// stuckExtractor ignores its context, like an in-process parser looping
// on a malformed file.
type stuckExtractor struct{ release chan struct{} }

func (stuckExtractor) Name() string { return "stuck" }

func (s stuckExtractor) Extract(context.Context, string) (string, error) {
	<-s.release
	return "late text", nil
}

func TestEngine_HungPrimaryIsAbandonedAtTimeout(t *testing.T) {
	stuck := stuckExtractor{release: make(chan struct{})}
	defer close(stuck.release)
	ocr := &fakeOCR{pages: []string{"from ocr"}}
	e := NewEngine(stuck, WithTimeout(50*time.Millisecond), WithFallback(ocr))

	start := time.Now()
	got := e.Extract(context.Background(), "scan.pdf")
	assert.Less(t, time.Since(start), 2*time.Second, "extract must return near the timeout")
	assert.Equal(t, "from ocr", got)
	assert.Equal(t, 1, ocr.calls)
}

func TestEngine_OCRPanicIsContained(t *testing.T) {
	e := NewEngine(&fakeExtractor{}, WithFallback(panicOCR{}))
	assert.NotPanics(t, func() {
		assert.Equal(t, "", e.Extract(context.Background(), "x.pdf"))
	})
}

type panicOCR struct{}

func (panicOCR) Recognize(context.Context, string) ([]string, error) { panic("bad image") }
