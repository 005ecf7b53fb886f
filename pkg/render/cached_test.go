package render

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/umlboard/pkg/cache"
	umlerrors "github.com/matzehuels/umlboard/pkg/errors"
)

func countingRenderer(c cache.Cache) (*Renderer, *int) {
	calls := 0
	r := NewRenderer(c, time.Hour, log.New(io.Discard))
	r.svg = func(ctx context.Context, dot string) ([]byte, error) {
		calls++
		if dot == "bad" {
			return nil, errors.New("parse DOT")
		}
		return []byte("<svg>" + dot + "</svg>"), nil
	}
	return r, &calls
}

func TestRendererCachesSVG(t *testing.T) {
	ctx := context.Background()
	r, calls := countingRenderer(cache.NewMemoryCache(0))

	for i := 0; i < 3; i++ {
		svg, err := r.SVG(ctx, "digraph G {}")
		if err != nil || string(svg) != "<svg>digraph G {}</svg>" {
			t.Fatalf("SVG() = %q, %v", svg, err)
		}
	}
	if *calls != 1 {
		t.Errorf("rendered %d times, want 1", *calls)
	}

	if _, err := r.SVG(ctx, "digraph H {}"); err != nil {
		t.Fatal(err)
	}
	if *calls != 2 {
		t.Errorf("a different source should render again, calls = %d", *calls)
	}
}

func TestRendererView(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache(0)
	r, calls := countingRenderer(c)

	v := testView()
	if _, err := r.View(ctx, v, Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.View(ctx, v, Options{Detailed: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.View(ctx, v, Options{}); err != nil {
		t.Fatal(err)
	}
	if *calls != 2 || c.Len() != 2 {
		t.Errorf("calls = %d, entries = %d; want 2 each", *calls, c.Len())
	}
}

func TestRendererErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemoryCache(0)
	r, calls := countingRenderer(c)

	for i := 0; i < 2; i++ {
		if _, err := r.SVG(ctx, "bad"); err == nil {
			t.Fatal("SVG() should fail")
		}
	}
	if *calls != 2 || c.Len() != 0 {
		t.Errorf("calls = %d, entries = %d", *calls, c.Len())
	}
}

func TestRendererWithoutCache(t *testing.T) {
	r, calls := countingRenderer(nil)
	r.SVG(context.Background(), "digraph G {}")
	r.SVG(context.Background(), "digraph G {}")
	if *calls != 2 {
		t.Errorf("calls = %d, want 2 without a cache", *calls)
	}
}

func TestConvertWithoutTool(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	r, calls := countingRenderer(cache.NewMemoryCache(0))
	_, err := r.PDF(context.Background(), "digraph G {}")
	if !umlerrors.Is(err, umlerrors.ErrCodeUnsupported) {
		t.Fatalf("PDF() error = %v, want UNSUPPORTED", err)
	}
	if _, err := ToPNG(context.Background(), []byte("<svg/>"), 0); !umlerrors.Is(err, umlerrors.ErrCodeUnsupported) {
		t.Errorf("ToPNG() error = %v, want UNSUPPORTED", err)
	}

	// The SVG step succeeded and stays cached for the next attempt.
	if *calls != 1 {
		t.Errorf("svg calls = %d", *calls)
	}
	r.SVG(context.Background(), "digraph G {}")
	if *calls != 1 {
		t.Errorf("svg should come from the cache, calls = %d", *calls)
	}
}
