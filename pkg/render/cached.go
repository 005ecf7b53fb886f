package render

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/umlboard/pkg/cache"
	"github.com/matzehuels/umlboard/pkg/diagram"
)

// DefaultCacheTTL bounds how long a rendered artifact is kept.
const DefaultCacheTTL = 24 * time.Hour

// Renderer renders DOT sources through a cache of finished artifacts.
// Cache failures are logged and never fail a render.
type Renderer struct {
	cache  cache.Cache
	ttl    time.Duration
	logger *log.Logger

	svg func(context.Context, string) ([]byte, error)
}

// NewRenderer creates a renderer. A nil cache disables caching and a nil
// logger uses log.Default().
func NewRenderer(c cache.Cache, ttl time.Duration, logger *log.Logger) *Renderer {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Renderer{cache: c, ttl: ttl, logger: logger, svg: RenderSVG}
}

// SVG renders dot to SVG.
func (r *Renderer) SVG(ctx context.Context, dot string) ([]byte, error) {
	return r.cached(ctx, cache.Key("svg", dot), func() ([]byte, error) {
		return r.svg(ctx, dot)
	})
}

// View renders a view to SVG.
func (r *Renderer) View(ctx context.Context, v diagram.View, opts Options) ([]byte, error) {
	return r.SVG(ctx, ToDOT(v, opts))
}

// PDF renders dot to PDF.
func (r *Renderer) PDF(ctx context.Context, dot string) ([]byte, error) {
	return r.cached(ctx, cache.Key("pdf", dot), func() ([]byte, error) {
		svg, err := r.SVG(ctx, dot)
		if err != nil {
			return nil, err
		}
		return ToPDF(ctx, svg)
	})
}

// PNG renders dot to PNG at the given scale.
func (r *Renderer) PNG(ctx context.Context, dot string, scale float64) ([]byte, error) {
	return r.cached(ctx, cache.Key("png", dot, scale), func() ([]byte, error) {
		svg, err := r.SVG(ctx, dot)
		if err != nil {
			return nil, err
		}
		return ToPNG(ctx, svg, scale)
	})
}

func (r *Renderer) cached(ctx context.Context, key string, render func() ([]byte, error)) ([]byte, error) {
	data, hit, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.Warn("render cache read failed", "err", err)
	}
	if hit {
		r.logger.Debug("render cache hit", "key", key)
		return data, nil
	}

	data, err = render()
	if err != nil {
		return nil, err
	}
	if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
		r.logger.Warn("render cache write failed", "err", err)
	}
	return data, nil
}
