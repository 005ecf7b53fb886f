package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/umlboard/pkg/cache"
	"github.com/matzehuels/umlboard/pkg/render"
	"github.com/matzehuels/umlboard/pkg/store"
)

const (
	formatSVG  = "svg"
	formatDOT  = "dot"
	formatPDF  = "pdf"
	formatPNG  = "png"
	formatJSON = "json"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output   string   // output file (single format) or base path (multiple)
	formats  []string // output formats: svg, dot, pdf, png, json
	detailed bool     // show owners and attribute formats
	scale    float64  // PNG scale factor
	noCache  bool     // bypass the render cache
}

// renderCommand creates the render command for static exports of a saved
// diagram. PDF and PNG need rsvg-convert on PATH.
func (c *CLI) renderCommand() *cobra.Command {
	var formatsStr string
	opts := renderOpts{scale: 2}

	cmd := &cobra.Command{
		Use:               "render <diagram-id>",
		Short:             "Render a saved diagram to SVG, DOT, PDF or PNG",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: c.completeDiagramIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			if err := validateFormats(opts.formats); err != nil {
				return err
			}
			return c.withRepository(cmd.Context(), func(r *store.Repository) error {
				d, err := r.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return c.runRender(cmd.Context(), d, opts)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), dot, pdf, png, json (comma-separated)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show class owners and attribute formats")
	cmd.Flags().Float64Var(&opts.scale, "scale", opts.scale, "PNG scale factor")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "re-render instead of reusing cached output")

	return cmd
}

// parseFormats parses the --format flag. If empty, defaults to ["svg"].
func parseFormats(s string) []string {
	if s == "" {
		return []string{formatSVG}
	}
	return strings.Split(s, ",")
}

var validFormats = map[string]bool{formatSVG: true, formatDOT: true, formatPDF: true, formatPNG: true, formatJSON: true}

func validateFormats(formats []string) error {
	for _, f := range formats {
		if !validFormats[f] {
			return fmt.Errorf("invalid format: %s (must be 'svg', 'dot', 'pdf', 'png', or 'json')", f)
		}
	}
	return nil
}

// outputPath picks the file for one format. A single format writes to
// output as given; several formats treat output as a base path.
func outputPath(output, name, format string, multi bool) string {
	if output == "" {
		return name + "." + format
	}
	if !multi {
		return output
	}
	return strings.TrimSuffix(output, filepath.Ext(output)) + "." + format
}

// cacheDir returns the render cache directory, XDG_CACHE_HOME/umlboard or
// ~/.cache/umlboard.
func cacheDir() (string, error) {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// newRenderer returns a renderer backed by the file cache, or an uncached
// one with --no-cache or when the cache directory is unusable.
func (c *CLI) newRenderer(noCache bool) *render.Renderer {
	if noCache {
		return render.NewRenderer(nil, 0, c.Logger)
	}
	dir, err := cacheDir()
	if err == nil {
		var fc *cache.FileCache
		if fc, err = cache.NewFileCache(filepath.Join(dir, "render")); err == nil {
			return render.NewRenderer(fc, render.DefaultCacheTTL, c.Logger)
		}
	}
	c.Logger.Warn("render cache disabled", "err", err)
	return render.NewRenderer(nil, 0, c.Logger)
}

func (c *CLI) runRender(ctx context.Context, d store.SavedDiagram, opts renderOpts) error {
	prog := newProgress(c.Logger)
	dot := render.ToDOT(d.State, render.Options{Detailed: opts.detailed})
	r := c.newRenderer(opts.noCache)

	var paths []string
	for _, format := range opts.formats {
		data, err := renderFormat(ctx, r, d, dot, format, opts.scale)
		if err != nil {
			return fmt.Errorf("render %s: %w", format, err)
		}
		path := outputPath(opts.output, d.Name, format, len(opts.formats) > 1)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}

	prog.done("Rendered " + d.Name)
	for _, p := range paths {
		printFile(p)
	}
	printStats(plural(len(d.State.Nodes), "node"), plural(len(d.State.Edges), "edge"))
	return nil
}

func renderFormat(ctx context.Context, r *render.Renderer, d store.SavedDiagram, dot, format string, scale float64) ([]byte, error) {
	switch format {
	case formatDOT:
		return []byte(dot), nil
	case formatSVG:
		return r.SVG(ctx, dot)
	case formatPDF:
		return r.PDF(ctx, dot)
	case formatPNG:
		return r.PNG(ctx, dot, scale)
	case formatJSON:
		text, err := store.ExportToText(d)
		return []byte(text), err
	}
	return nil, fmt.Errorf("unsupported format %q", format)
}
