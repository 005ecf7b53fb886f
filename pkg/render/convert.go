package render

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/matzehuels/umlboard/pkg/errors"
)

// converter is the external SVG conversion tool from librsvg.
const converter = "rsvg-convert"

// ToPDF converts SVG to PDF.
func ToPDF(ctx context.Context, svg []byte) ([]byte, error) {
	return convertSVG(ctx, svg, "pdf")
}

// ToPNG converts SVG to PNG. A scale of 2 doubles the resolution; a
// non-positive scale means 1.
func ToPNG(ctx context.Context, svg []byte, scale float64) ([]byte, error) {
	if scale <= 0 {
		scale = 1
	}
	return convertSVG(ctx, svg, "png", "-z", strconv.FormatFloat(scale, 'f', 2, 64))
}

// convertSVG pipes svg through rsvg-convert. A missing tool is an
// UNSUPPORTED error naming the package to install.
func convertSVG(ctx context.Context, svg []byte, format string, extra ...string) ([]byte, error) {
	path, err := exec.LookPath(converter)
	if err != nil {
		return nil, errors.New(errors.ErrCodeUnsupported,
			"%s export needs %s. Install librsvg:\n  macOS:  brew install librsvg\n  Linux:  apt install librsvg2-bin",
			format, converter)
	}

	cmd := exec.CommandContext(ctx, path, append([]string{"-f", format}, extra...)...)
	cmd.Stdin = bytes.NewReader(svg)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s: %w: %s", converter, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return out.Bytes(), nil
}
