package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/umlboard/pkg/diagram"
	"github.com/matzehuels/umlboard/pkg/uml"
)

// Options configures diagram rendering.
type Options struct {
	// Detailed adds the owning package and attribute format hints.
	Detailed bool
}

// ToDOT converts a view to Graphviz DOT. Nodes are pinned at their canvas
// positions (y grows downwards on the canvas, upwards in Graphviz).
func ToDOT(v diagram.View, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  layout=neato;\n")
	buf.WriteString("  inputscale=72;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  splines=true;\n")
	buf.WriteString("  node [shape=record, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\", fontsize=12];\n")
	buf.WriteString("  edge [fontname=\"Helvetica\", fontsize=10, fontcolor=\"#666666\"];\n")
	buf.WriteString("\n")

	for _, n := range v.Nodes {
		fmt.Fprintf(&buf, "  %q [label=\"%s\", pos=\"%s,%s!\"];\n",
			n.ID, classLabel(n.Data, opts.Detailed), fmtFloat(n.Position.X), fmtFloat(-n.Position.Y))
	}

	buf.WriteString("\n")
	for _, e := range v.Edges {
		attrs := edgeAttrs(e)
		if len(attrs) == 0 {
			fmt.Fprintf(&buf, "  %q -> %q;\n", e.Source, e.Target)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.Source, e.Target, strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

// classLabel builds a record label: {Name|attr\lattr\l}.
func classLabel(d diagram.NodeData, detailed bool) string {
	c := d.ClassData
	name := d.Label
	if name == "" {
		name = c.Name
	}
	if name == "" {
		name = c.ID
	}

	head := escapeRecord(name)
	if detailed && c.Owner != "" {
		head = escapeRecord("«"+c.Owner+"»") + `\n` + head
	}

	var attrs strings.Builder
	for _, a := range c.Attributes {
		attrs.WriteString(escapeRecord(attributeLine(a, detailed)))
		attrs.WriteString(`\l`)
	}
	return "{" + head + "|" + attrs.String() + "}"
}

// attributeLine renders "name : type [mult]". The multiplicity is left out
// when it is the implied "1".
func attributeLine(a uml.Attribute, detailed bool) string {
	line := a.Name
	if a.Datatype != "" {
		line += " : " + a.Datatype
	}
	if a.ShowMultiplicity() {
		line += " [" + a.Multiplicity + "]"
	}
	if detailed && a.Format != nil && *a.Format != "" {
		line += " (" + *a.Format + ")"
	}
	return line
}

func edgeAttrs(e diagram.Edge) []string {
	var attrs []string
	if e.Label != "" {
		attrs = append(attrs, fmt.Sprintf("label=%q", e.Label))
	}
	switch {
	case e.Manual:
		attrs = append(attrs, `style="dashed"`)
	case e.IsStepped():
		attrs = append(attrs, "arrowhead=empty")
	}
	if e.Style != nil && e.Style.StrokeWidth > 0 {
		attrs = append(attrs, "penwidth="+fmtFloat(e.Style.StrokeWidth))
	}
	if e.MarkerEnd != nil && e.MarkerEnd.Width > 0 {
		attrs = append(attrs, "arrowsize="+fmtFloat(e.MarkerEnd.Width/16))
	}
	return attrs
}

var recordEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	`{`, `\{`,
	`}`, `\}`,
	`|`, `\|`,
	`<`, `\<`,
	`>`, `\>`,
	"\n", " ",
)

func escapeRecord(s string) string { return recordEscaper.Replace(s) }

func fmtFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	gv.SetLayout(graphviz.NEATO)

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

// ViewSVG renders a view straight to SVG.
func ViewSVG(ctx context.Context, v diagram.View, opts Options) ([]byte, error) {
	return RenderSVG(ctx, ToDOT(v, opts))
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
