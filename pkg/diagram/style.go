package diagram

import "github.com/matzehuels/umlboard/pkg/uml"

// Edge routing names understood by the canvas.
const (
	RoutingDefault    = "default"
	RoutingSmoothStep = "smoothstep"
)

// MarkerArrowClosed is the filled arrowhead marker.
const MarkerArrowClosed = "arrowclosed"

// Marker describes an edge end marker.
type Marker struct {
	Type   string  `json:"type"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	Color  string  `json:"color,omitempty"`
}

// Stroke holds line styling.
type Stroke struct {
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
}

// EdgeStyle is the visual styling of an edge.
type EdgeStyle struct {
	Routing   string  `json:"type"`
	MarkerEnd *Marker `json:"markerEnd,omitempty"`
	Style     *Stroke `json:"style,omitempty"`
}

// Clone returns a copy that shares no pointers with s.
func (s EdgeStyle) Clone() EdgeStyle {
	out := s
	if s.MarkerEnd != nil {
		m := *s.MarkerEnd
		out.MarkerEnd = &m
	}
	if s.Style != nil {
		st := *s.Style
		out.Style = &st
	}
	return out
}

// IsStepped reports whether the edge uses stepped routing.
func (s EdgeStyle) IsStepped() bool { return s.Routing == RoutingSmoothStep }

// DefaultEdgeStyle is applied to every relation kind without an entry in
// the style table.
var DefaultEdgeStyle = EdgeStyle{
	Routing:   RoutingDefault,
	MarkerEnd: &Marker{Type: MarkerArrowClosed},
}

// SpecializationEdgeStyle marks inheritance: stepped routing, an enlarged
// white arrowhead and a thicker stroke.
var SpecializationEdgeStyle = EdgeStyle{
	Routing:   RoutingSmoothStep,
	MarkerEnd: &Marker{Type: MarkerArrowClosed, Width: 20, Height: 20, Color: "#ffffff"},
	Style:     &Stroke{StrokeWidth: 2},
}

// ManualEdgeStyle is applied to user-drawn connections.
var ManualEdgeStyle = EdgeStyle{Routing: RoutingSmoothStep}

// StyleTable maps relation kinds to edge styles. Kinds without an entry use
// the table's fallback, [DefaultEdgeStyle] for tables built by
// [DefaultStyles].
//
// A StyleTable is immutable; With returns an extended copy.
type StyleTable struct {
	byKind   map[string]EdgeStyle
	fallback EdgeStyle
}

// DefaultStyles returns the built-in table: specialization edges are
// stepped, every other kind gets the default style.
func DefaultStyles() StyleTable {
	return StyleTable{
		byKind: map[string]EdgeStyle{
			uml.KindSpecialization: SpecializationEdgeStyle,
		},
		fallback: DefaultEdgeStyle,
	}
}

// For returns the style for a relation kind.
// The returned value shares no pointers with the table.
func (t StyleTable) For(kind string) EdgeStyle {
	if s, ok := t.byKind[kind]; ok {
		return s.Clone()
	}
	if t.fallback.Routing == "" {
		return DefaultEdgeStyle.Clone()
	}
	return t.fallback.Clone()
}

// With returns a copy of the table with kind mapped to style.
func (t StyleTable) With(kind string, style EdgeStyle) StyleTable {
	out := StyleTable{
		byKind:   make(map[string]EdgeStyle, len(t.byKind)+1),
		fallback: t.fallback,
	}
	if out.fallback.Routing == "" {
		out.fallback = DefaultEdgeStyle
	}
	for k, v := range t.byKind {
		out.byKind[k] = v
	}
	out.byKind[kind] = style.Clone()
	return out
}

// Kinds returns the number of kinds with an explicit entry.
func (t StyleTable) Kinds() int { return len(t.byKind) }

// StyleFor returns the built-in style for a relation kind.
func StyleFor(kind string) EdgeStyle { return DefaultStyles().For(kind) }

// TextStyle styles an edge label or its background.
type TextStyle struct {
	Fill        string  `json:"fill,omitempty"`
	Color       string  `json:"color,omitempty"`
	FontWeight  int     `json:"fontWeight,omitempty"`
	FillOpacity float64 `json:"fillOpacity,omitempty"`
}

// LabelDecoration is the label styling of relation edges.
type LabelDecoration struct {
	LabelStyle          *TextStyle `json:"labelStyle,omitempty"`
	LabelBgPadding      []float64  `json:"labelBgPadding,omitempty"`
	LabelBgBorderRadius float64    `json:"labelBgBorderRadius,omitempty"`
	LabelBgStyle        *TextStyle `json:"labelBgStyle,omitempty"`
}

// Clone returns a copy that shares no pointers with d.
func (d LabelDecoration) Clone() LabelDecoration {
	out := d
	if d.LabelStyle != nil {
		s := *d.LabelStyle
		out.LabelStyle = &s
	}
	if d.LabelBgPadding != nil {
		out.LabelBgPadding = append([]float64(nil), d.LabelBgPadding...)
	}
	if d.LabelBgStyle != nil {
		s := *d.LabelBgStyle
		out.LabelBgStyle = &s
	}
	return out
}

// relationLabel is the grey label on a translucent white pill used for
// every relation edge.
func relationLabel() LabelDecoration {
	return LabelDecoration{
		LabelStyle:          &TextStyle{Fill: "#666", FontWeight: 500},
		LabelBgPadding:      []float64{8, 4},
		LabelBgBorderRadius: 4,
		LabelBgStyle:        &TextStyle{Fill: "white", Color: "#666", FillOpacity: 0.8},
	}
}
