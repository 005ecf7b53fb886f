// Package render turns a diagram view into static images using Graphviz.
//
// # Overview
//
// The interactive canvas owns layout while editing. For export the saved
// node positions are handed to Graphviz unchanged: [ToDOT] emits a neato
// graph with every node pinned at its canvas coordinate, so the picture
// matches what the user arranged.
//
//	View → ToDOT() → DOT → RenderSVG() → SVG → ToPDF()/ToPNG()
//
// # Class Cards
//
// Each class is drawn as a UML record: the class name in the top
// compartment and one line per attribute below it, "name : type". The
// multiplicity is appended in brackets only when it is not the implied "1".
// With Options.Detailed the owning package and format hints are included.
//
// # Edges
//
// Specialization edges use a hollow arrowhead and a thicker pen. Manually
// drawn connections are dashed. Every other relation is a plain arrow.
//
// # Format Conversion
//
// [ToPDF] and [ToPNG] convert SVG using the external rsvg-convert tool
// (from librsvg).
//
// # Caching
//
// A [Renderer] keeps finished artifacts in a cache.Cache keyed by format
// and DOT source. The server uses an in-memory cache for the live canvas
// and the CLI a file cache under the user cache directory.
package render
