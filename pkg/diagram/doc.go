// Package diagram maps a loaded UML model onto the visual nodes and edges of
// a canvas and keeps the two in sync.
//
// # Overview
//
// A [View] is the working set of class nodes and relation edges currently on
// the canvas. It is deliberately shaped like the state a browser graph
// library persists: nodes carry an id, a "classNode" type, a position and a
// snapshot of the class; edges carry source, target, label and styling.
//
// The package does not compute layouts or route edges. New nodes are placed
// on a fixed grid (three per row, see [GridPosition]) and the rendering
// engine owns everything after that.
//
// # State
//
// [State] is a plain value: model, freshness timestamp, view and the ordered
// set of visible class ids. Each operation is a transform returning a new
// State and never mutates the receiver, so a View handed out earlier (for
// instance to be saved) is never changed retroactively.
//
// [Editor] owns one State behind a mutex and is what the CLI, terminal editor
// and HTTP API talk to. Every editor operation is all-or-nothing.
//
// # Edges
//
// [DeriveEdges] is a pure function: a relation becomes an edge exactly when
// both of its endpoints are visible. Styling comes from a [StyleTable] keyed
// by relation kind; "specialization" gets stepped routing with an enlarged
// light arrowhead and a thicker stroke, every other kind falls back to the
// default style.
//
// Manually drawn edges are free-form annotations. They are not checked
// against the model's relations, but both endpoints must be on the canvas.
//
// # Invariants
//
//   - Node ids are unique and always a subset of the loaded model's class ids.
//   - Every edge's source and target are nodes of the same view.
//   - Adding nodes and edges is append-only; existing nodes never move.
package diagram
