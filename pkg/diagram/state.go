package diagram

import (
	"math"
	"time"

	"github.com/matzehuels/umlboard/pkg/errors"
	"github.com/matzehuels/umlboard/pkg/uml"
)

// State is the full editor state: the loaded model, its freshness marker and
// the view. The visible-id set is the ordered list of node ids.
//
// The methods below are transforms. They return a new State and never write
// to the receiver's slices, so views obtained earlier stay valid.
type State struct {
	Model          *uml.Model
	ModelTimestamp time.Time
	View           View
}

// ReloadResult summarises a ReloadFromModel.
type ReloadResult struct {
	Nodes        int      `json:"nodes"`
	Edges        int      `json:"edges"`
	DroppedNodes []string `json:"droppedNodes,omitempty"`
}

// LoadResult summarises a LoadView.
type LoadResult struct {
	Nodes        int `json:"nodes"`
	Edges        int `json:"edges"`
	DroppedNodes int `json:"droppedNodes"`
	DroppedEdges int `json:"droppedEdges"`
}

// HasModel reports whether a model is loaded.
func (s State) HasModel() bool { return s.Model != nil }

// Visible returns the visible class ids in canvas order.
func (s State) Visible() []string { return s.View.NodeIDs() }

// WithModel installs a freshly imported model and clears the view.
func (s State) WithModel(m *uml.Model, ts time.Time) State {
	return State{Model: m, ModelTimestamp: ts}
}

// Reset clears the view. The model is kept.
func (s State) Reset() State {
	return State{Model: s.Model, ModelTimestamp: s.ModelTimestamp}
}

// AddNode places classID on the grid and appends the relation edges that
// became complete. added is false when no model is loaded or the class is
// already visible. An unknown class id is a CLASS_NOT_FOUND error.
func (s State) AddNode(classID string, styles StyleTable) (next State, added bool, err error) {
	if s.Model == nil {
		return s, false, nil
	}
	visible := NewIDSet(s.Visible()...)
	if visible.Has(classID) {
		return s, false, nil
	}
	class, ok := s.Model.Class(classID)
	if !ok {
		return s, false, errors.New(errors.ErrCodeClassNotFound, "class %q is not in the loaded model", classID)
	}

	nodes := make([]Node, len(s.View.Nodes), len(s.View.Nodes)+1)
	copy(nodes, s.View.Nodes)
	nodes = append(nodes, NewNode(class, GridPosition(len(s.View.Nodes))))
	visible[classID] = struct{}{}

	next = s
	next.View = View{
		Nodes: nodes,
		Edges: appendNewEdges(s.View.Edges, DeriveEdges(s.Model.Relations, visible, styles)),
	}
	return next, true, nil
}

// ReloadFromModel rebuilds every visible node from the current model,
// keeping its position, and drops ids the model no longer has. Relation
// edges are derived again; manual edges whose endpoints survive are kept.
// ok is false when no model is loaded.
func (s State) ReloadFromModel(styles StyleTable, ts time.Time) (next State, res ReloadResult, ok bool) {
	if s.Model == nil {
		return s, ReloadResult{}, false
	}

	positions := make(map[string]Position, len(s.View.Nodes))
	for _, n := range s.View.Nodes {
		positions[n.ID] = n.Position
	}
	index := s.Model.ClassIndex()

	var nodes []Node
	kept := make(IDSet, len(s.View.Nodes))
	for _, id := range s.Visible() {
		class, found := index[id]
		if !found {
			res.DroppedNodes = append(res.DroppedNodes, id)
			continue
		}
		if kept.Has(id) {
			continue
		}
		pos, known := positions[id]
		if !known {
			pos = DefaultPosition
		}
		nodes = append(nodes, NewNode(class, pos))
		kept[id] = struct{}{}
	}

	edges := DeriveEdges(s.Model.Relations, kept, styles)
	var manual []Edge
	for _, e := range s.View.Edges {
		if e.Manual && kept.Has(e.Source) && kept.Has(e.Target) {
			manual = append(manual, e.Clone())
		}
	}
	edges = appendNewEdges(edges, manual)

	next = State{
		Model:          s.Model,
		ModelTimestamp: ts,
		View:           View{Nodes: nodes, Edges: edges},
	}
	res.Nodes = len(nodes)
	res.Edges = len(edges)
	return next, res, true
}

// LoadView replaces the view with a saved one. Nodes whose class is not in
// the loaded model, and edges left without both endpoints, are discarded.
// ok is false when no model is loaded.
func (s State) LoadView(v View) (next State, res LoadResult, ok bool) {
	if s.Model == nil {
		return s, LoadResult{}, false
	}
	index := s.Model.ClassIndex()
	pruned, dn, de := pruneView(v, func(n Node) bool {
		_, found := index[n.ID]
		return found
	})

	next = s
	next.View = pruned
	return next, LoadResult{
		Nodes:        len(pruned.Nodes),
		Edges:        len(pruned.Edges),
		DroppedNodes: dn,
		DroppedEdges: de,
	}, true
}

// Connect appends a user-drawn edge from source to target. Both must be
// visible. If an edge between the two, or an edge with the same id, already
// exists it is returned and the state is unchanged (created is false).
func (s State) Connect(source, target, label string) (next State, edge Edge, created bool, err error) {
	visible := NewIDSet(s.Visible()...)
	for _, id := range []string{source, target} {
		if !visible.Has(id) {
			return s, Edge{}, false, errors.New(errors.ErrCodeNodeNotVisible, "class %q is not on the canvas", id)
		}
	}
	id := ManualEdgeID(source, target)
	for _, e := range s.View.Edges {
		if (e.Source == source && e.Target == target) || e.ID == id {
			return s, e.Clone(), false, nil
		}
	}

	edge = Edge{
		ID:        id,
		Source:    source,
		Target:    target,
		Label:     label,
		EdgeStyle: ManualEdgeStyle.Clone(),
		Animated:  false,
		Manual:    true,
	}
	next = s
	next.View = View{
		Nodes: s.View.Nodes,
		Edges: appendNewEdges(s.View.Edges, []Edge{edge}),
	}
	return next, edge, true, nil
}

// MoveNodes sets the position of every node in moves. All ids must be
// visible and all positions finite, otherwise the state is unchanged and
// the error is NODE_NOT_VISIBLE or INVALID_INPUT.
func (s State) MoveNodes(moves map[string]Position) (State, error) {
	visible := NewIDSet(s.Visible()...)
	for id, pos := range moves {
		if !visible.Has(id) {
			return s, errors.New(errors.ErrCodeNodeNotVisible, "class %q is not on the canvas", id)
		}
		if !pos.finite() {
			return s, errors.New(errors.ErrCodeInvalidInput, "position of %q is not a finite coordinate", id)
		}
	}
	if len(moves) == 0 {
		return s, nil
	}

	nodes := make([]Node, len(s.View.Nodes))
	copy(nodes, s.View.Nodes)
	for i, n := range nodes {
		if pos, ok := moves[n.ID]; ok {
			nodes[i].Position = pos
		}
	}

	next := s
	next.View = View{Nodes: nodes, Edges: s.View.Edges}
	return next, nil
}

func (p Position) finite() bool {
	for _, v := range []float64{p.X, p.Y} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
