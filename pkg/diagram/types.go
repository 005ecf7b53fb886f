package diagram

import (
	"github.com/matzehuels/umlboard/pkg/uml"
)

// NodeTypeClass is the renderer node type for class cards.
const NodeTypeClass = "classNode"

// Position is a 2-D canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DefaultPosition is used when a node's previous position is unknown.
var DefaultPosition = Position{X: 100, Y: 100}

// Grid placement for newly added nodes.
const (
	gridColumns  = 3
	gridOriginX  = 100.0
	gridOriginY  = 100.0
	gridSpacingX = 300.0
	gridSpacingY = 250.0
)

// GridPosition returns the position of the n-th node (0-based) on a grid of
// three columns.
func GridPosition(n int) Position {
	return Position{
		X: gridOriginX + float64(n%gridColumns)*gridSpacingX,
		Y: gridOriginY + float64(n/gridColumns)*gridSpacingY,
	}
}

// NodeData is the payload rendered inside a class node.
type NodeData struct {
	Label     string    `json:"label"`
	ClassData uml.Class `json:"classData"`
}

// Node is the visual representation of one class.
// Its ID is always the class id.
type Node struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// NewNode creates a class node at pos with a snapshot of class.
func NewNode(class uml.Class, pos Position) Node {
	return Node{
		ID:       class.ID,
		Type:     NodeTypeClass,
		Position: pos,
		Data: NodeData{
			Label:     class.Name,
			ClassData: class.Clone(),
		},
	}
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	out := n
	out.Data.ClassData = n.Data.ClassData.Clone()
	return out
}

// Edge is the visual representation of one relation, or a manual connection.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
	EdgeStyle
	LabelDecoration
	Animated bool `json:"animated"`
	// Manual marks user-drawn connections that do not stem from a relation.
	Manual bool `json:"manual,omitempty"`
}

// Clone returns a deep copy of the edge.
func (e Edge) Clone() Edge {
	out := e
	out.EdgeStyle = e.EdgeStyle.Clone()
	out.LabelDecoration = e.LabelDecoration.Clone()
	return out
}

// View is the set of nodes and edges on the canvas.
type View struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Clone returns a deep copy of the view. Nil slices stay nil.
func (v View) Clone() View {
	var out View
	if v.Nodes != nil {
		out.Nodes = make([]Node, len(v.Nodes))
		for i, n := range v.Nodes {
			out.Nodes[i] = n.Clone()
		}
	}
	if v.Edges != nil {
		out.Edges = make([]Edge, len(v.Edges))
		for i, e := range v.Edges {
			out.Edges[i] = e.Clone()
		}
	}
	return out
}

// IsEmpty reports whether the view has no nodes and no edges.
func (v View) IsEmpty() bool { return len(v.Nodes) == 0 && len(v.Edges) == 0 }

// NodeIDs returns the node ids in canvas order.
func (v View) NodeIDs() []string {
	ids := make([]string, len(v.Nodes))
	for i, n := range v.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// Node returns the node with the given id.
func (v View) Node(id string) (Node, bool) {
	for _, n := range v.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// DanglingEdges returns the edges whose source or target is not a node of v.
// It is empty for every view produced by this package.
func (v View) DanglingEdges() []Edge {
	ids := NewIDSet(v.NodeIDs()...)
	var out []Edge
	for _, e := range v.Edges {
		if !ids.Has(e.Source) || !ids.Has(e.Target) {
			out = append(out, e)
		}
	}
	return out
}

// IDSet is a set of class ids used for membership tests.
type IDSet map[string]struct{}

// NewIDSet creates a set from ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id is in the set.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}
