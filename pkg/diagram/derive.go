package diagram

import (
	"strings"

	"github.com/matzehuels/umlboard/pkg/uml"
)

// DeriveEdges returns one edge for every relation whose source and target
// are both in visible, in relation order, styled through styles.
//
// DeriveEdges is pure: the result depends only on its arguments, and the
// returned edges share no memory with them.
func DeriveEdges(relations []uml.Relation, visible IDSet, styles StyleTable) []Edge {
	var edges []Edge
	for _, r := range relations {
		if !visible.Has(r.Source) || !visible.Has(r.Target) {
			continue
		}
		edges = append(edges, RelationEdge(r, styles))
	}
	return edges
}

// RelationEdge maps one relation to its edge.
func RelationEdge(r uml.Relation, styles StyleTable) Edge {
	return Edge{
		ID:              r.ID,
		Source:          r.Source,
		Target:          r.Target,
		Label:           r.Name,
		EdgeStyle:       styles.For(r.Type),
		LabelDecoration: relationLabel(),
		Animated:        false,
	}
}

// manualIDEscaper escapes the separator so distinct pairs never share an id.
var manualIDEscaper = strings.NewReplacer("%", "%25", "-", "%2D")

// ManualEdgeID is the id given to a user-drawn connection. Ids without '-'
// or '%' are joined as is: manual__A-B.
func ManualEdgeID(source, target string) string {
	return "manual__" + manualIDEscaper.Replace(source) + "-" + manualIDEscaper.Replace(target)
}

// appendNewEdges appends the edges of add whose id is not yet in edges.
// The input slice is never written to.
func appendNewEdges(edges, add []Edge) []Edge {
	seen := make(map[string]struct{}, len(edges))
	for _, e := range edges {
		seen[e.ID] = struct{}{}
	}
	out := make([]Edge, len(edges), len(edges)+len(add))
	copy(out, edges)
	for _, e := range add {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}

// pruneView drops nodes outside keep and every edge left without both
// endpoints. It returns the pruned view and the number of dropped nodes and
// edges.
func pruneView(v View, keep func(Node) bool) (View, int, int) {
	var out View
	if v.Nodes != nil {
		out.Nodes = make([]Node, 0, len(v.Nodes))
	}
	ids := make(IDSet, len(v.Nodes))
	droppedNodes := 0
	for _, n := range v.Nodes {
		if ids.Has(n.ID) || !keep(n) {
			droppedNodes++
			continue
		}
		ids[n.ID] = struct{}{}
		out.Nodes = append(out.Nodes, n.Clone())
	}

	if v.Edges != nil {
		out.Edges = make([]Edge, 0, len(v.Edges))
	}
	droppedEdges := 0
	for _, e := range v.Edges {
		if !ids.Has(e.Source) || !ids.Has(e.Target) {
			droppedEdges++
			continue
		}
		out.Edges = append(out.Edges, e.Clone())
	}
	return out, droppedNodes, droppedEdges
}
