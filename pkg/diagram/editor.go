package diagram

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/umlboard/pkg/observability"
	"github.com/matzehuels/umlboard/pkg/uml"
)

// Editor owns the editing state of one canvas.
//
// All methods are safe for concurrent use; each runs as one discrete user
// action and either applies completely or not at all.
type Editor struct {
	// Styles maps relation kinds to edge styles.
	Styles StyleTable
	// Now supplies freshness timestamps on reload.
	Now    func() time.Time
	Logger *log.Logger

	mu    sync.RWMutex
	state State
}

// NewEditor creates an empty editor with the built-in style table.
// If logger is nil, log.Default() is used.
func NewEditor(logger *log.Logger) *Editor {
	if logger == nil {
		logger = log.Default()
	}
	return &Editor{
		Styles: DefaultStyles(),
		Now:    time.Now,
		Logger: logger,
	}
}

// Snapshot is a frozen copy of the editor state for persistence.
type Snapshot struct {
	View           View
	ModelTimestamp time.Time
	HasModel       bool
}

// SetModel installs a freshly imported model and clears the canvas.
func (e *Editor) SetModel(m *uml.Model, ts time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = e.state.WithModel(m, ts)
	e.Logger.Debug("model installed, canvas cleared", "classes", classCount(m))
}

// ReplaceModel installs a reimported model and rebuilds the canvas from it,
// keeping the layout.
func (e *Editor) ReplaceModel(ctx context.Context, m *uml.Model, ts time.Time) ReloadResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Model = m
	next, res, _ := e.state.ReloadFromModel(e.Styles, ts)
	e.state = next
	e.logReload(ctx, res)
	return res
}

// AddNode places a class on the canvas. It returns false without error
// when no model is loaded or the class is already visible, and a
// CLASS_NOT_FOUND error when the model has no such class.
func (e *Editor) AddNode(ctx context.Context, classID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next, added, err := e.state.AddNode(classID, e.Styles)
	if err != nil || !added {
		return false, err
	}
	e.state = next
	e.Logger.Debug("added node", "class", classID,
		"nodes", len(next.View.Nodes), "edges", len(next.View.Edges))
	observability.Editor().OnNodeAdded(ctx, classID, len(next.View.Nodes), len(next.View.Edges))
	return true, nil
}

// ReloadFromModel refreshes every visible node from the loaded model and
// stamps a new freshness marker. ok is false when no model is loaded.
func (e *Editor) ReloadFromModel(ctx context.Context) (ReloadResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next, res, ok := e.state.ReloadFromModel(e.Styles, e.Now())
	if !ok {
		return res, false
	}
	e.state = next
	e.logReload(ctx, res)
	return res, true
}

// Reset starts a new diagram. The model stays loaded.
func (e *Editor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = e.state.Reset()
}

// LoadView replaces the canvas with a saved view. ok is false when no model
// is loaded.
func (e *Editor) LoadView(v View) (LoadResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next, res, ok := e.state.LoadView(v)
	if !ok {
		return res, false
	}
	e.state = next
	if res.DroppedNodes > 0 || res.DroppedEdges > 0 {
		e.Logger.Warn("saved diagram does not match the loaded model",
			"dropped_nodes", res.DroppedNodes, "dropped_edges", res.DroppedEdges)
	}
	return res, true
}

// ConnectManually draws a free-form edge between two visible classes.
// created is false when the pair was already connected.
func (e *Editor) ConnectManually(source, target, label string) (edge Edge, created bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next, edge, created, err := e.state.Connect(source, target, label)
	if err != nil {
		return Edge{}, false, err
	}
	e.state = next
	return edge, created, nil
}

// MoveNode places a visible node at pos.
func (e *Editor) MoveNode(classID string, pos Position) error {
	return e.MoveNodes(map[string]Position{classID: pos})
}

// MoveNodes moves several nodes at once, as at the end of a drag of a
// selection. Either all nodes move or none does.
func (e *Editor) MoveNodes(moves map[string]Position) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	next, err := e.state.MoveNodes(moves)
	if err != nil {
		return err
	}
	e.state = next
	e.Logger.Debug("moved nodes", "count", len(moves))
	return nil
}

// View returns a deep copy of the canvas. Slices are never nil.
func (e *Editor) View() View {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.viewLocked()
}

func (e *Editor) viewLocked() View {
	v := e.state.View.Clone()
	if v.Nodes == nil {
		v.Nodes = []Node{}
	}
	if v.Edges == nil {
		v.Edges = []Edge{}
	}
	return v
}

// Snapshot returns the view and freshness marker to persist.
func (e *Editor) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Snapshot{
		View:           e.viewLocked(),
		ModelTimestamp: e.state.ModelTimestamp,
		HasModel:       e.state.HasModel(),
	}
}

// Model returns the loaded model, or nil.
func (e *Editor) Model() *uml.Model {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Model
}

// HasModel reports whether a model is loaded.
func (e *Editor) HasModel() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.HasModel()
}

// ModelTimestamp returns the freshness marker of the loaded model.
func (e *Editor) ModelTimestamp() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.ModelTimestamp
}

// Visible reports whether a class is on the canvas.
func (e *Editor) Visible(classID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.state.View.Node(classID)
	return ok
}

func (e *Editor) logReload(ctx context.Context, res ReloadResult) {
	if len(res.DroppedNodes) > 0 {
		e.Logger.Info("dropped classes missing from model", "ids", res.DroppedNodes)
	}
	e.Logger.Debug("view reloaded", "nodes", res.Nodes, "edges", res.Edges)
	observability.Editor().OnViewReloaded(ctx, res.Nodes, res.Edges, len(res.DroppedNodes))
}

func classCount(m *uml.Model) int {
	if m == nil {
		return 0
	}
	return len(m.Classes)
}
