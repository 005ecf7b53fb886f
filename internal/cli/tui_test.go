package cli

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/umlboard/pkg/diagram"
	"github.com/matzehuels/umlboard/pkg/kv"
	"github.com/matzehuels/umlboard/pkg/store"
	"github.com/matzehuels/umlboard/pkg/uml"
)

func testModel() *uml.Model {
	return &uml.Model{
		Classes: []uml.Class{
			{ID: "A", Name: "Order"},
			{ID: "B", Name: "Customer"},
			{ID: "C", Name: "Invoice"},
		},
		Relations: []uml.Relation{
			{ID: "R1", Name: "placedBy", Type: "association", Source: "A", Target: "B"},
		},
	}
}

func newTestEditorModel(t *testing.T) (EditorModel, *diagram.Editor, *store.Repository) {
	t.Helper()
	logger := log.New(io.Discard)
	editor := diagram.NewEditor(logger)
	editor.SetModel(testModel(), time.UnixMilli(1700000000000))
	repo := store.NewRepository(kv.NewMemoryStore(), logger)
	return NewEditorModel(context.Background(), editor, repo), editor, repo
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// press feeds keys to m and runs the commands they return until the model
// settles.
func press(m EditorModel, keys ...string) EditorModel {
	for _, k := range keys {
		var msg tea.Msg = keyMsg(k)
		for msg != nil {
			next, cmd := m.Update(msg)
			m = next.(EditorModel)
			msg = nil
			if cmd != nil {
				msg = cmd()
			}
			if _, quit := msg.(tea.QuitMsg); quit {
				msg = nil
			}
		}
	}
	return m
}

func TestEditorAddNodes(t *testing.T) {
	m, editor, _ := newTestEditorModel(t)

	m = press(m, "enter")
	if !editor.Visible("A") || m.status != "Added Order" {
		t.Fatalf("after enter: visible A = %v, status %q", editor.Visible("A"), m.status)
	}

	m = press(m, "down", "a")
	v := editor.View()
	if len(v.Nodes) != 2 || len(v.Edges) != 1 || v.Edges[0].ID != "R1" {
		t.Errorf("view after adding B = %+v", v)
	}

	m = press(m, "up", "enter")
	if !strings.Contains(m.status, "already on the canvas") || m.statusErr {
		t.Errorf("re-add status = %q (err %v)", m.status, m.statusErr)
	}
	if got := len(editor.View().Nodes); got != 2 {
		t.Errorf("re-add changed node count to %d", got)
	}
}

func TestEditorCursorBounds(t *testing.T) {
	m, _, _ := newTestEditorModel(t)
	m = press(m, "up")
	if m.Cursor != 0 {
		t.Errorf("cursor moved above the list: %d", m.Cursor)
	}
	m = press(m, "down", "down", "down", "down")
	if m.Cursor != 2 {
		t.Errorf("cursor = %d, want 2", m.Cursor)
	}
}

func TestEditorSaveAndOverwrite(t *testing.T) {
	m, _, repo := newTestEditorModel(t)
	ctx := context.Background()

	m = press(m, "enter", "s")
	if m.mode != modeName {
		t.Fatalf("s on an unsaved diagram should prompt, mode = %v", m.mode)
	}
	m = press(m, "over", "view", "x", "backspace", "enter")
	if m.statusErr || m.current != "overview" {
		t.Fatalf("save status = %q, current = %q", m.status, m.current)
	}

	// s on a named diagram overwrites in place.
	m = press(m, "down", "enter", "s")
	list := repo.List(ctx)
	if len(list) != 1 || len(list[0].State.Nodes) != 2 {
		t.Fatalf("after overwrite List() = %+v", list)
	}
	if list[0].ModelTimestamp != 1700000000000 {
		t.Errorf("ModelTimestamp = %d", list[0].ModelTimestamp)
	}

	// S always appends, even with the same name.
	m = press(m, "S", "enter")
	if list := repo.List(ctx); len(list) != 2 || list[1].Name != "overview" {
		t.Errorf("after save as List() = %+v", list)
	}
}

func TestEditorSaveRejectsEmptyName(t *testing.T) {
	m, _, repo := newTestEditorModel(t)
	m = press(m, "S", " ", "enter")
	if !m.statusErr {
		t.Errorf("empty name should fail, status = %q", m.status)
	}
	if len(repo.List(context.Background())) != 0 {
		t.Error("empty name was saved")
	}
}

func TestEditorNewAndLoad(t *testing.T) {
	m, editor, _ := newTestEditorModel(t)

	m = press(m, "enter", "down", "enter", "S", "first", "enter")
	m = press(m, "n")
	if len(editor.View().Nodes) != 0 || m.current != "" {
		t.Fatalf("new diagram kept state: %+v", editor.View())
	}
	if !editor.HasModel() {
		t.Fatal("new diagram dropped the model")
	}

	m = press(m, "l")
	if m.mode != modeLoad || len(m.saved) != 1 {
		t.Fatalf("load picker mode = %v, saved = %d", m.mode, len(m.saved))
	}
	m = press(m, "enter")
	if m.mode != modeBrowse || m.current != "first" {
		t.Errorf("after load mode = %v, current = %q", m.mode, m.current)
	}
	if v := editor.View(); len(v.Nodes) != 2 || len(v.Edges) != 1 {
		t.Errorf("loaded view = %+v", v)
	}
}

func TestEditorLoadWithoutSaved(t *testing.T) {
	m, _, _ := newTestEditorModel(t)
	m = press(m, "l")
	if m.mode != modeBrowse || m.status != "No saved diagrams" {
		t.Errorf("mode = %v, status = %q", m.mode, m.status)
	}
}

func TestEditorDeleteSaved(t *testing.T) {
	m, _, repo := newTestEditorModel(t)
	// The name prompt starts from the current name.
	m = press(m, "S", "a", "enter", "S", "backspace", "b", "enter", "l", "d")

	list := repo.List(context.Background())
	if len(list) != 1 || list[0].Name != "b" {
		t.Errorf("after delete List() = %+v", list)
	}
	if len(m.saved) != 1 || m.mode != modeLoad {
		t.Errorf("picker after delete: saved = %d, mode = %v", len(m.saved), m.mode)
	}

	m = press(m, "d")
	if m.mode != modeBrowse {
		t.Errorf("deleting the last diagram should close the picker, mode = %v", m.mode)
	}
}

func TestEditorConnect(t *testing.T) {
	m, editor, _ := newTestEditorModel(t)
	m = press(m, "enter", "down", "down", "enter") // A and C visible

	m = press(m, "c")
	if m.mode != modeConnect || m.connectFrom != "C" {
		t.Fatalf("connect mode = %v from %q", m.mode, m.connectFrom)
	}
	m = press(m, "up", "up", "enter")

	edges := editor.View().Edges
	if len(edges) != 1 || !edges[0].Manual || edges[0].Source != "C" || edges[0].Target != "A" {
		t.Fatalf("edges after connect = %+v", edges)
	}

	m = press(m, "down", "down", "c", "up", "up", "enter")
	if !strings.HasPrefix(m.status, "Already connected") {
		t.Errorf("repeated connect status = %q", m.status)
	}

	// B is hidden.
	m = press(m, "down", "c")
	if m.mode != modeBrowse || !m.statusErr {
		t.Errorf("connecting from a hidden class: mode = %v, status = %q", m.mode, m.status)
	}

	m = press(m, "up", "c", "esc")
	if m.mode != modeBrowse || m.connectFrom != "" {
		t.Errorf("esc should cancel connect, mode = %v", m.mode)
	}
}

func TestEditorMoveNode(t *testing.T) {
	m, editor, repo := newTestEditorModel(t)

	m = press(m, "enter", "L", "L", "J")
	want := diagram.Position{X: 200, Y: 150}
	if n, _ := editor.View().Node("A"); n.Position != want {
		t.Fatalf("A at %v, want %v", n.Position, want)
	}
	if m.status != "Moved Order to (200, 150)" {
		t.Errorf("status = %q", m.status)
	}

	m = press(m, "S", "moved", "enter", "n", "l", "enter")
	if n, _ := editor.View().Node("A"); n.Position != want {
		t.Errorf("A after save and load at %v, want %v", n.Position, want)
	}
	if list := repo.List(context.Background()); len(list) != 1 || list[0].State.Nodes[0].Position != want {
		t.Errorf("saved = %+v", list)
	}

	m = press(m, "r")
	if n, _ := editor.View().Node("A"); n.Position != want {
		t.Errorf("A after reload at %v, want %v", n.Position, want)
	}

	m = press(m, "down", "H")
	if !m.statusErr {
		t.Errorf("moving a hidden class should fail, status = %q", m.status)
	}
}

func TestEditorReload(t *testing.T) {
	m, _, _ := newTestEditorModel(t)
	m = press(m, "enter", "r")
	if m.status != "Reloaded: 1 node, 0 edges" {
		t.Errorf("reload status = %q", m.status)
	}
}

func TestEditorView(t *testing.T) {
	m, _, _ := newTestEditorModel(t)
	m = press(m, "enter", "down", "enter")

	out := m.View()
	for _, want := range []string{"Classes", "Order", "Customer", iconVisible, iconHidden, "2 nodes", "A → B", "placedBy"} {
		if !strings.Contains(out, want) {
			t.Errorf("View() missing %q", want)
		}
	}

	m = press(m, "S", "draft")
	if !strings.Contains(m.View(), "Save as: draft") {
		t.Error("View() should show the name prompt")
	}
}

func TestEditorQuit(t *testing.T) {
	m, _, _ := newTestEditorModel(t)
	_, cmd := m.Update(keyMsg("q"))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}
