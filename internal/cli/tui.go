package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/umlboard/pkg/diagram"
	"github.com/matzehuels/umlboard/pkg/errors"
	"github.com/matzehuels/umlboard/pkg/store"
	"github.com/matzehuels/umlboard/pkg/uml"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
	panelStyle        = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorDim).Padding(0, 1)
)

// =============================================================================
// EditorModel - Interactive diagram editor
// =============================================================================

type editorMode int

const (
	modeBrowse  editorMode = iota
	modeName               // typing a diagram name
	modeLoad               // picking a saved diagram
	modeConnect            // picking the target of a manual edge
)

// Messages produced by storage commands.
type (
	savedMsg struct {
		diagram store.SavedDiagram
		err     error
	}
	diagramsMsg struct {
		list []store.SavedDiagram
	}
	fetchedMsg struct {
		diagram store.SavedDiagram
		err     error
	}
	deletedMsg struct {
		id  string
		err error
	}
)

var errNoModel = errors.New(errors.ErrCodeNoModel, "Load a UML model first.")

// EditorModel is the bubbletea model for the terminal diagram editor. The
// class list on the left feeds the canvas summary on the right.
type EditorModel struct {
	ctx     context.Context
	editor  *diagram.Editor
	repo    *store.Repository
	classes []uml.Class

	mode   editorMode
	Cursor int
	Offset int
	Height int

	input     string
	saveAsNew bool
	current   string // name of the diagram last saved or loaded

	saved      []store.SavedDiagram
	loadCursor int

	connectFrom string

	status    string
	statusErr bool
}

// NewEditorModel creates an editor model over a loaded editor.
func NewEditorModel(ctx context.Context, editor *diagram.Editor, repo *store.Repository) EditorModel {
	m := EditorModel{ctx: ctx, editor: editor, repo: repo, Height: 15}
	if model := editor.Model(); model != nil {
		m.classes = model.Classes
	}
	return m
}

func (m EditorModel) Init() tea.Cmd {
	return nil
}

func (m EditorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 8
		if m.Height < 5 {
			m.Height = 5
		}
	case savedMsg:
		if msg.err != nil {
			m.setError(msg.err)
			break
		}
		m.current = msg.diagram.Name
		m.setStatus("Saved %s", msg.diagram.Name)
	case diagramsMsg:
		if len(msg.list) == 0 {
			m.setStatus("No saved diagrams")
			break
		}
		m.saved = msg.list
		m.loadCursor = 0
		m.mode = modeLoad
	case fetchedMsg:
		m.mode = modeBrowse
		if msg.err != nil {
			m.setError(msg.err)
			break
		}
		m.applyDiagram(msg.diagram)
	case deletedMsg:
		if msg.err != nil {
			m.setError(msg.err)
			break
		}
		m.removeSaved(msg.id)
		m.setStatus("Deleted %s", msg.id)
	case tea.KeyMsg:
		switch m.mode {
		case modeName:
			return m.updateName(msg)
		case modeLoad:
			return m.updateLoad(msg)
		case modeConnect:
			return m.updateConnect(msg)
		default:
			return m.updateBrowse(msg)
		}
	}
	return m, nil
}

func (m EditorModel) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "enter", "a":
		m.addSelected()
	case "n":
		m.editor.Reset()
		m.current = ""
		m.setStatus("New diagram")
	case "r":
		m.reload()
	case "H", "shift+left":
		m.moveSelected(-moveStep, 0)
	case "L", "shift+right":
		m.moveSelected(moveStep, 0)
	case "K", "shift+up":
		m.moveSelected(0, -moveStep)
	case "J", "shift+down":
		m.moveSelected(0, moveStep)
	case "c":
		class, ok := m.selected()
		if !ok {
			break
		}
		if !m.editor.Visible(class.ID) {
			m.setError(errors.New(errors.ErrCodeNodeNotVisible, "%s is not on the canvas.", displayName(class)))
			break
		}
		m.connectFrom = class.ID
		m.mode = modeConnect
		m.setStatus("Connect %s to…", displayName(class))
	case "s":
		if m.current != "" {
			return m, m.saveCmd(m.current, false)
		}
		m.prompt(false)
	case "S":
		m.prompt(true)
	case "l":
		return m, m.listCmd()
	}
	return m, nil
}

func (m EditorModel) updateName(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.mode = modeBrowse
		m.setStatus("Save cancelled")
	case tea.KeyEnter:
		m.mode = modeBrowse
		return m, m.saveCmd(strings.TrimSpace(m.input), m.saveAsNew)
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
	return m, nil
}

func (m EditorModel) updateLoad(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "q":
		m.mode = modeBrowse
	case "up", "k":
		if m.loadCursor > 0 {
			m.loadCursor--
		}
	case "down", "j":
		if m.loadCursor < len(m.saved)-1 {
			m.loadCursor++
		}
	case "enter":
		return m, m.fetchCmd(m.saved[m.loadCursor].ID)
	case "d":
		return m, m.deleteCmd(m.saved[m.loadCursor].ID)
	}
	return m, nil
}

func (m EditorModel) updateConnect(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.mode = modeBrowse
		m.connectFrom = ""
		m.setStatus("Connect cancelled")
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "enter":
		target, ok := m.selected()
		m.mode = modeBrowse
		if !ok {
			break
		}
		edge, created, err := m.editor.ConnectManually(m.connectFrom, target.ID, "")
		m.connectFrom = ""
		switch {
		case err != nil:
			m.setError(err)
		case !created:
			m.setStatus("Already connected (%s)", edge.ID)
		default:
			m.setStatus("Connected %s %s %s", edge.Source, iconArrow, edge.Target)
		}
	}
	return m, nil
}

// =============================================================================
// Actions
// =============================================================================

func (m *EditorModel) moveCursor(delta int) {
	next := m.Cursor + delta
	if next < 0 || next >= len(m.classes) {
		return
	}
	m.Cursor = next
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+m.Height {
		m.Offset = m.Cursor - m.Height + 1
	}
}

func (m EditorModel) selected() (uml.Class, bool) {
	if m.Cursor < 0 || m.Cursor >= len(m.classes) {
		return uml.Class{}, false
	}
	return m.classes[m.Cursor], true
}

func (m *EditorModel) addSelected() {
	class, ok := m.selected()
	if !ok {
		return
	}
	added, err := m.editor.AddNode(m.ctx, class.ID)
	switch {
	case err != nil:
		m.setError(err)
	case !added:
		m.setStatus("%s is already on the canvas", displayName(class))
	default:
		m.setStatus("Added %s", displayName(class))
	}
}

// moveStep is how far one key press moves a node on the canvas.
const moveStep = 50.0

func (m *EditorModel) moveSelected(dx, dy float64) {
	class, ok := m.selected()
	if !ok {
		return
	}
	node, visible := m.editor.View().Node(class.ID)
	if !visible {
		m.setError(errors.New(errors.ErrCodeNodeNotVisible, "%s is not on the canvas.", displayName(class)))
		return
	}
	pos := diagram.Position{X: node.Position.X + dx, Y: node.Position.Y + dy}
	if err := m.editor.MoveNode(class.ID, pos); err != nil {
		m.setError(err)
		return
	}
	m.setStatus("Moved %s to (%g, %g)", displayName(class), pos.X, pos.Y)
}

func (m *EditorModel) reload() {
	res, ok := m.editor.ReloadFromModel(m.ctx)
	if !ok {
		m.setError(errNoModel)
		return
	}
	m.setStatus("Reloaded: %s, %s", plural(res.Nodes, "node"), plural(res.Edges, "edge"))
	if len(res.DroppedNodes) > 0 {
		m.status += fmt.Sprintf(" (dropped %s)", strings.Join(res.DroppedNodes, ", "))
	}
}

func (m *EditorModel) applyDiagram(d store.SavedDiagram) {
	res, ok := m.editor.LoadView(d.State)
	if !ok {
		m.setError(errNoModel)
		return
	}
	m.current = d.Name
	m.setStatus("Loaded %s", d.Name)
	if res.DroppedNodes > 0 || res.DroppedEdges > 0 {
		m.status += fmt.Sprintf(" (dropped %s, %s)", plural(res.DroppedNodes, "node"), plural(res.DroppedEdges, "edge"))
	}
}

func (m *EditorModel) removeSaved(id string) {
	kept := m.saved[:0:0]
	for _, d := range m.saved {
		if d.ID != id {
			kept = append(kept, d)
		}
	}
	m.saved = kept
	if m.loadCursor >= len(m.saved) {
		m.loadCursor = len(m.saved) - 1
	}
	if len(m.saved) == 0 {
		m.loadCursor = 0
		m.mode = modeBrowse
	}
}

func (m *EditorModel) prompt(asNew bool) {
	m.mode = modeName
	m.saveAsNew = asNew
	m.input = m.current
}

func (m *EditorModel) setStatus(format string, args ...any) {
	m.status = fmt.Sprintf(format, args...)
	m.statusErr = false
}

func (m *EditorModel) setError(err error) {
	m.status = errors.UserMessage(err)
	m.statusErr = true
}

// =============================================================================
// Storage Commands
// =============================================================================

// saveCmd freezes the canvas now and writes it in the background.
func (m EditorModel) saveCmd(name string, asNew bool) tea.Cmd {
	snap := m.editor.Snapshot()
	ctx, repo := m.ctx, m.repo
	return func() tea.Msg {
		if !snap.HasModel {
			return savedMsg{err: errNoModel}
		}
		d, err := repo.Save(ctx, name, snap.View, snap.ModelTimestamp.UnixMilli(), asNew)
		return savedMsg{diagram: d, err: err}
	}
}

func (m EditorModel) listCmd() tea.Cmd {
	ctx, repo := m.ctx, m.repo
	return func() tea.Msg {
		return diagramsMsg{list: repo.List(ctx)}
	}
}

func (m EditorModel) fetchCmd(id string) tea.Cmd {
	ctx, repo := m.ctx, m.repo
	return func() tea.Msg {
		d, err := repo.Get(ctx, id)
		return fetchedMsg{diagram: d, err: err}
	}
}

func (m EditorModel) deleteCmd(id string) tea.Cmd {
	ctx, repo := m.ctx, m.repo
	return func() tea.Msg {
		return deletedMsg{id: id, err: repo.Delete(ctx, id)}
	}
}

// =============================================================================
// View
// =============================================================================

func (m EditorModel) View() string {
	var b strings.Builder

	title := "untitled"
	if m.current != "" {
		title = m.current
	}
	b.WriteString(StyleTitle.Render(appName) + " " + StyleDim.Render(title))
	b.WriteString("\n\n")

	right := m.canvasView()
	if m.mode == modeLoad {
		right = m.savedView()
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Render(m.classesView()), " ", panelStyle.Render(right)))
	b.WriteString("\n")

	if m.mode == modeName {
		label := "Save as"
		if !m.saveAsNew {
			label = "Save"
		}
		b.WriteString(StyleHighlight.Render(label+": ") + StyleValue.Render(m.input) + StyleHighlight.Render("█"))
		b.WriteString("\n")
	}

	if m.status != "" {
		style := StyleSuccess
		if m.statusErr {
			style = StyleError
		}
		b.WriteString(style.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(listDimStyle.Render(m.help()))

	return b.String()
}

func (m EditorModel) classesView() string {
	var b strings.Builder
	b.WriteString(StyleTitle.Render("Classes"))
	b.WriteString("\n")
	if len(m.classes) == 0 {
		b.WriteString(listDimStyle.Render("no classes"))
		return b.String()
	}

	end := min(m.Offset+m.Height, len(m.classes))
	for i := m.Offset; i < end; i++ {
		class := m.classes[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		marker := iconHidden
		if m.editor.Visible(class.ID) {
			marker = iconVisible
		}
		line := fmt.Sprintf("%s%s %s", cursor, marker, displayName(class))

		switch {
		case class.ID == m.connectFrom:
			b.WriteString(StyleWarning.Render(line))
		case i == m.Cursor:
			b.WriteString(listSelectedStyle.Render(line))
		default:
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}
	b.WriteString(listDimStyle.Render(fmt.Sprintf("[%d/%d]", m.Cursor+1, len(m.classes))))
	return b.String()
}

func (m EditorModel) canvasView() string {
	view := m.editor.View()

	var b strings.Builder
	b.WriteString(StyleTitle.Render("Canvas"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(plural(len(view.Nodes), "node") + " · " + plural(len(view.Edges), "edge")))
	b.WriteString("\n")

	for i, e := range view.Edges {
		if i >= m.Height {
			b.WriteString(listDimStyle.Render(fmt.Sprintf("… %d more", len(view.Edges)-i)))
			break
		}
		line := e.Source + " " + iconArrow + " " + e.Target
		if e.Label != "" {
			line += "  " + e.Label
		}
		if e.Manual {
			line += listDimStyle.Render("  (manual)")
		}
		b.WriteString(listNormalStyle.Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

func (m EditorModel) savedView() string {
	var b strings.Builder
	b.WriteString(StyleTitle.Render("Saved diagrams"))
	b.WriteString("\n")
	for i, d := range m.saved {
		cursor := "  "
		if i == m.loadCursor {
			cursor = "▸ "
		}
		line := fmt.Sprintf("%s%-20s %s", cursor, d.Name, listDimStyle.Render(plural(len(d.State.Nodes), "node")))
		if i == m.loadCursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m EditorModel) help() string {
	switch m.mode {
	case modeName:
		return "⏎ save  esc cancel"
	case modeLoad:
		return "↑/↓ navigate  ⏎ load  d delete  esc back"
	case modeConnect:
		return "↑/↓ pick target  ⏎ connect  esc cancel"
	default:
		return "↑/↓ navigate  ⏎ add  HJKL move  c connect  n new  s save  S save as  l load  r reload  q quit"
	}
}

func displayName(c uml.Class) string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}
