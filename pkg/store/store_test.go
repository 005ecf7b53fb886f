package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/umlboard/pkg/diagram"
	umlerrors "github.com/matzehuels/umlboard/pkg/errors"
	"github.com/matzehuels/umlboard/pkg/kv"
	"github.com/matzehuels/umlboard/pkg/uml"
)

func newTestRepo(s kv.Store) *Repository {
	r := NewRepository(s, log.New(io.Discard))
	n := 0
	r.NewID = func() string {
		n++
		return fmt.Sprintf("diagram_%d", n)
	}
	return r
}

func sampleView() diagram.View {
	format := "list"
	return diagram.View{
		Nodes: []diagram.Node{
			diagram.NewNode(uml.Class{ID: "A", Name: "Order", Owner: "sales", Attributes: []uml.Attribute{
				{ID: "A1", Name: "lines", Multiplicity: "0..*", Datatype: "Line", Format: &format, Example: "x"},
			}}, diagram.Position{X: 100, Y: 100}),
			diagram.NewNode(uml.Class{ID: "B", Name: "Customer", Attributes: []uml.Attribute{}}, diagram.Position{X: 400.5, Y: -20}),
		},
		Edges: []diagram.Edge{
			diagram.RelationEdge(uml.Relation{ID: "R1", Name: "placedBy", Type: "association", Source: "A", Target: "B"}, diagram.DefaultStyles()),
			diagram.RelationEdge(uml.Relation{ID: "R2", Name: "is", Type: uml.KindSpecialization, Source: "B", Target: "A"}, diagram.DefaultStyles()),
			{ID: diagram.ManualEdgeID("A", "A"), Source: "A", Target: "A", EdgeStyle: diagram.ManualEdgeStyle, Manual: true},
		},
	}
}

func TestSaveAppendsAndOverwrites(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(kv.NewMemoryStore())

	first, err := r.Save(ctx, "overview", sampleView(), 1700000000000, false)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if first.ID != "diagram_1" || first.ModelTimestamp != 1700000000000 {
		t.Errorf("Save() = %+v", first)
	}

	// Save with the same name overwrites in place and keeps the id.
	again, err := r.Save(ctx, "overview", diagram.View{}, 1700000000001, false)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != first.ID {
		t.Errorf("overwrite changed id: %q -> %q", first.ID, again.ID)
	}
	list := r.List(ctx)
	if len(list) != 1 || list[0].ModelTimestamp != 1700000000001 || len(list[0].State.Nodes) != 0 {
		t.Fatalf("after overwrite List() = %+v", list)
	}

	// Save As always appends, even with a duplicate name.
	dup, err := r.Save(ctx, "overview", sampleView(), 5, true)
	if err != nil {
		t.Fatal(err)
	}
	if dup.ID == first.ID {
		t.Error("Save As reused an existing id")
	}
	if list := r.List(ctx); len(list) != 2 || list[1].ID != dup.ID {
		t.Errorf("after Save As List() = %+v", list)
	}

	other, _ := r.Save(ctx, "details", diagram.View{}, 0, false)
	if list := r.List(ctx); len(list) != 3 || list[2].ID != other.ID {
		t.Errorf("new name should append, List() has %d records", len(list))
	}
}

func TestSaveIsFrozenSnapshot(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(kv.NewMemoryStore())

	view := sampleView()
	saved, err := r.Save(ctx, "frozen", view, 1, false)
	if err != nil {
		t.Fatal(err)
	}

	view.Nodes[0].Position.X = -1
	view.Nodes[0].Data.ClassData.Attributes[0].Name = "changed"
	*view.Edges[0].MarkerEnd = diagram.Marker{Type: "none"}

	got, err := r.Get(ctx, saved.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.State, sampleView()) {
		t.Errorf("stored state changed after mutating the live view:\n%+v", got.State)
	}
	if saved.State.Nodes[0].Position.X != 100 {
		t.Error("returned record aliases the live view")
	}
}

func TestSaveRejectsEmptyName(t *testing.T) {
	r := newTestRepo(kv.NewMemoryStore())
	for _, name := range []string{"", "   ", "a/b"} {
		if _, err := r.Save(context.Background(), name, diagram.View{}, 0, false); !umlerrors.Is(err, umlerrors.ErrCodeInvalidName) {
			t.Errorf("Save(%q) error = %v, want INVALID_NAME", name, err)
		}
	}
}

// failingStore fails reads and/or writes.
type failingStore struct {
	kv.Store
	failGet, failSet bool
}

var errQuota = errors.New("quota exceeded")

func (s *failingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.failGet {
		return nil, false, errQuota
	}
	return s.Store.Get(ctx, key)
}

func (s *failingStore) Set(ctx context.Context, key string, data []byte) error {
	if s.failSet {
		return errQuota
	}
	return s.Store.Set(ctx, key, data)
}

func TestSaveStorageErrors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		store *failingStore
	}{
		{"write fails", &failingStore{Store: kv.NewMemoryStore(), failSet: true}},
		{"read fails", &failingStore{Store: kv.NewMemoryStore(), failGet: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRepo(tt.store)
			_, err := r.Save(ctx, "d", diagram.View{}, 0, false)
			if !umlerrors.IsStorage(err) {
				t.Fatalf("Save() error = %v, want STORAGE_ERROR", err)
			}
			if !errors.Is(err, errQuota) {
				t.Errorf("cause not preserved: %v", err)
			}
		})
	}
}

func TestSaveCorruptStorageIsError(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemoryStore()
	mem.Set(ctx, DefaultKey, []byte("{not json"))

	r := newTestRepo(mem)
	if _, err := r.Save(ctx, "d", diagram.View{}, 0, false); !umlerrors.IsStorage(err) {
		t.Errorf("Save() over corrupt storage error = %v, want STORAGE_ERROR", err)
	}
	data, _, _ := mem.Get(ctx, DefaultKey)
	if string(data) != "{not json" {
		t.Error("failed save must not overwrite existing data")
	}
}

func TestListSwallowsReadErrors(t *testing.T) {
	ctx := context.Background()

	r := newTestRepo(&failingStore{Store: kv.NewMemoryStore(), failGet: true})
	if got := r.List(ctx); got == nil || len(got) != 0 {
		t.Errorf("List() with failing store = %#v, want empty", got)
	}

	mem := kv.NewMemoryStore()
	mem.Set(ctx, DefaultKey, []byte("garbage"))
	if got := newTestRepo(mem).List(ctx); len(got) != 0 {
		t.Errorf("List() with corrupt data = %+v, want empty", got)
	}

	if got := newTestRepo(kv.NewMemoryStore()).List(ctx); got == nil || len(got) != 0 {
		t.Errorf("List() on empty storage = %#v", got)
	}
}

func TestGetAndDelete(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(kv.NewMemoryStore())

	a, _ := r.Save(ctx, "a", sampleView(), 1, false)
	b, _ := r.Save(ctx, "b", diagram.View{}, 2, false)

	got, err := r.Get(ctx, b.ID)
	if err != nil || got.Name != "b" {
		t.Errorf("Get(%s) = %+v, %v", b.ID, got, err)
	}
	if _, err := r.Get(ctx, "nope"); !umlerrors.IsNotFound(err) {
		t.Errorf("Get(missing) error = %v, want not found", err)
	}

	if err := r.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if list := r.List(ctx); len(list) != 1 || list[0].ID != b.ID {
		t.Errorf("after Delete List() = %+v", list)
	}
	if err := r.Delete(ctx, a.ID); !umlerrors.Is(err, umlerrors.ErrCodeDiagramNotFound) {
		t.Errorf("second Delete() error = %v, want DIAGRAM_NOT_FOUND", err)
	}
}

func TestAdd(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(kv.NewMemoryStore())

	d := SavedDiagram{ID: "diagram_x", Name: "imported", State: sampleView(), ModelTimestamp: 9}
	if err := r.Add(ctx, d); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	d.Name = "renamed"
	if err := r.Add(ctx, d); err != nil {
		t.Fatal(err)
	}

	list := r.List(ctx)
	if len(list) != 1 || list[0].Name != "renamed" {
		t.Errorf("Add with existing id should replace, List() = %+v", list)
	}
	if err := r.Add(ctx, SavedDiagram{Name: "no id"}); !umlerrors.IsFormat(err) {
		t.Errorf("Add(no id) error = %v, want INVALID_FORMAT", err)
	}
}

func TestPersistsAcrossRepositories(t *testing.T) {
	ctx := context.Background()
	s, err := kv.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	saved, err := newTestRepo(s).Save(ctx, "disk", sampleView(), 42, false)
	if err != nil {
		t.Fatal(err)
	}

	got, err := NewRepository(s, nil).Get(ctx, saved.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, saved) {
		t.Errorf("reloaded record differs:\n got %+v\nwant %+v", got, saved)
	}
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	if !strings.HasPrefix(a, "diagram_") || a == b {
		t.Errorf("NewID() = %q, %q", a, b)
	}
	if a >= b {
		t.Errorf("ids should be time ordered: %q >= %q", a, b)
	}
}
