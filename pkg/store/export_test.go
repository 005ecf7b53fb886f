package store

import (
	"reflect"
	"strings"
	"testing"

	"github.com/matzehuels/umlboard/pkg/diagram"
	"github.com/matzehuels/umlboard/pkg/errors"
)

func TestExportImportRoundTrip(t *testing.T) {
	tests := []SavedDiagram{
		{ID: "diagram_1", Name: "full", State: sampleView(), ModelTimestamp: 1700000000000},
		{ID: "diagram_2", Name: "empty slices", State: diagram.View{Nodes: []diagram.Node{}, Edges: []diagram.Edge{}}},
		{ID: "diagram_3", Name: "zero view", State: diagram.View{}, ModelTimestamp: -1},
	}

	for _, d := range tests {
		t.Run(d.Name, func(t *testing.T) {
			text, err := ExportToText(d)
			if err != nil {
				t.Fatalf("ExportToText() error = %v", err)
			}
			got, err := ImportFromText(text)
			if err != nil {
				t.Fatalf("ImportFromText() error = %v", err)
			}
			if !reflect.DeepEqual(got, d) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, d)
			}
		})
	}
}

func TestExportToTextFormat(t *testing.T) {
	text, err := ExportToText(SavedDiagram{ID: "d", Name: "n", State: diagram.View{Nodes: []diagram.Node{}, Edges: []diagram.Edge{}}, ModelTimestamp: 3})
	if err != nil {
		t.Fatal(err)
	}
	want := `{
  "id": "d",
  "name": "n",
  "state": {
    "nodes": [],
    "edges": []
  },
  "modelTimestamp": 3
}`
	if text != want {
		t.Errorf("ExportToText() =\n%s\nwant\n%s", text, want)
	}
}

func TestExportedNodeShape(t *testing.T) {
	text, err := ExportToText(SavedDiagram{ID: "d", Name: "n", State: sampleView()})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		`"type": "classNode"`,
		`"classData": {`,
		`"label": "Order"`,
		`"type": "smoothstep"`,
		`"markerEnd": {`,
		`"strokeWidth": 2`,
		`"animated": false`,
		`"manual": true`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("export missing %s", want)
		}
	}
}

func TestExportFilename(t *testing.T) {
	if got := ExportFilename(SavedDiagram{Name: "My Diagram"}); got != "My Diagram.json" {
		t.Errorf("ExportFilename() = %q", got)
	}
}

func TestImportFromTextRejects(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"not json", `{"id": `},
		{"array", `[]`},
		{"missing id", `{"name": "n", "state": {"nodes": [], "edges": []}}`},
		{"empty id", `{"id": "", "name": "n", "state": {}}`},
		{"missing name", `{"id": "d", "state": {}}`},
		{"missing state", `{"id": "d", "name": "n"}`},
		{"null state", `{"id": "d", "name": "n", "state": null}`},
		{"wrong state type", `{"id": "d", "name": "n", "state": "x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ImportFromText(tt.text)
			if !errors.IsFormat(err) {
				t.Errorf("ImportFromText() error = %v, want INVALID_FORMAT", err)
			}
		})
	}
}

func TestImportFromTextMinimal(t *testing.T) {
	d, err := ImportFromText(`{"id": "d", "name": "n", "state": {"nodes": [], "edges": []}}`)
	if err != nil {
		t.Fatalf("ImportFromText() error = %v", err)
	}
	if d.ModelTimestamp != 0 || len(d.State.Nodes) != 0 {
		t.Errorf("ImportFromText() = %+v", d)
	}
}
