package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/umlboard/pkg/cache"
	"github.com/matzehuels/umlboard/pkg/diagram"
	"github.com/matzehuels/umlboard/pkg/errors"
	"github.com/matzehuels/umlboard/pkg/kv"
	"github.com/matzehuels/umlboard/pkg/store"
	"github.com/matzehuels/umlboard/pkg/uml"
)

const modelJSON = `{"umlModel": {
  "classes": [
    {"id": "A", "name": "Order", "owner": "sales", "attributes": [{"id": "A1", "name": "total", "datatype": "Decimal"}]},
    {"id": "B", "name": "Customer", "attributes": []}
  ],
  "relations": [
    {"id": "R1", "name": "placedBy", "type": "association", "source": "A", "target": "B"}
  ]
}}`

const reducedModelJSON = `{"umlModel": {
  "classes": [{"id": "A", "name": "Purchase", "attributes": []}],
  "relations": []
}}`

type testEnv struct {
	srv    *httptest.Server
	editor *diagram.Editor
	repo   *store.Repository
	cache  *cache.MemoryCache
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := log.New(io.Discard)

	loader := uml.NewLoader(logger)
	ts := time.UnixMilli(1700000000000)
	loader.Now = func() time.Time { return ts }

	editor := diagram.NewEditor(logger)
	repo := store.NewRepository(kv.NewMemoryStore(), logger)

	rc := cache.NewMemoryCache(0)

	s := New(editor, loader, repo, logger, Options{MaxUploadBytes: 4096, RenderCache: rc})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, editor: editor, repo: repo, cache: rc}
}

func (e *testEnv) do(t *testing.T, method, path, contentType, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) loadModel(t *testing.T) {
	t.Helper()
	if resp := e.do(t, http.MethodPost, "/api/model", "application/json", modelJSON); resp.StatusCode != http.StatusOK {
		t.Fatalf("load model status = %d", resp.StatusCode)
	}
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expectError(t *testing.T, resp *http.Response, status int, code errors.Code) {
	t.Helper()
	if resp.StatusCode != status {
		t.Errorf("status = %d, want %d", resp.StatusCode, status)
	}
	body := decode[errorResponse](t, resp)
	if body.Code != code {
		t.Errorf("code = %q, want %q (message %q)", body.Code, code, body.Message)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/healthz", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[map[string]string](t, resp)
	if body["status"] != "ok" || body["version"] == "" {
		t.Errorf("healthz = %v", body)
	}
}

func TestLoadModel(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/model?filename=shop.json", "application/json; charset=utf-8", modelJSON)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[loadResponse](t, resp)
	if got.Source != "shop.json" || got.Classes != 2 || got.Relations != 1 || got.ModelTimestamp != 1700000000000 {
		t.Errorf("load response = %+v", got)
	}

	model := decode[modelResponse](t, env.do(t, http.MethodGet, "/api/model", "", ""))
	if model.Model == nil || len(model.Model.Classes) != 2 || model.Model.Classes[0].Attributes[0].Multiplicity != "1" {
		t.Errorf("GET /api/model = %+v", model)
	}
}

func TestLoadModelRejects(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
		code        errors.Code
	}{
		{"wrong content type", "text/plain", modelJSON, http.StatusBadRequest, errors.ErrCodeInvalidFormat},
		{"no content type", "", modelJSON, http.StatusBadRequest, errors.ErrCodeInvalidFormat},
		{"malformed json", "application/json", `{"umlModel":`, http.StatusBadRequest, errors.ErrCodeInvalidFormat},
		{"missing relations", "application/json", `{"umlModel": {"classes": []}}`, http.StatusBadRequest, errors.ErrCodeInvalidFormat},
		{"trailing data", "application/json", `{"umlModel": {"classes": [], "relations": []}} extra`, http.StatusBadRequest, errors.ErrCodeInvalidFormat},
		{"too large", "application/json", `{"umlModel": {"classes": [], "relations": [], "pad": "` + strings.Repeat("x", 5000) + `"}}`, http.StatusRequestEntityTooLarge, errors.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.loadModel(t)
			env.do(t, http.MethodPost, "/api/view/nodes", "application/json", `{"classId": "A"}`)

			resp := env.do(t, http.MethodPost, "/api/model", tt.contentType, tt.body)
			expectError(t, resp, tt.status, tt.code)

			if len(env.editor.Model().Classes) != 2 || !env.editor.Visible("A") {
				t.Error("failed import changed the editor state")
			}
		})
	}
}

func TestNoModelPreconditions(t *testing.T) {
	env := newTestEnv(t)

	expectError(t, env.do(t, http.MethodGet, "/api/model", "", ""), http.StatusConflict, errors.ErrCodeNoModel)
	expectError(t, env.do(t, http.MethodPost, "/api/model/reload", "", ""), http.StatusConflict, errors.ErrCodeNoModel)
	expectError(t, env.do(t, http.MethodPost, "/api/diagrams", "application/json", `{"name": "x"}`), http.StatusConflict, errors.ErrCodeNoModel)

	resp := env.do(t, http.MethodPost, "/api/view/nodes", "application/json", `{"classId": "A"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("add node without model status = %d", resp.StatusCode)
	}
	if got := decode[addNodeResponse](t, resp); got.Added || len(got.View.Nodes) != 0 {
		t.Errorf("add node without model = %+v", got)
	}
}

func TestEditingFlow(t *testing.T) {
	env := newTestEnv(t)
	env.loadModel(t)

	// Add A then B: the relation edge appears once both ends are visible.
	first := decode[addNodeResponse](t, env.do(t, http.MethodPost, "/api/view/nodes", "application/json", `{"classId": "A"}`))
	if !first.Added || len(first.View.Nodes) != 1 || len(first.View.Edges) != 0 {
		t.Fatalf("add A = %+v", first)
	}
	second := decode[addNodeResponse](t, env.do(t, http.MethodPost, "/api/view/nodes", "application/json", `{"classId": "B"}`))
	if len(second.View.Nodes) != 2 || len(second.View.Edges) != 1 || second.View.Edges[0].ID != "R1" {
		t.Fatalf("add B = %+v", second)
	}
	if second.View.Nodes[1].Position != (diagram.Position{X: 400, Y: 100}) {
		t.Errorf("B position = %+v", second.View.Nodes[1].Position)
	}

	again := decode[addNodeResponse](t, env.do(t, http.MethodPost, "/api/view/nodes", "application/json", `{"classId": "A"}`))
	if again.Added || len(again.View.Nodes) != 2 {
		t.Errorf("re-adding A = %+v", again)
	}

	expectError(t, env.do(t, http.MethodPost, "/api/view/nodes", "application/json", `{"classId": "Z"}`), http.StatusNotFound, errors.ErrCodeClassNotFound)
	expectError(t, env.do(t, http.MethodPost, "/api/view/nodes", "application/json", `{}`), http.StatusBadRequest, errors.ErrCodeInvalidInput)
	expectError(t, env.do(t, http.MethodPost, "/api/view/nodes", "application/json", `nope`), http.StatusBadRequest, errors.ErrCodeInvalidInput)

	// Manual edges.
	resp := env.do(t, http.MethodPost, "/api/view/edges", "application/json", `{"source": "B", "target": "A", "label": "refers"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("connect status = %d", resp.StatusCode)
	}
	edge := decode[diagram.Edge](t, resp)
	if !edge.Manual || edge.ID != diagram.ManualEdgeID("B", "A") || edge.Label != "refers" {
		t.Errorf("manual edge = %+v", edge)
	}
	if resp := env.do(t, http.MethodPost, "/api/view/edges", "application/json", `{"source": "B", "target": "A"}`); resp.StatusCode != http.StatusOK {
		t.Errorf("repeated connect status = %d, want 200", resp.StatusCode)
	}
	expectError(t, env.do(t, http.MethodPost, "/api/view/edges", "application/json", `{"source": "B", "target": "Q"}`), http.StatusNotFound, errors.ErrCodeNodeNotVisible)

	view := decode[diagram.View](t, env.do(t, http.MethodGet, "/api/view", "", ""))
	if len(view.Nodes) != 2 || len(view.Edges) != 2 {
		t.Errorf("GET /api/view = %+v", view)
	}

	reset := decode[diagram.View](t, env.do(t, http.MethodDelete, "/api/view", "", ""))
	if reset.Nodes == nil || len(reset.Nodes) != 0 || len(reset.Edges) != 0 {
		t.Errorf("DELETE /api/view = %+v", reset)
	}
	if !env.editor.HasModel() {
		t.Error("reset dropped the model")
	}
}

type trackingBody struct {
	r        io.Reader
	mu       sync.Mutex
	returned bool
	late     int
}

func (b *trackingBody) Read(p []byte) (int, error) {
	b.mu.Lock()
	if b.returned {
		b.late++
	}
	b.mu.Unlock()
	return b.r.Read(p)
}

func (b *trackingBody) Close() error { return nil }

func TestLoadModelReadsBodyBeforeReturning(t *testing.T) {
	logger := log.New(io.Discard)
	s := New(diagram.NewEditor(logger), uml.NewLoader(logger), store.NewRepository(kv.NewMemoryStore(), logger), logger, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	body := &trackingBody{r: strings.NewReader(modelJSON)}
	req := httptest.NewRequest(http.MethodPost, "/api/model", body).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)
	body.mu.Lock()
	body.returned = true
	body.mu.Unlock()

	if rec.Code != http.StatusOK && rec.Code != http.StatusConflict {
		t.Errorf("status = %d", rec.Code)
	}
	time.Sleep(20 * time.Millisecond)
	body.mu.Lock()
	defer body.mu.Unlock()
	if body.late != 0 {
		t.Errorf("request body read %d times after the handler returned", body.late)
	}
}

func TestMoveNodes(t *testing.T) {
	env := newTestEnv(t)
	env.loadModel(t)
	env.do(t, http.MethodPost, "/api/view/nodes", "application/json", `{"classId": "A"}`)
	env.do(t, http.MethodPost, "/api/view/nodes", "application/json", `{"classId": "B"}`)

	resp := env.do(t, http.MethodPatch, "/api/view/nodes/A", "application/json", `{"position": {"x": 15, "y": -30}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PATCH status = %d", resp.StatusCode)
	}
	if node := decode[diagram.Node](t, resp); node.ID != "A" || node.Position != (diagram.Position{X: 15, Y: -30}) {
		t.Errorf("moved node = %+v", node)
	}

	resp = env.do(t, http.MethodPut, "/api/view/positions", "application/json",
		`{"positions": {"A": {"x": 1, "y": 2}, "B": {"x": 700, "y": 450}}}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT status = %d", resp.StatusCode)
	}
	view := decode[diagram.View](t, resp)
	if view.Nodes[0].Position != (diagram.Position{X: 1, Y: 2}) || view.Nodes[1].Position != (diagram.Position{X: 700, Y: 450}) {
		t.Errorf("positions = %+v", view.Nodes)
	}

	expectError(t, env.do(t, http.MethodPatch, "/api/view/nodes/Q", "application/json", `{"position": {"x": 1, "y": 1}}`),
		http.StatusNotFound, errors.ErrCodeNodeNotVisible)
	expectError(t, env.do(t, http.MethodPatch, "/api/view/nodes/A", "application/json", `{}`),
		http.StatusBadRequest, errors.ErrCodeInvalidInput)
	expectError(t, env.do(t, http.MethodPut, "/api/view/positions", "application/json", `{"positions": {"A": {"x": 9, "y": 9}, "Q": {"x": 1, "y": 1}}}`),
		http.StatusNotFound, errors.ErrCodeNodeNotVisible)
	if n, _ := env.editor.View().Node("A"); n.Position != (diagram.Position{X: 1, Y: 2}) {
		t.Errorf("rejected batch moved A to %v", n.Position)
	}

	// The moved layout survives save, load and reimport.
	saved := decode[store.SavedDiagram](t, env.do(t, http.MethodPost, "/api/diagrams", "application/json", `{"name": "moved"}`))
	env.do(t, http.MethodDelete, "/api/view", "", "")
	loaded := decode[loadDiagramResponse](t, env.do(t, http.MethodPost, "/api/diagrams/"+saved.ID+"/load", "", ""))
	if loaded.View.Nodes[1].Position != (diagram.Position{X: 700, Y: 450}) {
		t.Errorf("loaded positions = %+v", loaded.View.Nodes)
	}

	env.do(t, http.MethodPost, "/api/model?mode=reimport", "application/json", modelJSON)
	if n, _ := env.editor.View().Node("B"); n.Position != (diagram.Position{X: 700, Y: 450}) {
		t.Errorf("B after reimport at %v", n.Position)
	}
}

func TestConnectDistinctManualEdges(t *testing.T) {
	env := newTestEnv(t)
	model := `{"umlModel": {"classes": [{"id": "a-b"}, {"id": "c"}, {"id": "a"}, {"id": "b-c"}], "relations": []}}`
	if resp := env.do(t, http.MethodPost, "/api/model", "application/json", model); resp.StatusCode != http.StatusOK {
		t.Fatalf("load status = %d", resp.StatusCode)
	}
	for _, id := range []string{"a-b", "c", "a", "b-c"} {
		env.do(t, http.MethodPost, "/api/view/nodes", "application/json", `{"classId": "`+id+`"}`)
	}

	first := env.do(t, http.MethodPost, "/api/view/edges", "application/json", `{"source": "a-b", "target": "c"}`)
	second := env.do(t, http.MethodPost, "/api/view/edges", "application/json", `{"source": "a", "target": "b-c"}`)
	if first.StatusCode != http.StatusCreated || second.StatusCode != http.StatusCreated {
		t.Fatalf("connect status = %d, %d", first.StatusCode, second.StatusCode)
	}
	if a, b := decode[diagram.Edge](t, first), decode[diagram.Edge](t, second); a.ID == b.ID {
		t.Errorf("both edges got id %q", a.ID)
	}
	if view := env.editor.View(); len(view.Edges) != 2 {
		t.Errorf("edges = %+v", view.Edges)
	}
}

func TestViewSVG(t *testing.T) {
	env := newTestEnv(t)
	env.loadModel(t)
	env.do(t, http.MethodPost, "/api/view/nodes", "application/json", `{"classId": "A"}`)

	var bodies []string
	for i := 0; i < 2; i++ {
		resp := env.do(t, http.MethodGet, "/api/view/svg", "", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
			t.Errorf("Content-Type = %q", ct)
		}
		data, _ := io.ReadAll(resp.Body)
		bodies = append(bodies, string(data))
	}
	if !strings.Contains(bodies[0], "<svg") || bodies[0] != bodies[1] {
		t.Errorf("svg bodies differ or are not SVG: %q", bodies[0])
	}
	if env.cache.Len() != 1 {
		t.Errorf("render cache entries = %d, want 1", env.cache.Len())
	}

	env.do(t, http.MethodGet, "/api/view/svg?detailed=true", "", "")
	if env.cache.Len() != 2 {
		t.Errorf("detailed rendering should be cached separately, entries = %d", env.cache.Len())
	}
}

func TestReimportKeepsLayout(t *testing.T) {
	env := newTestEnv(t)
	env.loadModel(t)
	env.do(t, http.MethodPost, "/api/view/nodes", "application/json", `{"classId": "A"}`)
	env.do(t, http.MethodPost, "/api/view/nodes", "application/json", `{"classId": "B"}`)

	resp := env.do(t, http.MethodPost, "/api/model?mode=reimport", "application/json", reducedModelJSON)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reimport status = %d", resp.StatusCode)
	}
	got := decode[loadResponse](t, resp)
	if got.Reload == nil || got.Reload.Nodes != 1 || len(got.Reload.DroppedNodes) != 1 || got.Reload.DroppedNodes[0] != "B" {
		t.Errorf("reimport = %+v", got)
	}

	view := env.editor.View()
	if len(view.Nodes) != 1 || view.Nodes[0].Data.Label != "Purchase" || view.Nodes[0].Position != diagram.DefaultPosition {
		t.Errorf("view after reimport = %+v", view)
	}
	if len(view.Edges) != 0 {
		t.Errorf("dangling edges after reimport: %+v", view.Edges)
	}
}

func TestPlainImportClearsCanvas(t *testing.T) {
	env := newTestEnv(t)
	env.loadModel(t)
	env.do(t, http.MethodPost, "/api/view/nodes", "application/json", `{"classId": "A"}`)

	env.loadModel(t)
	if v := env.editor.View(); len(v.Nodes) != 0 {
		t.Errorf("fresh import kept %d nodes", len(v.Nodes))
	}
}

func TestReload(t *testing.T) {
	env := newTestEnv(t)
	env.loadModel(t)
	env.do(t, http.MethodPost, "/api/view/nodes", "application/json", `{"classId": "A"}`)

	resp := env.do(t, http.MethodPost, "/api/model/reload", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reload status = %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["nodes"] != float64(1) || body["modelTimestamp"] == nil {
		t.Errorf("reload = %v", body)
	}
}

func TestSavedDiagramFlow(t *testing.T) {
	env := newTestEnv(t)
	env.loadModel(t)
	env.do(t, http.MethodPost, "/api/view/nodes", "application/json", `{"classId": "A"}`)
	env.do(t, http.MethodPost, "/api/view/nodes", "application/json", `{"classId": "B"}`)

	resp := env.do(t, http.MethodPost, "/api/diagrams", "application/json", `{"name": "overview"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d", resp.StatusCode)
	}
	saved := decode[store.SavedDiagram](t, resp)
	if saved.ModelTimestamp != 1700000000000 || len(saved.State.Nodes) != 2 || !strings.HasPrefix(saved.ID, "diagram_") {
		t.Fatalf("saved = %+v", saved)
	}

	expectError(t, env.do(t, http.MethodPost, "/api/diagrams", "application/json", `{"name": "  "}`), http.StatusBadRequest, errors.ErrCodeInvalidName)

	list := decode[[]store.SavedDiagram](t, env.do(t, http.MethodGet, "/api/diagrams", "", ""))
	if len(list) != 1 || list[0].ID != saved.ID {
		t.Fatalf("list = %+v", list)
	}

	// Export carries a download filename.
	exp := env.do(t, http.MethodGet, "/api/diagrams/"+saved.ID+"/export", "", "")
	if cd := exp.Header.Get("Content-Disposition"); cd != `attachment; filename=overview.json` {
		t.Errorf("Content-Disposition = %q", cd)
	}
	exported, _ := io.ReadAll(exp.Body)

	// Clear the canvas and load the saved diagram back.
	env.do(t, http.MethodDelete, "/api/view", "", "")
	loadResp := env.do(t, http.MethodPost, "/api/diagrams/"+saved.ID+"/load", "", "")
	if loadResp.StatusCode != http.StatusOK {
		t.Fatalf("load diagram status = %d", loadResp.StatusCode)
	}
	loaded := decode[loadDiagramResponse](t, loadResp)
	if loaded.Stale || loaded.Nodes != 2 || len(loaded.View.Edges) != 1 {
		t.Errorf("load diagram = %+v", loaded)
	}

	// Delete, then import the exported text back.
	if resp := env.do(t, http.MethodDelete, "/api/diagrams/"+saved.ID, "", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	expectError(t, env.do(t, http.MethodGet, "/api/diagrams/"+saved.ID, "", ""), http.StatusNotFound, errors.ErrCodeDiagramNotFound)

	imp := env.do(t, http.MethodPost, "/api/diagrams/import", "application/json", string(exported))
	if imp.StatusCode != http.StatusCreated {
		t.Fatalf("import status = %d", imp.StatusCode)
	}
	got := decode[store.SavedDiagram](t, env.do(t, http.MethodGet, "/api/diagrams/"+saved.ID, "", ""))
	if got.Name != "overview" || len(got.State.Nodes) != 2 {
		t.Errorf("imported diagram = %+v", got)
	}
}

func TestImportRejectsIncompleteRecord(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/diagrams/import", "application/json", `{"id": "d", "name": "n"}`)
	expectError(t, resp, http.StatusBadRequest, errors.ErrCodeInvalidFormat)
	if list := env.repo.List(t.Context()); len(list) != 0 {
		t.Errorf("failed import stored %d diagrams", len(list))
	}
}

func TestLoadDiagramWithoutModel(t *testing.T) {
	env := newTestEnv(t)
	if err := env.repo.Add(t.Context(), store.SavedDiagram{ID: "diagram_1", Name: "x", State: diagram.View{}}); err != nil {
		t.Fatal(err)
	}
	expectError(t, env.do(t, http.MethodPost, "/api/diagrams/diagram_1/load", "", ""), http.StatusConflict, errors.ErrCodeNoModel)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New(errors.ErrCodeInvalidFormat, "x"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeDiagramNotFound, "x"), http.StatusNotFound},
		{errors.New(errors.ErrCodeCanceled, "x"), http.StatusConflict},
		{errors.New(errors.ErrCodeStorage, "x"), http.StatusInternalServerError},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
		{errors.Wrap(errors.ErrCodeInvalidFormat, &http.MaxBytesError{Limit: 1}, "x"), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
