package server

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/umlboard/pkg/buildinfo"
	"github.com/matzehuels/umlboard/pkg/diagram"
	"github.com/matzehuels/umlboard/pkg/errors"
	"github.com/matzehuels/umlboard/pkg/render"
	"github.com/matzehuels/umlboard/pkg/store"
	"github.com/matzehuels/umlboard/pkg/uml"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Status string `json:"status"`
		buildinfo.Info
	}{"ok", buildinfo.Get()})
}

// =============================================================================
// Model
// =============================================================================

type modelResponse struct {
	Model          *uml.Model `json:"model"`
	ModelTimestamp int64      `json:"modelTimestamp"`
}

type loadResponse struct {
	Source         string                `json:"source"`
	Classes        int                   `json:"classes"`
	Relations      int                   `json:"relations"`
	ModelTimestamp int64                 `json:"modelTimestamp"`
	Reload         *diagram.ReloadResult `json:"reload,omitempty"`
}

func (s *Server) getModel(w http.ResponseWriter, r *http.Request) {
	m := s.editor.Model()
	if m == nil {
		s.writeError(w, r, errNoModel)
		return
	}
	writeJSON(w, http.StatusOK, modelResponse{Model: m, ModelTimestamp: s.editor.ModelTimestamp().UnixMilli()})
}

// loadModel imports the request body. The declared Content-Type must be
// JSON. With mode=reimport the canvas is rebuilt from the new model and keeps
// its layout; otherwise the canvas is cleared.
func (s *Server) loadModel(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("filename")
	if name == "" {
		name = "upload.json"
	}
	reimport := r.URL.Query().Get("mode") == "reimport"
	contentType := r.Header.Get("Content-Type")

	// The body is buffered so a superseded load never reads it after the
	// handler has returned.
	var data []byte
	if uml.CheckContentType(contentType) == nil {
		var err error
		data, err = io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes))
		if err != nil {
			s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidFormat, err, "Failed to read file."))
			return
		}
	}
	src := uml.ReaderSource(name, contentType, bytes.NewReader(data))

	var reload *diagram.ReloadResult
	loaded, err := s.loader.Load(r.Context(), src, func(l uml.Loaded) {
		if reimport && s.editor.HasModel() {
			res := s.editor.ReplaceModel(r.Context(), l.Model, l.Timestamp)
			reload = &res
			return
		}
		s.editor.SetModel(l.Model, l.Timestamp)
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loadResponse{
		Source:         loaded.Source,
		Classes:        len(loaded.Model.Classes),
		Relations:      len(loaded.Model.Relations),
		ModelTimestamp: loaded.Timestamp.UnixMilli(),
		Reload:         reload,
	})
}

func (s *Server) reloadModel(w http.ResponseWriter, r *http.Request) {
	res, ok := s.editor.ReloadFromModel(r.Context())
	if !ok {
		s.writeError(w, r, errNoModel)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		diagram.ReloadResult
		ModelTimestamp int64 `json:"modelTimestamp"`
	}{res, s.editor.ModelTimestamp().UnixMilli()})
}

// =============================================================================
// View
// =============================================================================

func (s *Server) getView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.editor.View())
}

func (s *Server) resetView(w http.ResponseWriter, r *http.Request) {
	s.editor.Reset()
	writeJSON(w, http.StatusOK, s.editor.View())
}

type addNodeRequest struct {
	ClassID string `json:"classId"`
}

type addNodeResponse struct {
	Added bool         `json:"added"`
	View  diagram.View `json:"view"`
}

// addNode places a class. Adding a class that is already visible, or adding
// before a model is loaded, is a no-op reported as added=false.
func (s *Server) addNode(w http.ResponseWriter, r *http.Request) {
	var req addNodeRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.ClassID == "" {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "Select a class."))
		return
	}

	added, err := s.editor.AddNode(r.Context(), req.ClassID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, addNodeResponse{Added: added, View: s.editor.View()})
}

type connectRequest struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

func (s *Server) addEdge(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Source == "" || req.Target == "" {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "Both source and target are required."))
		return
	}

	edge, created, err := s.editor.ConnectManually(req.Source, req.Target, req.Label)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, edge)
}

type movePositionsRequest struct {
	Positions map[string]diagram.Position `json:"positions"`
}

// movePositions applies the final positions of a drag, possibly of several
// selected nodes. Either every node moves or none does.
func (s *Server) movePositions(w http.ResponseWriter, r *http.Request) {
	var req movePositionsRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.editor.MoveNodes(req.Positions); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.editor.View())
}

type moveNodeRequest struct {
	Position *diagram.Position `json:"position"`
}

func (s *Server) moveNode(w http.ResponseWriter, r *http.Request) {
	var req moveNodeRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Position == nil {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "A position is required."))
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.editor.MoveNode(id, *req.Position); err != nil {
		s.writeError(w, r, err)
		return
	}
	node, _ := s.editor.View().Node(id)
	writeJSON(w, http.StatusOK, node)
}

func (s *Server) viewSVG(w http.ResponseWriter, r *http.Request) {
	opts := render.Options{Detailed: r.URL.Query().Get("detailed") == "true"}
	svg, err := s.renderer.View(r.Context(), s.editor.View(), opts)
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "Failed to render diagram."))
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write(svg)
}

// =============================================================================
// Saved diagrams
// =============================================================================

func (s *Server) listDiagrams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.diagrams.List(r.Context()))
}

type saveRequest struct {
	Name      string `json:"name"`
	SaveAsNew bool   `json:"saveAsNew"`
}

// saveDiagram persists the current canvas under a name. Saving with an
// existing name overwrites that record unless saveAsNew is set.
func (s *Server) saveDiagram(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	snap := s.editor.Snapshot()
	if !snap.HasModel {
		s.writeError(w, r, errNoModel)
		return
	}

	saved, err := s.diagrams.Save(r.Context(), strings.TrimSpace(req.Name), snap.View, snap.ModelTimestamp.UnixMilli(), req.SaveAsNew)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) importDiagram(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes))
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidFormat, err, "Failed to import diagram."))
		return
	}

	d, err := store.ImportFromText(string(data))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.diagrams.Add(r.Context(), d); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) getDiagram(w http.ResponseWriter, r *http.Request) {
	d, err := s.diagrams.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) deleteDiagram(w http.ResponseWriter, r *http.Request) {
	if err := s.diagrams.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type loadDiagramResponse struct {
	diagram.LoadResult
	// Stale is set when the diagram was saved against a different model load.
	Stale bool         `json:"stale"`
	View  diagram.View `json:"view"`
}

func (s *Server) loadDiagram(w http.ResponseWriter, r *http.Request) {
	d, err := s.diagrams.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, ok := s.editor.LoadView(d.State)
	if !ok {
		s.writeError(w, r, errNoModel)
		return
	}
	writeJSON(w, http.StatusOK, loadDiagramResponse{
		LoadResult: res,
		Stale:      d.ModelTimestamp != s.editor.ModelTimestamp().UnixMilli(),
		View:       s.editor.View(),
	})
}

func (s *Server) exportDiagram(w http.ResponseWriter, r *http.Request) {
	d, err := s.diagrams.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	text, err := store.ExportToText(d)
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "Failed to export diagram."))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": store.ExportFilename(d)}))
	io.WriteString(w, text)
}
