// Package server exposes the diagram editor over HTTP.
//
// The API is the presentation shell for a browser canvas: the canvas owns
// pan, zoom and edge drawing, and calls these endpoints to load the model,
// place, move and connect classes and manage saved diagrams.
//
//	POST   /api/model[?mode=reimport]     load or reimport a model file
//	GET    /api/model                     current model and timestamp
//	POST   /api/model/reload              refresh the canvas from the model
//	GET    /api/view                      current canvas
//	DELETE /api/view                      start a new diagram
//	POST   /api/view/nodes                add a class {classId}
//	PATCH  /api/view/nodes/{id}           move one node {position}
//	PUT    /api/view/positions            move several nodes {positions: {id: {x,y}}}
//	POST   /api/view/edges                connect two classes {source,target,label}
//	GET    /api/view/svg                  Graphviz rendering of the canvas
//	GET    /api/diagrams                  saved diagrams
//	POST   /api/diagrams                  save {name,saveAsNew}
//	POST   /api/diagrams/import           import an exported diagram
//	GET    /api/diagrams/{id}             one saved diagram
//	DELETE /api/diagrams/{id}             delete a saved diagram
//	POST   /api/diagrams/{id}/load        put a saved diagram on the canvas
//	GET    /api/diagrams/{id}/export      download a saved diagram
//	GET    /healthz                       liveness and build info
//
// Errors are JSON objects {"code": ..., "message": ...}.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/umlboard/pkg/cache"
	"github.com/matzehuels/umlboard/pkg/diagram"
	"github.com/matzehuels/umlboard/pkg/render"
	"github.com/matzehuels/umlboard/pkg/store"
	"github.com/matzehuels/umlboard/pkg/uml"
)

// DefaultMaxUploadBytes caps model and diagram uploads.
const DefaultMaxUploadBytes = 10 << 20

const shutdownTimeout = 10 * time.Second

// Options configures the HTTP server.
type Options struct {
	MaxUploadBytes int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// RenderCache keeps SVG renderings of the canvas. Nil disables caching.
	RenderCache cache.Cache
}

// Server serves one editor session.
type Server struct {
	editor   *diagram.Editor
	loader   *uml.Loader
	diagrams *store.Repository
	renderer *render.Renderer
	logger   *log.Logger
	opts     Options
	router   chi.Router
}

// New creates a server. If logger is nil, log.Default() is used.
func New(editor *diagram.Editor, loader *uml.Loader, diagrams *store.Repository, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	s := &Server{
		editor:   editor,
		loader:   loader,
		diagrams: diagrams,
		renderer: render.NewRenderer(opts.RenderCache, render.DefaultCacheTTL, logger),
		logger:   logger,
		opts:     opts,
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/model", func(r chi.Router) {
			r.Get("/", s.getModel)
			r.Post("/", s.loadModel)
			r.Post("/reload", s.reloadModel)
		})
		r.Route("/view", func(r chi.Router) {
			r.Get("/", s.getView)
			r.Delete("/", s.resetView)
			r.Post("/nodes", s.addNode)
			r.Patch("/nodes/{id}", s.moveNode)
			r.Put("/positions", s.movePositions)
			r.Post("/edges", s.addEdge)
			r.Get("/svg", s.viewSVG)
		})
		r.Route("/diagrams", func(r chi.Router) {
			r.Get("/", s.listDiagrams)
			r.Post("/", s.saveDiagram)
			r.Post("/import", s.importDiagram)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getDiagram)
				r.Delete("/", s.deleteDiagram)
				r.Post("/load", s.loadDiagram)
				r.Get("/export", s.exportDiagram)
			})
		})
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
