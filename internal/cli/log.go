// Package cli implements the umlboard command-line interface.
//
// The CLI is built using cobra and logs through charmbracelet/log. It wires
// the model loader, the diagram editor and the diagram store together for
// two front ends: the HTTP API used by the browser canvas (serve) and an
// interactive terminal editor (edit).
//
// # Commands
//
//   - serve: run the HTTP API
//   - edit: interactive terminal editor for a model file
//   - classes: list the classes of a model file
//   - diagrams: list, show, export, import and delete saved diagrams
//   - render: render a saved diagram to SVG, DOT, PDF or PNG
//   - config: show the effective configuration
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. With debug
// logging on, loader, editor and storage events are logged through the
// observability hooks.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/umlboard/pkg/observability"
)

// newLogger creates a new logger with timestamp formatting.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Rendered overview (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

// =============================================================================
// Observability Hooks
// =============================================================================

// logHooks reports editor and storage events as debug logs.
type logHooks struct {
	logger *log.Logger
}

// registerLogHooks installs logHooks as the process-wide hooks.
func registerLogHooks(l *log.Logger) {
	h := &logHooks{logger: l.WithPrefix("event")}
	observability.SetEditorHooks(h)
	observability.SetStoreHooks(h)
}

func (h *logHooks) OnModelLoad(_ context.Context, source string, classes, relations int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("model load failed", "source", source, "duration", d, "err", err)
		return
	}
	h.logger.Debug("model loaded", "source", source, "classes", classes, "relations", relations, "duration", d)
}

func (h *logHooks) OnNodeAdded(_ context.Context, classID string, nodes, edges int) {
	h.logger.Debug("node added", "class", classID, "nodes", nodes, "edges", edges)
}

func (h *logHooks) OnViewReloaded(_ context.Context, nodes, edges, dropped int) {
	h.logger.Debug("view reloaded", "nodes", nodes, "edges", edges, "dropped", dropped)
}

func (h *logHooks) OnRead(_ context.Context, backend, key string, size int, err error) {
	h.logger.Debug("storage read", "backend", backend, "key", key, "bytes", size, "err", err)
}

func (h *logHooks) OnWrite(_ context.Context, backend, key string, size int, err error) {
	h.logger.Debug("storage write", "backend", backend, "key", key, "bytes", size, "err", err)
}

func (h *logHooks) OnDiagramSaved(_ context.Context, id, name string, overwrote bool) {
	h.logger.Debug("diagram saved", "id", id, "name", name, "overwrote", overwrote)
}
