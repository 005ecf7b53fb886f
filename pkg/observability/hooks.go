// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers register hooks at startup to
// receive events about model loads, diagram edits and storage access.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, never by libraries, which keeps the core
// packages free of import cycles and backend dependencies.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetEditorHooks(&myEditorHooks{})
//	    observability.SetStoreHooks(&myStoreHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	start := time.Now()
//	m, err := uml.Decode(ct, r)
//	observability.Editor().OnModelLoad(ctx, name, len(m.Classes), len(m.Relations), time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Editor Hooks
// =============================================================================

// EditorHooks receives events from the model loader and diagram editor.
type EditorHooks interface {
	// OnModelLoad records a finished model import (err is nil on success).
	OnModelLoad(ctx context.Context, source string, classes, relations int, duration time.Duration, err error)

	// OnNodeAdded records a class placed on the canvas.
	OnNodeAdded(ctx context.Context, classID string, nodes, edges int)

	// OnViewReloaded records a rebuild of the view from a refreshed model.
	OnViewReloaded(ctx context.Context, nodes, edges, dropped int)
}

// =============================================================================
// Store Hooks
// =============================================================================

// StoreHooks receives events from key-value storage and the diagram repository.
type StoreHooks interface {
	// OnRead records a key read. size is 0 on a miss.
	OnRead(ctx context.Context, backend, key string, size int, err error)

	// OnWrite records a key write.
	OnWrite(ctx context.Context, backend, key string, size int, err error)

	// OnDiagramSaved records a saved diagram.
	OnDiagramSaved(ctx context.Context, id, name string, overwrote bool)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopEditorHooks is a no-op implementation of EditorHooks.
type NoopEditorHooks struct{}

func (NoopEditorHooks) OnModelLoad(context.Context, string, int, int, time.Duration, error) {}
func (NoopEditorHooks) OnNodeAdded(context.Context, string, int, int)                       {}
func (NoopEditorHooks) OnViewReloaded(context.Context, int, int, int)                       {}

// NoopStoreHooks is a no-op implementation of StoreHooks.
type NoopStoreHooks struct{}

func (NoopStoreHooks) OnRead(context.Context, string, string, int, error)  {}
func (NoopStoreHooks) OnWrite(context.Context, string, string, int, error) {}
func (NoopStoreHooks) OnDiagramSaved(context.Context, string, string, bool) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	editorHooks EditorHooks = NoopEditorHooks{}
	storeHooks  StoreHooks  = NoopStoreHooks{}
	hooksMu     sync.RWMutex
)

// SetEditorHooks registers custom editor hooks.
// This should be called once at application startup.
func SetEditorHooks(h EditorHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		editorHooks = h
	}
}

// SetStoreHooks registers custom store hooks.
// This should be called once at application startup.
func SetStoreHooks(h StoreHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		storeHooks = h
	}
}

// Editor returns the registered editor hooks.
func Editor() EditorHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return editorHooks
}

// Store returns the registered store hooks.
func Store() StoreHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return storeHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	editorHooks = NoopEditorHooks{}
	storeHooks = NoopStoreHooks{}
}
