// Package store persists named diagram layouts.
//
// All saved diagrams live as one JSON array under a single key of a
// [kv.Store], the same shape a browser keeps in local storage. Each
// [SavedDiagram] carries a frozen copy of the view and the freshness marker
// of the model it was built against.
//
// Save rewrites the whole list. Writes fail loudly with a STORAGE_ERROR;
// List favours availability and treats unreadable storage as empty.
package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/umlboard/pkg/diagram"
	"github.com/matzehuels/umlboard/pkg/errors"
	"github.com/matzehuels/umlboard/pkg/kv"
	"github.com/matzehuels/umlboard/pkg/observability"
)

// DefaultKey is the storage key holding the saved-diagram list.
const DefaultKey = "umlDiagrams"

// SavedDiagram is one named, persisted layout.
type SavedDiagram struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	State diagram.View `json:"state"`
	// ModelTimestamp is the model's load time in milliseconds since the epoch.
	ModelTimestamp int64 `json:"modelTimestamp"`
}

// ModelTime returns ModelTimestamp as a time.
func (d SavedDiagram) ModelTime() time.Time { return time.UnixMilli(d.ModelTimestamp) }

// Clone returns a deep copy of the record.
func (d SavedDiagram) Clone() SavedDiagram {
	out := d
	out.State = d.State.Clone()
	return out
}

// NewID returns a fresh time-ordered diagram id.
func NewID() string {
	return "diagram_" + uuid.Must(uuid.NewV7()).String()
}

// Repository reads and writes saved diagrams in a key-value store.
// It is safe for concurrent use within one process.
type Repository struct {
	kv     kv.Store
	key    string
	logger *log.Logger
	// NewID generates record ids. Tests replace it.
	NewID func() string

	mu sync.Mutex
}

// NewRepository creates a repository over s using [DefaultKey].
// If logger is nil, log.Default() is used.
func NewRepository(s kv.Store, logger *log.Logger) *Repository {
	if logger == nil {
		logger = log.Default()
	}
	return &Repository{kv: s, key: DefaultKey, logger: logger, NewID: NewID}
}

// Save stores view under name.
//
// When saveAsNew is false and a record with the same name exists, that
// record is overwritten in place and keeps its id. Otherwise a new record
// with a fresh id is appended. The stored state is a deep copy of view.
// Read and write failures are STORAGE_ERROR.
func (r *Repository) Save(ctx context.Context, name string, view diagram.View, modelTimestamp int64, saveAsNew bool) (SavedDiagram, error) {
	if err := errors.ValidateDiagramName(name); err != nil {
		return SavedDiagram{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.read(ctx)
	if err != nil {
		return SavedDiagram{}, errors.Wrap(errors.ErrCodeStorage, err, "Failed to save diagram.")
	}

	rec := SavedDiagram{
		Name:           name,
		State:          view.Clone(),
		ModelTimestamp: modelTimestamp,
	}

	overwrote := false
	if !saveAsNew {
		for i := range list {
			if list[i].Name == name {
				rec.ID = list[i].ID
				list[i] = rec
				overwrote = true
				break
			}
		}
	}
	if !overwrote {
		rec.ID = r.NewID()
		list = append(list, rec)
	}

	if err := r.write(ctx, list); err != nil {
		return SavedDiagram{}, errors.Wrap(errors.ErrCodeStorage, err, "Failed to save diagram.")
	}

	r.logger.Info("saved diagram", "id", rec.ID, "name", name,
		"nodes", len(rec.State.Nodes), "overwrote", overwrote)
	observability.Store().OnDiagramSaved(ctx, rec.ID, name, overwrote)
	return rec.Clone(), nil
}

// List returns every saved diagram. Unreadable or corrupt storage is logged
// and reported as an empty list.
func (r *Repository) List(ctx context.Context) []SavedDiagram {
	list, err := r.read(ctx)
	if err != nil {
		r.logger.Error("failed to load saved diagrams", "err", err)
		return []SavedDiagram{}
	}
	return list
}

// Get returns the diagram with the given id.
func (r *Repository) Get(ctx context.Context, id string) (SavedDiagram, error) {
	list, err := r.read(ctx)
	if err != nil {
		return SavedDiagram{}, errors.Wrap(errors.ErrCodeStorage, err, "Failed to load saved diagrams.")
	}
	for _, d := range list {
		if d.ID == id {
			return d, nil
		}
	}
	return SavedDiagram{}, errors.New(errors.ErrCodeDiagramNotFound, "diagram %q not found", id)
}

// Delete removes the diagram with the given id.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.read(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "Failed to delete diagram.")
	}
	out := list[:0]
	found := false
	for _, d := range list {
		if d.ID == id {
			found = true
			continue
		}
		out = append(out, d)
	}
	if !found {
		return errors.New(errors.ErrCodeDiagramNotFound, "diagram %q not found", id)
	}
	if err := r.write(ctx, out); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "Failed to delete diagram.")
	}
	r.logger.Info("deleted diagram", "id", id)
	return nil
}

// Add stores an imported record as is. A record with the same id is
// replaced, otherwise d is appended.
func (r *Repository) Add(ctx context.Context, d SavedDiagram) error {
	if err := validateRecord(d); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.read(ctx)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "Failed to save diagram.")
	}
	d = d.Clone()
	replaced := false
	for i := range list {
		if list[i].ID == d.ID {
			list[i] = d
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, d)
	}
	if err := r.write(ctx, list); err != nil {
		return errors.Wrap(errors.ErrCodeStorage, err, "Failed to save diagram.")
	}
	r.logger.Info("imported diagram", "id", d.ID, "name", d.Name, "replaced", replaced)
	observability.Store().OnDiagramSaved(ctx, d.ID, d.Name, replaced)
	return nil
}

func (r *Repository) read(ctx context.Context) ([]SavedDiagram, error) {
	data, ok, err := r.kv.Get(ctx, r.key)
	if err != nil {
		return nil, err
	}
	if !ok || len(data) == 0 {
		return []SavedDiagram{}, nil
	}
	var list []SavedDiagram
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []SavedDiagram{}
	}
	return list, nil
}

func (r *Repository) write(ctx context.Context, list []SavedDiagram) error {
	data, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return r.kv.Set(ctx, r.key, data)
}
