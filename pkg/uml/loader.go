package uml

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/umlboard/pkg/errors"
	"github.com/matzehuels/umlboard/pkg/observability"
)

// Loaded is the result of a successful import.
type Loaded struct {
	Model *Model
	// Timestamp is the capture time of the load, not file metadata.
	// It is the freshness marker stored alongside saved diagrams.
	Timestamp time.Time
	Source    string
}

// Loader runs imports as cancellable single-shot tasks.
//
// At most one load is in flight. Starting a new load cancels the previous
// one (last wins): the superseded call returns a CANCELED error and never
// reaches its commit callback. A Loader is safe for concurrent use.
type Loader struct {
	Logger *log.Logger
	// Now returns the current time. Tests replace it for stable timestamps.
	Now func() time.Time

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// NewLoader creates a loader. If logger is nil, log.Default() is used.
func NewLoader(logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.Default()
	}
	return &Loader{Logger: logger, Now: time.Now}
}

// Pending reports whether a load is in flight.
func (l *Loader) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

// Cancel aborts the load in flight, if any.
func (l *Loader) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
		l.seq++
	}
}

type decodeResult struct {
	model *Model
	err   error
}

// Load reads and decodes src, then calls commit with the result if this load
// is still the most recent one. commit runs while the loader is locked, so
// two loads can never commit out of order. commit may be nil.
//
// The content type is checked before the file is opened. Errors are
// INVALID_FORMAT for bad input and CANCELED when ctx is cancelled or a newer
// load superseded this one.
func (l *Loader) Load(ctx context.Context, src Source, commit func(Loaded)) (Loaded, error) {
	start := time.Now()
	if err := CheckContentType(src.ContentType); err != nil {
		l.Logger.Warn("rejected upload", "source", src.Name, "content_type", src.ContentType)
		observability.Editor().OnModelLoad(ctx, src.Name, 0, 0, time.Since(start), err)
		return Loaded{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	seq := l.begin(cancel)

	l.Logger.Debug("loading model", "source", src.Name)

	done := make(chan decodeResult, 1)
	go func() {
		rc, err := src.Open()
		if err != nil {
			done <- decodeResult{err: errors.Wrap(errors.ErrCodeInvalidFormat, err, "Failed to read file.")}
			return
		}
		defer rc.Close()
		m, err := Decode(src.ContentType, rc)
		done <- decodeResult{model: m, err: err}
	}()

	var res decodeResult
	select {
	case <-ctx.Done():
		l.finish(seq)
		err := errors.Wrap(errors.ErrCodeCanceled, ctx.Err(), "load of %s cancelled", src.Name)
		observability.Editor().OnModelLoad(ctx, src.Name, 0, 0, time.Since(start), err)
		return Loaded{}, err
	case res = <-done:
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if seq != l.seq {
		l.Logger.Debug("discarding superseded load", "source", src.Name)
		return Loaded{}, errors.New(errors.ErrCodeCanceled, "load of %s superseded by a newer import", src.Name)
	}
	l.cancel = nil

	if res.err != nil {
		l.Logger.Warn("model load failed", "source", src.Name, "err", res.err)
		observability.Editor().OnModelLoad(ctx, src.Name, 0, 0, time.Since(start), res.err)
		return Loaded{}, res.err
	}

	loaded := Loaded{Model: res.model, Timestamp: l.Now(), Source: src.Name}
	if commit != nil {
		commit(loaded)
	}

	l.Logger.Info("loaded model",
		"source", src.Name,
		"classes", len(res.model.Classes),
		"relations", len(res.model.Relations))
	observability.Editor().OnModelLoad(ctx, src.Name, len(res.model.Classes), len(res.model.Relations), time.Since(start), nil)

	return loaded, nil
}

// begin registers a new in-flight load and cancels the previous one.
func (l *Loader) begin(cancel context.CancelFunc) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
	l.seq++
	l.cancel = cancel
	return l.seq
}

// finish clears in-flight tracking if seq is still the current load.
func (l *Loader) finish(seq uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if seq == l.seq {
		l.cancel = nil
	}
}
