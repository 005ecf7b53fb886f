package uml

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/umlboard/pkg/errors"
)

func newTestLoader() *Loader {
	l := NewLoader(log.New(io.Discard))
	l.Now = func() time.Time { return time.UnixMilli(1700000000000) }
	return l
}

func TestLoaderCommits(t *testing.T) {
	l := newTestLoader()

	var committed []Loaded
	got, err := l.Load(context.Background(), ReaderSource("model.json", ContentTypeJSON, strings.NewReader(sampleModel)), func(ld Loaded) {
		committed = append(committed, ld)
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(committed) != 1 {
		t.Fatalf("commit called %d times, want 1", len(committed))
	}
	if got.Timestamp.UnixMilli() != 1700000000000 {
		t.Errorf("Timestamp = %v, want capture time from Now", got.Timestamp)
	}
	if got.Source != "model.json" {
		t.Errorf("Source = %q", got.Source)
	}
	if len(got.Model.Classes) != 2 {
		t.Errorf("len(Classes) = %d, want 2", len(got.Model.Classes))
	}
	if l.Pending() {
		t.Error("Pending() should be false after completion")
	}
}

func TestLoaderFormatErrorDoesNotCommit(t *testing.T) {
	l := newTestLoader()

	committed := false
	_, err := l.Load(context.Background(), ReaderSource("bad.json", ContentTypeJSON, strings.NewReader(`{"umlModel":{"classes":[]}}`)), func(Loaded) {
		committed = true
	})
	if !errors.IsFormat(err) {
		t.Fatalf("Load() error = %v, want INVALID_FORMAT", err)
	}
	if committed {
		t.Error("commit must not run on a failed load")
	}
}

func TestLoaderRejectsContentTypeBeforeOpen(t *testing.T) {
	l := newTestLoader()

	opened := false
	src := Source{
		Name:        "model.csv",
		ContentType: "text/csv",
		Open: func() (io.ReadCloser, error) {
			opened = true
			return io.NopCloser(strings.NewReader(sampleModel)), nil
		},
	}

	if _, err := l.Load(context.Background(), src, nil); !errors.IsFormat(err) {
		t.Fatalf("Load() error = %v, want INVALID_FORMAT", err)
	}
	if opened {
		t.Error("file should not be opened when the content type is wrong")
	}
}

func TestLoaderLastWins(t *testing.T) {
	l := newTestLoader()

	started := make(chan struct{})
	gate := make(chan struct{})
	defer close(gate)

	slow := Source{
		Name:        "slow.json",
		ContentType: ContentTypeJSON,
		Open: func() (io.ReadCloser, error) {
			close(started)
			<-gate
			return io.NopCloser(strings.NewReader(sampleModel)), nil
		},
	}

	var commits []string
	commit := func(ld Loaded) { commits = append(commits, ld.Source) }

	firstErr := make(chan error, 1)
	go func() {
		_, err := l.Load(context.Background(), slow, commit)
		firstErr <- err
	}()

	<-started
	if !l.Pending() {
		t.Error("Pending() should be true while a load is in flight")
	}

	fast := ReaderSource("fast.json", ContentTypeJSON, bytes.NewReader([]byte(sampleModel)))
	if _, err := l.Load(context.Background(), fast, commit); err != nil {
		t.Fatalf("second Load() error = %v", err)
	}

	select {
	case err := <-firstErr:
		if !errors.Is(err, errors.ErrCodeCanceled) {
			t.Errorf("superseded load error = %v, want CANCELED", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("superseded load did not return")
	}

	if len(commits) != 1 || commits[0] != "fast.json" {
		t.Errorf("commits = %v, want [fast.json]", commits)
	}
}

func TestLoaderContextCancel(t *testing.T) {
	l := newTestLoader()

	gate := make(chan struct{})
	defer close(gate)

	src := Source{
		Name:        "stuck.json",
		ContentType: ContentTypeJSON,
		Open: func() (io.ReadCloser, error) {
			<-gate
			return io.NopCloser(strings.NewReader(sampleModel)), nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Load(ctx, src, func(Loaded) { t.Error("cancelled load must not commit") })
	if !errors.Is(err, errors.ErrCodeCanceled) {
		t.Errorf("Load() error = %v, want CANCELED", err)
	}
	if l.Pending() {
		t.Error("Pending() should be false after cancellation")
	}
}
