// Package theme tracks the light/dark display preference and keeps the
// rendering marker of the front end in sync with it.
package theme

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core"
)

// DefaultKey is the storage key the preference lives under.
const DefaultKey = "theme-storage"

// blobVersion is the only persisted shape this client reads.
const blobVersion = 0

type Mode string

const (
	Light Mode = "light"
	Dark  Mode = "dark"
)

func (m Mode) Valid() bool { return m == Light || m == Dark }

// Marker is the external rendering flag (e.g. a `dark` class on the document, colored CLI output).
type Marker interface {
	SetDark(dark bool)
}

// MarkerFunc adapts a function to a Marker.
type MarkerFunc func(dark bool)

func (f MarkerFunc) SetDark(dark bool) { f(dark) }

// NoopMarker is used when there is nothing to render.
var NoopMarker Marker = MarkerFunc(func(bool) {})

type (
	Recorder interface {
		RecordThemeChange(mode string)
	}

	Options struct {
		Storage  core.Storage
		Marker   Marker
		Logger   core.Logger
		Recorder Recorder
		Key      string
		Timeout  time.Duration
	}

	Store struct {
		opts Options

		mu   sync.RWMutex
		mode Mode

		subsMu sync.Mutex
		subs   map[int]func(Mode)
		nextID int
	}

	persistedBlob struct {
		State *struct {
			Theme Mode `json:"theme"`
		} `json:"state"`
		Version *int `json:"version"`
	}
)

// NewStore rehydrates the preference and applies it to the marker once, before returning.
func NewStore(opts Options) *Store {
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.Marker == nil {
		opts.Marker = NoopMarker
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	s := &Store{opts: opts, subs: make(map[int]func(Mode))}
	s.mode = s.load()
	s.opts.Marker.SetDark(s.mode == Dark)
	return s
}

func (s *Store) load() Mode {
	if s.opts.Storage == nil {
		return Light
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
	defer cancel()

	data, err := s.opts.Storage.Get(ctx, s.opts.Key)
	if err != nil {
		if errors.Cause(err) != core.ErrKeyNotFound {
			s.warn("could not read persisted theme", errors.Wrap(err, "loading theme"))
		}
		return Light
	}
	var blob persistedBlob
	err = json.Unmarshal(data, &blob)
	if err != nil || blob.State == nil || blob.Version == nil || *blob.Version != blobVersion || !blob.State.Theme.Valid() {
		s.warn("discarding persisted theme")
		return Light
	}
	return blob.State.Theme
}

func (s *Store) save(mode Mode) {
	if s.opts.Storage == nil {
		return
	}
	version := blobVersion
	blob := persistedBlob{Version: &version}
	blob.State = &struct {
		Theme Mode `json:"theme"`
	}{Theme: mode}
	data, err := json.Marshal(blob)
	if err != nil {
		s.warn("could not encode theme", errors.Wrap(err, "encoding theme"))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timeout)
	defer cancel()
	if err = s.opts.Storage.Put(ctx, s.opts.Key, data); err != nil {
		s.warn("could not persist theme", errors.Wrap(err, "saving theme"))
	}
}

func (s *Store) warn(msg string, args ...interface{}) {
	if s.opts.Logger != nil {
		s.opts.Logger.Warn(msg, args...)
	}
}

// commit updates the marker first, so the rendered flag never lags the stored preference.
func (s *Store) commit(next func(curr Mode) Mode) {
	s.mu.Lock()
	mode := next(s.mode)
	s.opts.Marker.SetDark(mode == Dark)
	s.mode = mode
	s.save(mode)
	s.mu.Unlock()

	if s.opts.Recorder != nil {
		s.opts.Recorder.RecordThemeChange(string(mode))
	}

	s.subsMu.Lock()
	subs := make([]func(Mode), 0, len(s.subs))
	for id := 1; id <= s.nextID; id++ {
		if fn, ok := s.subs[id]; ok {
			subs = append(subs, fn)
		}
	}
	s.subsMu.Unlock()
	for _, fn := range subs {
		fn(mode)
	}
}

// Toggle flips light <-> dark.
func (s *Store) Toggle() {
	s.commit(func(curr Mode) Mode {
		if curr == Dark {
			return Light
		}
		return Dark
	})
}

// Set selects mode regardless of the current one. Unknown modes are ignored.
func (s *Store) Set(mode Mode) {
	if !mode.Valid() {
		s.warn("ignoring unknown theme " + string(mode))
		return
	}
	s.commit(func(Mode) Mode { return mode })
}

func (s *Store) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

func (s *Store) IsDark() bool { return s.Mode() == Dark }

// Subscribe registers fn to receive the mode after every change.
func (s *Store) Subscribe(fn func(Mode)) (unsubscribe func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	return func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
	}
}
