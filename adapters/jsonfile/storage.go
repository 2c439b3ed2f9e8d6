package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"scorekit/core"
)

// Store persists entire state to a single JSON file.
// Suitable for demos and small deployments.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory image for speed
	events  map[core.UserID][]core.SuccessEvent
	metrics map[core.UserID]core.UserMetrics
}

type fileImage struct {
	Events  map[string][]core.SuccessEvent `json:"events"`
	Metrics map[string]core.UserMetrics    `json:"metrics"`
}

func New(path string) (*Store, error) {
	s := &Store{
		path:    path,
		events:  map[core.UserID][]core.SuccessEvent{},
		metrics: map[core.UserID]core.UserMetrics{},
	}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var img fileImage
	if err := json.Unmarshal(b, &img); err != nil {
		return err
	}
	for k, v := range img.Events {
		s.events[core.UserID(k)] = v
	}
	for k, v := range img.Metrics {
		s.metrics[core.UserID(k)] = v
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	img := fileImage{
		Events:  make(map[string][]core.SuccessEvent, len(s.events)),
		Metrics: make(map[string]core.UserMetrics, len(s.metrics)),
	}
	for k, v := range s.events {
		img.Events[string(k)] = v
	}
	for k, v := range s.metrics {
		img.Metrics[string(k)] = v
	}
	b, err := json.MarshalIndent(img, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) Append(_ context.Context, ev core.SuccessEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.UserID] = append(s.events[ev.UserID], ev.Clone())
	return s.persist()
}

func (s *Store) UserEvents(_ context.Context, user core.UserID) ([]core.SuccessEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evs := s.events[user]
	out := make([]core.SuccessEvent, 0, len(evs))
	for i := range evs {
		out = append(out, evs[i].Clone())
	}
	return out, nil
}

func (s *Store) Query(_ context.Context, f core.EventFilter) ([]core.SuccessEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []core.SuccessEvent
	if f.UserID != "" {
		all = append(all, s.events[f.UserID]...)
	} else {
		for _, evs := range s.events {
			all = append(all, evs...)
		}
	}
	return core.ApplyFilter(all, f), nil
}

func (s *Store) Users(_ context.Context) ([]core.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[core.UserID]struct{}{}
	for u := range s.events {
		seen[u] = struct{}{}
	}
	for u := range s.metrics {
		seen[u] = struct{}{}
	}
	out := make([]core.UserID, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) Get(_ context.Context, user core.UserID) (core.UserMetrics, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.metrics[user]
	if !ok {
		return core.UserMetrics{}, false, nil
	}
	return m.Clone(), true, nil
}

func (s *Store) Put(_ context.Context, m core.UserMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics[m.UserID] = m.Clone()
	return s.persist()
}
