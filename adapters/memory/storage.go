package memory

import (
	"context"
	"sync"

	"scorekit/core"
)

// Store is a concurrent in-memory event log + metrics store.
type Store struct {
	users sync.Map // map[core.UserID]*userRecord
}

type userRecord struct {
	mu         sync.Mutex
	events     []core.SuccessEvent
	metrics    core.UserMetrics
	hasMetrics bool
}

func New() *Store { return &Store{} }

func (s *Store) getOrCreate(user core.UserID) *userRecord {
	if v, ok := s.users.Load(user); ok {
		return v.(*userRecord)
	}
	actual, _ := s.users.LoadOrStore(user, &userRecord{})
	return actual.(*userRecord)
}

func (s *Store) Append(_ context.Context, ev core.SuccessEvent) error {
	rec := s.getOrCreate(ev.UserID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.events = append(rec.events, ev.Clone())
	return nil
}

func (s *Store) UserEvents(_ context.Context, user core.UserID) ([]core.SuccessEvent, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([]core.SuccessEvent, len(rec.events))
	for i, ev := range rec.events {
		out[i] = ev.Clone()
	}
	return out, nil
}

func (s *Store) Query(ctx context.Context, f core.EventFilter) ([]core.SuccessEvent, error) {
	var all []core.SuccessEvent
	if f.UserID != "" {
		evs, err := s.UserEvents(ctx, f.UserID)
		if err != nil {
			return nil, err
		}
		all = evs
	} else {
		s.users.Range(func(_, v any) bool {
			rec := v.(*userRecord)
			rec.mu.Lock()
			for _, ev := range rec.events {
				all = append(all, ev.Clone())
			}
			rec.mu.Unlock()
			return true
		})
	}
	return core.ApplyFilter(all, f), nil
}

func (s *Store) Users(_ context.Context) ([]core.UserID, error) {
	var out []core.UserID
	s.users.Range(func(k, v any) bool {
		rec := v.(*userRecord)
		rec.mu.Lock()
		if len(rec.events) > 0 || rec.hasMetrics {
			out = append(out, k.(core.UserID))
		}
		rec.mu.Unlock()
		return true
	})
	return out, nil
}

func (s *Store) Get(_ context.Context, user core.UserID) (core.UserMetrics, bool, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if !rec.hasMetrics {
		return core.UserMetrics{}, false, nil
	}
	return rec.metrics.Clone(), true, nil
}

func (s *Store) Put(_ context.Context, m core.UserMetrics) error {
	rec := s.getOrCreate(m.UserID)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.metrics = m.Clone()
	rec.hasMetrics = true
	return nil
}

var _ interface {
	Append(context.Context, core.SuccessEvent) error
	UserEvents(context.Context, core.UserID) ([]core.SuccessEvent, error)
	Query(context.Context, core.EventFilter) ([]core.SuccessEvent, error)
	Users(context.Context) ([]core.UserID, error)
	Get(context.Context, core.UserID) (core.UserMetrics, bool, error)
	Put(context.Context, core.UserMetrics) error
} = (*Store)(nil)
