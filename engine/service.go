package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"scorekit/core"
)

// maxSyntheticRounds bounds synthetic-event processing: the external
// event, the synthetics it produced (badges, level-up), and at most
// one follow-up round for a level-up triggered by badge points.
// Anything beyond that indicates a malformed configuration and is
// dropped rather than looped on.
const maxSyntheticRounds = 3

// duplicateWindow is the trailing window for batch duplicate detection.
const duplicateWindow = 60 * time.Second

// Service wires the event store, metrics store, bus, and scoring
// configuration into the ingestion and query API. Ingestion for a
// given user is serialized behind a per-user mutex; different users
// proceed in parallel.
type Service struct {
	cfg     *core.ScoringConfig
	events  EventStore
	metrics MetricsStore
	bus     *EventBus
	boards  RankSource
	logger  *slog.Logger
	locks   sync.Map // core.UserID -> *sync.Mutex
}

func NewService(cfg *core.ScoringConfig, events EventStore, metrics MetricsStore, bus *EventBus) *Service {
	if cfg == nil || events == nil || metrics == nil || bus == nil {
		panic("NewService requires non-nil config, stores, and bus")
	}
	return &Service{cfg: cfg, events: events, metrics: metrics, bus: bus, logger: slog.Default()}
}

// SetRankSource wires leaderboard positions into the achievement
// rules. Call during assembly, before serving traffic.
func (s *Service) SetRankSource(r RankSource) { s.boards = r }

// SetLogger overrides the default logger.
func (s *Service) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// Config returns the scoring configuration the service was built with.
func (s *Service) Config() *core.ScoringConfig { return s.cfg }

// Subscribe convenience method.
func (s *Service) Subscribe(typ core.EventType, handler func(context.Context, core.SuccessEvent)) func() {
	return s.bus.Subscribe(typ, handler)
}

// SubscribeAll registers a handler for every published event.
func (s *Service) SubscribeAll(handler func(context.Context, core.SuccessEvent)) func() {
	return s.bus.SubscribeAll(handler)
}

func (s *Service) Close() { s.bus.Close() }

func (s *Service) userLock(u core.UserID) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(u, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// EventInput is one ingestion request, from a collaborator such as the
// quiz engine or focus timer.
type EventInput struct {
	UserID       core.UserID         `json:"user_id"`
	EventType    core.EventType      `json:"event_type"`
	Metadata     *core.EventMetadata `json:"metadata,omitempty"`
	SessionID    string              `json:"session_id,omitempty"`
	CustomPoints *int64              `json:"custom_points,omitempty"`
}

// BatchOptions controls CreateBatch behavior.
type BatchOptions struct {
	// SkipDuplicates silently drops events whose type and session id
	// already appeared in the trailing 60 seconds.
	SkipDuplicates bool `json:"skip_duplicates"`
	// ContinueOnError logs per-event failures and keeps going instead
	// of aborting the batch on the first one.
	ContinueOnError bool `json:"continue_on_error"`
}

// CreateEvent scores and stores one success event, updates the user's
// metrics, evaluates achievements, and processes any synthetic
// follow-up events exactly once. It returns the stored external event.
func (s *Service) CreateEvent(ctx context.Context, in EventInput) (core.SuccessEvent, error) {
	user, err := core.NormalizeUserID(in.UserID)
	if err != nil {
		return core.SuccessEvent{}, err
	}
	if in.EventType == "" {
		return core.SuccessEvent{}, errors.New("event type is required")
	}

	mu := s.userLock(user)
	mu.Lock()
	defer mu.Unlock()

	points, factor := core.CalculatePoints(s.cfg, in.EventType, in.Metadata, in.CustomPoints)
	ev := core.NewSuccessEvent(user, in.EventType, points, factor, in.Metadata.Clone(), in.SessionID)
	if err := s.ingest(ctx, ev); err != nil {
		return core.SuccessEvent{}, err
	}
	return ev, nil
}

// CreateBatch processes inputs sequentially under this caller. With
// SkipDuplicates, dropped events are simply absent from the result.
func (s *Service) CreateBatch(ctx context.Context, inputs []EventInput, opts BatchOptions) ([]core.SuccessEvent, error) {
	out := make([]core.SuccessEvent, 0, len(inputs))
	for i, in := range inputs {
		if opts.SkipDuplicates {
			dup, err := s.isDuplicate(ctx, in)
			if err == nil && dup {
				continue
			}
		}
		ev, err := s.CreateEvent(ctx, in)
		if err != nil {
			if opts.ContinueOnError {
				s.logger.Warn("batch event failed, continuing",
					"index", i, "user_id", in.UserID, "event_type", in.EventType, "error", err)
				continue
			}
			return out, fmt.Errorf("batch event %d: %w", i, err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// isDuplicate reports whether an event with the same type and session
// id exists inside the trailing window. Events without a session id
// are never considered duplicates.
func (s *Service) isDuplicate(ctx context.Context, in EventInput) (bool, error) {
	if in.SessionID == "" {
		return false, nil
	}
	user, err := core.NormalizeUserID(in.UserID)
	if err != nil {
		return false, err
	}
	since := time.Now().UTC().Add(-duplicateWindow)
	matches, err := s.events.Query(ctx, core.EventFilter{
		UserID:     user,
		EventTypes: []core.EventType{in.EventType},
		SessionID:  in.SessionID,
		Since:      since,
		Limit:      1,
	})
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}

// ingest runs the bounded pipeline: append, aggregate, publish, then
// process synthesized events round by round. Achievements are
// evaluated once, after the external event has been applied and before
// any badge event is appended, so an award never sees itself.
func (s *Service) ingest(ctx context.Context, ev core.SuccessEvent) error {
	queue := []core.SuccessEvent{ev}
	for round := 0; round < maxSyntheticRounds && len(queue) > 0; round++ {
		var next []core.SuccessEvent
		for _, e := range queue {
			synth, err := s.applyAndStore(ctx, e)
			if err != nil {
				return err
			}
			next = append(next, synth...)
		}
		if round == 0 {
			badges, err := s.newBadges(ctx, ev.UserID)
			if err != nil {
				return err
			}
			next = append(next, badges...)
		}
		queue = next
	}
	if len(queue) > 0 {
		s.logger.Warn("dropping synthetic events past round limit",
			"user_id", ev.UserID, "dropped", len(queue))
	}
	return nil
}

// applyAndStore appends one event, folds it into the metrics record,
// and publishes it. The returned slice holds a level_up event when the
// points crossed a threshold.
func (s *Service) applyAndStore(ctx context.Context, ev core.SuccessEvent) ([]core.SuccessEvent, error) {
	if err := s.events.Append(ctx, ev); err != nil {
		return nil, fmt.Errorf("append event: %w", err)
	}

	m, ok, err := s.metrics.Get(ctx, ev.UserID)
	if err != nil {
		return nil, fmt.Errorf("load metrics: %w", err)
	}
	if !ok {
		m = core.NewUserMetrics(ev.UserID)
	}

	leveledUp, newLevel, err := applyEvent(s.cfg, &m, ev)
	if err != nil {
		return nil, err
	}

	history, err := s.events.UserEvents(ctx, ev.UserID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	recomputeDerived(&m, history, time.Now().UTC())

	if err := s.metrics.Put(ctx, m); err != nil {
		return nil, fmt.Errorf("store metrics: %w", err)
	}

	s.bus.Publish(ctx, ev)

	if !leveledUp {
		return nil, nil
	}
	points, _ := core.CalculatePoints(s.cfg, core.EventLevelUp, nil, nil)
	return []core.SuccessEvent{core.NewLevelUp(ev.UserID, points, newLevel)}, nil
}

// newBadges evaluates the achievement catalog against the post-append
// state and builds badge events for every newly satisfied achievement.
func (s *Service) newBadges(ctx context.Context, user core.UserID) ([]core.SuccessEvent, error) {
	m, ok, err := s.metrics.Get(ctx, user)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	history, err := s.events.UserEvents(ctx, user)
	if err != nil {
		return nil, err
	}

	var out []core.SuccessEvent
	for _, a := range s.pendingAchievements(m, history) {
		award := a.Points
		points, _ := core.CalculatePoints(s.cfg, core.EventBadgeEarned, nil, &award)
		out = append(out, core.NewBadgeEarned(user, a, points))
		s.logger.Info("achievement earned",
			"user_id", user, "achievement_id", a.ID, "points", points)
	}
	return out, nil
}

// GetUserMetrics returns the user's rollup, or a zeroed record for an
// unknown user.
func (s *Service) GetUserMetrics(ctx context.Context, user core.UserID) (core.UserMetrics, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return core.UserMetrics{}, err
	}
	m, ok, err := s.metrics.Get(ctx, normalized)
	if err != nil {
		return core.UserMetrics{}, err
	}
	if !ok {
		return core.NewUserMetrics(normalized), nil
	}
	return m, nil
}

// GetEvents returns events matching the filter, newest first.
func (s *Service) GetEvents(ctx context.Context, f core.EventFilter) ([]core.SuccessEvent, error) {
	if f.UserID != "" {
		normalized, err := core.NormalizeUserID(f.UserID)
		if err != nil {
			return nil, err
		}
		f.UserID = normalized
	}
	return s.events.Query(ctx, f)
}
