package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"scorekit/core"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store implements the engine store interfaces on Redis.
// Data structure:
// - user:{user_id}:events -> LIST of JSON-encoded events, append order
// - user:{user_id}:metrics -> JSON blob of UserMetrics
// - users -> SET of known user ids
type Store struct {
	client *redis.Client
}

// New creates a Redis-backed store with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

func userEventsKey(user core.UserID) string {
	return fmt.Sprintf("user:%s:events", user)
}

func userMetricsKey(user core.UserID) string {
	return fmt.Sprintf("user:%s:metrics", user)
}

const usersKey = "users"

// Lua script appending an event and registering its user atomically,
// so a concurrent reader sees either the whole event or nothing.
var appendScript = redis.NewScript(`
	redis.call('RPUSH', KEYS[1], ARGV[1])
	redis.call('SADD', KEYS[2], ARGV[2])
	return redis.call('LLEN', KEYS[1])
`)

func (s *Store) Append(ctx context.Context, ev core.SuccessEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return appendScript.Run(ctx, s.client,
		[]string{userEventsKey(ev.UserID), usersKey},
		payload, string(ev.UserID)).Err()
}

func (s *Store) UserEvents(ctx context.Context, user core.UserID) ([]core.SuccessEvent, error) {
	raw, err := s.client.LRange(ctx, userEventsKey(user), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}
	out := make([]core.SuccessEvent, 0, len(raw))
	for _, item := range raw {
		var ev core.SuccessEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, ev)
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
		users, err := s.Users(ctx)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			evs, err := s.UserEvents(ctx, u)
			if err != nil {
				return nil, err
			}
			all = append(all, evs...)
		}
	}
	return core.ApplyFilter(all, f), nil
}

func (s *Store) Users(ctx context.Context) ([]core.UserID, error) {
	members, err := s.client.SMembers(ctx, usersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]core.UserID, len(members))
	for i, m := range members {
		out[i] = core.UserID(m)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, user core.UserID) (core.UserMetrics, bool, error) {
	raw, err := s.client.Get(ctx, userMetricsKey(user)).Result()
	if err == redis.Nil {
		return core.UserMetrics{}, false, nil
	}
	if err != nil {
		return core.UserMetrics{}, false, fmt.Errorf("read metrics: %w", err)
	}
	var m core.UserMetrics
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return core.UserMetrics{}, false, fmt.Errorf("decode metrics: %w", err)
	}
	return m, true, nil
}

func (s *Store) Put(ctx context.Context, m core.UserMetrics) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, userMetricsKey(m.UserID), payload, 0)
	pipe.SAdd(ctx, usersKey, string(m.UserID))
	_, err = pipe.Exec(ctx)
	return err
}

var _ interface {
	Append(context.Context, core.SuccessEvent) error
	UserEvents(context.Context, core.UserID) ([]core.SuccessEvent, error)
	Query(context.Context, core.EventFilter) ([]core.SuccessEvent, error)
	Users(context.Context) ([]core.UserID, error)
	Get(context.Context, core.UserID) (core.UserMetrics, bool, error)
	Put(context.Context, core.UserMetrics) error
} = (*Store)(nil)
