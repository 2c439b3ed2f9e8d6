package sqlx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	// register the supported SQL drivers
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"scorekit/core"
)

// Driver selects the SQL dialect for upserts and placeholders.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMysql    Driver = "mysql"
)

// Config holds SQL connection configuration
type Config struct {
	Driver          Driver        `json:"driver"`
	DSN             string        `json:"dsn"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
}

// DefaultConfig returns sensible defaults for the given driver
func DefaultConfig(driver Driver) Config {
	return Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Store implements the engine store interfaces on a SQL database.
// Events live in score_events with a JSON payload plus indexed columns;
// metrics are one JSON blob per user in user_metrics.
type Store struct {
	db     *sqlx.DB
	driver Driver
}

// New opens a connection and verifies it
func New(config Config) (*Store, error) {
	if config.Driver != DriverPostgres && config.Driver != DriverMysql {
		return nil, fmt.Errorf("unsupported driver %q", config.Driver)
	}
	db, err := sqlx.Open(string(config.Driver), config.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return NewWithDB(db, config.Driver), nil
}

// NewWithDB wraps an existing connection (useful for testing)
func NewWithDB(db *sqlx.DB, driver Driver) *Store {
	return &Store{db: db, driver: driver}
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS score_events (
			id VARCHAR(64) PRIMARY KEY,
			user_id VARCHAR(255) NOT NULL,
			event_type VARCHAR(64) NOT NULL,
			ts TIMESTAMP NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_metrics (
			user_id VARCHAR(255) PRIMARY KEY,
			payload TEXT NOT NULL,
			updated TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Append(ctx context.Context, ev core.SuccessEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	query := s.db.Rebind(`INSERT INTO score_events (id, user_id, event_type, ts, payload) VALUES (?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query, ev.ID, ev.UserID, ev.EventType, ev.Timestamp.UTC(), string(payload))
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *Store) UserEvents(ctx context.Context, user core.UserID) ([]core.SuccessEvent, error) {
	query := s.db.Rebind(`SELECT payload FROM score_events WHERE user_id = ? ORDER BY ts ASC, id ASC`)
	return s.scanEvents(ctx, query, user)
}

func (s *Store) Query(ctx context.Context, f core.EventFilter) ([]core.SuccessEvent, error) {
	var (
		all []core.SuccessEvent
		err error
	)
	if f.UserID != "" {
		all, err = s.UserEvents(ctx, f.UserID)
	} else {
		all, err = s.scanEvents(ctx, `SELECT payload FROM score_events ORDER BY ts ASC, id ASC`)
	}
	if err != nil {
		return nil, err
	}
	return core.ApplyFilter(all, f), nil
}

func (s *Store) scanEvents(ctx context.Context, query string, args ...interface{}) ([]core.SuccessEvent, error) {
	var payloads []string
	if err := s.db.SelectContext(ctx, &payloads, query, args...); err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	out := make([]core.SuccessEvent, 0, len(payloads))
	for _, p := range payloads {
		var ev core.SuccessEvent
		if err := json.Unmarshal([]byte(p), &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *Store) Users(ctx context.Context) ([]core.UserID, error) {
	var ids []string
	query := `SELECT user_id FROM score_events UNION SELECT user_id FROM user_metrics ORDER BY user_id`
	if err := s.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	out := make([]core.UserID, len(ids))
	for i, id := range ids {
		out[i] = core.UserID(id)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, user core.UserID) (core.UserMetrics, bool, error) {
	var payload string
	query := s.db.Rebind(`SELECT payload FROM user_metrics WHERE user_id = ?`)
	err := s.db.GetContext(ctx, &payload, query, user)
	if errors.Is(err, sql.ErrNoRows) {
		return core.UserMetrics{}, false, nil
	}
	if err != nil {
		return core.UserMetrics{}, false, fmt.Errorf("select metrics: %w", err)
	}
	var m core.UserMetrics
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return core.UserMetrics{}, false, fmt.Errorf("decode metrics: %w", err)
	}
	return m, true, nil
}

func (s *Store) Put(ctx context.Context, m core.UserMetrics) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	var query string
	switch s.driver {
	case DriverMysql:
		query = `INSERT INTO user_metrics (user_id, payload, updated) VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE payload = VALUES(payload), updated = VALUES(updated)`
	default:
		query = s.db.Rebind(`INSERT INTO user_metrics (user_id, payload, updated) VALUES (?, ?, ?)
			ON CONFLICT (user_id) DO UPDATE SET payload = EXCLUDED.payload, updated = EXCLUDED.updated`)
	}
	_, err = s.db.ExecContext(ctx, query, m.UserID, string(payload), m.Updated.UTC())
	if err != nil {
		return fmt.Errorf("upsert metrics: %w", err)
	}
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
