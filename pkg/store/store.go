// Package store is the Postgres-backed customer state store. It owns all
// SQL against the users, events and predictions tables.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a customer id has no row.
var ErrNotFound = errors.New("store: customer not found")

// Store wraps a pooled Postgres connection. It is safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	db    *sql.DB
	dbURL string
}

// Open connects to Postgres and verifies the connection with a ping.
func Open(dbURL string) (*Store, error) {
	if dbURL == "" {
		return nil, errors.New("store: empty database URL")
	}
	db, err := connect(dbURL)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, dbURL: dbURL}, nil
}

func connect(dbURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Reconnect dials a fresh pool and swaps it in, closing the old one.
// On failure the old handle stays in place: its queries keep erroring
// rather than panicking, and a later Reconnect can still succeed.
func (s *Store) Reconnect() error {
	db, err := connect(s.dbURL)
	if err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}
	s.mu.Lock()
	if s.db != nil {
		s.db.Close()
	}
	s.db = db
	s.mu.Unlock()
	return nil
}

func (s *Store) conn() *sql.DB {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db
}

// Ping reports whether the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	db := s.conn()
	if db == nil {
		return errors.New("store: not connected")
	}
	return db.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
