// Package database provides storage backends for run state.
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/bryan-buckman/newsreel/internal/model"
)

// ErrStateConflict is returned when a save carries a stale version token,
// meaning another run persisted state after this one loaded it.
var ErrStateConflict = errors.New("run state was modified by another run")

// PersistenceError wraps any failure reading or writing run state.
type PersistenceError struct {
	Op    string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// Store defines the interface for run state persistence.
// Both SQLite and PostgreSQL implementations satisfy this interface.
type Store interface {
	Close() error

	// DatabaseType returns the name of the database backend ("SQLite" or "PostgreSQL").
	DatabaseType() string

	// Run state operations. SaveState writes the seen map and run record as one
	// unit and fails with ErrStateConflict when state.Version is stale; on
	// success state.Version is advanced.
	LoadState(ctx context.Context) (*model.RunState, error)
	SaveState(ctx context.Context, state *model.RunState) error
	LastRun(ctx context.Context) (model.RunRecord, error)
	SeenArticles(ctx context.Context) (model.SeenMap, error)

	// Generic JSON documents. GetJSON reports found=false for a missing key.
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any) error

	// Channel credentials.
	RefreshToken(ctx context.Context, channel model.ChannelID) (string, bool, error)
	SetRefreshToken(ctx context.Context, channel model.ChannelID, token string) error
}

// Open picks a backend by driver name.
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case "", "sqlite":
		return New(dsn)
	case "postgres", "postgresql":
		return NewPostgres(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
}
