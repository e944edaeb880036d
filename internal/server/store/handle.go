// Package store bootstraps the PostgreSQL connection. Connect walks an
// ordered list of strategies and always yields a Handle, which is either
// connected or explicitly unavailable for the rest of the process.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/workflow/internal/common"
)

// State is the terminal bootstrap state.
type State int

const (
	StateUnavailable State = iota
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	default:
		return "unavailable"
	}
}

// Handle is the injected result of bootstrapping. The zero value and a nil
// *Handle are both unavailable.
type Handle struct {
	state    State
	db       *sql.DB
	strategy string
	err      error
	// inProcess handles serve repositories that need no database
	inProcess bool

	closeOnce sync.Once
	closeErr  error
}

// Connected wraps a live database. Used by Connect and by tests in other
// packages that need a ready handle.
func Connected(db *sql.DB, strategy string) *Handle {
	return &Handle{state: StateConnected, db: db, strategy: strategy}
}

// InProcess builds a connected handle without a database, for repository
// managers that keep their data in memory. DB returns a nil *sql.DB.
func InProcess(strategy string) *Handle {
	return &Handle{state: StateConnected, strategy: strategy, inProcess: true}
}

// Unavailable builds a handle that refuses every data operation.
func Unavailable(err error) *Handle {
	return &Handle{state: StateUnavailable, err: err}
}

func (h *Handle) State() State {
	if h == nil {
		return StateUnavailable
	}
	return h.state
}

// Available reports whether data operations may proceed.
func (h *Handle) Available() bool {
	return h.State() == StateConnected
}

// Strategy is the name of the strategy that connected, or "".
func (h *Handle) Strategy() string {
	if h == nil {
		return ""
	}
	return h.strategy
}

// Err is the last bootstrap error of an unavailable handle.
func (h *Handle) Err() error {
	if h == nil {
		return nil
	}
	return h.err
}

// DB returns the live database or common.ErrorStoreUnavailable.
func (h *Handle) DB() (*sql.DB, error) {
	if !h.Available() {
		return nil, common.ErrorStoreUnavailable
	}
	if h.db == nil && !h.inProcess {
		return nil, common.ErrorStoreUnavailable
	}
	return h.db, nil
}

// Close releases the database. Safe to call on any handle, any number of times.
func (h *Handle) Close() error {
	if h == nil || h.db == nil {
		return nil
	}
	h.closeOnce.Do(func() {
		if err := h.db.Close(); err != nil {
			h.closeErr = fmt.Errorf("db close error: %w", err)
		}
	})
	return h.closeErr
}
