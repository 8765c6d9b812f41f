package syncer

import (
	"errors"
	"fmt"
)

// LoadState gates persistence: writes are only accepted once the document is Loaded.
type LoadState int

const (
	StateUnloaded LoadState = iota
	StateLoading
	StateLoaded
	StateError
)

func (s LoadState) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("LoadState(%d)", int(s))
	}
}

var (
	// ErrNotLoaded is returned for persistence and mutation requests before the gate opens.
	ErrNotLoaded      = errors.New("document not loaded")
	ErrLoadInProgress = errors.New("document load in progress")
	ErrClosed         = errors.New("orchestrator closed")
)

// StoreReadError means the initial read failed; interaction stays blocked until a retry succeeds.
type StoreReadError struct {
	Err error
}

func (e *StoreReadError) Error() string { return "read document: " + e.Err.Error() }
func (e *StoreReadError) Unwrap() error { return e.Err }

// StoreWriteError is logged and swallowed by Update; the local mirror is kept.
type StoreWriteError struct {
	Err error
}

func (e *StoreWriteError) Error() string { return "write document: " + e.Err.Error() }
func (e *StoreWriteError) Unwrap() error { return e.Err }
