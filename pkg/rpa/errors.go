package rpa

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. All failures are caught at the operation boundary
// and converted into an ActionResult with OK=false and a human-readable
// message; callers distinguish kinds with errors.Is.
var (
	// ErrNotInitialized covers engine or session launch failures. The
	// Driver stays retryable: a later Start attempt may succeed.
	ErrNotInitialized = errors.New("browser session not initialized")

	// ErrAuthRequired means no credentials are configured and the session
	// sits on the login boundary; a human must log in via ManualLogin.
	ErrAuthRequired = errors.New("manual login required")

	// ErrAuthTimeout means credentials were submitted but the page never
	// left the login boundary.
	ErrAuthTimeout = errors.New("login timed out")

	// ErrReaderNotFound means no dropdown option matched the query within
	// the polling window.
	ErrReaderNotFound = errors.New("reader not found")

	// ErrReaderNotSelected means post-selection verification failed: the
	// details panel never confirmed the selection.
	ErrReaderNotSelected = errors.New("reader not selected")

	// ErrOperationTimeout means no outcome was observed within the bounded
	// wait.
	ErrOperationTimeout = errors.New("operation timed out")
)

// ElementNotFoundError reports that a required control could not be located
// by any strategy in its fallback chain. It carries the tried chain so
// selector rot can be diagnosed from logs.
type ElementNotFoundError struct {
	Control string
	Tried   Chain
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("could not locate %s control (tried %d selector strategies: %s)",
		e.Control, len(e.Tried), e.Tried)
}

// notFound builds an ElementNotFoundError for a named control.
func notFound(control string, tried Chain) error {
	return &ElementNotFoundError{Control: control, Tried: tried}
}
