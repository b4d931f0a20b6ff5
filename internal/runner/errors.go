package runner

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when Execute is called on a Runner whose previous
// execution has not finished.
var ErrBusy = errors.New("runner: execution already in progress")

// SpawnError reports that the child process could not be started.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("executing %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// PatternError reports a line pattern that does not compile.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("compiling pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }
