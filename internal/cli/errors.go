package cli

import (
	"errors"

	"codeberg.org/snonux/k2a/internal/anki"
	"codeberg.org/snonux/k2a/internal/batch"
	"codeberg.org/snonux/k2a/internal/config"
)

// Process exit codes of the fatal error categories
const (
	ExitConfig     = 1 // config file missing, empty or incomplete
	ExitCollection = 2 // collection missing, locked or unreadable
	ExitFieldIndex = 3 // note field index invalid for the note type
	ExitKindle     = 4 // Kindle vocab.db unreadable
)

// ExitError is a fatal error carrying the process exit code
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

// withExitCode attaches the exit code of a known fatal error. Other errors
// are returned unchanged and exit with 1.
func withExitCode(err error) error {
	if err == nil {
		return nil
	}

	var (
		exitErr   *ExitError
		pathErr   *config.PathError
		indexErr  *config.IndexError
		kindleErr *batch.KindleError
	)
	switch {
	case errors.As(err, &exitErr):
		return err
	case errors.As(err, &pathErr):
		return &ExitError{Code: ExitConfig, Err: err}
	case errors.As(err, &indexErr):
		return &ExitError{Code: ExitFieldIndex, Err: err}
	case errors.Is(err, anki.ErrLocked):
		return &ExitError{Code: ExitCollection, Err: err}
	case errors.As(err, &kindleErr):
		return &ExitError{Code: ExitKindle, Err: err}
	}
	return err
}
