package fs

import (
	"errors"
	"fmt"
)

// ErrGuardedRoot is returned when a listing of the filesystem root "/" is
// attempted.
var ErrGuardedRoot = errors.New("reading filesystem at / is disallowed")

// IOError records a failed listing, read, write or rename.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func ioError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return err
	}
	return &IOError{Op: op, Path: path, Err: err}
}
