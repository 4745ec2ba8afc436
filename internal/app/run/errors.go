package run

import (
	"errors"
	"fmt"
)

const (
	FatalOutputNotWritable = "output_not_writable"
	FatalRecreateOverlap   = "recreate_overlap"
	FatalInputUnreadable   = "input_unreadable"
)

// FatalError aborts a run before any file is moved.
type FatalError struct {
	Code string
	Path string
	Err  error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Path)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err aborted the run.
func IsFatal(err error) bool {
	var e *FatalError
	return errors.As(err, &e)
}
