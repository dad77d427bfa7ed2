package files

import "errors"

// Sentinel errors returned by Service.
var (
	ErrNoFile          = errors.New("no file part")
	ErrEmptyFilename   = errors.New("no selected file")
	ErrInvalidFilename = errors.New("invalid filename")
	ErrNotFound        = errors.New("file not found")
	ErrBlobMissing     = errors.New("file not found on disk")
	ErrNoOwner         = errors.New("cannot delete file: no owner information")
	ErrNotOwner        = errors.New("you do not have permission to delete this file")
)

// IOError reports a failed disk or catalog step. Op names the step,
// e.g. "saving file".
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error {
	return e.Err
}
