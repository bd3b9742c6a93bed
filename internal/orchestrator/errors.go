package orchestrator

import (
	"errors"

	"ExpenseCertify/internal/validation"
)

// Input defects. A run that fails with one of these writes nothing.
var (
	ErrEmptyFile       = errors.New("uploaded file has no data rows")
	ErrMissingColumns  = validation.ErrMissingColumns
	ErrNoRowsForCaller = errors.New("no rows in the file belong to the caller")
	ErrUnreadableFile  = errors.New("uploaded file could not be read")
)

// ErrReviewerRequired is returned by reviewer actions without a reviewer name.
var ErrReviewerRequired = errors.New("reviewer is required")

// InputError marks a defect in the uploaded file or the caller's request.
type InputError struct {
	Err error
}

func (e *InputError) Error() string { return e.Err.Error() }

func (e *InputError) Unwrap() error { return e.Err }

// IsInputError reports whether err is an input defect.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
