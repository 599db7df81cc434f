package errs

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrInvalidGrade    = errors.New("rating must be an integer between 1 and 5")
	ErrNotFound        = errors.New("not found")
	ErrUnauthenticated = errors.New("authentication failed")
	ErrForbidden       = errors.New("unauthorized access to this book")
	ErrDuplicateRating = errors.New("you have already rated this book")
	ErrEmailTaken      = errors.New("email already in use")
	ErrInvalidLogin    = errors.New("invalid email/password combination")
	ErrStorage         = errors.New("storage failure")
)

// ValidationError lists every rejected field with the reason.
type ValidationError struct {
	Fields map[string]string `json:"errors"`
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

func (e *ValidationError) Add(field, msg string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// OrNil returns nil when nothing was rejected.
func (e *ValidationError) OrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Storage marks a collaborator I/O failure, keeping the cause for logs.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	return &storageError{cause: err}
}

type storageError struct {
	cause error
}

func (e *storageError) Error() string { return ErrStorage.Error() + ": " + e.cause.Error() }

func (e *storageError) Is(target error) bool { return target == ErrStorage }

func (e *storageError) Unwrap() error { return e.cause }
