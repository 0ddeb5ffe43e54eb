package patient

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrNotFound is returned by the store and the service when a profile, or a
// child owned by it, does not exist.
var ErrNotFound = errors.New("not found")

// NotFoundError names the missing record. It matches ErrNotFound.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id '%s' was not found.", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(resource string, id int64) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: strconv.FormatInt(id, 10)}
}

// NotFoundMessage returns the client-facing text for a not-found error,
// without any wrapping context added on the way up.
func NotFoundMessage(err error) string {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.Error()
	}
	return "Record was not found."
}

const (
	msgBadData    = "Invalid patient: body of request contained bad or no data"
	msgBadDate    = "Invalid date value or format"
	msgBadGender  = "Invalid gender value"
	msgBadZip     = "Invalid postal code"
	msgBadPhone   = "Invalid home phone"
	msgBadEmail   = "Invalid email address"
	msgMissingKey = "Invalid patient: missing "
)

// ValidationError is the single failure kind produced while turning an
// inbound document into a Profile. Callers distinguish causes by Message.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

func missing(key string) *ValidationError {
	return &ValidationError{Message: msgMissingKey + key}
}

// IsValidation reports whether err is, or wraps, a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
