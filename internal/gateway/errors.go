package gateway

import (
	"errors"
	"fmt"

	"taskboard-cli/internal/model"
)

// TransportError is a network- or auth-level failure. Retryable in principle,
// but the client never retries automatically; the user reissues the action.
type TransportError struct {
	Op  string
	Err error
}

func (e TransportError) Error() string { return fmt.Sprintf("%s: transport: %v", e.Op, e.Err) }
func (e TransportError) Unwrap() error { return e.Err }

// QueryError means the request itself was malformed (bad filter, bad column).
type QueryError struct {
	Op     string
	Detail string
}

func (e QueryError) Error() string { return fmt.Sprintf("%s: bad query: %s", e.Op, e.Detail) }

// ValidationError means the record was rejected for its content. Not retried;
// the input must change.
type ValidationError struct {
	Field  string
	Detail string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Detail
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Detail)
}

// ConstraintError means the store refused the write (uniqueness, FK).
type ConstraintError struct {
	Detail string
}

func (e ConstraintError) Error() string { return "constraint: " + e.Detail }

type NotFoundError struct {
	Collection model.Collection
	ID         string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Collection, e.ID)
}

// StorageError is an object upload/remove failure.
type StorageError struct {
	Key string
	Err error
}

func (e StorageError) Error() string { return fmt.Sprintf("storage %q: %v", e.Key, e.Err) }
func (e StorageError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}
