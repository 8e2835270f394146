package history

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound ключ отсутствует: не существовал, истёк или был удалён.
	ErrNotFound = errors.New("history: not found")
	// ErrInvalidEntry запись без обязательных полей.
	ErrInvalidEntry = errors.New("history: invalid entry")
)

// SerializationError значение не удалось закодировать или разобрать.
type SerializationError struct {
	Key string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization of %q: %v", e.Key, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// BackendError сбой вызова kv.Backend.
type BackendError struct {
	Op  string
	Key string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

type Status int

const (
	StatusOK Status = iota
	StatusNotFound
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusNotFound:
		return "not_found"
	default:
		return "failure"
	}
}

// Result исход внутренней операции: значение, отсутствие или сбой с причиной.
type Result[T any] struct {
	Value  T
	Status Status
	Err    error
}

func OK[T any](v T) Result[T] {
	return Result[T]{Value: v, Status: StatusOK}
}

func NotFound[T any]() Result[T] {
	return Result[T]{Status: StatusNotFound, Err: ErrNotFound}
}

func Failure[T any](err error) Result[T] {
	return Result[T]{Status: StatusFailure, Err: err}
}

// Get значение и признак успеха; NotFound и Failure дают нулевое значение и false.
func (r Result[T]) Get() (T, bool) {
	if r.Status != StatusOK {
		var zero T
		return zero, false
	}
	return r.Value, true
}
