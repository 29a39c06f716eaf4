package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind classifies a failure reported by a database driver
type Kind int

const (
	Unknown Kind = iota
	// WrongCredentials means the username/password pair was rejected
	WrongCredentials
	// Forbidden means the database or user does not exist, or the user may not log into it
	Forbidden
	// Unreachable means the server could not be resolved or dialed
	Unreachable
	// NotAuthorized means the user is logged in but has no access to the database
	NotAuthorized
	// CannotCreate means the user may read but not create collections
	CannotCreate
	// InsufficientRights means the user may not manage analyzers
	InsufficientRights
	// Duplicate means a resource with the same name already exists
	Duplicate
	// NotFound means the resource does not exist
	NotFound
	// BadWriteConcern means a writeConcern exceeded the replicationFactor
	BadWriteConcern
	// Validation means the request itself was malformed
	Validation
	// Internal is an unexpected server side failure
	Internal
)

var kindNames = map[Kind]string{
	Unknown:            "unknown",
	WrongCredentials:   "wrong credentials",
	Forbidden:          "forbidden",
	Unreachable:        "unreachable",
	NotAuthorized:      "not authorized",
	CannotCreate:       "cannot create",
	InsufficientRights: "insufficient rights",
	Duplicate:          "duplicate",
	NotFound:           "not found",
	BadWriteConcern:    "bad write concern",
	Validation:         "validation",
	Internal:           "internal",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return kindNames[Unknown]
}

// MarshalJSON encodes the kind as its name
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Error is a custom error
type Error struct {
	Kind     Kind     `json:"kind"`
	Messages []string `json:"messages"`
	Err      error    `json:"-"`
}

// Error returns the messages, outermost first, followed by the cause
func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Messages)+1)
	for i := len(e.Messages) - 1; i >= 0; i-- {
		parts = append(parts, e.Messages[i])
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	if len(parts) == 0 {
		return e.Kind.String()
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the cause of the error
func (e *Error) Unwrap() error {
	return e.Err
}

// RemoveError removes the error from the Error and leaves it's messages and kind
func (e *Error) RemoveError() *Error {
	return &Error{
		Kind:     e.Kind,
		Messages: e.Messages,
		Err:      nil,
	}
}

// Extract extracts the custom Error from the given error
func Extract(err error) *Error {
	if err == nil {
		return nil
	}
	for cause := err; cause != nil; {
		if e, ok := cause.(*Error); ok {
			return e
		}
		u, ok := cause.(interface{ Unwrap() error })
		if !ok {
			break
		}
		cause = u.Unwrap()
	}
	return &Error{
		Kind:     Unknown,
		Messages: nil,
		Err:      err,
	}
}

// KindOf returns the kind of the given error, or Unknown
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	return Extract(err).Kind
}

// Is reports whether the error is of the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// New creates a new error of the given kind
func New(kind Kind, msg string, args ...any) error {
	return &Error{
		Kind:     kind,
		Messages: []string{fmt.Sprintf(msg, args...)},
	}
}

// Wrap wraps the given error and returns a new one. A nil error stays nil.
func Wrap(err error, kind Kind, msg string, args ...any) error {
	if err == nil {
		return nil
	}
	e, ok := err.(*Error)
	if ok {
		if msg != "" {
			e.Messages = append(e.Messages, fmt.Sprintf(msg, args...))
		}
		if kind > Unknown {
			e.Kind = kind
		}
		return e
	}
	e = &Error{
		Kind: kind,
		Err:  err,
	}
	if msg != "" {
		e.Messages = append(e.Messages, fmt.Sprintf(msg, args...))
	}
	return e
}
