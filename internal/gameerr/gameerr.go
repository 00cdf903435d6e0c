// Package gameerr defines the error kinds surfaced to players.
package gameerr

import (
	"errors"
	"fmt"
)

// Code is the machine-readable kind of an Error.
type Code string

const (
	RoomNotFound            Code = "ROOM_NOT_FOUND"
	RoomFull                Code = "ROOM_FULL"
	PlayerNotFound          Code = "PLAYER_NOT_FOUND"
	BuzzerLocked            Code = "BUZZER_LOCKED"
	Unauthorized            Code = "UNAUTHORIZED"
	NotInRoom               Code = "NOT_IN_ROOM"
	Validation              Code = "VALIDATION_ERROR"
	CodeGenerationExhausted Code = "CODE_GENERATION_EXHAUSTED"
	Internal                Code = "INTERNAL_ERROR"
)

// Error carries a Code and a message safe to show to the caller.
// Field names the offending payload field for Validation errors.
type Error struct {
	Code    Code
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Invalid builds a Validation error for field.
func Invalid(field, msg string) *Error {
	return &Error{Code: Validation, Message: msg, Field: field}
}

func Wrap(code Code, msg string, err error) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf reports the Code of err, or Internal when err is not an *Error.
func CodeOf(err error) Code {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return Internal
}

// Is reports whether err is an *Error with the given code.
func Is(err error, code Code) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Code == code
}

// Public returns the code, message and field to put on the wire. Errors that
// are not an *Error are reported as Internal with a generic message.
func Public(err error) (Code, string, string) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code, ge.Message, ge.Field
	}
	return Internal, "Internal server error", ""
}
