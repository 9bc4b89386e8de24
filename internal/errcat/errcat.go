// Package errcat holds the catalog of stable, code-identified errors that
// stylus surfaces to callers. Codes never change meaning; messages are looked
// up from the catalog rather than built ad hoc, so callers can match on the
// code regardless of the message text.
package errcat

import "fmt"

// Code identifies a catalogued error.
type Code int

const (
	UndefinedError   Code = 0x65
	ModuleNotLoaded  Code = 0x66
	FileWriteFailed  Code = 0x67
	InvalidSource    Code = 0x69
	InvalidUserInput Code = 0x70

	DownloadInterrupted   Code = 0xb3
	DownloadFailed        Code = 0xb4
	DownloadInProgress    Code = 0xb5
	DownloadAlreadyPaused Code = 0xb6
	DownloadAlreadyActive Code = 0xb7
	DownloadNotActive     Code = 0xb8
	MissingURI            Code = 0xb9
)

var messages = map[Code]string{
	UndefinedError:   "Unexpected error occurred.",
	ModuleNotLoaded:  "The model is not loaded. Call load() before forward().",
	FileWriteFailed:  "Failed to write the output file.",
	InvalidSource:    "The model source is not valid.",
	InvalidUserInput: "The provided input is not valid for this model.",

	DownloadInterrupted:   "Download interrupted.",
	DownloadFailed:        "Download failed.",
	DownloadInProgress:    "A download for this source is already in progress.",
	DownloadAlreadyPaused: "The download is already paused.",
	DownloadAlreadyActive: "The download is already active.",
	DownloadNotActive:     "There is no active download for this source.",
	MissingURI:            "The source does not carry a URI to download from.",
}

// Message returns the catalog description of code.
func Message(code Code) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return messages[UndefinedError]
}

// String returns the catalog description of the code.
func (c Code) String() string {
	return Message(c)
}

// Error is a catalogued error, optionally carrying the underlying cause.
type Error struct {
	Cause error
	Code  Code
}

// New returns a catalogued error for code.
func New(code Code) *Error {
	return &Error{Code: code}
}

// Wrap returns a catalogued error for code carrying cause.
func Wrap(code Code, cause error) *Error {
	return &Error{Code: code, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s cause: %v", Message(e.Code), e.Cause)
	}
	return Message(e.Code)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a catalogued error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code of the first catalogued error in err's chain.
func CodeOf(err error) (Code, bool) {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return 0, false
		}
		err = u.Unwrap()
	}
	return 0, false
}
