// Package errkind defines the structured error taxonomy used across the
// core: callers branch on Kind rather than parsing messages, and only the
// application layer (pkg/app) decides whether to surface, retry, or degrade.
package errkind

import "fmt"

// Kind classifies a core-level failure.
type Kind string

const (
	// IO covers file-absent and read/write failures.
	IO Kind = "io"
	// ParseError covers malformed input (JSON, binary, SMF bytes).
	ParseError Kind = "parse_error"
	// UnsupportedFormat covers SMF Format 2 and SMPTE timing.
	UnsupportedFormat Kind = "unsupported_format"
	// AudioInit covers missing output devices or a rejected SoundFont.
	AudioInit Kind = "audio_init"
	// HistoryInvalid covers a snapshot that failed validation on restore.
	HistoryInvalid Kind = "history_invalid"
)

// Error is the structured error type returned by core packages.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around an underlying cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ke, ok := err.(*Error); ok {
			e = ke
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}
