package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Callers classify with errors.Is.
var (
	ErrValidation   = errors.New("validation error")
	ErrInvalidInput = errors.New("invalid input")
	ErrDownload     = errors.New("download error")
	ErrChatImport   = errors.New("chat import error")
	ErrEncoding     = errors.New("encoding error")
	ErrDiscovery    = errors.New("clip discovery error")

	// ErrUnderTarget is a warning: selection finished below the minimum
	// target duration. It never fails a job.
	ErrUnderTarget = errors.New("under target")
)

// KindError attaches an operation name and an error kind to a cause.
type KindError struct {
	Op   string
	Kind error
	Err  error
}

func (e *KindError) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	case e.Kind == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *KindError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// WrapKind wraps err with op and kind. A nil err yields nil.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Op: op, Kind: kind, Err: err}
}

// NewKind returns a bare error of the given kind.
func NewKind(op string, kind error) error {
	return &KindError{Op: op, Kind: kind}
}

// Errorf formats a cause and wraps it with op and kind.
func Errorf(op string, kind error, format string, args ...any) error {
	return &KindError{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindName maps an error to the stable string recorded on failed jobs and
// used as a metrics label.
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrDownload):
		return "download_error"
	case errors.Is(err, ErrChatImport):
		return "chat_import_error"
	case errors.Is(err, ErrEncoding):
		return "encoding_error"
	case errors.Is(err, ErrDiscovery):
		return "discovery_error"
	default:
		return "internal_error"
	}
}
