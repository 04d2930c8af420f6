package timeline

import (
	"errors"
	"fmt"
)

// Error kinds. Every compile failure matches exactly one of them with errors.Is
var (
	ErrMalformedDescription    = errors.New("malformed description")
	ErrUnknownFilter           = errors.New("unknown filter")
	ErrDurationRequired        = errors.New("duration required")
	ErrIncompatibleAudioTracks = errors.New("incompatible audio tracks")
	ErrProbeFailed             = errors.New("probe failed")
)

// CompileError A failure located in the description
type CompileError struct {
	// One of the Err* kinds
	Kind error
	// Location of the offending node, ex "concat[1]/clip"
	Path string
	// Human readable context : offending value, filter name, file...
	Detail string
	// Underlying cause, if any
	Err error
}

func (e *CompileError) Error() string {
	msg := e.Kind.Error()
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err.Error())
	}
	return msg
}

func (e *CompileError) Is(target error) bool {
	return target == e.Kind
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

func newError(kind error, path string, format string, a ...interface{}) *CompileError {
	return &CompileError{Kind: kind, Path: path, Detail: fmt.Sprintf(format, a...)}
}
