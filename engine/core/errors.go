package core

import (
	"errors"
	"fmt"
)

// Kind sentinels. Every error produced by the engine wraps exactly one of
// these, so callers can classify failures with errors.Is without parsing
// messages.
var (
	ErrConfiguration = errors.New("configuration error")
	ErrSuitability   = errors.New("suitability error")
	ErrFormat        = errors.New("format error")
	ErrPipelineBuild = errors.New("pipeline build error")
	ErrTimeout       = errors.New("timeout error")
	ErrDriver        = errors.New("driver error")
)

// KindError carries a kind sentinel, a human-readable message and an
// optional underlying cause.
type KindError struct {
	kind  error
	msg   string
	cause error
}

func (e *KindError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *KindError) Is(target error) bool {
	return target == e.kind
}

func (e *KindError) Unwrap() error {
	return e.cause
}

func newKindError(kind error, cause error, format string, args ...interface{}) error {
	return &KindError{
		kind:  kind,
		msg:   fmt.Sprintf(format, args...),
		cause: cause,
	}
}

// ConfigurationError reports an ambiguous or missing setting, e.g. a
// selection policy with neither mode specified.
func ConfigurationError(format string, args ...interface{}) error {
	return newKindError(ErrConfiguration, nil, format, args...)
}

// SuitabilityError reports that no device, queue family or memory type
// satisfies the requested constraints.
func SuitabilityError(format string, args ...interface{}) error {
	return newKindError(ErrSuitability, nil, format, args...)
}

// FormatError reports malformed input data, e.g. misaligned shader
// bytecode.
func FormatError(format string, args ...interface{}) error {
	return newKindError(ErrFormat, nil, format, args...)
}

// PipelineBuildError reports the driver rejecting a shader/layout
// combination. Fatal, never retried.
func PipelineBuildError(cause error, format string, args ...interface{}) error {
	return newKindError(ErrPipelineBuild, cause, format, args...)
}

// TimeoutError reports a fence wait exceeding its bound.
func TimeoutError(format string, args ...interface{}) error {
	return newKindError(ErrTimeout, nil, format, args...)
}

// DriverError wraps an unexpected failure of an underlying driver call.
func DriverError(cause error, format string, args ...interface{}) error {
	return newKindError(ErrDriver, cause, format, args...)
}
