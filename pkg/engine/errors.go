package engine

import (
	"errors"
	"fmt"
)

// ErrEmptyInput is returned when the source image has no bytes.
var ErrEmptyInput = errors.New("empty input image")

// FailureClass classifies engine failures for observability and fallback
// routing.
type FailureClass string

const (
	// FailureCorruptInput indicates the input bytes could not be decoded.
	FailureCorruptInput FailureClass = "corrupt_input"

	// FailureUnsupportedFormat indicates a format the engine cannot process.
	FailureUnsupportedFormat FailureClass = "unsupported_format"

	// FailureTimeout indicates the optimization exceeded its deadline or the
	// caller cancelled the context.
	FailureTimeout FailureClass = "timeout"

	// FailureMemory indicates the image would exceed the pixel budget and
	// decoding it risks memory exhaustion.
	FailureMemory FailureClass = "memory"

	// FailureEncode indicates the optimized image could not be encoded in
	// the target format.
	FailureEncode FailureClass = "encode"
)

// EngineError is the typed failure returned by Optimize. The orchestrator
// inspects the class to route the call to fallback instead of surfacing the
// failure to document generation.
type EngineError struct {
	Class    FailureClass
	Identity string
	Message  string
	Err      error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("engine %s failure for %q: %s: %v", e.Class, e.Identity, e.Message, e.Err)
	}
	return fmt.Sprintf("engine %s failure for %q: %s", e.Class, e.Identity, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Retryable reports whether retrying the optimization could succeed.
// Only timeouts are worth retrying; corrupt input stays corrupt.
func (e *EngineError) Retryable() bool {
	return e.Class == FailureTimeout
}
