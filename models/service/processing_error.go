package service

import (
	"fmt"
	"runtime"
)

type ProcessingError struct {
	Identifier string
	IsFatal    bool
	Message    string
	Source     string
}

// NewProcessingError returns a new ProcessingError. Param identifier
// is the TrackedFile identifier (or local path) being processed when
// the error occurred. Param message is the error message. Param isFatal
// describes whether the error is fatal. Fatal errors are those which
// will prevent a worker from succeeding when it retries: an unreadable
// local file, failed authentication, or a checksum mismatch. Network
// errors are transient and are likely to succeed on future tries.
// We may flag transient errors as fatal after too many retries so an
// admin can look into the issue.
func NewProcessingError(identifier, message string, isFatal bool) *ProcessingError {
	_, filename, line, ok := runtime.Caller(1)
	source := "unknown:0"
	if ok {
		source = fmt.Sprintf("%s:%d", filename, line)
	}
	return &ProcessingError{
		Identifier: identifier,
		IsFatal:    isFatal,
		Message:    message,
		Source:     source,
	}
}

func (e *ProcessingError) Error() string {
	severity := "non-fatal"
	if e.IsFatal {
		severity = "fatal"
	}
	return fmt.Sprintf("(message: %s) (severity: %s) "+
		"(identifier: %s) (source: %s)", e.Message,
		severity, e.Identifier, e.Source)
}
