package service

import (
	"encoding/json"
	"os"
	"strings"
	"sync"
	"time"
)

// WorkResult describes one attempt to archive or verify a single file.
// Results are saved to Redis keyed by file identifier, so an attempt
// interrupted partway can be inspected and retried as a whole.
type WorkResult struct {
	// Attempt is the number of the attempt to do this work.
	Attempt int `json:"attempt"`

	// Operation is the name of the operation: archival or fixity check.
	Operation string `json:"operation"`

	// Host is the name of the network host on which the worker is running.
	Host string `json:"host"`

	// Pid is the pid of the worker doing this work.
	Pid int `json:"pid"`

	// StartedAt describes when this attempt started. If
	// StartedAt.IsZero(), work has not yet begun.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt describes when this attempt completed. Note that the
	// attempt may have completed without succeeding. Check the
	// Succeeded() method to see if the work actually succeeded.
	FinishedAt time.Time `json:"finished_at"`

	// Errors is a list of ProcessingError objects describing things
	// that went wrong during the operation. Don't write to this. It's
	// public so we can serialize it to/from JSON, but access is locked
	// internally with a mutex.
	Errors []*ProcessingError `json:"errors"`

	mutex *sync.RWMutex
}

func NewWorkResult(operation string) *WorkResult {
	hostname, _ := os.Hostname()
	return &WorkResult{
		Operation: operation,
		Host:      hostname,
		Pid:       os.Getpid(),
		Errors:    make([]*ProcessingError, 0),
		mutex:     &sync.RWMutex{},
	}
}

// WorkResultFromJSON restores a WorkResult saved by a prior attempt.
func WorkResultFromJSON(jsonData string) (*WorkResult, error) {
	result := &WorkResult{}
	err := json.Unmarshal([]byte(jsonData), result)
	if err != nil {
		return nil, err
	}
	result.mutex = &sync.RWMutex{}
	return result, nil
}

func (result *WorkResult) ToJSON() (string, error) {
	result.mutex.RLock()
	defer result.mutex.RUnlock()
	data, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (result *WorkResult) Start() {
	result.StartedAt = time.Now().UTC()
}

func (result *WorkResult) Started() bool {
	return !result.StartedAt.IsZero()
}

func (result *WorkResult) Finish() {
	result.FinishedAt = time.Now().UTC()
}

func (result *WorkResult) Finished() bool {
	return !result.FinishedAt.IsZero()
}

func (result *WorkResult) RunTime() time.Duration {
	startTime := result.StartedAt
	if startTime.IsZero() {
		return time.Duration(0)
	}
	endTime := result.FinishedAt
	if endTime.IsZero() {
		endTime = time.Now()
	}
	return endTime.Sub(startTime)
}

func (result *WorkResult) Succeeded() bool {
	result.mutex.RLock()
	succeeded := result.Finished() && len(result.Errors) == 0
	result.mutex.RUnlock()
	return succeeded
}

// AddError adds a ProcessingError to the result. The total number of
// errors is capped at 30, unless the error being added is fatal.
// The error cap exists because a network connection problem often
// causes the same non-fatal error to occur hundreds of times. We get
// the point after 2 or 3, and we don't need to serialize 500 errors
// to JSON. Fatal errors are added no matter what, because processing
// stops on the first fatal error.
func (result *WorkResult) AddError(err *ProcessingError) {
	if len(result.Errors) > 29 && !err.IsFatal {
		return
	}
	result.mutex.Lock()
	result.Errors = append(result.Errors, err)
	result.mutex.Unlock()
}

func (result *WorkResult) ClearErrors() {
	result.mutex.Lock()
	result.Errors = make([]*ProcessingError, 0)
	result.mutex.Unlock()
}

// Reset clears everything but the attempt number and the operation name.
func (result *WorkResult) Reset() {
	result.Host = ""
	result.Pid = 0
	result.StartedAt = time.Time{}
	result.FinishedAt = time.Time{}
	result.ClearErrors()
}

// HasErrors returns true if this result has any errors,
// fatal or not.
func (result *WorkResult) HasErrors() bool {
	result.mutex.RLock()
	hasErrors := len(result.Errors) > 0
	result.mutex.RUnlock()
	return hasErrors
}

// HasFatalErrors returns true if this result has any fatal errors.
func (result *WorkResult) HasFatalErrors() bool {
	result.mutex.RLock()
	defer result.mutex.RUnlock()
	for _, err := range result.Errors {
		if err.IsFatal {
			return true
		}
	}
	return false
}

// FatalErrorMessage returns the combined messages of all fatal errors.
func (result *WorkResult) FatalErrorMessage() string {
	result.mutex.RLock()
	defer result.mutex.RUnlock()
	messages := make([]string, 0)
	for _, err := range result.Errors {
		if err.IsFatal {
			messages = append(messages, err.Error())
		}
	}
	return strings.Join(messages, "; ")
}

// NonFatalErrorMessage returns the combined messages of all non-fatal
// errors.
func (result *WorkResult) NonFatalErrorMessage() string {
	result.mutex.RLock()
	defer result.mutex.RUnlock()
	messages := make([]string, 0)
	for _, err := range result.Errors {
		if !err.IsFatal {
			messages = append(messages, err.Error())
		}
	}
	return strings.Join(messages, "; ")
}
