// Package errors provides the standardized error taxonomy of the matching engine.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	goerrors "github.com/go-errors/errors"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Input errors: the task can never succeed as submitted.
const (
	ErrCodeCandidateNotFound   ErrorCode = "CANDIDATE_NOT_FOUND"
	ErrCodeOpportunityNotFound ErrorCode = "OPPORTUNITY_NOT_FOUND"
	ErrCodeInvalidTaskScope    ErrorCode = "INVALID_TASK_SCOPE"
	ErrCodeInvalidPriority     ErrorCode = "INVALID_PRIORITY"
	ErrCodeInvalidRequest      ErrorCode = "INVALID_REQUEST"
)

// Transient errors: a later attempt may succeed.
const (
	ErrCodeProfileFetchFailed       ErrorCode = "PROFILE_FETCH_FAILED"
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeScoreWriteFailed         ErrorCode = "SCORE_WRITE_FAILED"
	ErrCodeTaskTimeout              ErrorCode = "TASK_TIMEOUT"
	ErrCodeEventPublishFailed       ErrorCode = "EVENT_PUBLISH_FAILED"
	ErrCodeIndexWriteFailed         ErrorCode = "INDEX_WRITE_FAILED"
)

// Computation errors: unexpected data or a bug while scoring.
const (
	ErrCodeMalformedProfile  ErrorCode = "MALFORMED_PROFILE"
	ErrCodeComputationFailed ErrorCode = "COMPUTATION_FAILED"
)

// State errors.
const (
	ErrCodeTaskNotClaimed ErrorCode = "TASK_NOT_CLAIMED"
	ErrCodeRunInProgress  ErrorCode = "RUN_IN_PROGRESS"
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
)

// Category groups codes by how the queue processor reacts to them.
type Category string

const (
	CategoryInput       Category = "INPUT"
	CategoryTransient   Category = "TRANSIENT"
	CategoryComputation Category = "COMPUTATION"
	CategoryState       Category = "STATE"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Category  Category               `json:"category"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Stack     string                 `json:"-"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error { return e.cause }

// WithMetadata attaches a key to the error and returns it for chaining.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, cause error) *StandardError {
	category := CategoryOf(code)
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: category == CategoryTransient || category == CategoryComputation,
		Category:  category,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// 2. Error Constructors
// ==========================

// NewCandidateNotFoundError creates a non-retryable lookup error.
func NewCandidateNotFoundError(candidateID string) *StandardError {
	return newError(ErrCodeCandidateNotFound, "Candidate profile not found",
		fmt.Sprintf("candidateId: %s", candidateID), nil)
}

// NewOpportunityNotFoundError creates a non-retryable lookup error.
func NewOpportunityNotFoundError(opportunityID string) *StandardError {
	return newError(ErrCodeOpportunityNotFound, "Opportunity profile not found",
		fmt.Sprintf("opportunityId: %s", opportunityID), nil)
}

func NewInvalidTaskScopeError(details string) *StandardError {
	return newError(ErrCodeInvalidTaskScope, "Invalid task scope", details, nil)
}

func NewInvalidPriorityError(priority int) *StandardError {
	return newError(ErrCodeInvalidPriority, "Priority out of range",
		fmt.Sprintf("priority: %d", priority), nil)
}

func NewInvalidRequestError(details string) *StandardError {
	return newError(ErrCodeInvalidRequest, "Invalid request", details, nil)
}

// NewProfileFetchFailedError creates a retryable collaborator error.
func NewProfileFetchFailedError(service string, err error) *StandardError {
	return newError(ErrCodeProfileFetchFailed,
		fmt.Sprintf("Profile service '%s' error", service), errDetails(err), err)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", errDetails(err), err)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, errDetails(err)), err)
}

func NewScoreWriteFailedError(err error) *StandardError {
	return newError(ErrCodeScoreWriteFailed, "Score write failed", errDetails(err), err)
}

// NewTaskTimeoutError reports a task that ran past its soft deadline.
func NewTaskTimeoutError(taskID string, timeout time.Duration) *StandardError {
	return newError(ErrCodeTaskTimeout, "Task exceeded its time budget",
		fmt.Sprintf("taskId: %s, timeout: %s", taskID, timeout), context.DeadlineExceeded)
}

func NewEventPublishFailedError(driver string, err error) *StandardError {
	return newError(ErrCodeEventPublishFailed,
		fmt.Sprintf("Event publish via '%s' failed", driver), errDetails(err), err)
}

func NewIndexWriteFailedError(index string, err error) *StandardError {
	return newError(ErrCodeIndexWriteFailed, "Search index write failed",
		fmt.Sprintf("index: %s, error: %s", index, errDetails(err)), err)
}

func NewMalformedProfileError(details string) *StandardError {
	return newError(ErrCodeMalformedProfile, "Malformed profile", details, nil)
}

// NewComputationFailedError wraps a scoring failure, keeping the stack of the
// point where it was raised.
func NewComputationFailedError(err error) *StandardError {
	if err == nil {
		err = stderrors.New("computation failed")
	}
	wrapped := goerrors.Wrap(err, 1)
	e := newError(ErrCodeComputationFailed, "Score computation failed", errDetails(err), err)
	e.Stack = string(wrapped.Stack())
	return e
}

// NewPanicError converts a recovered panic value into a computation error.
func NewPanicError(recovered interface{}) *StandardError {
	wrapped := goerrors.Wrap(recovered, 2)
	e := newError(ErrCodeComputationFailed, "Score computation panicked", wrapped.Error(), wrapped)
	e.Stack = string(wrapped.Stack())
	return e
}

func NewTaskNotClaimedError(taskID string) *StandardError {
	return newError(ErrCodeTaskNotClaimed, "Task is not in PROCESSING state",
		fmt.Sprintf("taskId: %s", taskID), nil)
}

func NewRunInProgressError() *StandardError {
	return newError(ErrCodeRunInProgress, "A processing run is already in progress", "", nil)
}

// ==========================
// 3. Utility Functions
// ==========================

// CategoryOf returns the category of the error code.
func CategoryOf(code ErrorCode) Category {
	switch code {
	case ErrCodeCandidateNotFound,
		ErrCodeOpportunityNotFound,
		ErrCodeInvalidTaskScope,
		ErrCodeInvalidPriority,
		ErrCodeInvalidRequest:
		return CategoryInput

	case ErrCodeProfileFetchFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeScoreWriteFailed,
		ErrCodeTaskTimeout,
		ErrCodeEventPublishFailed,
		ErrCodeIndexWriteFailed:
		return CategoryTransient

	case ErrCodeMalformedProfile, ErrCodeComputationFailed:
		return CategoryComputation

	default:
		return CategoryState
	}
}

// Normalize ensures we always have a StandardError. Deadline errors become
// TASK_TIMEOUT; anything unknown is treated as a computation failure so the
// task is retried rather than dropped.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		e := newError(ErrCodeTaskTimeout, "Task exceeded its time budget", err.Error(), err)
		return e
	}
	return newError(ErrCodeComputationFailed, "Unexpected error", err.Error(), err)
}

// CodeOf returns the code of err after normalization, or "" for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return Normalize(err).Code
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}

// IsInput reports whether err should fail a task without retry.
func IsInput(err error) bool {
	return err != nil && Normalize(err).Category == CategoryInput
}
