// internal/common/errors/handler.go
package errors

// Disposition tells the queue processor what to do with a failed task.
type Disposition string

const (
	// DispositionRetry counts an attempt; the task returns to PENDING until
	// its attempts are exhausted.
	DispositionRetry Disposition = "RETRY"
	// DispositionFail moves the task straight to FAILED.
	DispositionFail Disposition = "FAIL"
)

// ErrorHandler classifies and logs task errors.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleTaskError normalizes err, logs it against the task and returns how the
// task should be marked.
func (h *ErrorHandler) HandleTaskError(taskID, scope string, attempt int, err error) (*StandardError, Disposition) {
	stdErr := Normalize(err)

	disposition := DispositionRetry
	if stdErr.Category == CategoryInput {
		disposition = DispositionFail
	}

	h.logError(taskID, scope, attempt, stdErr, disposition)
	return stdErr, disposition
}

func (h *ErrorHandler) logError(taskID, scope string, attempt int, stdErr *StandardError, disposition Disposition) {
	if h.logger == nil {
		return
	}
	fields := map[string]interface{}{
		"taskId":        taskID,
		"scope":         scope,
		"attempt":       attempt,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": string(stdErr.Category),
		"disposition":   string(disposition),
	}
	if stdErr.Stack != "" {
		fields["stack"] = stdErr.Stack
	}
	h.logger.Error("Task failed", fields)
}
