// internal/models/run.go
package models

import "time"

// RunAuditEntry summarizes one processor invocation.
type RunAuditEntry struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"startedAt"`
	FinishedAt     time.Time `json:"finishedAt"`
	DurationMs     int64     `json:"durationMs"`
	TasksClaimed   int       `json:"tasksClaimed"`
	TasksCompleted int       `json:"tasksCompleted"`
	TasksFailed    int       `json:"tasksFailed"`
	ScoresWritten  int       `json:"scoresWritten"`
	Success        bool      `json:"success"`
	ErrorSummary   string    `json:"errorSummary,omitempty"`
}

type QueueStatus struct {
	Pending            int   `json:"pending"`
	Processing         int   `json:"processing"`
	CompletedToday     int   `json:"completedToday"`
	FailedToday        int   `json:"failedToday"`
	OldestPendingAgeMs int64 `json:"oldestPendingAgeMs"`
}
