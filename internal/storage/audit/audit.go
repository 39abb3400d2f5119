// Package audit records one summary row per processor run.
package audit

import (
	"context"

	"match-engine/internal/models"
)

const (
	DefaultLimit = 20
	MaxLimit     = 500
)

// Log is the RunAuditLog. Entries are append-only; Recent returns them
// newest first.
type Log interface {
	Append(ctx context.Context, entry models.RunAuditEntry) error
	Recent(ctx context.Context, limit int) ([]models.RunAuditEntry, error)
}

func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
