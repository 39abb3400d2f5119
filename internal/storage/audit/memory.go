package audit

import (
	"context"
	"sort"
	"sync"

	"match-engine/internal/models"

	"github.com/google/uuid"
)

type MemoryLog struct {
	mu      sync.RWMutex
	entries []models.RunAuditEntry
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (l *MemoryLog) Append(_ context.Context, entry models.RunAuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
	return nil
}

// Recent orders by start time, newest first; entries that started at the same
// instant come back in reverse append order.
func (l *MemoryLog) Recent(_ context.Context, limit int) ([]models.RunAuditEntry, error) {
	l.mu.RLock()
	out := make([]models.RunAuditEntry, len(l.entries))
	for i := range l.entries {
		out[len(out)-1-i] = l.entries[i]
	}
	l.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit = NormalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
