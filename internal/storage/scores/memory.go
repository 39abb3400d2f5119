package scores

import (
	"context"
	"sort"
	"sync"
	"time"

	"match-engine/internal/models"
)

type pairKey struct {
	candidateID   string
	opportunityID string
}

type memEntry struct {
	record models.MatchScoreRecord
	seq    uint64
}

// MemoryStore is an in-process Store used by tests and single-node setups.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[pairKey]*memEntry
	seq     uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[pairKey]*memEntry{}}
}

func (m *MemoryStore) put(s models.PairScore, computedAt time.Time) {
	key := pairKey{s.CandidateID, s.OpportunityID}
	if e, ok := m.entries[key]; ok {
		e.record = ToRecord(s, computedAt)
		return
	}
	m.seq++
	m.entries[key] = &memEntry{record: ToRecord(s, computedAt), seq: m.seq}
}

func (m *MemoryStore) UpsertPair(_ context.Context, score models.PairScore, computedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(score, computedAt)
	return nil
}

func (m *MemoryStore) BulkReplaceForCandidate(_ context.Context, candidateID string, scores []models.PairScore, computedAt time.Time) (int, error) {
	if err := checkScope(scores, candidateID, ""); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if key.candidateID == candidateID {
			delete(m.entries, key)
		}
	}
	for _, s := range scores {
		m.put(s, computedAt)
	}
	return len(scores), nil
}

func (m *MemoryStore) BulkReplaceForOpportunity(_ context.Context, opportunityID string, scores []models.PairScore, computedAt time.Time) (int, error) {
	if err := checkScope(scores, "", opportunityID); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.entries {
		if key.opportunityID == opportunityID {
			delete(m.entries, key)
		}
	}
	for _, s := range scores {
		m.put(s, computedAt)
	}
	return len(scores), nil
}

func (m *MemoryStore) TopForOpportunity(_ context.Context, opportunityID string, limit int) ([]models.MatchScoreRecord, error) {
	return m.top(func(k pairKey) bool { return k.opportunityID == opportunityID }, limit), nil
}

func (m *MemoryStore) TopForCandidate(_ context.Context, candidateID string, limit int) ([]models.MatchScoreRecord, error) {
	return m.top(func(k pairKey) bool { return k.candidateID == candidateID }, limit), nil
}

// Len returns the number of stored pairs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryStore) top(match func(pairKey) bool, limit int) []models.MatchScoreRecord {
	m.mu.RLock()
	selected := make([]memEntry, 0)
	for key, e := range m.entries {
		if match(key) {
			selected = append(selected, *e)
		}
	}
	m.mu.RUnlock()

	sort.Slice(selected, func(i, j int) bool {
		if selected[i].record.TotalScore != selected[j].record.TotalScore {
			return selected[i].record.TotalScore > selected[j].record.TotalScore
		}
		return selected[i].seq < selected[j].seq
	})

	limit = NormalizeLimit(limit)
	if len(selected) > limit {
		selected = selected[:limit]
	}
	out := make([]models.MatchScoreRecord, len(selected))
	for i, e := range selected {
		out[i] = e.record
		out[i].Rank = i + 1
	}
	return out
}
