package collaborators

import (
	"context"
	"sort"
	"sync"

	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/models"
)

// Directory is an in-memory ProfileService and OpportunityService. It backs
// tests and local runs without the upstream services.
type Directory struct {
	mu            sync.RWMutex
	candidates    map[string]models.CandidateProfile
	opportunities map[string]models.OpportunityProfile
}

func NewDirectory() *Directory {
	return &Directory{
		candidates:    map[string]models.CandidateProfile{},
		opportunities: map[string]models.OpportunityProfile{},
	}
}

func (d *Directory) PutCandidate(c models.CandidateProfile) {
	d.mu.Lock()
	d.candidates[c.ID] = c
	d.mu.Unlock()
}

func (d *Directory) PutOpportunity(o models.OpportunityProfile) {
	d.mu.Lock()
	d.opportunities[o.ID] = o
	d.mu.Unlock()
}

func (d *Directory) RemoveCandidate(id string) {
	d.mu.Lock()
	delete(d.candidates, id)
	d.mu.Unlock()
}

func (d *Directory) RemoveOpportunity(id string) {
	d.mu.Lock()
	delete(d.opportunities, id)
	d.mu.Unlock()
}

func (d *Directory) GetCandidate(_ context.Context, id string) (*models.CandidateProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.candidates[id]
	if !ok {
		return nil, apperrors.NewCandidateNotFoundError(id)
	}
	return &c, nil
}

// ListActiveCandidates returns every stored candidate ordered by id.
func (d *Directory) ListActiveCandidates(_ context.Context) ([]models.CandidateProfile, error) {
	d.mu.RLock()
	out := make([]models.CandidateProfile, 0, len(d.candidates))
	for _, c := range d.candidates {
		out = append(out, c)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *Directory) GetOpportunity(_ context.Context, id string) (*models.OpportunityProfile, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	o, ok := d.opportunities[id]
	if !ok {
		return nil, apperrors.NewOpportunityNotFoundError(id)
	}
	return &o, nil
}

func (d *Directory) ListActiveOpportunities(_ context.Context) ([]models.OpportunityProfile, error) {
	d.mu.RLock()
	out := make([]models.OpportunityProfile, 0, len(d.opportunities))
	for _, o := range d.opportunities {
		out = append(out, o)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
