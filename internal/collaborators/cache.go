package collaborators

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"match-engine/internal/common/logger"
	"match-engine/internal/common/metrics"
	"match-engine/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	candidateKeyPrefix   = "match:snapshot:candidate:"
	opportunityKeyPrefix = "match:snapshot:opportunity:"

	kindCandidate   = "candidate"
	kindOpportunity = "opportunity"
)

// Cache is a Redis read-through cache in front of both collaborators. Only
// single-profile lookups are cached; active lists always go to the service.
// Redis failures degrade to a direct fetch.
type Cache struct {
	profiles      ProfileService
	opportunities OpportunityService
	rdb           redis.Cmdable
	ttl           time.Duration
	logger        logger.Logger
}

func NewCache(profiles ProfileService, opportunities OpportunityService, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *Cache {
	return &Cache{
		profiles:      profiles,
		opportunities: opportunities,
		rdb:           rdb,
		ttl:           ttl,
		logger:        log.WithFields(map[string]interface{}{"component": "profile-cache"}),
	}
}

func (c *Cache) GetCandidate(ctx context.Context, id string) (*models.CandidateProfile, error) {
	var cached models.CandidateProfile
	if c.lookup(ctx, kindCandidate, candidateKeyPrefix+id, &cached) {
		return &cached, nil
	}
	p, err := c.profiles.GetCandidate(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, candidateKeyPrefix+id, p)
	return p, nil
}

func (c *Cache) ListActiveCandidates(ctx context.Context) ([]models.CandidateProfile, error) {
	return c.profiles.ListActiveCandidates(ctx)
}

func (c *Cache) GetOpportunity(ctx context.Context, id string) (*models.OpportunityProfile, error) {
	var cached models.OpportunityProfile
	if c.lookup(ctx, kindOpportunity, opportunityKeyPrefix+id, &cached) {
		return &cached, nil
	}
	o, err := c.opportunities.GetOpportunity(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, opportunityKeyPrefix+id, o)
	return o, nil
}

func (c *Cache) ListActiveOpportunities(ctx context.Context) ([]models.OpportunityProfile, error) {
	return c.opportunities.ListActiveOpportunities(ctx)
}

func (c *Cache) InvalidateCandidate(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, candidateKeyPrefix+id).Err()
}

func (c *Cache) InvalidateOpportunity(ctx context.Context, id string) error {
	return c.rdb.Del(ctx, opportunityKeyPrefix+id).Err()
}

func (c *Cache) lookup(ctx context.Context, kind, key string, dest interface{}) bool {
	val, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		metrics.ProfileCacheRequests.WithLabelValues(kind, "miss").Inc()
		return false
	case err != nil:
		metrics.ProfileCacheRequests.WithLabelValues(kind, "error").Inc()
		c.logger.Warn("Cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		return false
	}
	if err := json.Unmarshal(val, dest); err != nil {
		metrics.ProfileCacheRequests.WithLabelValues(kind, "miss").Inc()
		c.logger.Warn("Dropping undecodable cache entry", map[string]interface{}{"key": key, "error": err.Error()})
		return false
	}
	metrics.ProfileCacheRequests.WithLabelValues(kind, "hit").Inc()
	return true
}

func (c *Cache) store(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}
