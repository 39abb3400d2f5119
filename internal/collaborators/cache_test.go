package collaborators

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/common/logger"
	"match-engine/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingDirectory struct {
	*Directory
	candidateCalls   int
	opportunityCalls int
}

func (d *countingDirectory) GetCandidate(ctx context.Context, id string) (*models.CandidateProfile, error) {
	d.candidateCalls++
	return d.Directory.GetCandidate(ctx, id)
}

func (d *countingDirectory) GetOpportunity(ctx context.Context, id string) (*models.OpportunityProfile, error) {
	d.opportunityCalls++
	return d.Directory.GetOpportunity(ctx, id)
}

func newCountingDirectory() *countingDirectory {
	d := &countingDirectory{Directory: NewDirectory()}
	d.PutCandidate(models.CandidateProfile{ID: "c-1", Skills: []models.CandidateSkill{{SkillID: "go", Proficiency: 3}}})
	d.PutOpportunity(models.OpportunityProfile{ID: "o-1", Title: "Go Developer"})
	return d
}

func TestCache_ReadThroughAndInvalidate(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	dir := newCountingDirectory()
	cache := NewCache(dir, dir, rdb, 5*time.Minute, logger.NewTestLogger(t))
	ctx := context.Background()

	first, err := cache.GetCandidate(ctx, "c-1")
	require.NoError(t, err)
	second, err := cache.GetCandidate(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, dir.candidateCalls)
	assert.True(t, mr.Exists(candidateKeyPrefix+"c-1"))
	assert.Equal(t, 5*time.Minute, mr.TTL(candidateKeyPrefix+"c-1"))

	dir.PutCandidate(models.CandidateProfile{ID: "c-1", Skills: []models.CandidateSkill{{SkillID: "go", Proficiency: 5}}})
	stale, err := cache.GetCandidate(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stale.Skills[0].Proficiency)

	require.NoError(t, cache.InvalidateCandidate(ctx, "c-1"))
	fresh, err := cache.GetCandidate(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, 5, fresh.Skills[0].Proficiency)
	assert.Equal(t, 2, dir.candidateCalls)
}

func TestCache_OpportunityAndNotFound(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	dir := newCountingDirectory()
	cache := NewCache(dir, dir, rdb, time.Minute, logger.NewNoOpLogger())
	ctx := context.Background()

	_, err := cache.GetOpportunity(ctx, "o-1")
	require.NoError(t, err)
	_, err = cache.GetOpportunity(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, 1, dir.opportunityCalls)

	require.NoError(t, cache.InvalidateOpportunity(ctx, "o-1"))
	assert.False(t, mr.Exists(opportunityKeyPrefix+"o-1"))

	_, err = cache.GetOpportunity(ctx, "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeOpportunityNotFound))
	assert.False(t, mr.Exists(opportunityKeyPrefix+"missing"), "misses are not cached")

	mr.Set(candidateKeyPrefix+"c-1", "{not json")
	c, err := cache.GetCandidate(ctx, "c-1")
	require.NoError(t, err)
	assert.Equal(t, "c-1", c.ID)
}

func TestCache_RedisDownFallsBackToService(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	dir := newCountingDirectory()
	cache := NewCache(dir, dir, rdb, 5*time.Minute, logger.NewNoOpLogger())

	profile, _ := dir.Directory.GetCandidate(context.Background(), "c-1")
	data, err := json.Marshal(profile)
	require.NoError(t, err)

	mock.ExpectGet(candidateKeyPrefix + "c-1").SetErr(errors.New("connection refused"))
	mock.ExpectSet(candidateKeyPrefix+"c-1", data, 5*time.Minute).SetErr(errors.New("connection refused"))

	got, err := cache.GetCandidate(context.Background(), "c-1")
	require.NoError(t, err)
	assert.Equal(t, "c-1", got.ID)
	assert.Equal(t, 1, dir.candidateCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDirectory_ListsSortedByID(t *testing.T) {
	d := NewDirectory()
	d.PutCandidate(models.CandidateProfile{ID: "b"})
	d.PutCandidate(models.CandidateProfile{ID: "a"})
	d.PutOpportunity(models.OpportunityProfile{ID: "z"})

	cs, err := d.ListActiveCandidates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", cs[0].ID)

	d.RemoveCandidate("a")
	_, err = d.GetCandidate(context.Background(), "a")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCandidateNotFound))

	opps, err := d.ListActiveOpportunities(context.Background())
	require.NoError(t, err)
	assert.Len(t, opps, 1)
	d.RemoveOpportunity("z")
	_, err = d.GetOpportunity(context.Background(), "z")
	assert.Error(t, err)
}
