package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"match-engine/internal/collaborators"
	"match-engine/internal/common/config"
	"match-engine/internal/common/logger"
	"match-engine/internal/events"
	"match-engine/internal/matching"
	"match-engine/internal/models"
	"match-engine/internal/storage/audit"
	"match-engine/internal/storage/queue"
	"match-engine/internal/storage/scores"
	"match-engine/internal/workers/recompute"
	"match-engine/internal/workers/trigger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff(t *testing.T) {
	log := logger.NewTestLogger(t)
	calls := 0
	err := retryWithBackoff(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	}, 5, time.Millisecond, log, "op")
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retryWithBackoff(context.Background(), func() error {
		calls++
		return errors.New("down")
	}, 2, time.Millisecond, log, "op")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "op failed after 2 attempts")
	assert.Equal(t, 2, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = retryWithBackoff(ctx, func() error { return errors.New("down") }, 5, time.Hour, log, "op")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuildCollaborators(t *testing.T) {
	log := logger.NewTestLogger(t)

	cfg := &config.Config{}
	p, o, inv := buildCollaborators(cfg, nil, log)
	assert.IsType(t, &collaborators.Directory{}, p)
	assert.IsType(t, &collaborators.Directory{}, o)
	assert.Nil(t, inv)

	cfg.Collaborators = config.CollaboratorsConfig{
		ProfileServiceURL:     "http://profiles.local",
		OpportunityServiceURL: "http://opportunities.local",
		Timeout:               1000,
	}
	p, o, inv = buildCollaborators(cfg, nil, log)
	assert.IsType(t, &collaborators.HTTPProfileService{}, p)
	assert.IsType(t, &collaborators.HTTPOpportunityService{}, o)
	assert.Nil(t, inv)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cfg.Collaborators.CacheTTL = 60000
	p, _, inv = buildCollaborators(cfg, rdb, log)
	assert.IsType(t, &collaborators.Cache{}, p)
	assert.NotNil(t, inv)
}

func TestAssemble_SchedulerDrivesEngine(t *testing.T) {
	log := logger.NewTestLogger(t)
	rcfg := recompute.DefaultConfig()
	rcfg.SweepInterval = 0

	dir := collaborators.NewDirectory()
	dir.PutCandidate(models.CandidateProfile{ID: "c1", Skills: []models.CandidateSkill{{SkillID: "go", Proficiency: 4}}})
	dir.PutOpportunity(models.OpportunityProfile{ID: "o1", RequiredSkills: []models.RequiredSkill{{SkillID: "go", Weight: 1}}})

	calc, err := matching.NewCalculator(matching.DefaultWeights())
	require.NoError(t, err)

	a := assemble(&config.Config{}, rcfg, storage{
		queue:  queue.NewMemoryQueue(rcfg.MaxAttempts),
		scores: scores.NewMemoryStore(),
		audit:  audit.NewMemoryLog(),
	}, dir, dir, nil, calc, events.NoopSink{}, events.NoopPublisher{}, nil, log)

	ctx := context.Background()
	_, _, err = a.Engine.HandleTrigger(ctx, trigger.EventSkillsUpdated, "c1")
	require.NoError(t, err)

	a.Scheduler.Tick(ctx)

	top, err := a.Engine.TopMatchesForCandidate(ctx, "c1", 5)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "o1", top[0].OpportunityID)

	a.Close()
}
