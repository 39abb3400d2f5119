// Package app assembles the engine from configuration. Both the service
// binary and matchctl build on it.
package app

import (
	"context"
	"fmt"
	"time"

	"match-engine/internal/collaborators"
	"match-engine/internal/common/config"
	"match-engine/internal/common/database"
	"match-engine/internal/common/logger"
	"match-engine/internal/common/observability"
	"match-engine/internal/engine"
	"match-engine/internal/events"
	"match-engine/internal/matching"
	"match-engine/internal/storage/audit"
	"match-engine/internal/storage/queue"
	"match-engine/internal/storage/scores"
	"match-engine/internal/workers/recompute"
	"match-engine/internal/workers/trigger"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
)

// Resources are the external connections the engine runs on. Redis and
// Elasticsearch are nil when not configured.
type Resources struct {
	Postgres      *database.PostgresClient
	Redis         *redis.Client
	Elasticsearch *elasticsearch.Client
}

func (r *Resources) Close() {
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	if r.Postgres != nil {
		_ = r.Postgres.Close()
	}
}

// Connect opens every configured backend, retrying each with exponential
// backoff. Postgres is mandatory; an unreachable cache or index fails startup
// too, since they were explicitly configured.
func Connect(ctx context.Context, cfg *config.Config, log logger.Logger, attempts int) (*Resources, error) {
	res := &Resources{}

	err := retryWithBackoff(ctx, func() error {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		if err := pg.Ping(ctx); err != nil {
			_ = pg.Close()
			return err
		}
		res.Postgres = pg
		return nil
	}, attempts, 2*time.Second, log, "PostgreSQL connection")
	if err != nil {
		return nil, err
	}
	log.Info("PostgreSQL connected successfully", nil)

	if cfg.Database.Postgres.AutoMigrate {
		applied, err := database.Migrate(ctx, res.Postgres.DB)
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info("Migrations applied", map[string]interface{}{"versions": applied})
	}

	if rdb := database.NewRedis(cfg.Database.Redis); rdb != nil {
		err = retryWithBackoff(ctx, func() error {
			return database.PingRedis(ctx, rdb)
		}, attempts, 2*time.Second, log, "Redis connection")
		if err != nil {
			_ = rdb.Close()
			res.Close()
			return nil, err
		}
		res.Redis = rdb
		log.Info("Redis connected successfully", nil)
	}

	if cfg.Events.ScoreIndex.Enabled {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			res.Close()
			return nil, err
		}
		err = retryWithBackoff(ctx, func() error {
			if err := database.PingElasticsearch(ctx, es); err != nil {
				return err
			}
			return database.EnsureIndex(ctx, es, cfg.Database.Elasticsearch.Index, events.ScoreIndexMapping)
		}, attempts, 2*time.Second, log, "Elasticsearch connection")
		if err != nil {
			res.Close()
			return nil, err
		}
		res.Elasticsearch = es
		log.Info("Elasticsearch connected successfully", map[string]interface{}{"index": cfg.Database.Elasticsearch.Index})
	}
	return res, nil
}

// App is a fully wired engine.
type App struct {
	Config    *config.Config
	Engine    *engine.Engine
	Processor *recompute.Processor
	Scheduler *recompute.Scheduler
	Publisher events.Publisher
	Obs       *observability.Observability

	logger logger.Logger
}

// New builds the stores, collaborators, processor and engine on top of res.
func New(ctx context.Context, cfg *config.Config, res *Resources, log logger.Logger) (*App, error) {
	rcfg := recompute.LoadConfig(cfg)
	db := res.Postgres.DB

	calc, err := matching.NewCalculator(
		matching.WeightsFromConfig(cfg.Matching.Weights),
		matching.WithTechnicalMajors(cfg.Matching.TechnicalMajors),
	)
	if err != nil {
		return nil, fmt.Errorf("scoring weights: %w", err)
	}

	profiles, opportunities, invalidator := buildCollaborators(cfg, res.Redis, log)

	publisher, err := events.NewPublisher(ctx, cfg.Events, log)
	if err != nil {
		return nil, err
	}
	var sink events.ScoreSink = events.NoopSink{}
	if res.Elasticsearch != nil {
		sink = events.NewESScoreSink(res.Elasticsearch, cfg.Database.Elasticsearch.Index)
	}

	obs := observability.New(cfg.App.Name, cfg.Telemetry.JaegerEndpoint)

	return assemble(cfg, rcfg, storage{
		queue:  queue.NewPostgresQueue(db, rcfg.MaxAttempts),
		scores: scores.NewPostgresStore(db),
		audit:  audit.NewPostgresLog(db),
	}, profiles, opportunities, invalidator, calc, sink, publisher, obs, log), nil
}

type storage struct {
	queue  queue.Queue
	scores scores.Store
	audit  audit.Log
}

func assemble(cfg *config.Config, rcfg *recompute.Config, st storage,
	profiles collaborators.ProfileService, opportunities collaborators.OpportunityService,
	invalidator collaborators.Invalidator, scorer recompute.Scorer,
	sink events.ScoreSink, publisher events.Publisher, obs *observability.Observability, log logger.Logger) *App {

	proc := recompute.NewProcessor(rcfg, recompute.Deps{
		Queue:         st.queue,
		Store:         st.scores,
		Audit:         st.audit,
		Profiles:      profiles,
		Opportunities: opportunities,
		Scorer:        scorer,
		Sink:          sink,
		Publisher:     publisher,
		Observability: obs,
	}, log)
	adapter := trigger.NewAdapter(st.queue, profiles, invalidator, log)

	return &App{
		Config:    cfg,
		Processor: proc,
		Scheduler: recompute.NewScheduler(proc, st.queue, adapter, rcfg, log),
		Publisher: publisher,
		Obs:       obs,
		logger:    log,
		Engine: engine.New(engine.Deps{
			Queue:     st.queue,
			Store:     st.scores,
			Audit:     st.audit,
			Trigger:   adapter,
			Processor: proc,
		}),
	}
}

// buildCollaborators returns HTTP clients for the configured services, wrapped
// in the Redis snapshot cache when one is available. A service with no URL is
// served from an empty in-memory directory.
func buildCollaborators(cfg *config.Config, rdb redis.Cmdable, log logger.Logger) (collaborators.ProfileService, collaborators.OpportunityService, collaborators.Invalidator) {
	dir := collaborators.NewDirectory()
	var profiles collaborators.ProfileService = dir
	var opportunities collaborators.OpportunityService = dir

	c := cfg.Collaborators
	if c.ProfileServiceURL != "" {
		profiles = collaborators.NewHTTPProfileService(c)
	} else {
		log.Warn("No profile service configured, using an empty directory", nil)
	}
	if c.OpportunityServiceURL != "" {
		opportunities = collaborators.NewHTTPOpportunityService(c)
	} else {
		log.Warn("No opportunity service configured, using an empty directory", nil)
	}

	if rdb == nil || c.CacheTTL <= 0 {
		return profiles, opportunities, nil
	}
	cache := collaborators.NewCache(profiles, opportunities, rdb, config.GetDuration(c.CacheTTL), log)
	return cache, cache, cache
}

// Close flushes telemetry and closes the event publisher.
func (a *App) Close() {
	if err := a.Publisher.Close(); err != nil {
		a.logger.Warn("Event publisher close failed", map[string]interface{}{"error": err.Error()})
	}
	a.Obs.Shutdown()
}
