package recompute

import (
	"context"
	"errors"
	"sync"
	"time"

	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/common/logger"
	"match-engine/internal/common/metrics"
	"match-engine/internal/storage/queue"
)

// Sweeper enqueues the periodic full rescore. The trigger adapter implements it.
type Sweeper interface {
	FullSweep(ctx context.Context) (int, error)
}

// Scheduler drives a Processor from a single goroutine: processing ticks,
// queue maintenance and the optional full sweep never overlap each other.
type Scheduler struct {
	processor *Processor
	queue     queue.Queue
	sweeper   Sweeper
	config    *Config
	logger    logger.Logger

	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	started bool
}

// NewScheduler builds a scheduler. sweeper may be nil, which disables the
// full sweep regardless of the configured interval.
func NewScheduler(p *Processor, q queue.Queue, sweeper Sweeper, cfg *Config, log logger.Logger) *Scheduler {
	return &Scheduler{
		processor: p,
		queue:     q,
		sweeper:   sweeper,
		config:    cfg,
		logger:    log.WithFields(map[string]interface{}{"component": "scheduler"}),
	}
}

var errAlreadyStarted = errors.New("scheduler already started")

// Start launches the loop. It stops when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errAlreadyStarted
	}
	s.started = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(ctx, s.stop, s.done)
	s.logger.Info("Scheduler started", map[string]interface{}{
		"interval":        s.config.Interval.String(),
		"cleanupInterval": s.config.CleanupInterval.String(),
		"sweepInterval":   s.config.SweepInterval.String(),
		"batchSize":       s.config.BatchSize,
	})
	return nil
}

// Stop ends the loop and waits for an in-flight run to finish. It is safe to
// call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("Scheduler stopped", nil)
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	process := time.NewTicker(s.config.Interval)
	defer process.Stop()
	cleanup := time.NewTicker(s.config.CleanupInterval)
	defer cleanup.Stop()

	var sweep <-chan time.Time
	if s.sweeper != nil && s.config.SweepInterval > 0 {
		t := time.NewTicker(s.config.SweepInterval)
		defer t.Stop()
		sweep = t.C
	}

	// runs are not interrupted by shutdown
	work := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-process.C:
			s.Tick(work)
		case <-cleanup.C:
			if _, _, err := s.Cleanup(work); err != nil {
				s.logger.Error("Queue cleanup failed", map[string]interface{}{"error": err.Error()})
			}
		case <-sweep:
			n, err := s.sweeper.FullSweep(work)
			if err != nil {
				s.logger.Error("Full sweep failed", map[string]interface{}{"error": err.Error()})
				continue
			}
			s.logger.Info("Full sweep enqueued", map[string]interface{}{"tasks": n})
		}
	}
}

// Tick runs one batch, skipping it when another run is still active.
func (s *Scheduler) Tick(ctx context.Context) {
	_, err := s.processor.RunOnce(ctx, s.config.BatchSize)
	switch {
	case err == nil:
	case apperrors.HasCode(err, apperrors.ErrCodeRunInProgress):
		metrics.RunsSkipped.Inc()
		s.logger.Debug("Skipping tick, run in progress", nil)
	default:
		s.logger.Error("Run failed", map[string]interface{}{"error": err.Error()})
	}
}

// Cleanup purges finished tasks past retention and requeues stale claims.
func (s *Scheduler) Cleanup(ctx context.Context) (purged, requeued int, err error) {
	requeued, err = s.queue.RequeueStale(ctx, s.config.StaleAfter)
	if err != nil {
		return 0, 0, err
	}
	purged, err = s.queue.PurgeOlderThan(ctx, s.config.Retention)
	if err != nil {
		return 0, requeued, err
	}
	if purged > 0 || requeued > 0 {
		s.logger.Info("Queue cleanup", map[string]interface{}{"purged": purged, "requeued": requeued})
	}
	return purged, requeued, nil
}
