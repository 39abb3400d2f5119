// Package events pushes engine output to downstream consumers: run summaries
// to a message bus and fresh scores to a search index. Both are best effort;
// the match_scores table stays the source of truth.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"match-engine/internal/common/config"
	"match-engine/internal/common/logger"
	"match-engine/internal/models"
)

const (
	EventRunCompleted = "matching.run.completed"

	DriverNATS = "nats"
	DriverSNS  = "sns"
	DriverNone = "none"
)

// RunEvent announces a finished processor run with the queue status right
// after it.
type RunEvent struct {
	Type        string               `json:"type"`
	Run         models.RunAuditEntry `json:"run"`
	Queue       models.QueueStatus   `json:"queue"`
	PublishedAt time.Time            `json:"publishedAt"`
}

func NewRunEvent(run models.RunAuditEntry, queue models.QueueStatus, now time.Time) RunEvent {
	return RunEvent{Type: EventRunCompleted, Run: run, Queue: queue, PublishedAt: now.UTC()}
}

func (e RunEvent) encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal run event: %w", err)
	}
	return data, nil
}

type Publisher interface {
	PublishRun(ctx context.Context, event RunEvent) error
	Close() error
}

// ScoreSink receives the records written by a run. replaced lists the
// candidate and opportunity scopes whose earlier scores the run superseded.
type ScoreSink interface {
	IndexScores(ctx context.Context, replaced []models.TaskScope, records []models.MatchScoreRecord) error
}

type NoopPublisher struct{}

func (NoopPublisher) PublishRun(context.Context, RunEvent) error { return nil }
func (NoopPublisher) Close() error                               { return nil }

type NoopSink struct{}

func (NoopSink) IndexScores(context.Context, []models.TaskScope, []models.MatchScoreRecord) error {
	return nil
}

// NewPublisher builds the publisher selected by cfg.Driver.
func NewPublisher(ctx context.Context, cfg config.EventsConfig, log logger.Logger) (Publisher, error) {
	switch cfg.Driver {
	case DriverNATS:
		return NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject, log)
	case DriverSNS:
		return NewSNSPublisher(ctx, cfg.SNS.Region, cfg.SNS.TopicARN, log)
	case "", DriverNone:
		return NoopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unsupported events driver %q", cfg.Driver)
	}
}
