package events

import (
	"context"
	"fmt"
	"time"

	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/common/logger"

	"github.com/nats-io/nats.go"
)

const natsConnectTimeout = 10 * time.Second

type natsConn interface {
	Publish(subject string, data []byte) error
	Close()
}

type NATSPublisher struct {
	nc      natsConn
	subject string
	logger  logger.Logger
}

func NewNATSPublisher(url, subject string, log logger.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("match-engine"),
		nats.Timeout(natsConnectTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	return newNATSPublisher(nc, subject, log), nil
}

func newNATSPublisher(nc natsConn, subject string, log logger.Logger) *NATSPublisher {
	return &NATSPublisher{nc: nc, subject: subject, logger: log.WithFields(map[string]interface{}{"driver": DriverNATS})}
}

func (p *NATSPublisher) PublishRun(_ context.Context, event RunEvent) error {
	data, err := event.encode()
	if err != nil {
		return apperrors.NewEventPublishFailedError(DriverNATS, err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return apperrors.NewEventPublishFailedError(DriverNATS, err)
	}
	p.logger.Debug("Published run event", map[string]interface{}{
		"subject": p.subject,
		"runId":   event.Run.ID,
		"size":    len(data),
	})
	return nil
}

func (p *NATSPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}
