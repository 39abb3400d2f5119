package events

import (
	"context"
	"strconv"

	appaws "match-engine/internal/common/aws"
	apperrors "match-engine/internal/common/errors"
	"match-engine/internal/common/logger"
)

type SNSPublisher struct {
	client   *appaws.SNSClient
	topicARN string
	logger   logger.Logger
}

func NewSNSPublisher(ctx context.Context, region, topicARN string, log logger.Logger) (*SNSPublisher, error) {
	client, err := appaws.NewSNSClient(ctx, region)
	if err != nil {
		return nil, apperrors.NewEventPublishFailedError(DriverSNS, err)
	}
	return newSNSPublisher(client, topicARN, log), nil
}

func newSNSPublisher(client *appaws.SNSClient, topicARN string, log logger.Logger) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN, logger: log.WithFields(map[string]interface{}{"driver": DriverSNS})}
}

func (p *SNSPublisher) PublishRun(ctx context.Context, event RunEvent) error {
	data, err := event.encode()
	if err != nil {
		return apperrors.NewEventPublishFailedError(DriverSNS, err)
	}
	id, err := p.client.PublishJSON(ctx, p.topicARN, "Match engine run", data, map[string]string{
		"eventType": event.Type,
		"success":   strconv.FormatBool(event.Run.Success),
	})
	if err != nil {
		return apperrors.NewEventPublishFailedError(DriverSNS, err)
	}
	p.logger.Debug("Published run event", map[string]interface{}{"messageId": id, "runId": event.Run.ID})
	return nil
}

func (p *SNSPublisher) Close() error { return nil }
