// Package consumer reads relayed audit events back from Kafka and routes them
// by category to downstream handlers.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "leasehold/pkg/platform/audit"
	auditpg "leasehold/pkg/platform/audit/store/postgres"
)

// Handler processes one decoded audit event. A non-nil error stops the poll
// loop before the record's offset is committed, so it is redelivered.
type Handler interface {
	Handle(ctx context.Context, event audit.Event) error
}

// Consumer is a consumer-group member on the audit topic.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// New joins group on topic. Offsets are committed only after handling.
func New(brokers []string, topic, group string, handler Handler, logger *slog.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, handler: handler, logger: logger}, nil
}

// Run polls until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()
	for {
		fetches := c.client.PollFetches(ctx)
		if ctx.Err() != nil || fetches.IsClientClosed() {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.WarnContext(ctx, "audit fetch failed", "topic", topic, "partition", partition, "error", err)
		})

		var done []*kgo.Record
		var handleErr error
		fetches.EachRecord(func(rec *kgo.Record) {
			if handleErr != nil {
				return
			}
			if handleErr = c.process(ctx, rec); handleErr == nil {
				done = append(done, rec)
			}
		})
		if len(done) > 0 {
			if err := c.client.CommitRecords(ctx, done...); err != nil {
				c.logger.ErrorContext(ctx, "audit offset commit failed", "error", err)
			}
		}
		if handleErr != nil {
			return handleErr
		}
	}
}

func (c *Consumer) process(ctx context.Context, rec *kgo.Record) error {
	event, err := auditpg.DecodePayload(rec.Value)
	if err != nil {
		// Undecodable records would block the partition forever.
		c.logger.WarnContext(ctx, "skipping undecodable audit record",
			"partition", rec.Partition, "offset", rec.Offset, "error", err)
		return nil
	}
	if err := c.handler.Handle(ctx, event); err != nil {
		return fmt.Errorf("handle %s for %s: %w", event.Action, event.Domain, err)
	}
	return nil
}
