package outbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	auditpg "leasehold/pkg/platform/audit/store/postgres"
)

// KafkaProducer publishes outbox entries to a single topic, keyed by domain so
// a domain's events stay ordered within one partition.
type KafkaProducer struct {
	client *kgo.Client
	topic  string
}

// NewKafkaProducer connects to the seed brokers.
func NewKafkaProducer(brokers []string, topic string) (*KafkaProducer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaProducer{client: client, topic: topic}, nil
}

// EnsureTopic creates the audit topic if it does not exist yet.
func (p *KafkaProducer) EnsureTopic(ctx context.Context, partitions int32, replication int16) error {
	adm := kadm.NewClient(p.client)
	resps, err := adm.CreateTopics(ctx, partitions, replication, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	for _, resp := range resps {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", resp.Topic, resp.Err)
		}
	}
	return nil
}

// Publish produces the entries and waits for every acknowledgement.
func (p *KafkaProducer) Publish(ctx context.Context, entries []auditpg.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := p.client.ProduceSync(ctx, Records(p.topic, entries)...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit events: %w", err)
	}
	return nil
}

func (p *KafkaProducer) Close() {
	p.client.Close()
}

// Records maps outbox entries to Kafka records.
func Records(topic string, entries []auditpg.Entry) []*kgo.Record {
	records := make([]*kgo.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, &kgo.Record{
			Topic:     topic,
			Key:       []byte(e.AggregateID),
			Value:     e.Payload,
			Timestamp: e.CreatedAt,
			Headers: []kgo.RecordHeader{
				{Key: "event_type", Value: []byte(e.EventType)},
				{Key: "outbox_id", Value: []byte(e.ID.String())},
			},
		})
	}
	return records
}
