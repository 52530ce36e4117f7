package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// runEvent is the wire shape published for run lifecycle notifications.
type runEvent struct {
	Event             string    `json:"event"`
	RunID             string    `json:"run_id"`             //nolint:tagliatelle
	SourceURL         string    `json:"source_url"`         //nolint:tagliatelle
	Status            string    `json:"status,omitempty"`
	RecordsProcessed  int       `json:"records_processed"`  //nolint:tagliatelle
	RecordsFailed     int       `json:"records_failed"`     //nolint:tagliatelle
	DuplicatesAvoided int       `json:"duplicates_avoided"` //nolint:tagliatelle
	Timestamp         time.Time `json:"timestamp"`
}

// KafkaRunPublisher publishes run lifecycle events to a Kafka topic so
// downstream consumers (dashboard refreshers, schedulers) can react to run
// completion without polling the runs table.
type KafkaRunPublisher struct {
	writer *kafka.Writer
}

// NewKafkaRunPublisher creates a publisher for the given brokers and topic.
// Messages are keyed by run id so per-run ordering is preserved.
func NewKafkaRunPublisher(brokers []string, topic string) *KafkaRunPublisher {
	return &KafkaRunPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 100 * time.Millisecond,
		},
	}
}

// PublishRunStarted emits a run_started event.
func (p *KafkaRunPublisher) PublishRunStarted(ctx context.Context, runID uuid.UUID, sourceURL string) error {
	return p.publish(ctx, runEvent{
		Event:     "run_started",
		RunID:     runID.String(),
		SourceURL: sourceURL,
		Timestamp: time.Now().UTC(),
	})
}

// PublishRunFinished emits a run_finished event with the closing counters.
func (p *KafkaRunPublisher) PublishRunFinished(
	ctx context.Context,
	runID uuid.UUID,
	sourceURL string,
	status RunStatus,
	stats RunStats,
) error {
	return p.publish(ctx, runEvent{
		Event:             "run_finished",
		RunID:             runID.String(),
		SourceURL:         sourceURL,
		Status:            string(status),
		RecordsProcessed:  stats.RecordsProcessed,
		RecordsFailed:     stats.RecordsFailed,
		DuplicatesAvoided: stats.DuplicatesAvoided,
		Timestamp:         time.Now().UTC(),
	})
}

// Close flushes and closes the underlying Kafka writer.
func (p *KafkaRunPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaRunPublisher) publish(ctx context.Context, event runEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal run event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.RunID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Event, err)
	}

	return nil
}

// Compile-time interface check.
var _ RunEventPublisher = (*KafkaRunPublisher)(nil)
