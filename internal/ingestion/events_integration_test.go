package ingestion

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

// TestKafkaRunPublisherIntegration publishes run lifecycle events to a real
// Kafka broker and reads them back, verifying payload shape and run-id keying.
func TestKafkaRunPublisherIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	kafkaContainer, err := tckafka.Run(ctx,
		"confluentinc/confluent-local:7.5.0",
		tckafka.WithClusterID("chronicler-test"),
	)
	require.NoError(t, err, "Failed to start kafka container")

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(kafkaContainer); err != nil {
			t.Errorf("Failed to terminate kafka container: %v", err)
		}
	})

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "Failed to get broker addresses")
	require.NotEmpty(t, brokers)

	const topic = "chronicler.runs"

	createTopic(t, brokers[0], topic)

	publisher := NewKafkaRunPublisher(brokers, topic)

	t.Cleanup(func() {
		_ = publisher.Close()
	})

	runID := uuid.New()
	sourceURL := "https://archive.example.com/2025/meeting-summaries.json"

	err = publisher.PublishRunStarted(ctx, runID, sourceURL)
	require.NoError(t, err, "Failed to publish run_started")

	err = publisher.PublishRunFinished(ctx, runID, sourceURL, RunStatusSucceeded, RunStats{
		RecordsProcessed:  42,
		RecordsFailed:     1,
		DuplicatesAvoided: 7,
	})
	require.NoError(t, err, "Failed to publish run_finished")

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  "chronicler-test-consumer",
		MinBytes: 1,
		MaxBytes: 1 << 20,
	})

	t.Cleanup(func() {
		_ = reader.Close()
	})

	readCtx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	started := readRunEvent(t, readCtx, reader)
	require.Equal(t, "run_started", started.Event)
	require.Equal(t, runID.String(), started.RunID)
	require.Equal(t, sourceURL, started.SourceURL)
	require.False(t, started.Timestamp.IsZero())

	finished := readRunEvent(t, readCtx, reader)
	require.Equal(t, "run_finished", finished.Event)
	require.Equal(t, runID.String(), finished.RunID)
	require.Equal(t, string(RunStatusSucceeded), finished.Status)
	require.Equal(t, 42, finished.RecordsProcessed)
	require.Equal(t, 1, finished.RecordsFailed)
	require.Equal(t, 7, finished.DuplicatesAvoided)
}

// createTopic pre-creates the topic so the publisher does not race broker-side
// auto-creation.
func createTopic(t *testing.T, broker, topic string) {
	t.Helper()

	conn, err := kafka.Dial("tcp", broker)
	require.NoError(t, err, "Failed to dial broker")

	defer func() {
		_ = conn.Close()
	}()

	controller, err := conn.Controller()
	require.NoError(t, err, "Failed to get controller")

	controllerConn, err := kafka.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err, "Failed to dial controller")

	defer func() {
		_ = controllerConn.Close()
	}()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	require.NoError(t, err, "Failed to create topic")
}

// readRunEvent reads and decodes the next message, asserting it is keyed by
// run id.
func readRunEvent(t *testing.T, ctx context.Context, reader *kafka.Reader) runEvent {
	t.Helper()

	message, err := reader.ReadMessage(ctx)
	require.NoError(t, err, "Failed to read message")

	var event runEvent
	require.NoError(t, json.Unmarshal(message.Value, &event), "Failed to decode event")
	require.Equal(t, event.RunID, string(message.Key), "messages must be keyed by run id")

	return event
}
