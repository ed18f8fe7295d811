package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// JobMessage is the payload published for each dispatched job
type JobMessage struct {
	JobID uuid.UUID `json:"job_id"`
}

// NewSaramaConfig returns the client configuration shared by the producer
// and the consumer group
func NewSaramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_6_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Return.Successes = true
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true
	return cfg
}

// KafkaDispatcher publishes jobs to a topic
type KafkaDispatcher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewKafkaDispatcher connects a synchronous producer to brokers
func NewKafkaDispatcher(brokers []string, topic string, logger *slog.Logger) (*KafkaDispatcher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaDispatcherWithProducer(producer, topic, logger), nil
}

// NewKafkaDispatcherWithProducer wraps an existing producer
func NewKafkaDispatcherWithProducer(producer sarama.SyncProducer, topic string, logger *slog.Logger) *KafkaDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaDispatcher{producer: producer, topic: topic, logger: logger}
}

// Dispatch publishes the job id keyed by itself
func (d *KafkaDispatcher) Dispatch(_ context.Context, jobID uuid.UUID) error {
	payload, err := json.Marshal(JobMessage{JobID: jobID})
	if err != nil {
		return err
	}

	partition, offset, err := d.producer.SendMessage(&sarama.ProducerMessage{
		Topic: d.topic,
		Key:   sarama.StringEncoder(jobID.String()),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("failed to publish job %s: %w", jobID, err)
	}

	d.logger.Info("dispatched job", "job_id", jobID, "topic", d.topic, "partition", partition, "offset", offset)
	return nil
}

// Close closes the producer
func (d *KafkaDispatcher) Close() error {
	return d.producer.Close()
}

// Consumer reads job messages from a consumer group and runs them
type Consumer struct {
	group   sarama.ConsumerGroup
	handler *jobClaimHandler
	topic   string
	groupID string
	logger  *slog.Logger
}

// NewConsumer joins groupID on brokers
func NewConsumer(brokers []string, topic, groupID string, handler JobHandler, logger *slog.Logger) (*Consumer, error) {
	group, err := sarama.NewConsumerGroup(brokers, groupID, NewSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Consumer{
		group:   group,
		handler: &jobClaimHandler{handle: handler, logger: logger},
		topic:   topic,
		groupID: groupID,
		logger:  logger,
	}, nil
}

// Run consumes until ctx is cancelled
func (c *Consumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("kafka consumer error", "error", err)
		}
	}()

	c.logger.Info("kafka consumer started", "group", c.groupID, "topic", c.topic)
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, c.handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) || errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Error("kafka consume failed", "error", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close leaves the group
func (c *Consumer) Close() error {
	return c.group.Close()
}

// jobClaimHandler implements sarama.ConsumerGroupHandler
type jobClaimHandler struct {
	handle JobHandler
	logger *slog.Logger
}

func (h *jobClaimHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *jobClaimHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *jobClaimHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}
			if h.process(session.Context(), message.Value) {
				session.MarkMessage(message, "")
			}
		case <-session.Context().Done():
			return nil
		}
	}
}

// process runs one message and reports whether to mark it. Malformed
// messages are marked so they are not redelivered forever. A failed job
// has already been recorded as failed by the handler, so it is marked too.
func (h *jobClaimHandler) process(ctx context.Context, value []byte) bool {
	var msg JobMessage
	if err := json.Unmarshal(value, &msg); err != nil || msg.JobID == uuid.Nil {
		h.logger.Warn("skipping malformed job message", "payload", string(value))
		return true
	}

	if err := h.handle(ctx, msg.JobID); err != nil {
		h.logger.Error("job failed", "job_id", msg.JobID, "error", err)
	}
	return true
}
