package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoroutineDispatcherRunsHandler(t *testing.T) {
	done := make(chan uuid.UUID, 1)
	d := NewGoroutineDispatcher(func(ctx context.Context, id uuid.UUID) error {
		done <- id
		return errors.New("ignored")
	}, nil)

	id := uuid.New()
	require.NoError(t, d.Dispatch(context.Background(), id))

	select {
	case got := <-done:
		assert.Equal(t, id, got)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}
}

func TestKafkaDispatcherPublishesJobID(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)

	id := uuid.New()
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var msg JobMessage
		if err := json.Unmarshal(value, &msg); err != nil {
			return err
		}
		if msg.JobID != id {
			return errors.New("unexpected job id")
		}
		return nil
	})

	d := NewKafkaDispatcherWithProducer(producer, "analysis-jobs", nil)
	require.NoError(t, d.Dispatch(context.Background(), id))
	require.NoError(t, d.Close())
}

func TestKafkaDispatcherPropagatesFailure(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	d := NewKafkaDispatcherWithProducer(producer, "analysis-jobs", nil)
	err := d.Dispatch(context.Background(), uuid.New())
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, d.Close())
}

func TestJobClaimHandlerProcess(t *testing.T) {
	var got []uuid.UUID
	h := &jobClaimHandler{
		handle: func(ctx context.Context, id uuid.UUID) error {
			got = append(got, id)
			return errors.New("analysis failed")
		},
		logger: slog.Default(),
	}

	id := uuid.New()
	payload, err := json.Marshal(JobMessage{JobID: id})
	require.NoError(t, err)

	assert.True(t, h.process(context.Background(), payload))
	assert.True(t, h.process(context.Background(), []byte("not json")))
	assert.True(t, h.process(context.Background(), []byte(`{"job_id":"00000000-0000-0000-0000-000000000000"}`)))
	assert.Equal(t, []uuid.UUID{id}, got)
}
