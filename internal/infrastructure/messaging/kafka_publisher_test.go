package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/garyjia/image-annotation/internal/domain/event"
	"github.com/garyjia/image-annotation/internal/domain/workflow"
	kgo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	messages    []kgo.Message
	err         error
	hasDeadline bool
	closed      bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kgo.Message) error {
	_, f.hasDeadline = ctx.Deadline()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, time.Second, zap.NewNop())

	evt := event.NewEvent(event.TypeTaskClaimed, 42, 7, nil).
		WithTransition(workflow.StatePending, workflow.StateAnnotating)
	require.NoError(t, p.Publish(context.Background(), evt))

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.True(t, w.hasDeadline)
	assert.Equal(t, "42", string(msg.Key))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, "task.claimed", string(msg.Headers[0].Value))

	var decoded event.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, evt.ID, decoded.ID)
	assert.Equal(t, workflow.StateAnnotating, decoded.To)
	assert.Equal(t, int64(7), decoded.ActorID)
}

func TestKafkaPublisher_WriteFailure(t *testing.T) {
	boom := errors.New("broker unreachable")
	p := newKafkaPublisher(&fakeWriter{err: boom}, 0, zap.NewNop())

	err := p.Publish(context.Background(), event.NewEvent(event.TypeTaskCreated, 1, 1, nil))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3*time.Second, p.timeout)
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, newKafkaPublisher(w, time.Second, zap.NewNop()).Close())
	assert.True(t, w.closed)
}

func TestNewKafkaPublisher_Validates(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{Topic: "t"}, zap.NewNop())
	assert.Error(t, err)

	_, err = NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}}, zap.NewNop())
	assert.Error(t, err)

	p, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "annotation.lifecycle"}, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestSplitBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitBrokers(" a:9092, ,b:9092,"))
	assert.Empty(t, SplitBrokers(""))
}
