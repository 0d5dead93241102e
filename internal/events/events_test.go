package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisherEncodesEvent(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisher(w)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return at }

	err := p.Publish(context.Background(), Event{
		Type:    InventoryRecorded,
		Key:     "item-1",
		Payload: map[string]any{"quantity": 50},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	m := w.msgs[0]
	assert.Equal(t, "item-1", string(m.Key))
	assert.JSONEq(t, `{"quantity":50}`, string(m.Value))
	assert.Equal(t, at, m.Time)
	assert.Equal(t, []kafka.Header{{Key: "type", Value: []byte(InventoryRecorded)}}, m.Headers)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisherPropagatesWriteError(t *testing.T) {
	p := NewPublisher(&fakeWriter{err: errors.New("broker down")})
	err := p.Publish(context.Background(), Event{Type: OrdersPrinted, Payload: []string{"a"}})
	assert.EqualError(t, err, "broker down")
}

func TestKafkaPublisherRejectsUnencodablePayload(t *testing.T) {
	w := &fakeWriter{}
	err := NewPublisher(w).Publish(context.Background(), Event{Type: OrdersPrinted, Payload: make(chan int)})
	assert.Error(t, err)
	assert.Empty(t, w.msgs)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	require.NoError(t, r.Publish(context.Background(), Event{Type: OrdersPrinted, Key: "job-1"}))
	got := r.Events()
	require.Len(t, got, 1)
	assert.Equal(t, "job-1", got[0].Key)
}
