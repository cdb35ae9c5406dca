package activity

import (
	"context"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureWriter struct {
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewKafkaSinkConfiguresWriter(t *testing.T) {
	s := NewKafkaSink([]string{"broker-1:9092"}, "room-activity")
	w, ok := s.writer.(*kafkago.Writer)
	require.True(t, ok)
	assert.Equal(t, "room-activity", w.Topic)
	assert.Equal(t, "broker-1:9092", w.Addr.String())
	assert.IsType(t, &kafkago.Hash{}, w.Balancer)
	require.NoError(t, s.Close())
}

func TestKafkaSinkPublish(t *testing.T) {
	w := &captureWriter{}
	s := &KafkaSink{writer: w}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	err := s.Publish(context.Background(), Event{Kind: MemberJoined, RoomID: "a1b2c3d4", Username: "bob", At: at})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, []byte("a1b2c3d4"), msg.Key)
	assert.Equal(t, at, msg.Time)
	assert.JSONEq(t, `{"kind":"member_joined","room_id":"a1b2c3d4","username":"bob","at":"2024-05-01T12:00:00Z"}`, string(msg.Value))

	require.NoError(t, s.Close())
	assert.True(t, w.closed)
}

func TestKafkaSinkPublishError(t *testing.T) {
	cause := errors.New("leader not available")
	s := &KafkaSink{writer: &captureWriter{err: cause}}

	err := s.Publish(context.Background(), Event{Kind: RoomClosed, RoomID: "a1b2c3d4"})
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "kafka publish")
}
