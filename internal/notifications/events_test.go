package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	name   string
	events []Event
	err    error
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Publish(_ context.Context, ev Event) error {
	s.events = append(s.events, ev)
	return s.err
}

func TestDispatcher_FansOutAndSwallowsErrors(t *testing.T) {
	broken := &recordingSink{name: "broken", err: errors.New("down")}
	ok := &recordingSink{name: "ok"}
	d := NewDispatcher(broken, nil, ok)

	assert.Equal(t, []string{"broken", "ok"}, d.Sinks())

	d.Publish(context.Background(), Event{Type: EventPostShared, PostID: 1, Count: 5})

	require.Len(t, ok.events, 1)
	assert.False(t, ok.events[0].OccurredAt.IsZero())
	assert.Len(t, broken.events, 1)
}

func TestDispatcher_NilIsSafe(t *testing.T) {
	var d *Dispatcher
	assert.NotPanics(t, func() { d.Publish(context.Background(), Event{}) })
}

type fakeWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_KeysByPost(t *testing.T) {
	fw := &fakeWriter{}
	p := &KafkaPublisher{w: fw, topic: "engagement"}

	require.NoError(t, p.Publish(context.Background(), Event{Type: EventPostLiked, PostID: 31, ActorID: 2, Count: 1}))
	require.Len(t, fw.msgs, 1)

	msg := fw.msgs[0]
	assert.Equal(t, "31", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "post_liked", string(msg.Headers[0].Value))

	var ev Event
	require.NoError(t, json.Unmarshal(msg.Value, &ev))
	assert.EqualValues(t, 2, ev.ActorID)

	require.NoError(t, p.Close())
	assert.True(t, fw.closed)
}

func TestRequiredAcks(t *testing.T) {
	assert.Equal(t, kafka.RequireNone, RequiredAcks("none"))
	assert.Equal(t, kafka.RequireAll, RequiredAcks("all"))
	assert.Equal(t, kafka.RequireOne, RequiredAcks("one"))
	assert.Equal(t, kafka.RequireOne, RequiredAcks("bogus"))
}

func TestNewKafkaPublisher_UsesConfiguredAcks(t *testing.T) {
	p := NewKafkaPublisher([]string{"localhost:9092"}, "agora.engagement", kafka.RequireAll)
	w, ok := p.w.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, kafka.RequireAll, w.RequiredAcks)
	assert.Equal(t, "agora.engagement", w.Topic)
	require.NoError(t, p.Close())
}
