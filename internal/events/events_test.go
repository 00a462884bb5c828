package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/webinspector/internal/domain"
)

func TestBus_DeliversToAllSubscribers(t *testing.T) {
	b := NewBus(4, nil)
	a, cancelA := b.Subscribe()
	c, cancelC := b.Subscribe()
	defer cancelA()
	defer cancelC()

	ev := StatusChanged(domain.RunState{IsRunning: true, IntervalMinutes: 5}, time.Now())
	b.Publish(context.Background(), ev)

	assert.Equal(t, ev, <-a)
	assert.Equal(t, ev, <-c)
}

func TestBus_SlowSubscriberMissesEvents(t *testing.T) {
	drops := 0
	b := NewBus(1, func() { drops++ })
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish(context.Background(), ResultsAppended(1, time.Now()))
	b.Publish(context.Background(), ResultsAppended(2, time.Now()))

	got := <-ch
	assert.Equal(t, 1, got.Count)
	assert.Equal(t, 1, drops)
}

func TestBus_CancelClosesChannel(t *testing.T) {
	b := NewBus(0, nil)
	ch, cancel := b.Subscribe()
	require.Equal(t, 1, b.Subscribers())
	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, b.Subscribers())

	b.Publish(context.Background(), ResultsAppended(1, time.Now()))
}

func TestEvent_JSONShape(t *testing.T) {
	raw, err := json.Marshal(ResultsAppended(3, time.Unix(0, 0)))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"resultsUpdate","at":"1970-01-01T00:00:00Z","count":3}`, string(raw))
}

type recPublisher struct{ got []Event }

func (r *recPublisher) Publish(_ context.Context, ev Event) { r.got = append(r.got, ev) }

func TestFanout_SkipsNil(t *testing.T) {
	r := &recPublisher{}
	Fanout{nil, r}.Publish(context.Background(), ResultsAppended(1, time.Now()))
	assert.Len(t, r.got, 1)
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaSink_WritesJSONKeyedByType(t *testing.T) {
	w := &fakeWriter{}
	s := &KafkaSink{w: w, topic: DefaultTopic, log: zap.NewNop()}

	s.Publish(context.Background(), ResultsAppended(2, time.Now()))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "resultsUpdate", string(w.msgs[0].Key))
	var ev Event
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, 2, ev.Count)
}

func TestKafkaSink_WriteErrorIsSwallowed(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	s := &KafkaSink{w: w, topic: DefaultTopic, log: zap.NewNop()}
	s.Publish(context.Background(), ResultsAppended(1, time.Now()))
	assert.Len(t, w.msgs, 1)
}
