package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deoglory/study-engine/internal/domain/shared"
)

const testUserID = "6f1e0c2a-8f4b-4d2e-9a3b-1c5d7e9f0a2b"

func syncBus() *InMemoryEventBus {
	return NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:     false,
		EnableMetrics: true,
	})
}

func TestInMemoryEventBus_DispatchesByType(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var got []shared.Event
	require.NoError(t, bus.Subscribe(shared.EventLessonCompleted, func(e shared.Event) error {
		got = append(got, e)
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewLessonCompletedEvent(testUserID, "genesis-01", "licao-criacao", 100)))
	require.NoError(t, bus.Publish(shared.NewXPGainedEvent(testUserID, 100, 250, "lesson_completed", "licao-criacao")))

	require.Len(t, got, 1)
	assert.Equal(t, shared.EventLessonCompleted, got[0].EventType())
	assert.Equal(t, testUserID, got[0].AggregateID())
}

func TestInMemoryEventBus_SubscribeAllSeesEverything(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var count int
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		count++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewLessonCompletedEvent(testUserID, "genesis-01", "licao-criacao", 100)))
	require.NoError(t, bus.Publish(shared.NewWeekMasteredEvent(testUserID, "genesis-01")))

	assert.Equal(t, 2, count)
}

func TestInMemoryEventBus_MultipleHandlersPerType(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var first, second bool
	require.NoError(t, bus.Subscribe(shared.EventWeekMastered, func(shared.Event) error {
		first = true
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventWeekMastered, func(shared.Event) error {
		second = true
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewWeekMasteredEvent(testUserID, "genesis-01")))
	assert.True(t, first)
	assert.True(t, second)
}

func TestInMemoryEventBus_AsyncDeliveryCompletesBeforeClose(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 4,
	})

	var mu sync.Mutex
	var count int
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(shared.NewXPGainedEvent(testUserID, 10, 10*(i+1), "lesson_completed", "licao-criacao")))
	}

	// Close waits for every in-flight handler to finish.
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 20, count)
}

func TestInMemoryEventBus_ClosedBusRejectsOperations(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewWeekMasteredEvent(testUserID, "genesis-01")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventWeekMastered, func(shared.Event) error { return nil }), ErrEventBusClosed)
	assert.NoError(t, bus.Close())
}

func TestInMemoryEventBus_NilArguments(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	assert.Error(t, bus.Publish(nil))
	assert.Error(t, bus.Subscribe(shared.EventWeekMastered, nil))
	assert.Error(t, bus.SubscribeAll(nil))
}

func TestInMemoryEventBus_HandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var reached bool
	require.NoError(t, bus.Subscribe(shared.EventWeekMastered, func(shared.Event) error {
		return assert.AnError
	}))
	require.NoError(t, bus.Subscribe(shared.EventWeekMastered, func(shared.Event) error {
		reached = true
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewWeekMasteredEvent(testUserID, "genesis-01")))
	assert.True(t, reached)
}

func TestInMemoryEventBus_Metrics(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventWeekMastered, func(shared.Event) error { return nil }))
	require.NoError(t, bus.Subscribe(shared.EventWeekMastered, func(shared.Event) error { return assert.AnError }))
	require.NoError(t, bus.Publish(shared.NewWeekMasteredEvent(testUserID, "genesis-01")))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalPublished)
	assert.Equal(t, int64(2), snap.TotalHandlerExecs)
	assert.InDelta(t, 0.5, snap.HandlerSuccessRate, 0.001)
}

// ─── Redis bus ──────────────────────────────────────────────────────────────

type fakeRedisClient struct {
	mu        sync.Mutex
	published []string
	messages  chan RedisMessage
}

func newFakeRedisClient() *fakeRedisClient {
	return &fakeRedisClient{messages: make(chan RedisMessage, 16)}
}

func (f *fakeRedisClient) Publish(_ context.Context, _ string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, message.(string))
	return nil
}

func (f *fakeRedisClient) Subscribe(_ context.Context, _ ...string) (<-chan RedisMessage, error) {
	return f.messages, nil
}

func (f *fakeRedisClient) Close() error { return nil }

func (f *fakeRedisClient) lastPublished(t *testing.T) wireEnvelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.published)
	var envelope wireEnvelope
	require.NoError(t, json.Unmarshal([]byte(f.published[len(f.published)-1]), &envelope))
	return envelope
}

func newRedisBus(t *testing.T, client *fakeRedisClient, instanceID string) *RedisEventBus {
	t.Helper()
	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:     client,
		InstanceID: instanceID,
		LocalBusConfig: InMemoryEventBusConfig{
			AsyncMode: false,
		},
	})
	require.NoError(t, err)
	return bus
}

func TestRedisEventBus_PublishesEnvelopeAndLocalDelivery(t *testing.T) {
	client := newFakeRedisClient()
	bus := newRedisBus(t, client, "instance-a")
	defer bus.Close()

	var local []shared.Event
	require.NoError(t, bus.Subscribe(shared.EventWeekMastered, func(e shared.Event) error {
		local = append(local, e)
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewWeekMasteredEvent(testUserID, "genesis-01")))

	// Local handlers receive the event directly.
	require.Len(t, local, 1)

	envelope := client.lastPublished(t)
	assert.Equal(t, "instance-a", envelope.InstanceID)
	assert.Equal(t, shared.EventWeekMastered, envelope.EventType)
	assert.Equal(t, testUserID, envelope.AggregateID)
}

func TestRedisEventBus_DeliversRemoteEvents(t *testing.T) {
	client := newFakeRedisClient()
	bus := newRedisBus(t, client, "instance-a")
	defer bus.Close()

	received := make(chan shared.Event, 1)
	require.NoError(t, bus.Subscribe(shared.EventXPGained, func(e shared.Event) error {
		received <- e
		return nil
	}))

	remote, err := json.Marshal(wireEnvelope{
		InstanceID:  "instance-b",
		EventType:   shared.EventXPGained,
		AggregateID: testUserID,
		OccurredAt:  time.Now().UTC(),
		Payload:     map[string]interface{}{"amount": 100},
	})
	require.NoError(t, err)
	client.messages <- RedisMessage{Payload: string(remote)}

	select {
	case e := <-received:
		assert.Equal(t, shared.EventXPGained, e.EventType())
		assert.Equal(t, testUserID, e.AggregateID())
	case <-time.After(2 * time.Second):
		t.Fatal("remote event was not delivered")
	}
}

// Self-published events were already handled locally and must not be
// delivered a second time.
func TestRedisEventBus_FiltersOwnEvents(t *testing.T) {
	client := newFakeRedisClient()
	bus := newRedisBus(t, client, "instance-a")
	defer bus.Close()

	received := make(chan shared.Event, 1)
	require.NoError(t, bus.Subscribe(shared.EventXPGained, func(e shared.Event) error {
		received <- e
		return nil
	}))

	own, err := json.Marshal(wireEnvelope{
		InstanceID:  "instance-a",
		EventType:   shared.EventXPGained,
		AggregateID: testUserID,
		OccurredAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	client.messages <- RedisMessage{Payload: string(own)}

	select {
	case <-received:
		t.Fatal("own event must be filtered out")
	case <-time.After(200 * time.Millisecond):
	}
}
