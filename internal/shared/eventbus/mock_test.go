package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEventBus_PublishAndGet(t *testing.T) {
	bus := NewMemoryEventBus()
	ctx := context.Background()

	for _, s := range []string{"PROCESSING", "COMPLETED"} {
		require.NoError(t, bus.PublishJobEvent(ctx, "R1", &JobEvent{
			Type: EventStatusChanged,
			Data: map[string]interface{}{"status": s},
		}))
	}
	require.NoError(t, bus.PublishJobEvent(ctx, "R2", &JobEvent{Type: EventPhaseStarted}))

	events, err := bus.GetJobEvents(ctx, "R1", "", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "PROCESSING", events[0].Status())
	assert.Equal(t, "COMPLETED", events[1].Status())
	assert.Equal(t, "R1", events[0].ReportID)
	assert.False(t, events[0].Timestamp.IsZero())

	after, err := bus.GetJobEvents(ctx, "R1", events[0].ID, 0)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, events[1].ID, after[0].ID)

	require.NoError(t, bus.DeleteJobEvents(ctx, "R1"))
	events, _ = bus.GetJobEvents(ctx, "R1", "", 0)
	assert.Empty(t, events)
}

func TestMemoryEventBus_Subscribe(t *testing.T) {
	bus := NewMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.SubscribeJobEvents(ctx, "R1")
	require.NoError(t, err)

	require.NoError(t, bus.PublishJobEvent(context.Background(), "R1", &JobEvent{Type: EventProgress}))
	require.NoError(t, bus.PublishJobEvent(context.Background(), "other", &JobEvent{Type: EventProgress}))

	select {
	case ev := <-ch:
		assert.Equal(t, EventProgress, ev.Type)
		assert.Equal(t, "R1", ev.ReportID)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel closed after cancel")
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestJobEvent_Status(t *testing.T) {
	ev := &JobEvent{Type: EventProgress, Data: map[string]interface{}{"status": "X"}}
	assert.Empty(t, ev.Status())
}
