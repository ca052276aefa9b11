package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryPublisherRecordsEventsInOrder(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Publish(context.Background(), []byte("first")))
	require.NoError(t, m.Publish(context.Background(), []byte("second")))

	events := m.Events()
	require.Len(t, events, 2)
	require.Equal(t, "first", string(events[0]))
	require.Equal(t, "second", string(events[1]))
}

func TestMemoryPublisherCopiesPayload(t *testing.T) {
	m := NewMemory()
	payload := []byte("immutable")
	require.NoError(t, m.Publish(context.Background(), payload))
	payload[0] = 'X'
	require.Equal(t, "immutable", string(m.Events()[0]))
}

func TestMemoryPublisherHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, NewMemory().Publish(ctx, []byte("late")))
}
