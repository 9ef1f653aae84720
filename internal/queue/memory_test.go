package queue

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/securewatch/securewatch/internal/detection"
)

func TestMemoryQueueRoundtrip(t *testing.T) {
	q := NewMemoryQueue(4)

	in := Job{
		ID:           "job-1",
		EventID:      "event-1",
		SourceIP:     "203.0.113.5",
		LogType:      "ssh",
		AnomalyScore: -0.6,
		Confidence:   0.9,
	}
	require.NoError(t, q.Dispatch(context.Background(), in))
	assert.Equal(t, 1, q.Len())

	out, err := q.Pop(context.Background())
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in, *out)
	assert.Equal(t, 0, q.Len())
}

func TestMemoryQueuePreservesOrder(t *testing.T) {
	q := NewMemoryQueue(8)
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Dispatch(context.Background(), Job{ID: fmt.Sprintf("job-%d", i)}))
	}
	for i := 0; i < 3; i++ {
		job, err := q.Pop(context.Background())
		require.NoError(t, err)
		require.NotNil(t, job)
		assert.Equal(t, fmt.Sprintf("job-%d", i), job.ID)
	}
}

func TestMemoryQueuePopEmptyReturnsNil(t *testing.T) {
	q := NewMemoryQueue(1)
	job, err := q.Pop(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, job)
}

func TestMemoryQueueDispatchFull(t *testing.T) {
	q := NewMemoryQueue(1)
	require.NoError(t, q.Dispatch(context.Background(), Job{ID: "job-1"}))
	err := q.Dispatch(context.Background(), Job{ID: "job-2"})
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestMemoryQueuePopCancelledContext(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJobFromVerdictCarriesScore(t *testing.T) {
	job := JobFromVerdict("job-1", "event-1", "10.0.0.1", "10.0.0.2", "firewall", "raw",
		detection.Verdict{IsAnomaly: true, AnomalyScore: -0.42, Confidence: 0.8})
	assert.Equal(t, "event-1", job.EventID)
	assert.Equal(t, -0.42, job.AnomalyScore)
	assert.Equal(t, 0.8, job.Confidence)
}
