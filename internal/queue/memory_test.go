package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/remediation-worker/internal/model"
)

func TestMemoryQueueFIFO(t *testing.T) {
	q := NewMemory(time.Minute)
	ctx := context.Background()

	for _, id := range []string{"scan-a", "scan-b", "scan-c"} {
		_, err := q.Send(ctx, model.JobMessage{ScanID: id})
		require.NoError(t, err)
	}

	msgs, err := q.Receive(ctx, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "scan-a", msgs[0].Body.ScanID)
	assert.Equal(t, "scan-b", msgs[1].Body.ScanID)

	msgs, err = q.Receive(ctx, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "scan-c", msgs[0].Body.ScanID)
}

func TestMemoryQueueEmptyReceive(t *testing.T) {
	q := NewMemory(time.Minute)
	_, err := q.Receive(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestMemoryQueueClaimedMessageInvisible(t *testing.T) {
	q := NewMemory(time.Minute)
	ctx := context.Background()

	_, err := q.Send(ctx, model.JobMessage{ScanID: "scan-a"})
	require.NoError(t, err)

	_, err = q.Receive(ctx, 1)
	require.NoError(t, err)

	// still claimed, nothing to hand out
	_, err = q.Receive(ctx, 1)
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestMemoryQueueRedeliveryAfterVisibilityTimeout(t *testing.T) {
	q := NewMemory(time.Minute)
	ctx := context.Background()

	now := time.Unix(1000, 0)
	q.now = func() time.Time { return now }

	_, err := q.Send(ctx, model.JobMessage{ScanID: "scan-a"})
	require.NoError(t, err)

	first, err := q.Receive(ctx, 1)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	second, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "scan-a", second[0].Body.ScanID)
	// the reclaim issues a new ack token; the stale one no longer deletes
	assert.NotEqual(t, first[0].AckToken, second[0].AckToken)

	require.NoError(t, q.Delete(ctx, first[0].AckToken))
	now = now.Add(2 * time.Minute)
	msgs, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestMemoryQueueDeleteAcksMessage(t *testing.T) {
	q := NewMemory(time.Minute)
	ctx := context.Background()

	now := time.Unix(1000, 0)
	q.now = func() time.Time { return now }

	_, err := q.Send(ctx, model.JobMessage{ScanID: "scan-a"})
	require.NoError(t, err)

	msgs, err := q.Receive(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, q.Delete(ctx, msgs[0].AckToken))

	// deleted for good, even after the claim would have expired
	now = now.Add(time.Hour)
	_, err = q.Receive(ctx, 1)
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestMemoryQueueDeleteUnknownTokenIsNoop(t *testing.T) {
	q := NewMemory(time.Minute)
	assert.NoError(t, q.Delete(context.Background(), "bogus"))
}
