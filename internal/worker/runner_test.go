package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/remediation-worker/internal/model"
	"github.com/yourorg/remediation-worker/internal/queue"
)

type scriptedQueue struct {
	mu       sync.Mutex
	pending  []queue.Message
	deleted  []string
	recvErr  error
	delErrs  int
	received int
}

func (q *scriptedQueue) Send(ctx context.Context, msg model.JobMessage) (string, error) {
	return "", errors.New("not used")
}

func (q *scriptedQueue) Receive(ctx context.Context, max int) ([]queue.Message, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.received++
	if q.recvErr != nil {
		return nil, q.recvErr
	}
	if len(q.pending) == 0 {
		return nil, queue.ErrNoMessages
	}
	msg := q.pending[0]
	q.pending = q.pending[1:]
	return []queue.Message{msg}, nil
}

func (q *scriptedQueue) Delete(ctx context.Context, ackToken string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.delErrs > 0 {
		q.delErrs--
		return errors.New("transient delete failure")
	}
	q.deleted = append(q.deleted, ackToken)
	return nil
}

func (q *scriptedQueue) deletedTokens() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.deleted...)
}

type recordingProcessor struct {
	mu        sync.Mutex
	processed []model.JobMessage
	err       error
	done      chan struct{}
}

func (p *recordingProcessor) Process(ctx context.Context, msg model.JobMessage) error {
	p.mu.Lock()
	p.processed = append(p.processed, msg)
	p.mu.Unlock()
	if p.done != nil {
		select {
		case p.done <- struct{}{}:
		default:
		}
	}
	return p.err
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.processed)
}

func runUntilProcessed(t *testing.T, q *scriptedQueue, p *recordingProcessor) {
	t.Helper()
	p.done = make(chan struct{}, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	finished := make(chan struct{})
	r := NewRunner(q, p, 5*time.Millisecond, zap.NewNop())
	go func() {
		_ = r.RunForever(ctx)
		close(finished)
	}()

	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		t.Fatal("message was never processed")
	}
	cancel()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop on cancel")
	}
}

func TestRunnerProcessesAndAcksMessage(t *testing.T) {
	q := &scriptedQueue{pending: []queue.Message{
		{ID: "m1", Body: model.JobMessage{ScanID: "scan-1"}, AckToken: "tok-1"},
	}}
	p := &recordingProcessor{}

	runUntilProcessed(t, q, p)

	require.Equal(t, 1, p.count())
	assert.Equal(t, "scan-1", p.processed[0].ScanID)
	assert.Eventually(t, func() bool {
		tokens := q.deletedTokens()
		return len(tokens) == 1 && tokens[0] == "tok-1"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunnerAcksEvenWhenProcessingFails(t *testing.T) {
	// the job document carries the outcome; a poison message must not loop
	q := &scriptedQueue{pending: []queue.Message{
		{ID: "m1", Body: model.JobMessage{ScanID: "scan-1"}, AckToken: "tok-1"},
	}}
	p := &recordingProcessor{err: errors.New("scan blew up")}

	runUntilProcessed(t, q, p)

	assert.Eventually(t, func() bool {
		return len(q.deletedTokens()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunnerRetriesAckFailure(t *testing.T) {
	q := &scriptedQueue{
		pending: []queue.Message{
			{ID: "m1", Body: model.JobMessage{ScanID: "scan-1"}, AckToken: "tok-1"},
		},
		delErrs: 2,
	}
	p := &recordingProcessor{}

	runUntilProcessed(t, q, p)

	assert.Eventually(t, func() bool {
		tokens := q.deletedTokens()
		return len(tokens) == 1 && tokens[0] == "tok-1"
	}, 3*time.Second, 10*time.Millisecond)
}

func TestRunnerStopsOnContextCancel(t *testing.T) {
	q := &scriptedQueue{}
	r := NewRunner(q, &recordingProcessor{}, 5*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan error, 1)
	go func() { finished <- r.RunForever(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-finished:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop on cancel")
	}
}

func TestRunnerSurvivesReceiveErrors(t *testing.T) {
	q := &scriptedQueue{recvErr: errors.New("connection reset")}
	r := NewRunner(q, &recordingProcessor{}, time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, r.RunForever(ctx))

	q.mu.Lock()
	defer q.mu.Unlock()
	assert.Greater(t, q.received, 1)
}

func TestRetryStopsAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		return errors.New("always fails")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetrySucceedsMidway(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 3, time.Millisecond, func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
