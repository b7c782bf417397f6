package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/remediation-worker/internal/model"
)

type memoryEntry struct {
	id        string
	body      model.JobMessage
	createdAt time.Time
	claimedAt time.Time
	ackToken  string
}

// MemoryQueue is an in-process queue for local development and tests. It
// mirrors the Postgres backend's semantics: FIFO by enqueue time, claims
// expire after the visibility timeout, delete-by-ack-token.
type MemoryQueue struct {
	mu         sync.Mutex
	entries    []*memoryEntry
	visibility time.Duration
	now        func() time.Time
}

func NewMemory(visibility time.Duration) *MemoryQueue {
	if visibility <= 0 {
		visibility = 15 * time.Minute
	}
	return &MemoryQueue{visibility: visibility, now: time.Now}
}

func (q *MemoryQueue) Send(ctx context.Context, msg model.JobMessage) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := uuid.NewString()
	q.entries = append(q.entries, &memoryEntry{id: id, body: msg, createdAt: q.now()})
	return id, nil
}

func (q *MemoryQueue) Receive(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 {
		max = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var msgs []Message
	for _, e := range q.entries {
		if len(msgs) >= max {
			break
		}
		claimed := !e.claimedAt.IsZero() && now.Sub(e.claimedAt) < q.visibility
		if claimed {
			continue
		}
		e.claimedAt = now
		e.ackToken = uuid.NewString()
		msgs = append(msgs, Message{ID: e.id, Body: e.body, AckToken: e.ackToken})
	}
	if len(msgs) == 0 {
		return nil, ErrNoMessages
	}
	return msgs, nil
}

func (q *MemoryQueue) Delete(ctx context.Context, ackToken string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.ackToken == ackToken {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

var _ Queue = (*MemoryQueue)(nil)
