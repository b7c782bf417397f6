// Package queue provides at-least-once delivery of scan job messages
// between the ingestion path and the worker.
package queue

import (
	"context"
	"errors"

	"github.com/yourorg/remediation-worker/internal/model"
)

// ErrNoMessages is returned by Receive when the queue is empty. It is the
// normal idle condition, not a fault.
var ErrNoMessages = errors.New("no messages available")

// Message is one claimed queue entry. AckToken must be passed to Delete once
// processing finishes; an unacked message becomes visible again after the
// visibility timeout, so consumers must tolerate redelivery.
type Message struct {
	ID       string
	Body     model.JobMessage
	AckToken string
}

type Queue interface {
	Send(ctx context.Context, msg model.JobMessage) (string, error)
	Receive(ctx context.Context, max int) ([]Message, error)
	Delete(ctx context.Context, ackToken string) error
}
