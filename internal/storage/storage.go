// Package storage provides object storage for source archives and scan
// documents behind a narrow key/value interface.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// Storage is a flat key/value object store. Keys use "/"-separated prefixes
// (archives/..., scans/...).
type Storage interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	PutFile(ctx context.Context, key, filePath, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	GetToFile(ctx context.Context, key, filePath string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}
