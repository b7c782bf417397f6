// Package cache implements the semantic cache of previously accepted
// remediation proposals: similarity search on rule id + message + snippet,
// filtered by scanner, with a write-once append path.
package cache

import (
	"context"
	"errors"
)

// ErrMiss is returned by Search when no entry matches. Callers treat cache
// failures the same way as a miss, so generation always proceeds.
var ErrMiss = errors.New("cache miss")

// Hit is one nearest-neighbor match.
type Hit struct {
	Score        float64
	RuleID       string
	ScanID       string
	Scanner      string
	ProposalJSON string
}

// Entry is one accepted proposal written back for future reuse. The embedded
// text is rule id + original snippet + proposal, so future findings of the
// same rule class land near it.
type Entry struct {
	RuleID          string
	ProposalJSON    string
	OriginalSnippet string
	ScanID          string
	Scanner         string
}

type SemanticCache interface {
	Search(ctx context.Context, text string, limit int, scanner string) ([]Hit, error)
	Store(ctx context.Context, entry Entry) error
	// DeleteByScan removes entries learned from the given scan. Best-effort.
	DeleteByScan(ctx context.Context, scanID string) error
}

// Embedder generates vector embeddings from text.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
