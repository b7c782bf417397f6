package cache

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// ChromemCache stores proposal vectors in an embedded, persistent chromem-go
// collection. No external vector service is required.
type ChromemCache struct {
	db         *chromem.DB
	collection string
	embedder   Embedder
	logger     *zap.Logger
}

func NewChromem(path, collection string, embedder Embedder, logger *zap.Logger) (*ChromemCache, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if collection == "" {
		collection = "remediations"
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return &ChromemCache{db: db, collection: collection, embedder: embedder, logger: logger}, nil
}

func (c *ChromemCache) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return c.embedder.EmbedQuery(ctx, text)
	}
}

func (c *ChromemCache) Search(ctx context.Context, text string, limit int, scanner string) ([]Hit, error) {
	if limit <= 0 {
		limit = 1
	}
	col := c.db.GetCollection(c.collection, c.embeddingFunc())
	if col == nil {
		return nil, ErrMiss
	}
	count := col.Count()
	if count == 0 {
		return nil, ErrMiss
	}
	if limit > count {
		limit = count
	}

	var where map[string]string
	if scanner != "" {
		where = map[string]string{"scanner": scanner}
	}
	results, err := col.Query(ctx, text, limit, where, nil)
	if err != nil {
		return nil, fmt.Errorf("query cache: %w", err)
	}
	if len(results) == 0 {
		return nil, ErrMiss
	}

	hits := make([]Hit, len(results))
	for i, r := range results {
		hits[i] = Hit{
			Score:        float64(r.Similarity),
			RuleID:       r.Metadata["rule_id"],
			ScanID:       r.Metadata["scan_id"],
			Scanner:      r.Metadata["scanner"],
			ProposalJSON: r.Metadata["proposal"],
		}
	}
	c.logger.Debug("cache search",
		zap.String("scanner", scanner),
		zap.Int("hits", len(hits)),
		zap.Float64("top_score", hits[0].Score),
	)
	return hits, nil
}

func (c *ChromemCache) Store(ctx context.Context, entry Entry) error {
	col, err := c.db.GetOrCreateCollection(c.collection, nil, c.embeddingFunc())
	if err != nil {
		return fmt.Errorf("open cache collection: %w", err)
	}

	content := entry.RuleID + "\n" + entry.OriginalSnippet + "\n" + entry.ProposalJSON
	doc := chromem.Document{
		ID:      uuid.NewString(),
		Content: content,
		Metadata: map[string]string{
			"rule_id":    entry.RuleID,
			"scan_id":    entry.ScanID,
			"scanner":    entry.Scanner,
			"proposal":   entry.ProposalJSON,
			"created_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := col.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
		return fmt.Errorf("store cache entry: %w", err)
	}
	c.logger.Info("cache entry stored",
		zap.String("rule_id", entry.RuleID),
		zap.String("scanner", entry.Scanner),
	)
	return nil
}

func (c *ChromemCache) DeleteByScan(ctx context.Context, scanID string) error {
	col := c.db.GetCollection(c.collection, c.embeddingFunc())
	if col == nil {
		return nil
	}
	if err := col.Delete(ctx, map[string]string{"scan_id": scanID}, nil); err != nil {
		return fmt.Errorf("delete cache entries for scan %s: %w", scanID, err)
	}
	return nil
}

var _ SemanticCache = (*ChromemCache)(nil)
