// Package store persists scan job documents as single JSON objects in
// object storage, one per scan id under scans/{id}.json.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/yourorg/remediation-worker/internal/model"
	"github.com/yourorg/remediation-worker/internal/storage"
)

// ErrNotFound is returned when no document exists for a scan id.
var ErrNotFound = errors.New("scan not found")

const scanPrefix = "scans/"

// JobStore reads and writes whole Job documents. There is no partial update:
// callers load, mutate, and save the full document. Concurrent writers to the
// same scan id race at the storage layer; see the orchestrator tests for the
// known gap.
type JobStore struct {
	storage storage.Storage
	logger  *zap.Logger
}

func New(st storage.Storage, logger *zap.Logger) *JobStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobStore{storage: st, logger: logger}
}

func scanKey(scanID string) string {
	return scanPrefix + scanID + ".json"
}

func (s *JobStore) Save(ctx context.Context, job *model.Job) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	if err := s.storage.Put(ctx, scanKey(job.ID), data, "application/json"); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	s.logger.Info("scan document saved",
		zap.String("scan_id", job.ID),
		zap.String("status", job.Status),
	)
	return nil
}

func (s *JobStore) Get(ctx context.Context, scanID string) (*model.Job, error) {
	data, err := s.storage.Get(ctx, scanKey(scanID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", scanID, err)
	}
	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", scanID, err)
	}
	return &job, nil
}

// ListItem is the condensed view returned for scan listings.
type ListItem struct {
	ScanID       string `json:"scan_id"`
	RepoRef      string `json:"repo_url"`
	Branch       string `json:"branch"`
	Revision     string `json:"commit_sha"`
	Timestamp    string `json:"timestamp"`
	Status       string `json:"status"`
	FindingCount int    `json:"finding_count"`
	RemCount     int    `json:"remediation_count"`
}

// List fetches every scan document and returns summaries, newest first.
// A malformed document is skipped rather than failing the whole listing.
func (s *JobStore) List(ctx context.Context) ([]ListItem, error) {
	keys, err := s.storage.List(ctx, scanPrefix)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}

	items := make([]ListItem, 0, len(keys))
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		scanID := strings.TrimSuffix(path.Base(key), ".json")
		job, err := s.Get(ctx, scanID)
		if err != nil {
			s.logger.Warn("skipping unreadable scan document",
				zap.String("key", key), zap.Error(err))
			continue
		}
		items = append(items, ListItem{
			ScanID:       job.ID,
			RepoRef:      job.RepoRef,
			Branch:       job.Branch,
			Revision:     job.ResolvedRevision,
			Timestamp:    job.CreatedAt,
			Status:       job.Status,
			FindingCount: job.Summary.TotalFindings,
			RemCount:     job.Summary.RemediationsGenerated,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Timestamp > items[j].Timestamp })
	return items, nil
}

func (s *JobStore) Delete(ctx context.Context, scanID string) error {
	return s.storage.Delete(ctx, scanKey(scanID))
}
