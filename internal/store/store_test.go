package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/remediation-worker/internal/model"
	"github.com/yourorg/remediation-worker/internal/storage"
)

func newTestStore(t *testing.T) (*JobStore, storage.Storage) {
	t.Helper()
	st, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	return New(st, zap.NewNop()), st
}

func sampleJob(scanID, timestamp string) *model.Job {
	return &model.Job{
		ID:               scanID,
		RepoRef:          "acme/demo",
		Branch:           "main",
		ResolvedRevision: "abc123",
		Status:           model.StatusCompleted,
		ScannerSet:       []string{"semgrep"},
		Findings: []model.Finding{
			{ID: "f1", RuleID: "r1", Scanner: "semgrep", Severity: "HIGH"},
		},
		Remediations: []model.RemediationProposal{},
		Summary:      model.Summary{TotalFindings: 1},
		CreatedAt:    timestamp,
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	job := sampleJob("scan-1", "2026-01-02T03:04:05Z")
	require.NoError(t, s.Save(ctx, job))

	got, err := s.Get(ctx, "scan-1")
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, job.Status, got.Status)
	require.Len(t, got.Findings, 1)
	assert.Equal(t, "f1", got.Findings[0].ID)
}

func TestGetUnknownScan(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleJob("scan-old", "2026-01-01T00:00:00Z")))
	require.NoError(t, s.Save(ctx, sampleJob("scan-new", "2026-02-01T00:00:00Z")))

	items, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "scan-new", items[0].ScanID)
	assert.Equal(t, "scan-old", items[1].ScanID)
	assert.Equal(t, 1, items[0].FindingCount)
}

func TestListSkipsMalformedDocuments(t *testing.T) {
	s, st := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleJob("scan-good", "2026-01-01T00:00:00Z")))
	require.NoError(t, st.Put(ctx, "scans/scan-bad.json", []byte("{truncated"), "application/json"))

	items, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "scan-good", items[0].ScanID)
}

func TestListEmptyStore(t *testing.T) {
	s, _ := newTestStore(t)
	items, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestDeleteRemovesDocument(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, sampleJob("scan-1", "2026-01-01T00:00:00Z")))
	require.NoError(t, s.Delete(ctx, "scan-1"))

	_, err := s.Get(ctx, "scan-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveOverwritesExistingDocument(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	job := sampleJob("scan-1", "2026-01-01T00:00:00Z")
	job.Status = model.StatusQueued
	require.NoError(t, s.Save(ctx, job))

	job.Status = model.StatusCompleted
	job.Summary.RemediationsGenerated = 1
	require.NoError(t, s.Save(ctx, job))

	got, err := s.Get(ctx, "scan-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, 1, got.Summary.RemediationsGenerated)
}
