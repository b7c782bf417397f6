// Package orchestrator composes storage, queue, scanners, agents, and the
// semantic cache into the scan job lifecycle and the on-demand remediation
// flows.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourorg/remediation-worker/internal/agent"
	"github.com/yourorg/remediation-worker/internal/cache"
	"github.com/yourorg/remediation-worker/internal/model"
	"github.com/yourorg/remediation-worker/internal/queue"
	"github.com/yourorg/remediation-worker/internal/scanner"
	"github.com/yourorg/remediation-worker/internal/storage"
	"github.com/yourorg/remediation-worker/internal/store"
)

// ErrFindingNotFound is returned when a finding id does not exist in the
// scan document. Unknown scan ids surface as store.ErrNotFound.
var ErrFindingNotFound = errors.New("finding not found")

// Config carries the remediation loop and pipeline tunables.
type Config struct {
	ScratchDir          string
	ScannerTimeout      time.Duration
	MaxRetries          int
	ConfidenceThreshold float64
}

// Fetcher resolves a repository reference into an archived snapshot.
type Fetcher interface {
	FetchAndStore(ctx context.Context, repoRef, revision string) (archiveKey, resolvedSHA string, err error)
}

// Orchestrator implements the job lifecycle state machine
// (queued -> in_progress -> completed) and the remediation entry points.
type Orchestrator struct {
	cfg       Config
	jobs      *store.JobStore
	storage   storage.Storage
	queue     queue.Queue
	cache     cache.SemanticCache
	fetcher   Fetcher
	pipeline  *scanner.Pipeline
	generator agent.Generator
	evaluator agent.Evaluator
	logger    *zap.Logger

	// seams for tests
	newScanners      func(names []string) []scanner.Scanner
	prepareWorkspace func(ctx context.Context, archiveKey string) (*scanner.Workspace, error)
}

func New(cfg Config, jobs *store.JobStore, st storage.Storage, q queue.Queue, sc cache.SemanticCache, fetcher Fetcher, gen agent.Generator, eval agent.Evaluator, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		cfg:       cfg,
		jobs:      jobs,
		storage:   st,
		queue:     q,
		cache:     sc,
		fetcher:   fetcher,
		pipeline:  scanner.NewPipeline(logger),
		generator: gen,
		evaluator: eval,
		logger:    logger,
	}
	o.newScanners = func(names []string) []scanner.Scanner {
		return scanner.ByNames(names, cfg.ScannerTimeout, logger)
	}
	o.prepareWorkspace = func(ctx context.Context, archiveKey string) (*scanner.Workspace, error) {
		return scanner.PrepareWorkspace(ctx, st, archiveKey, cfg.ScratchDir, logger)
	}
	return o
}

// IngestResult is returned to the caller that triggered a scan.
type IngestResult struct {
	ScanID    string `json:"scan_id"`
	MessageID string `json:"message_id"`
	Status    string `json:"status"`
}

// Ingest archives the repository source, writes the queued job document, and
// enqueues the job message for the worker.
func (o *Orchestrator) Ingest(ctx context.Context, repoRef, revision string, scannerSet []string) (*IngestResult, error) {
	if len(scannerSet) == 0 {
		scannerSet = []string{"semgrep"}
	}

	archiveKey, resolvedSHA, err := o.fetcher.FetchAndStore(ctx, repoRef, revision)
	if err != nil {
		return nil, err
	}

	scanID := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339)
	branch := revision
	if branch == "" {
		branch = "main"
	}

	job := &model.Job{
		ID:               scanID,
		RepoRef:          repoRef,
		Branch:           branch,
		ResolvedRevision: resolvedSHA,
		ArchiveKey:       archiveKey,
		Status:           model.StatusQueued,
		ScannerSet:       scannerSet,
		Findings:         []model.Finding{},
		Remediations:     []model.RemediationProposal{},
		CreatedAt:        now,
	}
	if err := o.jobs.Save(ctx, job); err != nil {
		return nil, err
	}

	msgID, err := o.queue.Send(ctx, model.JobMessage{
		ScanID:           scanID,
		RepoRef:          repoRef,
		ResolvedRevision: resolvedSHA,
		Branch:           branch,
		ArchiveKey:       archiveKey,
		ScannerSet:       scannerSet,
		Timestamp:        now,
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info("scan ingested",
		zap.String("scan_id", scanID),
		zap.String("repo", repoRef),
		zap.String("revision", resolvedSHA),
	)
	return &IngestResult{ScanID: scanID, MessageID: msgID, Status: model.StatusQueued}, nil
}

// Process handles one dequeued job message: marks the job in_progress, runs
// the scan pipeline, and writes the completed document. Setup and scanner
// failures are contained: the job always reaches completed, possibly with
// zero findings, and remediations stay empty (remediation is never
// automatic).
func (o *Orchestrator) Process(ctx context.Context, msg model.JobMessage) error {
	o.logger.Info("processing scan",
		zap.String("scan_id", msg.ScanID),
		zap.Strings("scanners", msg.ScannerSet),
	)

	job := &model.Job{
		ID:               msg.ScanID,
		RepoRef:          msg.RepoRef,
		Branch:           msg.Branch,
		ResolvedRevision: msg.ResolvedRevision,
		ArchiveKey:       msg.ArchiveKey,
		Status:           model.StatusInProgress,
		ScannerSet:       msg.ScannerSet,
		Findings:         []model.Finding{},
		Remediations:     []model.RemediationProposal{},
		CreatedAt:        msg.Timestamp,
	}
	if err := o.jobs.Save(ctx, job); err != nil {
		return err
	}

	var findings []model.Finding
	ws, err := o.prepareWorkspace(ctx, msg.ArchiveKey)
	if err != nil {
		o.logger.Error("workspace setup failed, completing with zero findings",
			zap.String("scan_id", msg.ScanID), zap.Error(err))
	} else {
		findings = o.pipeline.Run(ctx, ws.Dir, o.newScanners(msg.ScannerSet))
		ws.Release()
	}
	if findings == nil {
		findings = []model.Finding{}
	}

	job.Status = model.StatusCompleted
	job.Findings = findings
	job.Summary = model.Summary{TotalFindings: len(findings)}
	if err := o.jobs.Save(ctx, job); err != nil {
		return err
	}
	o.logger.Info("scan completed",
		zap.String("scan_id", msg.ScanID),
		zap.Int("findings", len(findings)),
	)
	return nil
}

// RemediateOne runs the remediation loop for a single finding. Idempotent:
// an existing remediation is returned as-is without invoking the loop. A nil
// proposal with nil error means no attempt cleared the confidence gate.
func (o *Orchestrator) RemediateOne(ctx context.Context, scanID, findingID string) (*model.RemediationProposal, error) {
	job, err := o.jobs.Get(ctx, scanID)
	if err != nil {
		return nil, err
	}
	finding := job.FindingByID(findingID)
	if finding == nil {
		return nil, ErrFindingNotFound
	}
	if existing := job.RemediationFor(findingID); existing != nil {
		return existing, nil
	}

	proposal := o.remediate(ctx, *finding, job.RepoRef, o.gitRef(job), job.ID)
	if proposal == nil {
		return nil, nil
	}

	job.Remediations = append(job.Remediations, *proposal)
	job.Summary.RemediationsGenerated = len(job.Remediations)
	if err := o.jobs.Save(ctx, job); err != nil {
		return nil, err
	}
	return proposal, nil
}

// RemediateAll runs the loop for every finding that lacks a remediation.
// One finding failing to produce a proposal never aborts the batch. Returns
// the number of new remediations.
func (o *Orchestrator) RemediateAll(ctx context.Context, scanID string) (int, error) {
	job, err := o.jobs.Get(ctx, scanID)
	if err != nil {
		return 0, err
	}

	o.logger.Info("batch remediation",
		zap.String("scan_id", scanID),
		zap.Int("findings", len(job.Findings)),
	)

	generated := 0
	for i := range job.Findings {
		finding := job.Findings[i]
		if job.RemediationFor(finding.ID) != nil {
			continue
		}
		proposal := o.remediate(ctx, finding, job.RepoRef, o.gitRef(job), job.ID)
		if proposal == nil {
			continue
		}
		job.Remediations = append(job.Remediations, *proposal)
		generated++
	}

	if generated > 0 {
		job.Summary.RemediationsGenerated = len(job.Remediations)
		if err := o.jobs.Save(ctx, job); err != nil {
			return generated, err
		}
	}
	return generated, nil
}

// GetScan returns the full job document.
func (o *Orchestrator) GetScan(ctx context.Context, scanID string) (*model.Job, error) {
	return o.jobs.Get(ctx, scanID)
}

// ListScans returns condensed summaries of all scans.
func (o *Orchestrator) ListScans(ctx context.Context) ([]store.ListItem, error) {
	return o.jobs.List(ctx)
}

// DeleteScan removes the job document, its source archive, and any cache
// entries learned from the scan. Archive and cache cleanup are best-effort.
func (o *Orchestrator) DeleteScan(ctx context.Context, scanID string) error {
	job, err := o.jobs.Get(ctx, scanID)
	if err != nil {
		return err
	}
	if job.ArchiveKey != "" {
		if err := o.storage.Delete(ctx, job.ArchiveKey); err != nil {
			o.logger.Warn("delete archive failed",
				zap.String("key", job.ArchiveKey), zap.Error(err))
		}
	}
	if err := o.cache.DeleteByScan(ctx, scanID); err != nil {
		o.logger.Warn("cache cleanup failed",
			zap.String("scan_id", scanID), zap.Error(err))
	}
	return o.jobs.Delete(ctx, scanID)
}

func (o *Orchestrator) gitRef(job *model.Job) string {
	if job.ResolvedRevision != "" {
		return job.ResolvedRevision
	}
	if job.Branch != "" {
		return job.Branch
	}
	return "main"
}
