package model

// Job status values. There is deliberately no failed state: a scan that
// blows up during setup or inside a scanner still lands on completed with
// whatever findings were salvaged.
const (
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

type Summary struct {
	TotalFindings         int `json:"total_findings"`
	RemediationsGenerated int `json:"remediations_generated"`
}

// Job is the durable record of one scan's lifecycle, findings, and
// accumulated remediations. It is read-modify-written as a whole document.
type Job struct {
	ID               string                `json:"scan_id"`
	RepoRef          string                `json:"repo_url"`
	Branch           string                `json:"branch"`
	ResolvedRevision string                `json:"commit_sha"`
	ArchiveKey       string                `json:"archive_key"`
	Status           string                `json:"status"`
	ScannerSet       []string              `json:"scanner_types"`
	Findings         []Finding             `json:"findings"`
	Remediations     []RemediationProposal `json:"remediations"`
	Summary          Summary               `json:"summary"`
	CreatedAt        string                `json:"timestamp"`
}

// FindingByID returns the finding with the given id, or nil.
func (j *Job) FindingByID(id string) *Finding {
	for i := range j.Findings {
		if j.Findings[i].ID == id {
			return &j.Findings[i]
		}
	}
	return nil
}

// RemediationFor returns the remediation recorded for the finding id, or nil.
func (j *Job) RemediationFor(findingID string) *RemediationProposal {
	for i := range j.Remediations {
		if j.Remediations[i].FindingID == findingID {
			return &j.Remediations[i]
		}
	}
	return nil
}

// JobMessage is the payload carried on the work queue from ingestion to the
// worker.
type JobMessage struct {
	ScanID           string   `json:"scan_id"`
	RepoRef          string   `json:"repo_url"`
	ResolvedRevision string   `json:"commit_sha"`
	Branch           string   `json:"branch"`
	ArchiveKey       string   `json:"archive_key"`
	ScannerSet       []string `json:"scanner_types"`
	Timestamp        string   `json:"timestamp"`
}
