// Package source fetches repository snapshots and archives them into object
// storage for scanning.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/yourorg/remediation-worker/internal/storage"
)

// Fetcher resolves a repository reference to an immutable source archive.
type Fetcher struct {
	client     *github.Client
	httpClient *http.Client
	storage    storage.Storage
	scratchDir string
	logger     *zap.Logger
}

func NewFetcher(token string, st storage.Storage, scratchDir string, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := http.DefaultClient
	if token != "" {
		httpClient = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		))
	}
	return &Fetcher{
		client:     github.NewClient(httpClient),
		httpClient: httpClient,
		storage:    st,
		scratchDir: scratchDir,
		logger:     logger,
	}
}

// ParseRepoRef extracts owner and repo from a GitHub URL or owner/repo pair.
func ParseRepoRef(repoRef string) (owner, repo string, err error) {
	trimmed := strings.TrimSuffix(strings.TrimSuffix(repoRef, "/"), ".git")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("cannot parse repository reference %q", repoRef)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}

// FetchAndStore downloads the repository tarball at revision (default branch
// HEAD when revision is empty), uploads it under archives/, and returns the
// storage key and the resolved commit SHA.
func (f *Fetcher) FetchAndStore(ctx context.Context, repoRef, revision string) (archiveKey, resolvedSHA string, err error) {
	owner, repo, err := ParseRepoRef(repoRef)
	if err != nil {
		return "", "", err
	}

	resolvedSHA = revision
	if resolvedSHA == "" {
		repoInfo, _, err := f.client.Repositories.Get(ctx, owner, repo)
		if err != nil {
			return "", "", fmt.Errorf("get repository %s/%s: %w", owner, repo, err)
		}
		branch := repoInfo.GetDefaultBranch()
		sha, _, err := f.client.Repositories.GetCommitSHA1(ctx, owner, repo, branch, "")
		if err != nil {
			return "", "", fmt.Errorf("resolve %s HEAD: %w", branch, err)
		}
		resolvedSHA = sha
		f.logger.Info("resolved default branch",
			zap.String("repo", owner+"/"+repo),
			zap.String("branch", branch),
			zap.String("sha", resolvedSHA),
		)
	}

	link, _, err := f.client.Repositories.GetArchiveLink(ctx, owner, repo, github.Tarball,
		&github.RepositoryContentGetOptions{Ref: resolvedSHA}, 3)
	if err != nil {
		return "", "", fmt.Errorf("get archive link: %w", err)
	}

	archiveName := fmt.Sprintf("%s-%s-%s.tar.gz", owner, repo, uuid.NewString())
	localPath := filepath.Join(f.scratchDir, archiveName)
	if err := os.MkdirAll(f.scratchDir, 0o755); err != nil {
		return "", "", err
	}
	if err := f.downloadToFile(ctx, link, localPath); err != nil {
		return "", "", fmt.Errorf("download tarball: %w", err)
	}
	defer os.Remove(localPath)

	archiveKey = "archives/" + archiveName
	if err := f.storage.PutFile(ctx, archiveKey, localPath, "application/gzip"); err != nil {
		return "", "", fmt.Errorf("store archive: %w", err)
	}
	f.logger.Info("repository archived",
		zap.String("repo", owner+"/"+repo),
		zap.String("key", archiveKey),
	)
	return archiveKey, resolvedSHA, nil
}

func (f *Fetcher) downloadToFile(ctx context.Context, link *url.URL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link.String(), nil)
	if err != nil {
		return err
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, resp.Body)
	return err
}

// Permalink builds a stable GitHub source link for a finding location.
// Returns empty for non-GitHub refs.
func Permalink(repoRef, gitRef, filePath string, startLine, endLine int) string {
	if !strings.Contains(repoRef, "github.com") {
		return ""
	}
	clean := strings.TrimSuffix(strings.TrimSuffix(repoRef, "/"), ".git")
	return fmt.Sprintf("%s/blob/%s/%s#L%d-L%d",
		clean, gitRef, strings.TrimPrefix(filePath, "/"), startLine, endLine)
}
