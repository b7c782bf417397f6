package scanner

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourorg/remediation-worker/internal/storage"
)

// Workspace is a scratch directory holding one scan's extracted source tree.
type Workspace struct {
	// Dir is the root of the extracted source.
	Dir  string
	root string
}

// Release removes the scratch directory. Safe to call more than once.
func (w *Workspace) Release() {
	if w.root != "" {
		_ = os.RemoveAll(w.root)
		w.root = ""
	}
}

// PrepareWorkspace downloads the source archive from storage and extracts it
// under scratchDir. The caller must Release the workspace when all scanners
// have finished.
func PrepareWorkspace(ctx context.Context, st storage.Storage, archiveKey, scratchDir string, logger *zap.Logger) (*Workspace, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	root := filepath.Join(scratchDir, uuid.NewString())
	srcDir := filepath.Join(root, "source")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	archivePath := filepath.Join(root, "source.tar.gz")
	if err := st.GetToFile(ctx, archiveKey, archivePath); err != nil {
		_ = os.RemoveAll(root)
		return nil, fmt.Errorf("download archive %s: %w", archiveKey, err)
	}
	info, _ := os.Stat(archivePath)
	if info != nil {
		logger.Info("archive downloaded",
			zap.String("key", archiveKey),
			zap.Int64("size_bytes", info.Size()),
		)
	}

	if err := extractTarGz(archivePath, srcDir); err != nil {
		_ = os.RemoveAll(root)
		return nil, fmt.Errorf("extract archive: %w", err)
	}
	return &Workspace{Dir: srcDir, root: root}, nil
}

func extractTarGz(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		name := filepath.Clean(hdr.Name)
		if name == "." || strings.HasPrefix(name, "..") {
			continue
		}
		target := filepath.Join(destDir, name)
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			// path traversal attempt inside the archive
			continue
		}
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode)&0o777)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}
