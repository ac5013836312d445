// Package blob provides the filesystem implementation of the blob store.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/reportgate/domain/report"
	"github.com/artpar/reportgate/ports"
)

// FileStore stores report bodies as files under a root directory. The URL
// recorded on the report file row is file://<absolute path>.
type FileStore struct {
	root string
}

// NewFileStore creates a file store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve blob root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FileStore{root: abs}, nil
}

// Upload writes data under root/<name>.<ext> and returns its URL and
// sha256 digest. The name may carry path separators; parents are created.
func (s *FileStore) Upload(ctx context.Context, format report.Format, name string, data []byte) (ports.BlobInfo, error) {
	rel := filepath.FromSlash(name) + extensionFor(format)
	path := filepath.Join(s.root, rel)
	if !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return ports.BlobInfo{}, fmt.Errorf("blob name %q escapes the store root", name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ports.BlobInfo{}, fmt.Errorf("create blob dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ports.BlobInfo{}, fmt.Errorf("write blob: %w", err)
	}

	sum := sha256.Sum256(data)
	return ports.BlobInfo{
		URL:    "file://" + filepath.ToSlash(path),
		Format: format,
		Digest: hex.EncodeToString(sum[:]),
	}, nil
}

// Download reads a blob previously written by Upload.
func (s *FileStore) Download(ctx context.Context, url string) ([]byte, error) {
	path, ok := strings.CutPrefix(url, "file://")
	if !ok {
		return nil, fmt.Errorf("blob url %q is not a file url", url)
	}
	path = filepath.FromSlash(path)
	if !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return nil, fmt.Errorf("blob url %q is outside the store root", url)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func extensionFor(format report.Format) string {
	switch format {
	case report.FormatHL7:
		return ".hl7"
	case report.FormatInternal:
		return ".internal.csv"
	default:
		return ".csv"
	}
}

// Ensure interface compliance.
var _ ports.BlobStore = (*FileStore)(nil)
