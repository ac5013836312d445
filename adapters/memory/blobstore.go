package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/artpar/reportgate/domain/report"
	"github.com/artpar/reportgate/ports"
)

// BlobStore is an in-memory implementation of ports.BlobStore.
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewBlobStore creates a new in-memory blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{
		blobs: make(map[string][]byte),
	}
}

// Upload stores data under a synthetic memory:// URL.
func (s *BlobStore) Upload(ctx context.Context, format report.Format, name string, data []byte) (ports.BlobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	url := "memory://" + name
	stored := make([]byte, len(data))
	copy(stored, data)
	s.blobs[url] = stored

	sum := sha256.Sum256(data)
	return ports.BlobInfo{
		URL:    url,
		Format: format,
		Digest: hex.EncodeToString(sum[:]),
	}, nil
}

// Download retrieves a stored blob.
func (s *BlobStore) Download(ctx context.Context, url string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[url]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", url)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Ensure interface compliance.
var _ ports.BlobStore = (*BlobStore)(nil)
