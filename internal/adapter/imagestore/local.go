// Package imagestore provides ImageStore implementations for product image
// uploads. LocalStore writes to local disk, standing in for the S3-shaped
// object store a production deployment would use (see DESIGN.md: no AWS SDK
// is vendored in the example pack this repo was grounded on).
package imagestore

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tabdullah1215/videogen-control-plane/internal/domain"
)

// LocalStore writes uploaded images under baseDir/{userId}/ and serves them
// back through publicBaseURL.
type LocalStore struct {
	baseDir       string
	publicBaseURL string
}

// NewLocalStore constructs a LocalStore rooted at baseDir, serving files
// back under publicBaseURL (e.g. "https://cdn.example.com/uploads").
func NewLocalStore(baseDir, publicBaseURL string) *LocalStore {
	return &LocalStore{baseDir: baseDir, publicBaseURL: publicBaseURL}
}

var _ domain.ImageStore = (*LocalStore)(nil)

// Put writes data to baseDir/{userID}/{timestamp}-{randomHex8}.{ext}.
func (s *LocalStore) Put(_ domain.Context, userID, ext string, data []byte) (string, error) {
	dir := filepath.Join(s.baseDir, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("imagestore: mkdir: %w", err)
	}
	name := fmt.Sprintf("%d-%s.%s", time.Now().UnixNano(), randomHex8(), ext)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("imagestore: write: %w", err)
	}
	return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, userID, name), nil
}

func randomHex8() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return hex.EncodeToString([]byte(time.Now().Format("15040500")))
	}
	return hex.EncodeToString(b)
}
