package artifacts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Artifact pair states. A pair starts as created (preview visible, clean
// reserved) and moves to delivered when the clean bytes are released against
// a credit charge. Expiry is handled by the metadata TTL plus the startup
// file sweep; there is no transition out of delivered.
const (
	StateCreated   = "created"
	StateDelivered = "delivered"
)

// TTL bounds how long a produced pair stays downloadable.
const TTL = 24 * time.Hour

// ErrNotFound is returned when a file id is unknown, expired, or its clean
// bytes are gone. Callers must check this before any credit mutation.
var ErrNotFound = errors.New("artifact not found or expired")

// Artifact describes one preview/clean output pair.
type Artifact struct {
	FileID           string    `json:"file_id"`
	UserID           uint      `json:"user_id"`
	Tool             string    `json:"tool"`
	Format           string    `json:"format"`
	OriginalFilename string    `json:"original_filename"`
	PreviewFilename  string    `json:"preview_filename"`
	CleanFilename    string    `json:"clean_filename"`
	State            string    `json:"state"`
	CreatedAt        time.Time `json:"created_at"`
}

// Store persists artifact pairs: bytes on disk, pair metadata in the
// configured MetaStore with a 24h TTL.
type Store struct {
	meta MetaStore
	dir  string
}

func NewStore(meta MetaStore, dir string) *Store {
	return &Store{meta: meta, dir: dir}
}

// Dir returns the output directory holding artifact bytes.
func (s *Store) Dir() string {
	return s.dir
}

// SavePair writes the preview and clean bytes for a fresh file id and records
// the pair in the created state. No credit is involved here.
func (s *Store) SavePair(ctx context.Context, userID uint, tool, format, originalFilename string, preview, clean []byte) (*Artifact, error) {
	fileID := uuid.New().String()
	a := &Artifact{
		FileID:           fileID,
		UserID:           userID,
		Tool:             tool,
		Format:           format,
		OriginalFilename: originalFilename,
		PreviewFilename:  fmt.Sprintf("%s_preview.%s", fileID, format),
		CleanFilename:    fmt.Sprintf("%s_clean.%s", fileID, format),
		State:            StateCreated,
		CreatedAt:        time.Now(),
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(s.dir, a.PreviewFilename), preview, 0o644); err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(s.dir, a.CleanFilename), clean, 0o644); err != nil {
		return nil, err
	}

	if err := s.meta.Put(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Resolve looks up a pair by file id and confirms its clean bytes are still
// on disk. Returns ErrNotFound for unknown, expired, or swept pairs.
func (s *Store) Resolve(ctx context.Context, fileID string) (*Artifact, error) {
	a, err := s.meta.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(filepath.Join(s.dir, a.CleanFilename)); err != nil {
		return nil, ErrNotFound
	}
	return a, nil
}

// Lookup returns pair metadata without checking the on-disk bytes. Callers
// that can restore missing bytes from the archive mirror use this after
// Resolve reports the pair gone.
func (s *Store) Lookup(ctx context.Context, fileID string) (*Artifact, error) {
	return s.meta.Get(ctx, fileID)
}

// CleanPath returns the on-disk location of the clean bytes.
func (s *Store) CleanPath(a *Artifact) string {
	return filepath.Join(s.dir, a.CleanFilename)
}

// ReadClean returns the clean bytes of a resolved pair.
func (s *Store) ReadClean(a *Artifact) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, a.CleanFilename))
	if err != nil {
		return nil, ErrNotFound
	}
	return data, nil
}

// PreviewPath returns the on-disk location of the preview bytes.
func (s *Store) PreviewPath(a *Artifact) string {
	return filepath.Join(s.dir, a.PreviewFilename)
}

// MarkDelivered records the terminal delivered state after the credit charge
// succeeded. Marking an already-delivered pair is a no-op.
func (s *Store) MarkDelivered(ctx context.Context, fileID string) error {
	return s.meta.MarkDelivered(ctx, fileID)
}
