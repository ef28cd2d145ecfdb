package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore writes files under a directory. It backs uploads when no bucket
// is configured.
type LocalStore struct {
	BaseDir      string // directory holding the files
	PublicPrefix string // URL prefix the files are served under, e.g. "/files"
}

// NewLocalStore creates baseDir if it is missing.
func NewLocalStore(baseDir, publicPrefix string) (*LocalStore, error) {
	if baseDir == "" {
		baseDir = "./storage"
	}
	if publicPrefix == "" {
		publicPrefix = "/files"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure storage dir %q: %w", baseDir, err)
	}
	return &LocalStore{BaseDir: baseDir, PublicPrefix: publicPrefix}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.BaseDir, clean), nil
}

// Put writes data atomically, replacing any file under the same key.
func (s *LocalStore) Put(_ context.Context, key, _ string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %q: %w", key, err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to finalize file: %w", err)
	}
	return nil
}

// URL returns the served path of key. Local links do not expire.
func (s *LocalStore) URL(_ context.Context, key string, _ time.Duration) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("failed to stat %q: %w", key, err)
	}
	segments := strings.Split(filepath.ToSlash(filepath.Clean(filepath.FromSlash(key))), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	prefix := "/" + strings.Trim(s.PublicPrefix, "/")
	return path.Join(prefix, strings.Join(segments, "/")), nil
}

// Read returns the stored bytes of key.
func (s *LocalStore) Read(key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p)
}
