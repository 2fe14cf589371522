// Package storage provides the local-disk asset store for receipt uploads.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/hualiang/home-ledger/internal/application/port"
)

// LocalAssetStore implements port.AssetStore on the local filesystem.
// Objects are addressed by key under baseDir and served back as URLs under
// baseURL, so keys double as URL paths.
type LocalAssetStore struct {
	baseDir string
	baseURL string
	logger  *zap.Logger
}

// NewLocalAssetStore creates a new local asset store
func NewLocalAssetStore(baseDir, baseURL string, logger *zap.Logger) port.AssetStore {
	return &LocalAssetStore{
		baseDir: baseDir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Upload writes the object and returns its public URL
func (s *LocalAssetStore) Upload(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		s.logger.Error("Failed to create asset directory",
			zap.String("key", key),
			zap.Error(err))
		return "", fmt.Errorf("failed to create asset directory: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write asset",
			zap.String("key", key),
			zap.Error(err))
		return "", fmt.Errorf("failed to write asset: %w", err)
	}

	s.logger.Debug("Asset stored",
		zap.String("key", key),
		zap.String("content_type", contentType),
		zap.Int("size", len(content)))

	return s.baseURL + "/" + key, nil
}

// Read returns the object's content
func (s *LocalAssetStore) Read(ctx context.Context, key string) ([]byte, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		s.logger.Error("Failed to read asset",
			zap.String("key", key),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read asset: %w", err)
	}
	return content, nil
}

// Delete removes the object. Deleting a missing key is not an error.
func (s *LocalAssetStore) Delete(ctx context.Context, key string) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return nil
	}

	if err := os.Remove(fullPath); err != nil {
		s.logger.Error("Failed to delete asset",
			zap.String("key", key),
			zap.Error(err))
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return nil
}

// Dir returns the base directory, for mounting as a static file route
func (s *LocalAssetStore) Dir() string {
	return s.baseDir
}

// resolve maps a key to an absolute path and rejects keys that escape
// the base directory
func (s *LocalAssetStore) resolve(key string) (string, error) {
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}

	absPath, err := filepath.Abs(filepath.Join(absBase, key))
	if err != nil {
		return "", fmt.Errorf("failed to resolve asset path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("asset key escapes base directory: %s", key)
	}
	return absPath, nil
}

// Verify interface compliance
var _ port.AssetStore = (*LocalAssetStore)(nil)
