// Package staging persists uploaded image bytes to disk before the request
// that carried them completes, so background work never touches a transient
// upload buffer.
package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrEmptyFile = errors.New("uploaded file is empty")

// StagedFile is a durable temporary copy of one uploaded image. It stays
// readable until the task that owns it reaches a terminal status.
type StagedFile struct {
	Path         string
	OriginalName string
	Size         int64
}

type Stager struct {
	dir    string
	logger *zap.Logger
}

func NewStager(dir string, logger *zap.Logger) (*Stager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir %s: %w", dir, err)
	}
	return &Stager{dir: dir, logger: logger}, nil
}

// Stage copies the upload to a freshly named file under the staging
// directory. The original name contributes only a sanitized extension and the
// display name, never a path component.
func (s *Stager) Stage(r io.Reader, originalName string) (*StagedFile, error) {
	name := uuid.New().String() + safeExt(originalName)
	path := filepath.Join(s.dir, name)

	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", originalName, err)
	}

	written, err := io.Copy(dst, r)
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("stage %s: %w", originalName, err)
	}
	if written == 0 {
		os.Remove(path)
		return nil, ErrEmptyFile
	}

	s.logger.Debug("Staged upload",
		zap.String("original_name", originalName),
		zap.String("path", path),
		zap.Int64("size", written),
	)

	return &StagedFile{
		Path:         path,
		OriginalName: filepath.Base(originalName),
		Size:         written,
	}, nil
}

// Remove deletes a staged file. Best effort: failures are logged, not surfaced.
func (s *Stager) Remove(file *StagedFile) {
	if file == nil {
		return
	}
	if err := os.Remove(file.Path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Failed to remove staged file",
			zap.String("path", file.Path),
			zap.Error(err),
		)
	}
}

func (s *Stager) RemoveAll(files []*StagedFile) {
	for _, file := range files {
		s.Remove(file)
	}
}

func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	}
	return ".jpg"
}
