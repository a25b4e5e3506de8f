// Package files manages image storage under the configured upload root.
// All paths handed across package boundaries are relative to the root.
package files

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"faceid/internal/config"
	"faceid/internal/errs"
)

const (
	tempDir    = "temp"
	personsDir = "persons"
)

// Store saves and removes image files under a single upload root.
type Store struct {
	root       string
	maxSize    int64
	allowedExt map[string]bool
	minEdge    int
	maxEdge    int
	log        *zap.SugaredLogger
}

// NewStore creates the upload directory layout and returns a store.
func NewStore(cfg config.UploadConfig, log *zap.SugaredLogger) (*Store, error) {
	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	s := &Store{
		root:       cfg.Path,
		maxSize:    cfg.MaxSizeBytes,
		allowedExt: allowed,
		minEdge:    cfg.MinImageEdge,
		maxEdge:    cfg.MaxImageEdge,
		log:        log,
	}

	for _, dir := range []string{cfg.Path, filepath.Join(cfg.Path, tempDir), filepath.Join(cfg.Path, personsDir)} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, errs.Storage(err, "failed to create upload directory %s", dir)
		}
	}
	return s, nil
}

// Root returns the upload root directory.
func (s *Store) Root() string { return s.root }

// AbsPath resolves a stored relative path to an absolute one.
func (s *Store) AbsPath(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// uniqueName builds a collision-free filename preserving the original
// extension: person_12_20260829_153004_ab12cd34.jpg.
func uniqueName(originalName string, personID int64) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	stamp := time.Now().Format("20060102_150405")
	id := uuid.NewString()[:8]
	if personID > 0 {
		return fmt.Sprintf("person_%d_%s_%s%s", personID, stamp, id, ext)
	}
	return fmt.Sprintf("temp_%s_%s%s", stamp, id, ext)
}

// validateUpload checks extension and size before anything touches disk.
func (s *Store) validateUpload(originalName string, size int) error {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(originalName), "."))
	if ext == "" || !s.allowedExt[ext] {
		return errs.Validation("unsupported file extension %q", ext)
	}
	if size == 0 {
		return errs.Validation("empty file")
	}
	if int64(size) > s.maxSize {
		return errs.Validation("file too large, maximum %.1f MB", float64(s.maxSize)/(1024*1024))
	}
	return nil
}

// validateImage decodes the image header and checks dimension bounds.
func (s *Store) validateImage(data []byte) error {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return errs.Validation("file is not a valid image")
	}
	if format != "jpeg" && format != "png" {
		return errs.Validation("unsupported image format %q", format)
	}
	if cfg.Width < s.minEdge || cfg.Height < s.minEdge {
		return errs.Validation("image too small, minimum %dx%d pixels", s.minEdge, s.minEdge)
	}
	if cfg.Width > s.maxEdge || cfg.Height > s.maxEdge {
		return errs.Validation("image too large, maximum %dx%d pixels", s.maxEdge, s.maxEdge)
	}
	return nil
}

// save validates and writes the upload into dir, returning the relative
// path and the generated filename.
func (s *Store) save(data []byte, originalName, dir string, personID int64) (string, string, error) {
	if err := s.validateUpload(originalName, len(data)); err != nil {
		return "", "", err
	}
	if err := s.validateImage(data); err != nil {
		return "", "", err
	}

	name := uniqueName(originalName, personID)
	rel := filepath.ToSlash(filepath.Join(dir, name))
	abs := s.AbsPath(rel)

	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return "", "", errs.Storage(err, "failed to create directory for %s", rel)
	}
	if err := os.WriteFile(abs, data, 0o640); err != nil {
		return "", "", errs.Storage(err, "failed to write %s", rel)
	}

	s.log.Infow("file saved", "path", rel, "size", len(data))
	return rel, name, nil
}

// SaveTemp stores an upload in the temp area, used for identification
// requests whose image may never be attached to a person.
func (s *Store) SaveTemp(data []byte, originalName string) (string, error) {
	rel, _, err := s.save(data, originalName, tempDir, 0)
	return rel, err
}

// SavePersonPhoto stores an upload in the person's directory.
func (s *Store) SavePersonPhoto(data []byte, originalName string, personID int64) (string, string, error) {
	return s.save(data, originalName, filepath.Join(personsDir, fmt.Sprint(personID)), personID)
}

// Promote moves a temp file into a person's directory and returns its new
// relative path and filename. Used when an identification decides to keep
// the submitted image.
func (s *Store) Promote(tempRel string, personID int64) (string, string, error) {
	name := uniqueName(filepath.Base(tempRel), personID)
	rel := filepath.ToSlash(filepath.Join(personsDir, fmt.Sprint(personID), name))
	abs := s.AbsPath(rel)

	if err := os.MkdirAll(filepath.Dir(abs), 0o750); err != nil {
		return "", "", errs.Storage(err, "failed to create person directory")
	}
	if err := os.Rename(s.AbsPath(tempRel), abs); err != nil {
		return "", "", errs.Storage(err, "failed to promote %s", tempRel)
	}
	return rel, name, nil
}

// Delete removes a stored file. Deleting an absent file is not an error;
// the return value reports whether a file was actually removed.
func (s *Store) Delete(rel string) bool {
	if rel == "" {
		return false
	}
	err := os.Remove(s.AbsPath(rel))
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Errorw("failed to delete file", "path", rel, "error", err)
		}
		return false
	}
	s.log.Infow("file deleted", "path", rel)
	return true
}

// RemoveBatch removes every listed file and stops at the first failure.
// Files removed before the failure cannot be restored; they are logged as
// unrecoverable so the caller can roll back its own state.
func (s *Store) RemoveBatch(paths []string) error {
	for i, rel := range paths {
		err := os.Remove(s.AbsPath(rel))
		if err != nil && !os.IsNotExist(err) {
			s.log.Errorw("batch file removal failed",
				"path", rel,
				"removed_before_failure", paths[:i],
				"error", err)
			return errs.Storage(err, "failed to remove file %s", rel)
		}
	}
	return nil
}

// RemovePersonDir removes a person's (now empty) photo directory. Best
// effort; leftovers are logged, not fatal.
func (s *Store) RemovePersonDir(personID int64) {
	dir := filepath.Join(s.root, personsDir, fmt.Sprint(personID))
	if err := os.RemoveAll(dir); err != nil {
		s.log.Warnw("failed to remove person directory", "person_id", personID, "error", err)
	}
}

// CleanupTemp deletes temp files older than the given age and returns
// the number removed.
func (s *Store) CleanupTemp(olderThan time.Duration) (int, error) {
	dir := filepath.Join(s.root, tempDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, errs.Storage(err, "failed to read temp directory")
	}

	cutoff := time.Now().Add(-olderThan)
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if s.Delete(filepath.ToSlash(filepath.Join(tempDir, entry.Name()))) {
				deleted++
			}
		}
	}

	s.log.Infow("temp files cleanup completed", "deleted", deleted)
	return deleted, nil
}
