package synth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/BDNK1/schedstack/internal/security"
)

// staging is a temporary directory next to the output directory. Files are
// written there first and the whole directory is moved into place on commit.
type staging struct {
	Path   string
	OutDir string
	UUID   string
}

// newStaging creates the staging directory beside outDir
func newStaging(outDir string) (*staging, error) {
	// First 8 chars are enough to keep concurrent runs apart
	id := uuid.New().String()[:8]

	parent := filepath.Dir(outDir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output parent directory at %q: %w", parent, err)
	}

	path := strings.TrimSuffix(stagingPattern(outDir), "*") + id
	if err := os.Mkdir(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory at %q: %w", path, err)
	}

	return &staging{Path: path, OutDir: outDir, UUID: id}, nil
}

// WriteFile writes one assembly file into the staging directory
func (s *staging) WriteFile(name string, data []byte) error {
	dst := filepath.Join(s.Path, name)

	// Security: assembly file names never leave the staging directory
	if err := security.ValidatePathWithinBoundary(s.Path, dst); err != nil {
		return fmt.Errorf("invalid assembly file name %q: %w", name, err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create assembly file at %q: %w", dst, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write assembly file at %q: %w", dst, err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("failed to sync assembly file at %q: %w", dst, err)
	}

	return nil
}

// Commit replaces the output directory with the staging directory. An existing
// output directory is only replaced when it holds a previous assembly.
func (s *staging) Commit() error {
	if err := checkReplaceable(s.OutDir); err != nil {
		return err
	}

	if err := os.RemoveAll(s.OutDir); err != nil {
		return fmt.Errorf("failed to remove previous assembly at %q: %w", s.OutDir, err)
	}

	if err := os.Rename(s.Path, s.OutDir); err != nil {
		return fmt.Errorf("failed to move assembly from %q to %q: %w", s.Path, s.OutDir, err)
	}

	s.Path = ""
	return nil
}

// stagingPattern matches every staging directory of outDir
func stagingPattern(outDir string) string {
	return filepath.Join(filepath.Dir(outDir), fmt.Sprintf(".%s-staging-*", filepath.Base(outDir)))
}

// Cleanup removes the staging directory if it was not committed
func (s *staging) Cleanup() error {
	if s.Path == "" {
		return nil
	}

	if err := os.RemoveAll(s.Path); err != nil {
		return fmt.Errorf("failed to cleanup staging directory at %q: %w", s.Path, err)
	}

	s.Path = ""
	return nil
}

// checkReplaceable accepts a missing or empty directory, or one that
// contains a manifest written by a previous run.
func checkReplaceable(dir string) error {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot access output directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output path is not a directory: %s", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read output directory at %q: %w", dir, err)
	}
	if len(entries) == 0 {
		return nil
	}

	if _, err := os.Stat(filepath.Join(dir, ManifestFile)); err != nil {
		return fmt.Errorf("refusing to replace %s: it is not empty and holds no %s", dir, ManifestFile)
	}
	return nil
}
