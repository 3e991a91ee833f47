// Package asset packages the handler directory into a content-addressed zip.
package asset

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/BDNK1/schedstack/internal/security"
)

// epoch is stamped on every entry so archives depend on content only
var epoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Package is a packed handler directory.
type Package struct {
	Hash    string // hex SHA-256 of Archive
	Archive []byte
	Files   []string // slash-separated, sorted
}

// FileName is the assembly file name of the archive.
func (p *Package) FileName() string {
	return fmt.Sprintf("asset.%s.zip", p.Hash)
}

// Key is the object key of the archive under prefix.
func (p *Package) Key(prefix string) string {
	return prefix + p.Hash + ".zip"
}

// Pack zips every regular file below dir. Entries are sorted, timestamps and
// modes are fixed, and links resolving outside dir are rejected, so the
// same tree always yields the same hash.
//
// Paths matching an exclude pattern (filepath.Match against the full path)
// are skipped, directories with everything below them.
func Pack(dir string, exclude ...string) (*Package, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot access asset directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("asset path is not a directory: %s", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && excluded(path, exclude) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if err := security.ValidateResolvedWithinBoundary(dir, path); err != nil {
			return err
		}
		// Linked directories are not followed
		if target, err := os.Stat(path); err != nil || target.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan asset directory %q: %w", dir, err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("asset directory %q contains no files", dir)
	}
	sort.Strings(files)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range files {
		if err := addFile(zw, dir, name); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize asset archive: %w", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	return &Package{
		Hash:    hex.EncodeToString(sum[:]),
		Archive: buf.Bytes(),
		Files:   files,
	}, nil
}

func excluded(path string, patterns []string) bool {
	for _, p := range patterns {
		if path == p {
			return true
		}
		if ok, _ := filepath.Match(p, path); ok {
			return true
		}
	}
	return false
}

func addFile(zw *zip.Writer, dir, name string) error {
	src, err := os.Open(filepath.Join(dir, filepath.FromSlash(name)))
	if err != nil {
		return fmt.Errorf("failed to open asset file %s: %w", name, err)
	}
	defer src.Close()

	header := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: epoch,
	}
	header.SetMode(0644)

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("failed to add asset file %s: %w", name, err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("failed to write asset file %s: %w", name, err)
	}
	return nil
}
