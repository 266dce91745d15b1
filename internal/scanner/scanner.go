// Package scanner collects source files from a local checkout.
package scanner

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"
	"github.com/seanblong/testgen/pkg/models"
)

// DefaultMaxFileSize is the largest file Scan keeps.
const DefaultMaxFileSize = 1 << 20

// FileSystemWalker defines the interface for walking directories
type FileSystemWalker interface {
	Walk(root string, options *godirwalk.Options) error
}

// FileReader defines the interface for reading files
type FileReader interface {
	ReadFile(filename string) ([]byte, error)
}

// DefaultFileSystemWalker implements FileSystemWalker using godirwalk
type DefaultFileSystemWalker struct{}

func (d *DefaultFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// DefaultFileReader implements FileReader using os
type DefaultFileReader struct{}

func (d *DefaultFileReader) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// Scanner turns a directory tree into FileContent values with root-relative
// paths.
type Scanner struct {
	Root        string
	MaxFileSize int
	Walker      FileSystemWalker
	FileReader  FileReader
}

// New creates a Scanner rooted at root.
func New(root string) *Scanner {
	return NewWithDependencies(root, &DefaultFileSystemWalker{}, &DefaultFileReader{})
}

// NewWithDependencies creates a Scanner with custom dependencies for testing
func NewWithDependencies(root string, walker FileSystemWalker, fileReader FileReader) *Scanner {
	return &Scanner{
		Root:        root,
		MaxFileSize: DefaultMaxFileSize,
		Walker:      walker,
		FileReader:  fileReader,
	}
}

// Scan walks Root in lexical order and returns every readable text file.
// Unreadable, oversized and non-UTF-8 files are logged and skipped.
func (s *Scanner) Scan(ctx context.Context) ([]models.FileContent, error) {
	var files []models.FileContent

	err := s.Walker.Walk(s.Root, &godirwalk.Options{
		Unsorted: false,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			relPath := rel(s.Root, path)

			// de is nil when driven by a fake walker
			if de != nil && de.IsDir() {
				if relPath != "." && skipDir(relPath) {
					return godirwalk.SkipThis
				}
				return nil
			}
			if shouldSkip(relPath) {
				return nil
			}

			b, err := s.FileReader.ReadFile(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("failed to read file")
				return nil
			}
			if s.MaxFileSize > 0 && len(b) > s.MaxFileSize {
				log.Warn().Str("path", relPath).Int("size", len(b)).Msg("file too large, skipping")
				return nil
			}
			if !utf8.Valid(b) {
				log.Warn().Str("path", relPath).Msg("file is not valid UTF-8, skipping")
				return nil
			}

			files = append(files, models.FileContent{
				Path:     relPath,
				Content:  string(b),
				Encoding: "utf-8",
				Size:     len(b),
				SHA:      blobSHA(b),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.Root, err)
	}

	log.Info().Str("root", s.Root).Int("files", len(files)).Msg("scanned repository")
	return files, nil
}

// blobSHA returns the git blob object id of content, matching the sha the
// GitHub contents API reports.
func blobSHA(content []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

var skippedDirs = map[string]bool{
	"vendor":        true,
	".git":          true,
	".terraform":    true,
	"node_modules":  true,
	"target":        true,
	"build":         true,
	"dist":          true,
	"out":           true,
	"bin":           true,
	"obj":           true,
	".venv":         true,
	"venv":          true,
	"__pycache__":   true,
	".pytest_cache": true,
	".gradle":       true,
	".m2":           true,
	".idea":         true,
	"coverage":      true,
	".cache":        true,
}

var textExtensions = map[string]bool{
	".py": true, ".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".html": true, ".css": true, ".scss": true, ".md": true, ".txt": true,
	".json": true, ".xml": true, ".yaml": true, ".yml": true, ".ini": true,
	".cfg": true, ".conf": true, ".sh": true, ".bash": true, ".zsh": true,
	".fish": true, ".ps1": true, ".bat": true, ".cmd": true,
	".go": true, ".java": true, ".kt": true, ".rb": true, ".rs": true,
	".c": true, ".h": true, ".cpp": true, ".cs": true, ".php": true, ".swift": true,
}

func skipDir(relPath string) bool {
	return skippedDirs[strings.ToLower(filepath.Base(relPath))]
}

// shouldSkip returns true if the file at the root-relative path should be
// skipped.
func shouldSkip(relPath string) bool {
	p := strings.ToLower(filepath.ToSlash(relPath))
	segs := strings.Split(p, "/")
	for _, d := range segs[:len(segs)-1] {
		if skippedDirs[d] {
			return true
		}
	}
	return !textExtensions[filepath.Ext(p)]
}

func rel(root, p string) string {
	r, err := filepath.Rel(root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(r)
}
