package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog"
)

func init() {
	// Suppress logs during testing
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

// MockFileSystemWalker implements FileSystemWalker for testing
type MockFileSystemWalker struct {
	FilesToProcess []string // List of file paths to process
	WalkError      error    // Error to return from Walk
}

func (m *MockFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	if m.WalkError != nil {
		return m.WalkError
	}
	for _, filePath := range m.FilesToProcess {
		if err := options.Callback(filePath, nil); err != nil {
			return err
		}
	}
	return nil
}

// MockFileReader implements FileReader for testing
type MockFileReader struct {
	ReadFileFunc func(filename string) ([]byte, error)
	Files        map[string]string // path -> content
}

func (m *MockFileReader) ReadFile(filename string) ([]byte, error) {
	if m.ReadFileFunc != nil {
		return m.ReadFileFunc(filename)
	}
	if content, exists := m.Files[filename]; exists {
		return []byte(content), nil
	}
	return nil, errors.New("file not found")
}

func TestScanner_Scan(t *testing.T) {
	tests := []struct {
		name      string
		files     map[string]string
		order     []string
		maxSize   int
		wantPaths []string
	}{
		{
			name: "text files are kept with relative paths",
			files: map[string]string{
				"/repo/app.py":         "def f(): pass\n",
				"/repo/pkg/util.js":    "module.exports = {}\n",
				"/repo/docs/README.md": "# readme\n",
			},
			order:     []string{"/repo/app.py", "/repo/docs/README.md", "/repo/pkg/util.js"},
			wantPaths: []string{"app.py", "docs/README.md", "pkg/util.js"},
		},
		{
			name: "skipped directories and binary extensions",
			files: map[string]string{
				"/repo/main.go":                 "package main\n",
				"/repo/vendor/lib.go":           "package lib\n",
				"/repo/node_modules/x/index.js": "x\n",
				"/repo/logo.png":                "\x89PNG",
				"/repo/go.sum":                  "h1:abc\n",
			},
			order:     []string{"/repo/go.sum", "/repo/logo.png", "/repo/main.go", "/repo/node_modules/x/index.js", "/repo/vendor/lib.go"},
			wantPaths: []string{"main.go"},
		},
		{
			name: "unreadable and invalid utf-8 files are skipped",
			files: map[string]string{
				"/repo/a.py": "a = 1\n",
				"/repo/b.py": "\xff\xfe\xfd",
			},
			order:     []string{"/repo/a.py", "/repo/b.py", "/repo/missing.py"},
			wantPaths: []string{"a.py"},
		},
		{
			name: "oversized files are skipped",
			files: map[string]string{
				"/repo/small.py": "x = 1\n",
				"/repo/big.py":   strings.Repeat("#", 100),
			},
			order:     []string{"/repo/big.py", "/repo/small.py"},
			maxSize:   50,
			wantPaths: []string{"small.py"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewWithDependencies("/repo", &MockFileSystemWalker{FilesToProcess: tt.order}, &MockFileReader{Files: tt.files})
			if tt.maxSize > 0 {
				s.MaxFileSize = tt.maxSize
			}

			files, err := s.Scan(context.Background())
			if err != nil {
				t.Fatalf("Scan failed: %v", err)
			}

			var got []string
			for _, f := range files {
				got = append(got, f.Path)
				if f.Encoding != "utf-8" {
					t.Errorf("Expected utf-8 encoding for %s, got %q", f.Path, f.Encoding)
				}
				if f.Size != len(f.Content) {
					t.Errorf("Expected size %d for %s, got %d", len(f.Content), f.Path, f.Size)
				}
			}
			if !reflect.DeepEqual(got, tt.wantPaths) {
				t.Errorf("Scan() paths = %v, want %v", got, tt.wantPaths)
			}
		})
	}
}

func TestScanner_WalkError(t *testing.T) {
	s := NewWithDependencies("/repo", &MockFileSystemWalker{WalkError: errors.New("permission denied")}, &MockFileReader{})
	if _, err := s.Scan(context.Background()); err == nil || !strings.Contains(err.Error(), "permission denied") {
		t.Errorf("Expected walk error, got %v", err)
	}
}

func TestScanner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewWithDependencies("/repo", &MockFileSystemWalker{FilesToProcess: []string{"/repo/a.py"}},
		&MockFileReader{Files: map[string]string{"/repo/a.py": "a"}})
	if _, err := s.Scan(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestScanner_RealDirectory(t *testing.T) {
	root := t.TempDir()
	write := func(rel, content string) {
		t.Helper()
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("src/app.py", "hello\n")
	write("src/__pycache__/app.cpython-312.pyc", "junk")
	write(".git/HEAD", "ref: refs/heads/main\n")
	write("tests/test_app.py", "def test_app(): pass\n")

	files, err := New(root).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("Expected 2 files, got %d: %+v", len(files), files)
	}
	if files[0].Path != "src/app.py" || files[1].Path != "tests/test_app.py" {
		t.Errorf("Unexpected paths %q, %q", files[0].Path, files[1].Path)
	}
	// git hash-object of "hello\n"
	if files[0].SHA != "ce013625030ba8dba906f756967f9e9ca394464a" {
		t.Errorf("Unexpected blob sha %q", files[0].SHA)
	}
}

func TestScanner_UtilityFunctions(t *testing.T) {
	t.Run("blobSHA", func(t *testing.T) {
		if got := blobSHA(nil); got != "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391" {
			t.Errorf("blobSHA(empty) = %q", got)
		}
		if blobSHA([]byte("a")) == blobSHA([]byte("b")) {
			t.Error("Different content should produce different hash")
		}
	})

	t.Run("shouldSkip", func(t *testing.T) {
		tests := []struct {
			path     string
			expected bool
		}{
			{"main.go", false},
			{"app/views.py", false},
			{"web/App.TSX", false},
			{"vendor/lib.go", true},
			{"a/node_modules/b.js", true},
			{".venv/lib/site.py", true},
			{"image.png", true},
			{"document.pdf", true},
			{"go.sum", true},
			{"Makefile", true},
			{"README.md", false},
			{"script.sh", false},
		}
		for _, tt := range tests {
			if got := shouldSkip(tt.path); got != tt.expected {
				t.Errorf("shouldSkip(%s) = %v, expected %v", tt.path, got, tt.expected)
			}
		}
	})

	t.Run("skipDir", func(t *testing.T) {
		if !skipDir("pkg/node_modules") || !skipDir(".git") || skipDir("src") {
			t.Error("Unexpected skipDir result")
		}
	})

	t.Run("rel", func(t *testing.T) {
		if got := rel("/repo", "/repo/a/b.py"); got != "a/b.py" {
			t.Errorf("rel() = %q", got)
		}
	})
}

func BenchmarkScanner_ShouldSkip(b *testing.B) {
	paths := []string{"main.go", "vendor/lib.go", "image.png", "src/components/App.tsx"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, p := range paths {
			shouldSkip(p)
		}
	}
}
