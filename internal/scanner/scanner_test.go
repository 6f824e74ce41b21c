package scanner

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/panbanda/sieve/internal/testutil"
	"github.com/panbanda/sieve/pkg/config"
)

func relPaths(t *testing.T, root string, files []string) []string {
	t.Helper()
	out := make([]string, len(files))
	for i, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			t.Fatalf("Rel(%s) error: %v", f, err)
		}
		out[i] = filepath.ToSlash(rel)
	}
	slices.Sort(out)
	return out
}

func TestNewScanner(t *testing.T) {
	s := NewScanner(nil)
	if s == nil || s.config == nil {
		t.Fatal("NewScanner(nil) should fall back to the default config")
	}

	cfg := config.DefaultConfig()
	if NewScanner(cfg).config != cfg {
		t.Error("scanner.config should be the provided config")
	}
}

func TestScanDir(t *testing.T) {
	tmpDir := t.TempDir()
	testutil.CreateFileTree(t, tmpDir, map[string]string{
		"main.py":          "print(1)\n",
		"stubs/api.pyi":    "def f() -> int: ...\n",
		"pkg/util.py":      "x = 1\n",
		"README.md":        "# readme\n",
		"pkg/helper.go":    "package pkg\n",
		"scripts/tool.pyw": "x = 1\n",
	})

	result, err := NewScanner(nil).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}

	want := []string{"main.py", "pkg/util.py", "scripts/tool.pyw", "stubs/api.pyi"}
	if got := relPaths(t, tmpDir, result); !slices.Equal(got, want) {
		t.Errorf("ScanDir() = %v, want %v", got, want)
	}
}

func TestScanDirExcludesDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	testutil.CreateFileTree(t, tmpDir, map[string]string{
		"app.py":                      "x = 1\n",
		".venv/lib/site.py":           "x = 1\n",
		"src/__pycache__/mod.py":      "x = 1\n",
		"src/node_modules/x/a.py":     "x = 1\n",
		"src/build_utils.py":          "x = 1\n",
		"custom_exclude/generated.py": "x = 1\n",
	})

	cfg := config.DefaultConfig()
	cfg.Exclude.Dirs = append(cfg.Exclude.Dirs, "custom_exclude")

	result, err := NewScanner(cfg).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}

	want := []string{"app.py", "src/build_utils.py"}
	if got := relPaths(t, tmpDir, result); !slices.Equal(got, want) {
		t.Errorf("ScanDir() = %v, want %v", got, want)
	}
}

func TestScanDirExcludesPatterns(t *testing.T) {
	tmpDir := t.TempDir()
	testutil.CreateFileTree(t, tmpDir, map[string]string{
		"service.py":         "x = 1\n",
		"api/service_pb2.py": "x = 1\n",
		"test_service.py":    "x = 1\n",
	})

	cfg := config.DefaultConfig()
	cfg.Exclude.Patterns = append(cfg.Exclude.Patterns, "test_*.py")

	result, err := NewScanner(cfg).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}

	want := []string{"service.py"}
	if got := relPaths(t, tmpDir, result); !slices.Equal(got, want) {
		t.Errorf("ScanDir() = %v, want %v", got, want)
	}
}

func TestScanDirWithGitignore(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(tmpDir, ".git"), 0755); err != nil {
		t.Fatalf("Failed to create .git: %v", err)
	}
	testutil.CreateFileTree(t, tmpDir, map[string]string{
		".gitignore":        "skipme/\n*_local.py\n",
		"main.py":           "x = 1\n",
		"skipme/skip.py":    "x = 1\n",
		"src/app.py":        "x = 1\n",
		"src/conf_local.py": "x = 1\n",
	})

	cfg := config.DefaultConfig()
	cfg.Exclude.Gitignore = true

	result, err := NewScanner(cfg).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}

	want := []string{"main.py", "src/app.py"}
	if got := relPaths(t, tmpDir, result); !slices.Equal(got, want) {
		t.Errorf("ScanDir() = %v, want %v", got, want)
	}
}

func TestScanDirGitignoreFromSubdirectory(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(tmpDir, ".git"), 0755); err != nil {
		t.Fatalf("Failed to create .git: %v", err)
	}
	testutil.CreateFileTree(t, tmpDir, map[string]string{
		".gitignore":           "src/generated/\n",
		"src/app.py":           "x = 1\n",
		"src/generated/gen.py": "x = 1\n",
	})

	src := filepath.Join(tmpDir, "src")
	result, err := NewScanner(nil).ScanDir(src)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}

	want := []string{"app.py"}
	if got := relPaths(t, src, result); !slices.Equal(got, want) {
		t.Errorf("ScanDir() = %v, want %v", got, want)
	}
}

func TestScanDirDisabledGitignore(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.Mkdir(filepath.Join(tmpDir, ".git"), 0755); err != nil {
		t.Fatalf("Failed to create .git: %v", err)
	}
	testutil.CreateFileTree(t, tmpDir, map[string]string{
		".gitignore":      "ignored/\n",
		"ignored/file.py": "x = 1\n",
	})

	cfg := config.DefaultConfig()
	cfg.Exclude.Gitignore = false

	result, err := NewScanner(cfg).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}

	want := []string{"ignored/file.py"}
	if got := relPaths(t, tmpDir, result); !slices.Equal(got, want) {
		t.Errorf("With gitignore disabled, ScanDir() = %v, want %v", got, want)
	}
}

func TestScanDirEmptyDirectory(t *testing.T) {
	result, err := NewScanner(nil).ScanDir(t.TempDir())
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("ScanDir() on empty dir returned %d files, want 0", len(result))
	}
}

func TestScan(t *testing.T) {
	tmpDir := t.TempDir()
	testutil.CreateFileTree(t, tmpDir, map[string]string{
		"a/one.py":       "x = 1\n",
		"a/two.py":       "x = 1\n",
		"b/three.py":     "x = 1\n",
		"b/notes.txt":    "notes\n",
		"b/_pb2/x.py":    "x = 1\n",
		"gen/api_pb2.py": "x = 1\n",
	})

	s := NewScanner(nil)
	paths := []string{
		filepath.Join(tmpDir, "b"),
		filepath.Join(tmpDir, "a"),
		filepath.Join(tmpDir, "a", "one.py"), // also reached through a
		filepath.Join(tmpDir, "b", "notes.txt"),
		filepath.Join(tmpDir, "gen", "api_pb2.py"), // explicit files bypass exclusions
	}
	result, err := s.Scan(paths)
	if err != nil {
		t.Fatalf("Scan() error: %v", err)
	}

	want := []string{"a/one.py", "a/two.py", "b/_pb2/x.py", "b/three.py", "gen/api_pb2.py"}
	if got := relPaths(t, tmpDir, result); !slices.Equal(got, want) {
		t.Errorf("Scan() = %v, want %v", got, want)
	}
	if !slices.IsSorted(result) {
		t.Error("Scan() result should be sorted")
	}
}

func TestScanMissingPath(t *testing.T) {
	if _, err := NewScanner(nil).Scan([]string{filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("Scan() should fail for a missing path")
	}
}

func TestIsWithinRoot(t *testing.T) {
	root := t.TempDir()
	tests := []struct {
		path string
		want bool
	}{
		{root, true},
		{filepath.Join(root, "a", "b.py"), true},
		{filepath.Join(root, "..", "other"), false},
		{root + "2", false},
	}
	for _, tt := range tests {
		if got := isWithinRoot(tt.path, root); got != tt.want {
			t.Errorf("isWithinRoot(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestFindGitRoot(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, ".git"), 0755); err != nil {
		t.Fatalf("Failed to create .git: %v", err)
	}
	sub := filepath.Join(tmpDir, "a", "b")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatalf("Failed to create subdir: %v", err)
	}

	if got := findGitRoot(sub); got != tmpDir {
		t.Errorf("findGitRoot() from subdir should return %q, got %q", tmpDir, got)
	}
}

func TestScanDirWithSymlinkDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(tmpDir, "real", "file.py"), "x = 1\n")

	outsideDir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(outsideDir, "outside.py"), "x = 1\n")

	if err := os.Symlink(outsideDir, filepath.Join(tmpDir, "linked")); err != nil {
		t.Skip("Symlinks not supported on this system")
	}
	if err := os.Symlink(filepath.Join(outsideDir, "outside.py"), filepath.Join(tmpDir, "escape.py")); err != nil {
		t.Skip("Symlinks not supported on this system")
	}

	result, err := NewScanner(nil).ScanDir(tmpDir)
	if err != nil {
		t.Fatalf("ScanDir() error: %v", err)
	}

	want := []string{"real/file.py"}
	if got := relPaths(t, tmpDir, result); !slices.Equal(got, want) {
		t.Errorf("ScanDir() = %v, want %v (no symlinks outside the root)", got, want)
	}
}
