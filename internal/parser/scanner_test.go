package parser

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/includeguard/includeguard/internal/config"
)

func scanConfig(root string) *config.Config {
	cfg := config.Default()
	cfg.Project.Root = root
	cfg.Performance.Workers = 2
	return cfg
}

func TestScanProjectFindsSources(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.cpp", "#include <iostream>\n")
	writeFile(t, dir, filepath.Join("src", "util.h"), "void util();\n")
	writeFile(t, dir, "notes.txt", "not code\n")

	s := NewScanner(scanConfig(dir))
	analyses, err := s.ScanProject(context.Background())
	if err != nil {
		t.Fatalf("ScanProject: %v", err)
	}

	if len(analyses) != 2 {
		t.Fatalf("got %d files, want 2", len(analyses))
	}
	// Sorted by path.
	if filepath.Base(analyses[0].Filepath) != "main.cpp" {
		t.Errorf("first file = %s, want main.cpp", analyses[0].Filepath)
	}
}

func TestScanProjectSkipsExcludedDirs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.cpp", "int main() {}\n")
	writeFile(t, dir, filepath.Join("build", "gen.cpp"), "int gen;\n")
	writeFile(t, dir, filepath.Join("node_modules", "dep.cc"), "int dep;\n")

	s := NewScanner(scanConfig(dir))
	analyses, err := s.ScanProject(context.Background())
	if err != nil {
		t.Fatalf("ScanProject: %v", err)
	}

	if len(analyses) != 1 {
		t.Fatalf("got %d files, want 1 (build/ and node_modules/ excluded)", len(analyses))
	}
}

func TestScanProjectExcludeGlobs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.cpp", "int main() {}\n")
	writeFile(t, dir, filepath.Join("third_party", "lib", "lib.cpp"), "int lib;\n")

	cfg := scanConfig(dir)
	cfg.Scan.Exclude = append(cfg.Scan.Exclude, "third_party/**")

	s := NewScanner(cfg)
	analyses, err := s.ScanProject(context.Background())
	if err != nil {
		t.Fatalf("ScanProject: %v", err)
	}

	if len(analyses) != 1 {
		t.Fatalf("got %d files, want 1", len(analyses))
	}
}

func TestScanProjectRespectsGitignore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "generated/\n")
	writeFile(t, dir, "main.cpp", "int main() {}\n")
	writeFile(t, dir, filepath.Join("generated", "pb.cc"), "int pb;\n")

	cfg := scanConfig(dir)
	cfg.Scan.RespectGitignore = true

	s := NewScanner(cfg)
	analyses, err := s.ScanProject(context.Background())
	if err != nil {
		t.Fatalf("ScanProject: %v", err)
	}

	if len(analyses) != 1 {
		t.Fatalf("got %d files, want 1 (generated/ ignored)", len(analyses))
	}
}

func TestScanProjectEmptyTree(t *testing.T) {
	s := NewScanner(scanConfig(t.TempDir()))
	analyses, err := s.ScanProject(context.Background())
	if err != nil {
		t.Fatalf("ScanProject: %v", err)
	}
	if len(analyses) != 0 {
		t.Fatalf("got %d files, want 0", len(analyses))
	}
}

func TestShouldScan(t *testing.T) {
	dir := t.TempDir()
	s := NewScanner(scanConfig(dir))

	cases := []struct {
		path string
		want bool
	}{
		{filepath.Join(dir, "a.cpp"), true},
		{filepath.Join(dir, "a.hpp"), true},
		{filepath.Join(dir, "a.cc"), true},
		{filepath.Join(dir, "a.txt"), false},
		{filepath.Join(dir, "build", "a.cpp"), false},
	}
	for _, tc := range cases {
		if got := s.ShouldScan(tc.path); got != tc.want {
			t.Errorf("ShouldScan(%s) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
