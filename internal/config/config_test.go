package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	mfs "github.com/CageChen/filesource/internal/fs"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected log level info, got %s", cfg.LogLevel)
	}
	if !cfg.Watch {
		t.Error("expected watch to be true")
	}
}

func TestMigrateLegacyPath(t *testing.T) {
	cfg := &Config{
		Path: "./test_docs",
	}
	if err := cfg.resolve(); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if len(cfg.Sources) != 1 {
		t.Fatalf("expected 1 source after migration, got %d", len(cfg.Sources))
	}

	absExpected, _ := filepath.Abs("./test_docs")
	if cfg.Sources[0].Path != absExpected {
		t.Errorf("expected path %s, got %s", absExpected, cfg.Sources[0].Path)
	}
	if cfg.Sources[0].Name != "test_docs" {
		t.Errorf("expected name test_docs, got %s", cfg.Sources[0].Name)
	}
}

func TestUsePathReplacesSources(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sources = []Source{{Name: "a", Path: "/a"}, {Name: "b", Path: "/b"}}

	if err := cfg.UsePath("/srv/notes"); err != nil {
		t.Fatalf("UsePath failed: %v", err)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Name != "notes" {
		t.Fatalf("expected single source notes, got %+v", cfg.Sources)
	}
}

func TestAddSource(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.AddSource(Source{Name: "docs", Path: "./docs"}); err != nil {
		t.Fatalf("AddSource failed: %v", err)
	}
	if err := cfg.AddSource(Source{Name: "docs", Path: "./other"}); err == nil {
		t.Fatal("expected duplicate name to be rejected")
	}

	s, ok := cfg.Lookup("docs")
	if !ok {
		t.Fatal("expected to find docs")
	}
	if !filepath.IsAbs(s.Path) {
		t.Errorf("expected absolute path, got %s", s.Path)
	}
}

func TestDuplicateNames(t *testing.T) {
	cfg := &Config{Sources: []Source{{Path: "/x/docs"}, {Path: "/y/docs"}}}
	if err := cfg.resolve(); err == nil {
		t.Fatal("expected duplicate source names to fail")
	}
}

func TestGlobForms(t *testing.T) {
	var sources []Source
	data := `
- path: /a
  glob: "**/*.md"
- path: /b
  glob:
    pattern: "*.TXT"
    nocase: true
- path: /c
`
	if err := yaml.Unmarshal([]byte(data), &sources); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if sources[0].Glob.Pattern != "**/*.md" || sources[0].Glob.NoCase {
		t.Errorf("unexpected scalar glob %+v", sources[0].Glob)
	}
	if sources[1].Glob.Pattern != "*.TXT" || !sources[1].Glob.NoCase {
		t.Errorf("unexpected mapping glob %+v", sources[1].Glob)
	}
	if !sources[2].Glob.IsZero() {
		t.Errorf("expected empty glob, got %+v", sources[2].Glob)
	}

	out, err := yaml.Marshal(sources)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var again []Source
	if err := yaml.Unmarshal(out, &again); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for i := range sources {
		if again[i].Glob != sources[i].Glob {
			t.Errorf("glob %d: expected %+v, got %+v", i, sources[i].Glob, again[i].Glob)
		}
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"timeout: 5s", 5 * time.Second},
		{"timeout: 250ms", 250 * time.Millisecond},
		{"timeout: 1500", 1500 * time.Millisecond},
	}
	for _, tt := range tests {
		var s Source
		if err := yaml.Unmarshal([]byte(tt.in), &s); err != nil {
			t.Fatalf("%s: %v", tt.in, err)
		}
		if s.Timeout.Std() != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.in, tt.want, s.Timeout.Std())
		}
	}

	var s Source
	if err := yaml.Unmarshal([]byte("timeout: soon"), &s); err == nil {
		t.Error("expected invalid duration to fail")
	}
}

func TestOptions(t *testing.T) {
	empty := ""
	s := Source{
		Name:    "docs",
		Path:    "/srv/docs",
		Exclude: []string{"drafts", "*.bak"},
		Sort:    &Sort{DirsFirst: true, IndexFile: &empty},
		Timeout: Duration(2 * time.Second),
	}
	opts, err := s.Options()
	if err != nil {
		t.Fatalf("Options failed: %v", err)
	}
	if opts.FS != nil {
		t.Errorf("expected default provider, got %T", opts.FS)
	}
	if opts.Timeout != 2*time.Second {
		t.Errorf("expected 2s timeout, got %s", opts.Timeout)
	}
	if opts.Sort == nil || !opts.Sort.DirsFirst || opts.Sort.IndexFile != "" {
		t.Errorf("unexpected sort options %+v", opts.Sort)
	}

	for name, want := range map[string]bool{
		"drafts":       true,
		"old.bak":      true,
		".git":         true,
		"node_modules": true,
		"photo.png":    true,
		"index.md":     false,
	} {
		if got := opts.Exclude(mfs.DirEntry{Name: name}); got != want {
			t.Errorf("exclude %s: expected %v, got %v", name, want, got)
		}
	}
}

func TestOptionsSortDefaultsIndexFile(t *testing.T) {
	opts, err := Source{Path: "/x", Sort: &Sort{Case: true}}.Options()
	if err != nil {
		t.Fatalf("Options failed: %v", err)
	}
	if opts.Sort.IndexFile != "index" {
		t.Errorf("expected index file index, got %q", opts.Sort.IndexFile)
	}
}

func TestOptionsProviders(t *testing.T) {
	opts, err := Source{Path: "/repo", GitRef: "main", SubPath: "docs"}.Options()
	if err != nil {
		t.Fatalf("Options failed: %v", err)
	}
	if _, ok := opts.FS.(*mfs.GitFS); !ok {
		t.Errorf("expected GitFS, got %T", opts.FS)
	}

	opts, err = Source{Path: "/docs", DropboxToken: "token"}.Options()
	if err != nil {
		t.Fatalf("Options failed: %v", err)
	}
	if _, ok := opts.FS.(*mfs.DropboxFS); !ok {
		t.Errorf("expected DropboxFS, got %T", opts.FS)
	}

	if _, err := (Source{Path: "/x", GitRef: "main", DropboxToken: "t"}).Options(); err == nil {
		t.Error("expected git_ref with dropbox_token to fail")
	}
	if _, err := (Source{Path: "/x", Exclude: []string{"[x"}}).Options(); err == nil {
		t.Error("expected a malformed exclude pattern to fail")
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.configPath = tmpFile
	cfg.Port = 9999
	cfg.Sources = []Source{{
		Name:     "tmp",
		Path:     "/tmp",
		Glob:     Glob{},
		Writable: true,
		Tmp:      "/var/tmp/filesource",
		Timeout:  Duration(3 * time.Second),
	}}
	cfg.Sources[0].Glob.Pattern = "**/*.md"

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cfg2, err := Load(tmpFile)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg2.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg2.Port)
	}
	if len(cfg2.Sources) != 1 || cfg2.Sources[0].Name != "tmp" {
		t.Fatalf("source loading failed: %+v", cfg2.Sources)
	}
	got := cfg2.Sources[0]
	if got.Glob.Pattern != "**/*.md" || !got.Writable || got.Timeout.Std() != 3*time.Second {
		t.Errorf("unexpected source %+v", got)
	}
	if cfg2.GetConfigFilePath() != tmpFile {
		t.Errorf("expected config path %s, got %s", tmpFile, cfg2.GetConfigFilePath())
	}
}

func TestLoadExplicitMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.md"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := Source{Name: "docs", Path: dir}.Open()
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if src.Name() != "docs" || src.Root() != dir {
		t.Errorf("unexpected source %s at %s", src.Name(), src.Root())
	}
}
