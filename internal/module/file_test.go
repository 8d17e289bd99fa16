package module

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"gopkl/internal/security"
)

// realDir returns a temp directory with symlinks in its own path resolved,
// so canonical URIs computed by the resolver compare cleanly.
func realDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func allowPrefix(t *testing.T, dirs ...string) security.Manager {
	t.Helper()
	var patterns []string
	for _, dir := range dirs {
		patterns = append(patterns, regexp.QuoteMeta(fileURI(dir)+"/"))
	}
	sec, err := security.NewManager(security.Policy{AllowedModules: patterns})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return sec
}

func TestFileLoadsSource(t *testing.T) {
	dir := realDir(t)
	writeFile(t, filepath.Join(dir, "main.pkl"), "x = 1")
	engine := newTestEngine(t, Options{Security: allowPrefix(t, dir)})

	key, err := engine.KeyFor(fileURI(filepath.Join(dir, "main.pkl")))
	if err != nil {
		t.Fatalf("KeyFor: %v", err)
	}
	resolved, err := engine.Resolve(key)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	src, err := engine.LoadSource(key, resolved)
	if err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	if src != "x = 1" {
		t.Errorf("source = %q", src)
	}
}

func TestFileNotFound(t *testing.T) {
	dir := realDir(t)
	engine := newTestEngine(t, Options{Security: allowPrefix(t, dir)})

	key, err := engine.KeyFor(fileURI(filepath.Join(dir, "missing.pkl")))
	if err != nil {
		t.Fatalf("KeyFor: %v", err)
	}
	_, err = engine.Resolve(key)
	ie, ok := AsIoError(err)
	if !ok || ie.Code != ErrNotFound {
		t.Fatalf("got %v, want %s", err, ErrNotFound)
	}
}

func TestFileSymlinkCanonicalizes(t *testing.T) {
	dir := realDir(t)
	writeFile(t, filepath.Join(dir, "real", "mod.pkl"), "x = 1")
	if err := os.MkdirAll(filepath.Join(dir, "links"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	link := filepath.Join(dir, "links", "mod.pkl")
	if err := os.Symlink(filepath.Join(dir, "real", "mod.pkl"), link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	engine := newTestEngine(t, Options{Security: allowPrefix(t, dir)})

	key, err := engine.KeyFor(fileURI(link))
	if err != nil {
		t.Fatalf("KeyFor: %v", err)
	}
	resolved, err := engine.Resolve(key)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := fileURI(filepath.Join(dir, "real", "mod.pkl"))
	if resolved.URI() != want {
		t.Errorf("canonical URI = %q, want %q", resolved.URI(), want)
	}
}

func TestFileSymlinkEscapeDenied(t *testing.T) {
	allowed := realDir(t)
	outside := realDir(t)
	writeFile(t, filepath.Join(outside, "secret.pkl"), "x = 1")
	link := filepath.Join(allowed, "mod.pkl")
	if err := os.Symlink(filepath.Join(outside, "secret.pkl"), link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	// The nominal URI is inside the allowed tree; the real target is not.
	engine := newTestEngine(t, Options{Security: allowPrefix(t, allowed)})

	key, err := engine.KeyFor(fileURI(link))
	if err != nil {
		t.Fatalf("KeyFor: %v", err)
	}
	_, err = engine.Resolve(key)
	se, ok := security.AsSecurityError(err)
	if !ok {
		t.Fatalf("got %v, want a security error", err)
	}
	if se.Code != security.ErrModuleDenied {
		t.Errorf("code = %s, want %s", se.Code, security.ErrModuleDenied)
	}
}

func TestFileDirectoryIsNotAModule(t *testing.T) {
	dir := realDir(t)
	if err := os.MkdirAll(filepath.Join(dir, "pkg"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	engine := newTestEngine(t, Options{Security: allowPrefix(t, dir)})

	key, err := engine.KeyFor(fileURI(filepath.Join(dir, "pkg")))
	if err != nil {
		t.Fatalf("KeyFor: %v", err)
	}
	resolved, err := engine.Resolve(key)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := resolved.LoadSource(); err == nil {
		t.Fatal("expected loading a directory to fail")
	}
}

func TestTripleDotSearchesAncestorDirectories(t *testing.T) {
	dir := realDir(t)
	writeFile(t, filepath.Join(dir, "shared", "common.pkl"), "x = 1")
	writeFile(t, filepath.Join(dir, "a", "b", "main.pkl"), "")
	engine := newTestEngine(t, Options{Security: allowPrefix(t, dir)})

	importer := fileURI(filepath.Join(dir, "a", "b", "main.pkl"))
	got, err := engine.ResolveReference(".../shared/common.pkl", importer)
	if err != nil {
		t.Fatalf("ResolveReference: %v", err)
	}
	if want := fileURI(filepath.Join(dir, "shared", "common.pkl")); got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	_, err = engine.ResolveReference(".../nope.pkl", importer)
	ie, ok := AsIoError(err)
	if !ok || ie.Code != ErrNotFound {
		t.Fatalf("got %v, want %s", err, ErrNotFound)
	}

	if _, err := engine.ResolveReference(".../x.pkl", "https://example.com/m.pkl"); err == nil {
		t.Error("expected triple-dot to be rejected for non-file importers")
	}
}

func TestFileListElementsSkipsSymlinks(t *testing.T) {
	dir := realDir(t)
	writeFile(t, filepath.Join(dir, "pkg", "a.pkl"), "")
	writeFile(t, filepath.Join(dir, "pkg", "b.pkl"), "")
	if err := os.MkdirAll(filepath.Join(dir, "pkg", "sub"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.Symlink(filepath.Join(dir, "pkg", "a.pkl"), filepath.Join(dir, "pkg", "alias.pkl")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	engine := newTestEngine(t, Options{Security: allowPrefix(t, dir)})

	key, err := engine.KeyFor(fileURI(filepath.Join(dir, "pkg", "a.pkl")))
	if err != nil {
		t.Fatalf("KeyFor: %v", err)
	}
	resolved, err := engine.Resolve(key)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	lister, ok := resolved.(Lister)
	if !ok {
		t.Fatal("file resolution should support listing")
	}
	elements, err := lister.ListElements()
	if err != nil {
		t.Fatalf("ListElements: %v", err)
	}
	want := []PathElement{
		{Name: "a.pkl"},
		{Name: "b.pkl"},
		{Name: "sub", IsDirectory: true},
	}
	if len(elements) != len(want) {
		t.Fatalf("got %d elements %v, want %d", len(elements), elements, len(want))
	}
	for i, e := range elements {
		if e != want[i] {
			t.Errorf("element %d = %v, want %v", i, e, want[i])
		}
	}
}
