package project

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const fooManifest = `
package:
  name: app
  baseUri: package://example.com/app
  version: 0.1.0
dependencies:
  foo:
    uri: package://example.com/foo
    version: 1.2.0
`

func fooLock(resolved string) string {
	return `{
  "schemaVersion": 1,
  "resolvedDependencies": {
    "package://example.com/foo@1": {
      "type": "remote",
      "uri": "package://example.com/foo@` + resolved + `",
      "checksums": {"sha256": "abc123"}
    }
  }
}`
}

func newTestManager(t *testing.T, manifest, lock string) *Manager {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ManifestFileName), manifest)
	writeFile(t, filepath.Join(dir, LockFileName), lock)
	mgr, err := NewManager(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	return mgr
}

func TestStaleDependencyFails(t *testing.T) {
	mgr := newTestManager(t, fooManifest, fooLock("1.1.0"))
	_, err := mgr.Dependencies()
	if err == nil {
		t.Fatal("expected an out-of-date error")
	}
	pe, ok := AsPackageLoadError(err)
	if !ok {
		t.Fatalf("expected a package load error, got %v", err)
	}
	if pe.Code != ErrOutOfDate {
		t.Errorf("wrong code %s", pe.Code)
	}
	for _, version := range []string{"1.2.0", "1.1.0"} {
		if !strings.Contains(pe.Message, version) {
			t.Errorf("message should name version %s, got %q", version, pe.Message)
		}
	}
	if pe.Declared == "" || pe.Resolved == "" {
		t.Errorf("error should carry both package URIs, got %q / %q", pe.Declared, pe.Resolved)
	}
}

func TestEqualAndNewerVersionsSucceed(t *testing.T) {
	for _, resolved := range []string{"1.2.0", "1.3.0"} {
		mgr := newTestManager(t, fooManifest, fooLock(resolved))
		deps, err := mgr.Dependencies()
		if err != nil {
			t.Fatalf("resolved %s: %v", resolved, err)
		}
		dep := deps["foo"]
		if dep == nil {
			t.Fatalf("resolved %s: foo missing", resolved)
		}
		if dep.Version.String() != resolved {
			t.Errorf("expected version %s, got %s", resolved, dep.Version)
		}
		if dep.SHA256() != "abc123" {
			t.Errorf("checksum not carried through: %q", dep.SHA256())
		}
	}
}

func TestResolvedDependencyByPackageURI(t *testing.T) {
	mgr := newTestManager(t, fooManifest, fooLock("1.2.0"))
	dep, err := mgr.ResolvedDependency("package://example.com/foo@1.2.0")
	if err != nil {
		t.Fatal(err)
	}
	if dep.PackageURI != "package://example.com/foo@1.2.0" {
		t.Errorf("unexpected package URI %q", dep.PackageURI)
	}

	_, err = mgr.ResolvedDependency("package://example.com/bar@2.0.0")
	pe, ok := AsPackageLoadError(err)
	if !ok || pe.Code != ErrUnresolvedDependency {
		t.Errorf("expected unresolved-dependency error, got %v", err)
	}
}

func TestUnresolvedDependencyFails(t *testing.T) {
	mgr := newTestManager(t, fooManifest, `{"schemaVersion": 1, "resolvedDependencies": {}}`)
	_, err := mgr.Dependencies()
	pe, ok := AsPackageLoadError(err)
	if !ok || pe.Code != ErrUnresolvedDependency {
		t.Fatalf("expected unresolved-dependency error, got %v", err)
	}
	if !strings.Contains(pe.Message, "drifted") {
		t.Errorf("message should mention manifest/lock drift, got %q", pe.Message)
	}
}

func TestLockSchemaVersionChecked(t *testing.T) {
	mgr := newTestManager(t, fooManifest, `{"schemaVersion": 2, "resolvedDependencies": {}}`)
	_, err := mgr.Dependencies()
	pe, ok := AsPackageLoadError(err)
	if !ok || pe.Code != ErrInvalidLockFile {
		t.Fatalf("expected invalid-lock-file error, got %v", err)
	}
}

func TestDependenciesMemoized(t *testing.T) {
	mgr := newTestManager(t, fooManifest, fooLock("1.2.0"))
	first, err := mgr.Dependencies()
	if err != nil {
		t.Fatal(err)
	}
	second, err := mgr.Dependencies()
	if err != nil {
		t.Fatal(err)
	}
	if first["foo"] != second["foo"] {
		t.Errorf("repeated calls must share the memoized resolution")
	}
}

func TestLocalDependencyResolvesByPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ManifestFileName), `
package:
  name: app
  baseUri: package://example.com/app
  version: 0.1.0
dependencies:
  lib:
    path: ./lib
`)
	writeFile(t, filepath.Join(dir, LockFileName), `{
  "schemaVersion": 1,
  "resolvedDependencies": {
    "projectpackage://example.com/lib@5": {
      "type": "local",
      "uri": "projectpackage://example.com/lib@5.0.0",
      "path": "lib"
    }
  }
}`)
	writeFile(t, filepath.Join(dir, "lib", ManifestFileName), `
package:
  name: lib
  baseUri: package://example.com/lib
  version: 5.0.0
`)

	mgr, err := NewManager(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	deps, err := mgr.Dependencies()
	if err != nil {
		t.Fatal(err)
	}
	dep := deps["lib"]
	if dep == nil {
		t.Fatal("lib missing from resolved dependencies")
	}
	if !dep.Local {
		t.Errorf("lib should resolve locally, not by network fetch")
	}
	if dep.Path != filepath.Join(dir, "lib") {
		t.Errorf("unexpected path %q", dep.Path)
	}

	sub, err := mgr.LocalPackageDependencies("projectpackage://example.com/lib@5.0.0")
	if err != nil {
		t.Fatal(err)
	}
	if sub.Manifest().Package.Name != "lib" {
		t.Errorf("wrong sub-project manifest: %s", sub.Manifest())
	}
}
