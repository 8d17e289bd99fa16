package project

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/blang/semver/v4"
	"go.uber.org/multierr"
)

// ResolvedDependency is one dependency after lock-file resolution: the
// concrete versioned package URI plus, for remote packages, the pinned
// checksums, or, for local sub-projects, the filesystem path.
type ResolvedDependency struct {
	Name       string
	PackageURI string
	Version    semver.Version
	Checksums  map[string]string
	Local      bool
	Path       string
}

// SHA256 returns the pinned sha256 checksum, empty for local dependencies.
func (d *ResolvedDependency) SHA256() string { return d.Checksums["sha256"] }

// Manager resolves one project's declared dependencies against its lock
// file. The resolution runs at most once; concurrent callers block on the
// first computation and then share the memoized result.
type Manager struct {
	dir      string
	manifest *Manifest
	log      *slog.Logger

	once        sync.Once
	initErr     error
	byName      map[string]*ResolvedDependency
	byCanonical map[string]*ResolvedDependency
	locals      map[string]*Manager
}

// NewManager loads the manifest in dir and prepares a manager. The lock file
// is not touched until Dependencies is first called.
func NewManager(dir string, logger *slog.Logger) (*Manager, error) {
	manifest, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dir: dir, manifest: manifest, log: logger}, nil
}

// Manifest returns the project's decoded manifest.
func (m *Manager) Manifest() *Manifest { return m.manifest }

// Dependencies returns the name→resolved-dependency map, validating every
// declared dependency against the lock file on first call.
func (m *Manager) Dependencies() (map[string]*ResolvedDependency, error) {
	m.once.Do(m.build)
	return m.byName, m.initErr
}

// ResolvedDependency translates a versioned package URI into the resolved
// dependency the project pinned for its major version.
func (m *Manager) ResolvedDependency(packageURI string) (*ResolvedDependency, error) {
	if _, err := m.Dependencies(); err != nil {
		return nil, err
	}
	base, version, err := splitVersionedURI(packageURI)
	if err != nil {
		return nil, newPackageLoadError(ErrUnresolvedDependency,
			"malformed package URI %q: %v", packageURI, err)
	}
	dep, ok := m.byCanonical[canonicalURI(base, version)]
	if !ok {
		perr := newPackageLoadError(ErrUnresolvedDependency,
			"package %q is not a dependency of this project", packageURI)
		perr.Declared = packageURI
		return nil, perr
	}
	return dep, nil
}

// LocalPackageDependencies returns the dependency manager of a local
// sub-project, addressed by its projectpackage: URI.
func (m *Manager) LocalPackageDependencies(packageURI string) (*Manager, error) {
	if _, err := m.Dependencies(); err != nil {
		return nil, err
	}
	base, version, err := splitVersionedURI(packageURI)
	if err != nil {
		return nil, newPackageLoadError(ErrUnresolvedDependency,
			"malformed package URI %q: %v", packageURI, err)
	}
	sub, ok := m.locals[canonicalURI(base, version)]
	if !ok {
		perr := newPackageLoadError(ErrUnresolvedDependency,
			"%q is not a local dependency of this project", packageURI)
		perr.Declared = packageURI
		return nil, perr
	}
	return sub, nil
}

func (m *Manager) build() {
	m.byName = make(map[string]*ResolvedDependency)
	m.byCanonical = make(map[string]*ResolvedDependency)
	m.locals = make(map[string]*Manager)

	lock, err := LoadLockFile(m.dir)
	if err != nil {
		m.initErr = err
		return
	}

	names := make([]string, 0, len(m.manifest.Dependencies))
	for name := range m.manifest.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs error
	for _, name := range names {
		decl := m.manifest.Dependencies[name]
		var dep *ResolvedDependency
		var canonical string
		var err error
		if decl.IsLocal() {
			dep, canonical, err = m.resolveLocal(name, decl, lock)
		} else {
			dep, canonical, err = m.resolveRemote(name, decl, lock)
		}
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		m.byName[name] = dep
		m.byCanonical[canonical] = dep
	}
	m.initErr = errs
	if errs == nil {
		m.log.Debug("project dependencies resolved",
			"project", m.manifest.String(), "count", len(m.byName))
	}
}

func (m *Manager) resolveRemote(name string, decl DeclaredDependency, lock *LockFile) (*ResolvedDependency, string, error) {
	declared, err := semver.Parse(decl.Version)
	if err != nil {
		return nil, "", newPackageLoadError(ErrInvalidManifest,
			"dependency %q declares invalid version %q: %v", name, decl.Version, err)
	}
	canonical := canonicalURI(decl.URI, declared)

	entry, ok := lock.ResolvedDependencies[canonical]
	if !ok {
		perr := newPackageLoadError(ErrUnresolvedDependency,
			"dependency %q (%s@%s) has no entry in %s; the manifest and lock file have drifted",
			name, decl.URI, decl.Version, LockFileName)
		perr.Declared = fmt.Sprintf("%s@%s", decl.URI, decl.Version)
		return nil, "", perr
	}
	_, resolved, err := splitVersionedURI(entry.URI)
	if err != nil {
		return nil, "", newPackageLoadError(ErrInvalidLockFile,
			"lock entry for %q has malformed URI %q: %v", name, entry.URI, err)
	}
	if resolved.LT(declared) {
		perr := newPackageLoadError(ErrOutOfDate,
			"dependency %q is declared at %s but the lock file resolves it to %s; run project resolve",
			name, declared, resolved)
		perr.Declared = fmt.Sprintf("%s@%s", decl.URI, decl.Version)
		perr.Resolved = entry.URI
		return nil, "", perr
	}
	return &ResolvedDependency{
		Name:       name,
		PackageURI: entry.URI,
		Version:    resolved,
		Checksums:  entry.Checksums,
	}, canonical, nil
}

func (m *Manager) resolveLocal(name string, decl DeclaredDependency, lock *LockFile) (*ResolvedDependency, string, error) {
	subdir := filepath.Join(m.dir, decl.Path)
	sub, err := NewManager(subdir, m.log)
	if err != nil {
		return nil, "", err
	}
	declared, err := semver.Parse(sub.manifest.Package.Version)
	if err != nil {
		return nil, "", newPackageLoadError(ErrInvalidManifest,
			"local dependency %q declares invalid version %q: %v",
			name, sub.manifest.Package.Version, err)
	}
	canonical := canonicalURI(localBaseURI(sub.manifest.Package.BaseURI), declared)

	entry, ok := lock.ResolvedDependencies[canonical]
	if !ok {
		perr := newPackageLoadError(ErrUnresolvedDependency,
			"local dependency %q (%s) has no entry in %s; the manifest and lock file have drifted",
			name, canonical, LockFileName)
		perr.Declared = canonical
		return nil, "", perr
	}
	if entry.Type != LockTypeLocal {
		return nil, "", newPackageLoadError(ErrInvalidLockFile,
			"lock entry for local dependency %q has type %q", name, entry.Type)
	}
	_, resolved, err := splitVersionedURI(entry.URI)
	if err != nil {
		return nil, "", newPackageLoadError(ErrInvalidLockFile,
			"lock entry for %q has malformed URI %q: %v", name, entry.URI, err)
	}
	if resolved.LT(declared) {
		perr := newPackageLoadError(ErrOutOfDate,
			"local dependency %q is at %s but the lock file resolves it to %s; run project resolve",
			name, declared, resolved)
		perr.Declared = canonical
		perr.Resolved = entry.URI
		return nil, "", perr
	}
	m.locals[canonical] = sub
	return &ResolvedDependency{
		Name:       name,
		PackageURI: entry.URI,
		Version:    resolved,
		Local:      true,
		Path:       subdir,
	}, canonical, nil
}

// localBaseURI rewrites a package base URI under the projectpackage: scheme
// so transitive local dependencies resolve through the same machinery as
// remote ones.
func localBaseURI(base string) string {
	if rest, ok := strings.CutPrefix(base, "package://"); ok {
		return "projectpackage://" + rest
	}
	return base
}

// splitVersionedURI splits "scheme://host/name@1.2.3" into the unversioned
// base and the parsed version.
func splitVersionedURI(uri string) (string, semver.Version, error) {
	i := strings.LastIndex(uri, "@")
	if i < 0 {
		return "", semver.Version{}, fmt.Errorf("missing @version suffix")
	}
	version, err := semver.ParseTolerant(uri[i+1:])
	if err != nil {
		return "", semver.Version{}, err
	}
	return uri[:i], version, nil
}

// canonicalURI is the lock-file key for a package: its base URI pinned to a
// major version line.
func canonicalURI(base string, version semver.Version) string {
	return fmt.Sprintf("%s@%d", base, version.Major)
}
