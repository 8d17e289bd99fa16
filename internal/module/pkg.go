package module

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkl/internal/project"
	"gopkl/internal/security"
)

// PackageResolver fetches assets out of resolved package archives. The
// engine stays agnostic of how archives are obtained; implementations may
// go to the network or to a local store. The checksums pin the package
// archive as a whole and must be verified before any asset is served out
// of it.
type PackageResolver interface {
	// Bytes returns the raw bytes of one asset inside a package. The
	// packageURI is canonical (base@version) and the asset path is
	// slash-separated relative to the package root.
	Bytes(packageURI, asset string, checksums map[string]string) ([]byte, error)
	// ListElements lists the entries of a directory inside a package.
	ListElements(packageURI, dir string, checksums map[string]string) ([]PathElement, error)
	// HasElement reports whether an asset exists inside a package.
	HasElement(packageURI, asset string, checksums map[string]string) (bool, error)
	// DependencyMetadata returns the raw metadata document published
	// alongside a package archive.
	DependencyMetadata(packageURI string) ([]byte, error)
}

// packageKey serves package://example.com/name@1.2.3#/path/file.pkl URIs,
// and projectpackage: URIs for local project dependencies.
type packageKey struct {
	proj     *project.Manager
	resolver PackageResolver

	uri        *url.URL
	packageURI string // scheme://host/path@version
	asset      string // slash path inside the package, no leading slash
}

func packageFactory(proj *project.Manager, resolver PackageResolver) Factory {
	return FactoryFunc(func(uri *url.URL) (Key, bool) {
		if uri.Scheme != "package" && uri.Scheme != "projectpackage" {
			return nil, false
		}
		base := *uri
		base.Fragment = ""
		return &packageKey{
			proj:       proj,
			resolver:   resolver,
			uri:        uri,
			packageURI: base.String(),
			asset:      strings.TrimPrefix(uri.Fragment, "/"),
		}, true
	})
}

func (k *packageKey) URI() string               { return k.uri.String() }
func (k *packageKey) Scheme() string            { return k.uri.Scheme }
func (k *packageKey) IsLocal() bool             { return k.uri.Scheme == "projectpackage" }
func (k *packageKey) HasHierarchicalURIs() bool { return true }
func (k *packageKey) IsCacheable() bool         { return true }

func (k *packageKey) CachedPath() string {
	if k.IsLocal() {
		return ""
	}
	return path.Join("package", k.uri.Host, strings.TrimPrefix(k.uri.Path, "/"))
}

func (k *packageKey) Resolve(sec security.Manager) (Resolved, error) {
	if err := sec.CheckModule(k.URI()); err != nil {
		return nil, err
	}
	dep, err := k.proj.ResolvedDependency(k.packageURI)
	if err != nil {
		return nil, err
	}
	// The lock file may resolve to a different version than the one named
	// at the import site; the realized URI is re-authorized like a
	// followed redirect.
	if canonical := dep.PackageURI + "#/" + k.asset; canonical != k.URI() {
		if err := sec.CheckModule(canonical); err != nil {
			return nil, err
		}
	}
	if dep.Local {
		return k.resolveLocal(dep)
	}
	return k.resolveRemote(dep)
}

// resolveRemote fetches the asset through the package resolver, which
// verifies the archive against the locked checksums before serving out of
// it.
func (k *packageKey) resolveRemote(dep *project.ResolvedDependency) (Resolved, error) {
	data, err := k.resolver.Bytes(dep.PackageURI, k.asset, dep.Checksums)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(k.URI())
		}
		if _, ok := AsIoError(err); ok {
			return nil, err
		}
		return nil, ioError(k.URI(), err)
	}
	return &packageResolved{key: k, dep: dep, body: string(data)}, nil
}

// resolveLocal maps the asset onto the dependency's directory on disk.
func (k *packageKey) resolveLocal(dep *project.ResolvedDependency) (Resolved, error) {
	p := filepath.Join(dep.Path, filepath.FromSlash(k.asset))
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(k.URI())
		}
		return nil, ioError(k.URI(), err)
	}
	if info.IsDir() {
		return nil, &IoError{Code: ErrIo, URI: k.URI(), Err: errIsDirectory}
	}
	return &packageResolved{key: k, dep: dep, localPath: p}, nil
}

type packageResolved struct {
	key       *packageKey
	dep       *project.ResolvedDependency
	body      string
	localPath string
}

func (r *packageResolved) URI() string {
	return r.dep.PackageURI + "#/" + r.key.asset
}

func (r *packageResolved) LoadSource() (string, error) {
	if r.localPath != "" {
		data, err := os.ReadFile(r.localPath)
		if err != nil {
			return "", ioError(r.URI(), err)
		}
		return string(data), nil
	}
	return r.body, nil
}

func (r *packageResolved) ListElements() ([]PathElement, error) {
	dir := path.Dir(r.key.asset)
	if dir == "." {
		dir = ""
	}
	if r.localPath != "" {
		entries, err := os.ReadDir(filepath.Dir(r.localPath))
		if err != nil {
			return nil, ioError(r.URI(), err)
		}
		var elements []PathElement
		for _, entry := range entries {
			if entry.Type()&os.ModeSymlink != 0 {
				continue
			}
			elements = append(elements, PathElement{Name: entry.Name(), IsDirectory: entry.IsDir()})
		}
		SortPathElements(elements)
		return elements, nil
	}
	return r.key.resolver.ListElements(r.dep.PackageURI, dir, r.dep.Checksums)
}
