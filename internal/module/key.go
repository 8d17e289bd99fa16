package module

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkl/internal/project"
	"gopkl/internal/security"
)

// Key identifies an importable unit of source text: an absolute URI plus the
// scheme-specific knowledge of how to turn it into loadable text. Creating a
// key never performs I/O; everything that can fail against the outside world
// is deferred to Resolve.
type Key interface {
	// URI is the nominal absolute URI of the key.
	URI() string
	Scheme() string
	// IsLocal reports whether the scheme supports relative imports against
	// the importing module's location.
	IsLocal() bool
	// HasHierarchicalURIs reports whether directory-style listing makes
	// sense for the scheme.
	HasHierarchicalURIs() bool
	// IsCacheable reports whether resolutions and loads may be memoized per
	// canonical URI. Synthetic keys return false and bypass every cache.
	IsCacheable() bool
	// CachedPath is the relative path under which a disk cache may persist
	// the source, empty when the scheme does not want disk caching.
	CachedPath() string
	// Resolve performs the scheme-specific lookup and authorization check,
	// fixing the canonical URI.
	Resolve(sec security.Manager) (Resolved, error)
}

// Resolved is a canonicalized, loadable key. Its URI is post-redirect and
// post-symlink; loading it yields the module's source text.
type Resolved interface {
	URI() string
	LoadSource() (string, error)
}

// Lister is implemented by resolved keys of hierarchical schemes that can
// enumerate their directory.
type Lister interface {
	ListElements() ([]PathElement, error)
}

// Factory is the SPI through which schemes opt in to a URI. Factories are
// consulted in registration order; the first one that accepts wins. A
// factory must not perform I/O.
type Factory interface {
	Create(uri *url.URL) (Key, bool)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(uri *url.URL) (Key, bool)

func (f FactoryFunc) Create(uri *url.URL) (Key, bool) { return f(uri) }

// Options configures an Engine. Zero-value fields fall back to safe
// defaults; Project and PackageResolver are only needed when package:
// imports are in play.
type Options struct {
	Security        security.Manager
	HTTPClient      *http.Client
	ModulePath      *ModulePath
	Project         *project.Manager
	PackageResolver PackageResolver
	DiskCache       *DiskCache
	Logger          *slog.Logger
}

// Engine resolves module references through the registered scheme
// factories, enforcing the at-most-one resolve+load contract for cacheable
// keys.
type Engine struct {
	factories []Factory
	security  security.Manager
	project   *project.Manager
	disk      *DiskCache
	log       *slog.Logger

	cache *resolutionCache
}

func NewEngine(opts Options) *Engine {
	sec := opts.Security
	if sec == nil {
		sec = security.AllowAll()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	e := &Engine{
		security: sec,
		project:  opts.Project,
		disk:     opts.DiskCache,
		log:      logger,
		cache:    newResolutionCache(),
	}
	e.factories = append(e.factories, stdlibFactory())
	e.factories = append(e.factories, fileFactory())
	if opts.ModulePath != nil {
		e.factories = append(e.factories, modulePathFactory(opts.ModulePath))
	}
	e.factories = append(e.factories, urlFactory(client))
	if opts.Project != nil && opts.PackageResolver != nil {
		e.factories = append(e.factories, packageFactory(opts.Project, opts.PackageResolver))
	}
	return e
}

// Register appends an additional factory, consulted after the built-in
// schemes.
func (e *Engine) Register(f Factory) {
	e.factories = append(e.factories, f)
}

// KeyFor turns an absolute URI into a Key without performing any I/O.
func (e *Engine) KeyFor(uri string) (Key, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return nil, ioError(uri, err)
	}
	for _, f := range e.factories {
		if key, ok := f.Create(parsed); ok {
			return key, nil
		}
	}
	return nil, notFound(uri)
}

// Resolve resolves a key, memoizing the result for cacheable keys so the
// same nominal URI resolves at most once per session.
func (e *Engine) Resolve(key Key) (Resolved, error) {
	if !key.IsCacheable() {
		return key.Resolve(e.security)
	}
	return e.cache.resolve(key.URI(), func() (Resolved, error) {
		return key.Resolve(e.security)
	})
}

// LoadSource loads a resolved key's text, memoizing per canonical URI for
// cacheable keys and consulting the disk cache when the key asks for it.
func (e *Engine) LoadSource(key Key, resolved Resolved) (string, error) {
	if !key.IsCacheable() {
		return resolved.LoadSource()
	}
	return e.cache.load(resolved.URI(), func() (string, error) {
		if e.disk != nil && key.CachedPath() != "" {
			data, ok, err := e.disk.Get(resolved.URI())
			switch {
			case err != nil:
				e.log.Warn("disk cache read failed", "uri", resolved.URI(), "error", err)
			case ok:
				return string(data), nil
			}
		}
		src, err := resolved.LoadSource()
		if err != nil {
			return "", err
		}
		if e.disk != nil && key.CachedPath() != "" {
			if err := e.disk.Put(resolved.URI(), key.CachedPath(), []byte(src)); err != nil {
				e.log.Warn("disk cache write failed", "uri", resolved.URI(), "error", err)
			}
		}
		return src, nil
	})
}

// ResolveReference turns a reference as written at an import site into an
// absolute URI: dependency notation through the project manifest, absolute
// URIs as-is, everything else relative to the importing module.
func (e *Engine) ResolveReference(ref, importerURI string) (string, error) {
	if strings.HasPrefix(ref, "@") {
		return e.resolveDependencyNotation(ref)
	}
	if rest, ok := strings.CutPrefix(ref, ".../"); ok {
		return e.resolveTripleDot(rest, importerURI)
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", ioError(ref, err)
	}
	if parsed.IsAbs() {
		return ref, nil
	}
	if importerURI == "" {
		abs, err := filepath.Abs(ref)
		if err != nil {
			return "", ioError(ref, err)
		}
		return "file://" + filepath.ToSlash(abs), nil
	}
	base, err := url.Parse(importerURI)
	if err != nil {
		return "", ioError(importerURI, err)
	}
	return base.ResolveReference(parsed).String(), nil
}

// resolveTripleDot resolves ".../some/module.pkl" by searching the
// importing module's ancestor directories, nearest first. Only local
// file-backed importers support the notation.
func (e *Engine) resolveTripleDot(suffix, importerURI string) (string, error) {
	base, err := url.Parse(importerURI)
	if err != nil || base.Scheme != "file" {
		return "", fmt.Errorf("triple-dot import %q requires a file-based importer, got %q",
			".../"+suffix, importerURI)
	}
	rel := filepath.FromSlash(suffix)
	dir := filepath.Dir(filepath.FromSlash(base.Path))
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		candidate := filepath.Join(parent, rel)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return "file://" + filepath.ToSlash(candidate), nil
		}
		dir = parent
	}
	return "", notFound(".../" + suffix)
}

// resolveDependencyNotation expands "@name/some/module.pkl" through the
// project's resolved dependencies into a package asset URI.
func (e *Engine) resolveDependencyNotation(ref string) (string, error) {
	if e.project == nil {
		return "", fmt.Errorf("dependency notation %q used outside of a project", ref)
	}
	rest := strings.TrimPrefix(ref, "@")
	name, asset, ok := strings.Cut(rest, "/")
	if !ok {
		return "", fmt.Errorf("malformed dependency notation %q", ref)
	}
	deps, err := e.project.Dependencies()
	if err != nil {
		return "", err
	}
	dep, found := deps[name]
	if !found {
		return "", fmt.Errorf("project has no dependency named %q", name)
	}
	return dep.PackageURI + "#/" + path.Clean(asset), nil
}
