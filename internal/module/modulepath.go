package module

import (
	"archive/zip"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"gopkl/internal/security"
)

// ModulePath resolves modulepath: URIs against a search path of directories
// and zip archives. The whole path is walked once, lazily, into an
// in-memory index; archives stay open for the resolver's lifetime and are
// released exactly once by Close.
type ModulePath struct {
	entries []string
	log     *slog.Logger

	initOnce sync.Once
	initErr  error
	index    map[string]location
	dirs     map[string][]PathElement
	archives []*zip.ReadCloser

	mu     sync.Mutex
	closed bool
}

// location records where a relative path was found: a directory entry or an
// open archive.
type location struct {
	dir     string
	archive *zip.ReadCloser
	entry   string
}

func NewModulePath(entries []string, logger *slog.Logger) *ModulePath {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModulePath{entries: entries, log: logger}
}

// Close releases the archive handles. Closing twice is harmless; resolving
// after Close fails fast.
func (mp *ModulePath) Close() error {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if mp.closed {
		return nil
	}
	mp.closed = true
	var firstErr error
	for _, a := range mp.archives {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	mp.archives = nil
	return firstErr
}

func (mp *ModulePath) isClosed() bool {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.closed
}

// lookup finds a relative path in the search path, building the index on
// first use.
func (mp *ModulePath) lookup(rel string) (location, bool, error) {
	if mp.isClosed() {
		return location{}, false, &IoError{Code: ErrClosed, URI: "modulepath:/" + rel}
	}
	mp.initOnce.Do(mp.buildIndex)
	if mp.initErr != nil {
		return location{}, false, mp.initErr
	}
	loc, ok := mp.index[rel]
	return loc, ok, nil
}

// list returns the entries of a directory in the merged tree.
func (mp *ModulePath) list(rel string) ([]PathElement, bool, error) {
	if mp.isClosed() {
		return nil, false, &IoError{Code: ErrClosed, URI: "modulepath:/" + rel}
	}
	mp.initOnce.Do(mp.buildIndex)
	if mp.initErr != nil {
		return nil, false, mp.initErr
	}
	elements, ok := mp.dirs[rel]
	return elements, ok, nil
}

// buildIndex walks every search-path entry once. When the same relative
// path appears in more than one entry, the first entry wins, classloader
// style; the shadowed occurrence is logged and skipped.
func (mp *ModulePath) buildIndex() {
	mp.index = make(map[string]location)
	mp.dirs = make(map[string][]PathElement)
	seenDirs := make(map[string]map[string]bool)

	for _, entry := range mp.entries {
		if strings.HasSuffix(entry, ".zip") || strings.HasSuffix(entry, ".jar") {
			if err := mp.indexArchive(entry, seenDirs); err != nil {
				mp.initErr = err
				return
			}
			continue
		}
		if err := mp.indexDirectory(entry, seenDirs); err != nil {
			mp.initErr = err
			return
		}
	}
	for _, elements := range mp.dirs {
		SortPathElements(elements)
	}
}

func (mp *ModulePath) indexDirectory(root string, seenDirs map[string]map[string]bool) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return ioError("modulepath:"+root, err)
		}
		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return ioError("modulepath:"+root, relErr)
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			mp.recordElement(seenDirs, rel, true)
			return nil
		}
		if !d.Type().IsRegular() || strings.HasSuffix(rel, ".class") {
			return nil
		}
		mp.record(rel, location{dir: root}, seenDirs)
		return nil
	})
}

func (mp *ModulePath) indexArchive(archivePath string, seenDirs map[string]map[string]bool) error {
	archive, err := zip.OpenReader(archivePath)
	if err != nil {
		return ioError("modulepath:"+archivePath, err)
	}
	mp.mu.Lock()
	mp.archives = append(mp.archives, archive)
	mp.mu.Unlock()

	for _, f := range archive.File {
		rel := path.Clean(f.Name)
		if f.FileInfo().IsDir() {
			mp.recordElement(seenDirs, rel, true)
			continue
		}
		if strings.HasSuffix(rel, ".class") {
			continue
		}
		mp.record(rel, location{archive: archive, entry: f.Name}, seenDirs)
	}
	return nil
}

func (mp *ModulePath) record(rel string, loc location, seenDirs map[string]map[string]bool) {
	if existing, exists := mp.index[rel]; exists {
		mp.log.Debug("modulepath entry shadowed",
			"path", rel, "winner", locationName(existing), "shadowed", locationName(loc))
		return
	}
	mp.index[rel] = loc
	mp.recordElement(seenDirs, rel, false)
}

// recordElement registers rel in its parent directory's listing, and the
// parent chain up to the root.
func (mp *ModulePath) recordElement(seenDirs map[string]map[string]bool, rel string, isDir bool) {
	parent := path.Dir(rel)
	if parent == "." {
		parent = ""
	}
	seen := seenDirs[parent]
	if seen == nil {
		seen = make(map[string]bool)
		seenDirs[parent] = seen
	}
	name := path.Base(rel)
	if seen[name] {
		return
	}
	seen[name] = true
	mp.dirs[parent] = append(mp.dirs[parent], PathElement{Name: name, IsDirectory: isDir})
	if parent != "" {
		mp.recordElement(seenDirs, parent, true)
	}
}

func locationName(loc location) string {
	if loc.archive != nil {
		return "archive:" + loc.entry
	}
	return loc.dir
}

func (mp *ModulePath) readLocation(rel string, loc location) (string, error) {
	uri := "modulepath:/" + rel
	if mp.isClosed() {
		return "", &IoError{Code: ErrClosed, URI: uri}
	}
	if loc.archive != nil {
		f, err := loc.archive.Open(loc.entry)
		if err != nil {
			return "", ioError(uri, err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return "", ioError(uri, err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(filepath.Join(loc.dir, filepath.FromSlash(rel)))
	if err != nil {
		return "", ioError(uri, err)
	}
	return string(data), nil
}

// modulePathKey serves modulepath:/relative/path URIs against a shared
// ModulePath resolver.
type modulePathKey struct {
	mp   *ModulePath
	path string
}

func modulePathFactory(mp *ModulePath) Factory {
	return FactoryFunc(func(uri *url.URL) (Key, bool) {
		if uri.Scheme != "modulepath" {
			return nil, false
		}
		rel := uri.Path
		if rel == "" {
			rel = uri.Opaque
		}
		return &modulePathKey{mp: mp, path: strings.TrimPrefix(rel, "/")}, true
	})
}

func (k *modulePathKey) URI() string               { return "modulepath:/" + k.path }
func (k *modulePathKey) Scheme() string            { return "modulepath" }
func (k *modulePathKey) IsLocal() bool             { return true }
func (k *modulePathKey) HasHierarchicalURIs() bool { return true }
func (k *modulePathKey) IsCacheable() bool         { return true }
func (k *modulePathKey) CachedPath() string        { return "" }

func (k *modulePathKey) Resolve(sec security.Manager) (Resolved, error) {
	if err := sec.CheckModule(k.URI()); err != nil {
		return nil, err
	}
	loc, ok, err := k.mp.lookup(k.path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound(k.URI())
	}
	return &modulePathResolved{key: k, loc: loc}, nil
}

type modulePathResolved struct {
	key *modulePathKey
	loc location
}

func (r *modulePathResolved) URI() string { return r.key.URI() }

func (r *modulePathResolved) LoadSource() (string, error) {
	return r.key.mp.readLocation(r.key.path, r.loc)
}

func (r *modulePathResolved) ListElements() ([]PathElement, error) {
	dir := path.Dir(r.key.path)
	if dir == "." {
		dir = ""
	}
	elements, ok, err := r.key.mp.list(dir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound("modulepath:/" + dir)
	}
	out := make([]PathElement, len(elements))
	copy(out, elements)
	return out, nil
}
