package module

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"

	"gopkl/internal/security"
)

var errIsDirectory = errors.New("is a directory, not a module")

// fileKey serves file: URIs. The canonical URI is the realpath of the
// nominal one, symlinks followed, so two spellings of the same file share
// one cache entry.
type fileKey struct {
	path string
}

func fileFactory() Factory {
	return FactoryFunc(func(uri *url.URL) (Key, bool) {
		if uri.Scheme != "file" {
			return nil, false
		}
		return &fileKey{path: filepath.FromSlash(uri.Path)}, true
	})
}

func fileURI(p string) string {
	return "file://" + filepath.ToSlash(p)
}

func (k *fileKey) URI() string               { return fileURI(k.path) }
func (k *fileKey) Scheme() string            { return "file" }
func (k *fileKey) IsLocal() bool             { return true }
func (k *fileKey) HasHierarchicalURIs() bool { return true }
func (k *fileKey) IsCacheable() bool         { return true }
func (k *fileKey) CachedPath() string        { return "" }

func (k *fileKey) Resolve(sec security.Manager) (Resolved, error) {
	if err := sec.CheckModule(k.URI()); err != nil {
		return nil, err
	}
	real, err := filepath.EvalSymlinks(k.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(k.URI())
		}
		return nil, ioError(k.URI(), err)
	}
	real, err = filepath.Abs(real)
	if err != nil {
		return nil, ioError(k.URI(), err)
	}
	// The realized location must pass policy too, not just the nominal one:
	// symlinks may point outside the allowed tree.
	canonical := fileURI(real)
	if canonical != k.URI() {
		if err := sec.CheckModule(canonical); err != nil {
			return nil, err
		}
	}
	info, err := os.Stat(real)
	if err != nil {
		return nil, notFound(canonical)
	}
	return &fileResolved{path: real, isDir: info.IsDir()}, nil
}

type fileResolved struct {
	path  string
	isDir bool
}

func (r *fileResolved) URI() string { return fileURI(r.path) }

func (r *fileResolved) LoadSource() (string, error) {
	if r.isDir {
		return "", &IoError{Code: ErrIo, URI: r.URI(), Err: errIsDirectory}
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", notFound(r.URI())
		}
		return "", ioError(r.URI(), err)
	}
	return string(data), nil
}

// ListElements enumerates a directory, skipping symlinked entries so that
// cyclic links cannot turn a glob into an infinite walk.
func (r *fileResolved) ListElements() ([]PathElement, error) {
	dir := r.path
	if !r.isDir {
		dir = filepath.Dir(r.path)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ioError(fileURI(dir), err)
	}
	var elements []PathElement
	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink != 0 {
			continue
		}
		elements = append(elements, PathElement{
			Name:        entry.Name(),
			IsDirectory: entry.IsDir(),
		})
	}
	SortPathElements(elements)
	return elements, nil
}
