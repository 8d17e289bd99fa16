package module

import (
	"net/url"

	"gopkl/internal/security"
	"gopkl/internal/stdlib"
)

// stdlibKey serves pkl:<name> from the embedded standard library.
type stdlibKey struct {
	name string
}

func stdlibFactory() Factory {
	return FactoryFunc(func(uri *url.URL) (Key, bool) {
		if uri.Scheme != "pkl" {
			return nil, false
		}
		return &stdlibKey{name: uri.Opaque}, true
	})
}

func (k *stdlibKey) URI() string               { return "pkl:" + k.name }
func (k *stdlibKey) Scheme() string            { return "pkl" }
func (k *stdlibKey) IsLocal() bool             { return false }
func (k *stdlibKey) HasHierarchicalURIs() bool { return false }
func (k *stdlibKey) IsCacheable() bool         { return true }
func (k *stdlibKey) CachedPath() string        { return "" }

func (k *stdlibKey) Resolve(sec security.Manager) (Resolved, error) {
	if err := sec.CheckModule(k.URI()); err != nil {
		return nil, err
	}
	if !stdlib.Has(k.name) {
		return nil, notFound(k.URI())
	}
	return &stdlibResolved{key: k}, nil
}

type stdlibResolved struct {
	key *stdlibKey
}

func (r *stdlibResolved) URI() string { return r.key.URI() }

func (r *stdlibResolved) LoadSource() (string, error) {
	src, err := stdlib.Source(r.key.name)
	if err != nil {
		return "", notFound(r.key.URI())
	}
	return src, nil
}
