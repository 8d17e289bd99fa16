package module

import (
	"path"
	"strings"

	"gopkl/internal/evaluator"
)

// Loader adapts the Engine to the evaluator's source-loader contract.
type Loader struct {
	Engine *Engine
}

func NewLoader(engine *Engine) *Loader {
	return &Loader{Engine: engine}
}

// Load resolves an import reference and produces the module's source text.
// Cacheable keys resolve and load at most once per canonical URI.
func (l *Loader) Load(ref, importerURI string) (*evaluator.LoadedSource, error) {
	uri, err := l.Engine.ResolveReference(ref, importerURI)
	if err != nil {
		return nil, err
	}
	key, err := l.Engine.KeyFor(uri)
	if err != nil {
		return nil, err
	}
	resolved, err := l.Engine.Resolve(key)
	if err != nil {
		return nil, err
	}
	src, err := l.Engine.LoadSource(key, resolved)
	if err != nil {
		return nil, err
	}
	return &evaluator.LoadedSource{
		Name:      moduleName(resolved.URI()),
		URI:       resolved.URI(),
		Src:       src,
		Cacheable: key.IsCacheable(),
	}, nil
}

// moduleName derives a display name from a canonical URI: the last path
// segment with its extension stripped.
func moduleName(uri string) string {
	name := uri
	if i := strings.IndexAny(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "#"); i >= 0 {
		name = name[i+1:]
	}
	name = path.Base(strings.TrimPrefix(name, "//"))
	return strings.TrimSuffix(name, path.Ext(name))
}
