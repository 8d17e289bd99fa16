package evaluator

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"gopkl/internal/ast"
	"gopkl/internal/lexer"
	"gopkl/internal/object"
	"gopkl/internal/parser"
)

// LoadedSource is one resolved unit of module source text. URI is the
// canonical form the evaluated-module registry keys on; Cacheable is false
// for synthetic sources (REPL input) that may change between loads.
type LoadedSource struct {
	Name      string
	URI       string
	Src       string
	Cacheable bool
}

// SourceLoader turns a module reference, as written at an import site, into
// source text. The module resolution engine implements this; tests supply
// fakes.
type SourceLoader interface {
	Load(ref string, importerURI string) (*LoadedSource, error)
}

// LoadModule resolves, parses, and evaluates the module ref names, reusing
// the registry entry when the module was evaluated before. At most one
// evaluation happens per canonical URI; a re-entrant load of a module still
// being evaluated is an import cycle.
func (e *Evaluator) LoadModule(ref string, importerURI string) (*object.Module, error) {
	src, err := e.loader.Load(ref, importerURI)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if src.Cacheable {
		if mod, ok := e.modules[src.URI]; ok {
			e.mu.Unlock()
			return mod, nil
		}
	}
	if e.loading[src.URI] {
		e.mu.Unlock()
		return nil, fmt.Errorf("import cycle detected at %s", src.URI)
	}
	e.loading[src.URI] = true
	e.mu.Unlock()

	mod, err := e.EvalModuleSource(src.Name, src.URI, src.Src)

	e.mu.Lock()
	delete(e.loading, src.URI)
	if err == nil && src.Cacheable {
		e.modules[src.URI] = mod
	}
	e.mu.Unlock()

	if err != nil {
		return nil, err
	}
	e.log.Debug("module evaluated", "uri", src.URI, "name", mod.Name)
	return mod, nil
}

// EvalModuleSource parses and evaluates source text directly, bypassing the
// registry. The REPL and tests use this entry point.
func (e *Evaluator) EvalModuleSource(name, uri, src string) (*object.Module, error) {
	l := lexer.New(src)
	p := parser.New(l, src)
	prog := p.ParseModule()
	if errs := p.Errors(); len(errs) > 0 {
		var err error
		for _, msg := range errs {
			err = multierr.Append(err, errors.New(msg))
		}
		return nil, fmt.Errorf("%s: %w", uri, err)
	}
	return e.evalModule(prog, name, uri, src)
}

func (e *Evaluator) evalModule(prog *ast.Module, name, uri, src string) (*object.Module, error) {
	env := object.NewEnclosedEnvironment(e.base)
	env.ModuleURI = uri

	if prog.Name != "" {
		name = prog.Name
	}
	mod := &object.Module{Name: name, URI: uri, Src: src, Env: env, Program: prog}

	for _, imp := range prog.Imports {
		imported, err := e.LoadModule(imp.URI, uri)
		if err != nil {
			return nil, fmt.Errorf("import %q in %s: %w", imp.URI, uri, err)
		}
		binding := moduleBindingName(imp)
		if _, err := env.Define(binding, imported); err != nil {
			return nil, fmt.Errorf("%s: %w", uri, err)
		}
	}

	// The amended (or extended) module supplies the prototype the body's
	// properties are merged into; a standalone module starts from Dynamic.
	var parent object.Object = object.DynamicClass
	if clause := moduleParent(prog); clause != nil {
		parentMod, err := e.LoadModule(clause.URI, uri)
		if err != nil {
			return nil, fmt.Errorf("%s %q in %s: %w", clause.Token.Literal, clause.URI, uri, err)
		}
		parent = parentMod.Value
		// Classes of the parent module stay visible in the amending module.
		env.Outer = parentMod.Env
	}

	// Classes first so properties and subclasses can reference them
	// regardless of declaration order.
	for _, stmt := range prog.Body {
		decl, ok := stmt.(*ast.ClassDeclaration)
		if !ok {
			continue
		}
		class, err := e.buildClass(decl, env)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", uri, err)
		}
		if _, err := env.Define(class.Name, class); err != nil {
			return nil, fmt.Errorf("%s: %w", uri, err)
		}
	}

	var members []*object.Member
	for _, stmt := range prog.Body {
		decl, ok := stmt.(*ast.PropertyDeclaration)
		if !ok {
			continue
		}
		body := decl.Default
		if body == nil {
			body = &ast.NullLiteral{Token: decl.Token}
		}
		members = append(members, &object.Member{
			Key:     object.NameKey(decl.Name.Value),
			Kind:    object.MemberProperty,
			Body:    body,
			Env:     env,
			Type:    decl.Type,
			IsLocal: decl.IsLocal,
			IsAmend: decl.IsAmend,
			Doc:     decl.Doc,
			Header:  decl.Header,
		})
	}

	frag, err := object.NewFragment(prog.SiteID, members, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", uri, err)
	}
	value, err := e.Amend(parent, frag)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", uri, err)
	}
	mod.Value = value
	return mod, nil
}

func (e *Evaluator) buildClass(decl *ast.ClassDeclaration, env *object.Environment) (*object.Class, error) {
	var super *object.Class
	if decl.Superclass != nil {
		bound, ok := env.Get(decl.Superclass.Value)
		if !ok {
			return nil, fmt.Errorf("class %s extends unknown class %s",
				decl.Name.Value, decl.Superclass.Value)
		}
		super, ok = bound.(*object.Class)
		if !ok {
			return nil, fmt.Errorf("class %s extends %s, which is not a class",
				decl.Name.Value, decl.Superclass.Value)
		}
	}
	class := object.NewClass(decl.Name.Value, super)
	for _, p := range decl.Properties {
		class.AddProperty(&object.Property{
			Name:    p.Name.Value,
			Type:    p.Type,
			Default: p.Default,
			Env:     env,
			IsConst: p.IsConst,
			IsFixed: p.IsFixed,
			IsLocal: p.IsLocal,
			Doc:     p.Doc,
		})
	}
	return class, nil
}

func moduleParent(prog *ast.Module) *ast.ModuleClause {
	if prog.Amends != nil {
		return prog.Amends
	}
	return prog.Extends
}

// moduleBindingName picks the name an import binds to: the declared alias,
// or the last URI segment with its extension stripped.
func moduleBindingName(imp *ast.ImportStatement) string {
	if imp.Alias != nil {
		return imp.Alias.Value
	}
	name := imp.URI
	if i := strings.LastIndexAny(name, "/:"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, ".pkl")
	return name
}
