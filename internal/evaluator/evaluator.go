package evaluator

import (
	"fmt"
	"log/slog"
	"sync"

	"gopkl/internal/ast"
	"gopkl/internal/object"
)

// SelfName is the reserved identifier that evaluates to the object whose
// member is currently being read.
const SelfName = "self"

// Evaluator drives expression and module evaluation. It owns the per-site
// legality cache and the evaluated-module registry; a single evaluator is
// safe for concurrent use.
type Evaluator struct {
	loader SourceLoader
	sites  *siteCache
	base   *object.Environment
	log    *slog.Logger

	mu      sync.Mutex
	modules map[string]*object.Module
	loading map[string]bool
}

func New(loader SourceLoader, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Evaluator{
		loader:  loader,
		sites:   newSiteCache(),
		log:     logger,
		modules: make(map[string]*object.Module),
		loading: make(map[string]bool),
	}
	e.base = object.NewEnvironment()
	e.base.Define("Dynamic", object.DynamicClass)
	e.base.Define("Listing", object.ListingClass)
	e.base.Define("Mapping", object.MappingClass)
	return e
}

// Eval evaluates one expression node in the given lexical frame. Runtime
// failures come back as *object.Error values so callers can short-circuit
// without unwinding.
func (e *Evaluator) Eval(node ast.Node, env *object.Environment) object.Object {
	switch node := node.(type) {

	case *ast.IntegerLiteral:
		return &object.Int{Value: node.Value}

	case *ast.FloatLiteral:
		return &object.Float{Value: node.Value}

	case *ast.StringLiteral:
		return &object.String{Value: node.Value}

	case *ast.BooleanLiteral:
		return object.NativeBoolToBooleanObject(node.Value)

	case *ast.NullLiteral:
		return object.NULL

	case *ast.Identifier:
		return e.evalIdentifier(node, env)

	case *ast.MemberAccess:
		return e.evalMemberAccess(node, env)

	case *ast.Subscript:
		return e.evalSubscript(node, env)

	case *ast.NewExpression:
		return e.evalNewExpression(node, env)

	case *ast.AmendExpression:
		parent := e.Eval(node.Parent, env)
		if isError(parent) {
			return parent
		}
		val, err := e.AmendBody(parent, node.Body, env)
		if err != nil {
			return errToValue(err)
		}
		return val

	default:
		return newError("cannot evaluate node of type %T", node)
	}
}

func (e *Evaluator) evalIdentifier(node *ast.Identifier, env *object.Environment) object.Object {
	if node.Value == SelfName {
		if env.Self == nil {
			return newError("%q used outside of an object body", SelfName)
		}
		return env.Self
	}
	if val, ok := env.Get(node.Value); ok {
		return val
	}
	// Names that miss the lexical chain fall through to the enclosing
	// object's properties.
	if env.Self != nil {
		key := object.NameKey(node.Value)
		if hasMember(env.Self, key) {
			val, err := e.ReadMember(env.Self, key)
			if err != nil {
				return errToValue(err)
			}
			return val
		}
	}
	return newError("identifier not found: %s", node.Value)
}

func (e *Evaluator) evalMemberAccess(node *ast.MemberAccess, env *object.Environment) object.Object {
	target := e.Eval(node.Target, env)
	if isError(target) {
		return target
	}
	name := node.Name.Value

	switch t := target.(type) {
	case *object.Module:
		// Module properties first, then module-level bindings (classes and
		// imports).
		key := object.NameKey(name)
		if hasMember(t.Value, key) {
			val, err := e.ReadMember(t.Value, key)
			if err != nil {
				return errToValue(err)
			}
			return val
		}
		if val, ok := t.Env.Get(name); ok {
			return val
		}
		return newError("module %s has no member %q", t.Name, name)
	case *object.Null:
		return newError("cannot read property %q of null", name)
	case *object.Dynamic, *object.Listing, *object.Mapping, *object.Typed:
		val, err := e.ReadMember(target, object.NameKey(name))
		if err != nil {
			return errToValue(err)
		}
		return val
	default:
		return newError("value of type %s has no property %q", target.Type(), name)
	}
}

func (e *Evaluator) evalSubscript(node *ast.Subscript, env *object.Environment) object.Object {
	target := e.Eval(node.Target, env)
	if isError(target) {
		return target
	}
	index := e.Eval(node.Index, env)
	if isError(index) {
		return index
	}

	switch t := target.(type) {
	case *object.Listing:
		idx, ok := index.(*object.Int)
		if !ok {
			return newError("a Listing is indexed by Int, got %s", index.Type())
		}
		if idx.Value < 0 || idx.Value >= t.Length {
			return newError("element index %d is out of range 0..%d", idx.Value, t.Length)
		}
		val, err := e.ReadMember(t, object.IndexKey(idx.Value))
		if err != nil {
			return errToValue(err)
		}
		return val
	case *object.Dynamic:
		if idx, ok := index.(*object.Int); ok && idx.Value >= 0 && idx.Value < t.Length {
			val, err := e.ReadMember(t, object.IndexKey(idx.Value))
			if err != nil {
				return errToValue(err)
			}
			return val
		}
		return e.readEntry(t, index)
	case *object.Mapping:
		return e.readEntry(t, index)
	default:
		return newError("value of type %s cannot be subscripted", target.Type())
	}
}

func (e *Evaluator) readEntry(target object.Object, index object.Object) object.Object {
	key, err := object.EntryKey(index)
	if err != nil {
		return newError("%v", err)
	}
	val, err := e.ReadMember(target, key)
	if err != nil {
		return errToValue(err)
	}
	return val
}

func (e *Evaluator) evalNewExpression(node *ast.NewExpression, env *object.Environment) object.Object {
	var parent object.Object = object.DynamicClass
	if node.Class != nil {
		bound, ok := env.Get(node.Class.Value)
		if !ok {
			return newError("unknown class: %s", node.Class.Value)
		}
		class, ok := bound.(*object.Class)
		if !ok {
			return newError("%s does not name a class", node.Class.Value)
		}
		parent = class
	}
	val, err := e.AmendBody(parent, node.Body, env)
	if err != nil {
		return errToValue(err)
	}
	return val
}

// ReadMember forces one member of obj: resolve the definition along the
// parent chain, evaluate its body with self bound to obj, type-check, and
// memoize the result on obj. Repeated reads return the memoized value.
func (e *Evaluator) ReadMember(obj object.Object, key object.MemberKey) (object.Object, error) {
	if v, ok := object.Memo(obj, key); ok {
		return v, nil
	}

	var val object.Object
	var declType *ast.TypeAnnotation
	var typeEnv *object.Environment

	m, owner, found := object.FindMember(obj, key)
	switch {
	case found:
		env := m.Env.WithSelf(obj)
		if m.IsAmend {
			val = e.evalAmendMember(obj, owner, m, env)
		} else {
			val = e.Eval(m.Body, env)
		}
		if isError(val) {
			return nil, errorValueToErr(val)
		}
		declType = m.Type
		typeEnv = m.Env
	default:
		typed, ok := obj.(*object.Typed)
		if !ok || key.Kind != object.KeyName {
			return nil, object.NewDefinitionError(object.ErrUndefinedMember,
				"undefined member %s", key)
		}
		prop, ok := typed.Class.Property(key.Name)
		if !ok {
			return nil, object.NewDefinitionError(object.ErrUnknownProperty,
				"%s has no property named %q", typed.Class.Name, key.Name)
		}
		if prop.Default == nil {
			val = propertyNull(prop)
		} else {
			val = e.Eval(prop.Default, prop.Env.WithSelf(obj))
			if isError(val) {
				return nil, errorValueToErr(val)
			}
		}
		declType = prop.Type
		typeEnv = prop.Env
	}

	// A class-declared type constrains the property even when an amendment
	// redefines it without an annotation.
	if declType == nil {
		if typed, ok := obj.(*object.Typed); ok && key.Kind == object.KeyName {
			if prop, ok := typed.Class.Property(key.Name); ok {
				declType = prop.Type
				typeEnv = prop.Env
			}
		}
	}
	if err := e.checkType(val, declType, typeEnv); err != nil {
		return nil, err
	}

	object.StoreMemo(obj, key, val)
	return val, nil
}

// evalAmendMember handles the `name { ... }` definition form: the inherited
// value for the member's key, amended by the member's body.
func (e *Evaluator) evalAmendMember(obj, owner object.Object, m *object.Member, env *object.Environment) object.Object {
	ae, ok := m.Body.(*ast.AmendExpression)
	if !ok {
		return newError("malformed property amendment for %s", m.Key)
	}

	inherited, err := e.inheritedValue(obj, owner, m.Key)
	if err != nil {
		return errToValue(err)
	}
	val, err := e.AmendBody(inherited, ae.Body, env)
	if err != nil {
		return errToValue(err)
	}
	return val
}

// inheritedValue resolves what a member would evaluate to if owner's delta
// did not define it: the next definition up the parent chain, or the class
// default for typed objects. Evaluation still binds self to obj.
func (e *Evaluator) inheritedValue(obj, owner object.Object, key object.MemberKey) (object.Object, error) {
	parent := parentOf(owner)
	if parent != nil {
		if m, _, ok := object.FindMember(parent, key); ok {
			if m.IsAmend {
				return nil, fmt.Errorf("nested property amendments of %s are not supported", key)
			}
			val := e.Eval(m.Body, m.Env.WithSelf(obj))
			if isError(val) {
				return nil, errorValueToErr(val)
			}
			return val, nil
		}
	}
	if typed, ok := obj.(*object.Typed); ok && key.Kind == object.KeyName {
		if prop, ok := typed.Class.Property(key.Name); ok {
			if prop.Default == nil {
				return propertyNull(prop), nil
			}
			val := e.Eval(prop.Default, prop.Env.WithSelf(obj))
			if isError(val) {
				return nil, errorValueToErr(val)
			}
			return val, nil
		}
	}
	return nil, fmt.Errorf("cannot amend %s: nothing to inherit from", key)
}

func parentOf(obj object.Object) object.Object {
	switch o := obj.(type) {
	case *object.Dynamic:
		if o.Parent != nil {
			return o.Parent
		}
	case *object.Listing:
		if o.Parent != nil {
			return o.Parent
		}
	case *object.Mapping:
		if o.Parent != nil {
			return o.Parent
		}
	case *object.Typed:
		if o.Parent != nil {
			return o.Parent
		}
	}
	return nil
}

// propertyNull is what an undefaulted property reads as: a null that
// remembers its slot's prototype so amendment can retry against it.
func propertyNull(prop *object.Property) object.Object {
	if prop.Type == nil {
		return object.NULL
	}
	switch prop.Type.Name {
	case "Listing":
		return object.TypedNull(object.EmptyListing)
	case "Mapping":
		return object.TypedNull(object.EmptyMapping)
	case "Dynamic":
		return object.TypedNull(object.EmptyDynamic)
	default:
		return object.NULL
	}
}

func hasMember(obj object.Object, key object.MemberKey) bool {
	if _, _, ok := object.FindMember(obj, key); ok {
		return true
	}
	if typed, ok := obj.(*object.Typed); ok && key.Kind == object.KeyName {
		return typed.Class.HasProperty(key.Name)
	}
	return false
}

func newError(format string, a ...interface{}) *object.Error {
	return &object.Error{Message: fmt.Sprintf(format, a...)}
}

func isError(obj object.Object) bool {
	if obj != nil {
		return obj.Type() == object.ERROR_OBJ
	}
	return false
}

// errToValue converts a Go error into an error value, preserving the
// diagnostic code of definition errors.
func errToValue(err error) *object.Error {
	if de, ok := object.AsDefinitionError(err); ok {
		return &object.Error{Code: de.Code, Message: de.Message}
	}
	return &object.Error{Message: err.Error()}
}

// errorValueToErr is the inverse: an error value crossing an API boundary
// becomes a Go error.
func errorValueToErr(obj object.Object) error {
	ev, ok := obj.(*object.Error)
	if !ok {
		return fmt.Errorf("internal: %s is not an error value", obj.Type())
	}
	if ev.Code != "" {
		return object.NewDefinitionError(ev.Code, "%s", ev.Message)
	}
	return fmt.Errorf("%s", ev.Message)
}
