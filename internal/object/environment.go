package object

import (
	"fmt"
	"sync"
	"sync/atomic"
)

var nextID atomic.Uint64

// Environment is a lexical frame: module-level bindings, import bindings,
// and the captured scope of member bodies. Environments form a parent chain
// through Outer.
type Environment struct {
	ID        uint64
	Bindings  map[string]*Binding
	Outer     *Environment
	ModuleURI string

	// Self is the object whose member bodies are currently being evaluated.
	// Identifiers that miss the lexical chain fall through to Self's
	// properties, so `name` inside an amendment body reads the amended
	// object, not the declaring scope.
	Self Object

	mu sync.RWMutex
}

type Binding struct {
	Value Object
}

func nextEnvID() uint64 {
	return nextID.Add(1)
}

func NewEnvironment() *Environment {
	return &Environment{
		ID:       nextEnvID(),
		Bindings: make(map[string]*Binding),
	}
}

// NewEnclosedEnvironment initializes an environment chained to outer.
func NewEnclosedEnvironment(outer *Environment) *Environment {
	env := NewEnvironment()
	env.Outer = outer
	if outer != nil {
		env.ModuleURI = outer.ModuleURI
		env.Self = outer.Self
	}
	return env
}

// WithSelf returns a child environment whose self object is obj.
func (e *Environment) WithSelf(obj Object) *Environment {
	env := NewEnclosedEnvironment(e)
	env.Self = obj
	return env
}

func (e *Environment) GetBinding(name string) (*Binding, bool) {
	e.mu.RLock()
	binding, ok := e.Bindings[name]
	e.mu.RUnlock()

	if ok {
		return binding, true
	}
	if e.Outer != nil {
		return e.Outer.GetBinding(name)
	}
	return nil, false
}

func (e *Environment) Get(name string) (Object, bool) {
	binding, ok := e.GetBinding(name)
	if !ok {
		return nil, false
	}
	return binding.Value, true
}

// Define adds a new binding. Bindings are single-assignment; module-level
// names cannot be redefined.
func (e *Environment) Define(name string, val Object) (Object, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.Bindings[name]; exists {
		return nil, fmt.Errorf("`%s` is already defined and cannot be redefined", name)
	}
	e.Bindings[name] = &Binding{Value: val}
	return val, nil
}
