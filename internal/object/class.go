package object

import (
	"bytes"

	"gopkl/internal/ast"
)

// ClassKind tags the amendment scheme a class prototypes.
type ClassKind int

const (
	KindDynamic ClassKind = iota
	KindListing
	KindMapping
	KindTyped
)

// Property is one declared property of a class.
type Property struct {
	Name    string
	Type    *ast.TypeAnnotation
	Default ast.Expression
	Env     *Environment
	IsConst bool
	IsFixed bool
	IsLocal bool
	Doc     string
}

// Class is a declared object shape. Typed objects instantiated from it may
// only define members that exist as properties on the class or a superclass.
type Class struct {
	Name       string
	Parent     *Class
	Kind       ClassKind
	Properties map[string]*Property
	order      []string
}

func NewClass(name string, parent *Class) *Class {
	kind := KindTyped
	if parent != nil {
		kind = parent.Kind
	}
	return &Class{
		Name:       name,
		Parent:     parent,
		Kind:       kind,
		Properties: make(map[string]*Property),
	}
}

func (c *Class) Type() ObjectType { return CLASS_OBJ }

func (c *Class) Inspect() string {
	var out bytes.Buffer
	out.WriteString("class " + c.Name)
	if c.Parent != nil && c.Parent.Name != "" {
		out.WriteString(" extends " + c.Parent.Name)
	}
	return out.String()
}

func (c *Class) AddProperty(p *Property) {
	if _, exists := c.Properties[p.Name]; !exists {
		c.order = append(c.order, p.Name)
	}
	c.Properties[p.Name] = p
}

// HasProperty reports whether name is declared on the class or any
// superclass.
func (c *Class) HasProperty(name string) bool {
	_, ok := c.Property(name)
	return ok
}

// Property resolves a declared property, walking the superclass chain.
func (c *Class) Property(name string) (*Property, bool) {
	for cls := c; cls != nil; cls = cls.Parent {
		if p, ok := cls.Properties[name]; ok {
			return p, true
		}
	}
	return nil, false
}

// PropertyNames returns declared property names, superclass properties
// first, in declaration order.
func (c *Class) PropertyNames() []string {
	var names []string
	if c.Parent != nil {
		names = c.Parent.PropertyNames()
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	for _, n := range c.order {
		if !seen[n] {
			names = append(names, n)
		}
	}
	return names
}

// IsSubclassOf reports whether c is other or a descendant of it.
func (c *Class) IsSubclassOf(other *Class) bool {
	for cls := c; cls != nil; cls = cls.Parent {
		if cls == other {
			return true
		}
	}
	return false
}

// The built-in prototype classes. Their Kind drives amendment legality;
// they declare no properties of their own.
var (
	DynamicClass = &Class{Name: "Dynamic", Kind: KindDynamic, Properties: map[string]*Property{}}
	ListingClass = &Class{Name: "Listing", Kind: KindListing, Properties: map[string]*Property{}}
	MappingClass = &Class{Name: "Mapping", Kind: KindMapping, Properties: map[string]*Property{}}
)
