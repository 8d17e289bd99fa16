package ast

import (
	"bytes"
	"strconv"
	"strings"
	"sync/atomic"

	"gopkl/internal/token"
)

// The base Node interface
type Node interface {
	TokenLiteral() string
	String() string
}

type Statement interface {
	Node
	statementNode()
}

type Expression interface {
	Node
	expressionNode()
}

// Range marks a half-open span of byte offsets in the module source.
// Used for member header/body attribution in diagnostics.
type Range struct {
	Start int
	End   int
}

// Module is the root node produced for one unit of source text.
type Module struct {
	SiteID  uint64
	Name    string
	Amends  *ModuleClause // amends "..." header, nil if absent
	Extends *ModuleClause // extends "..." header, nil if absent
	Imports []*ImportStatement
	Body    []Statement
}

func (m *Module) TokenLiteral() string { return "module" }

func (m *Module) String() string {
	var out bytes.Buffer
	if m.Name != "" {
		out.WriteString("module " + m.Name + "\n")
	}
	if m.Amends != nil {
		out.WriteString("amends " + strconv.Quote(m.Amends.URI) + "\n")
	}
	if m.Extends != nil {
		out.WriteString("extends " + strconv.Quote(m.Extends.URI) + "\n")
	}
	for _, imp := range m.Imports {
		out.WriteString(imp.String())
		out.WriteString("\n")
	}
	for _, s := range m.Body {
		out.WriteString(s.String())
		out.WriteString("\n")
	}
	return out.String()
}

type ModuleClause struct {
	Token token.Token // the AMENDS or EXTENDS token
	URI   string
}

type ImportStatement struct {
	Token token.Token // the IMPORT token
	URI   string
	Alias *Identifier // nil means derive the name from the URI
}

func (is *ImportStatement) statementNode()       {}
func (is *ImportStatement) TokenLiteral() string { return is.Token.Literal }
func (is *ImportStatement) String() string {
	var out bytes.Buffer
	out.WriteString("import ")
	out.WriteString(strconv.Quote(is.URI))
	if is.Alias != nil {
		out.WriteString(" as " + is.Alias.Value)
	}
	return out.String()
}

// ClassDeclaration declares a typed object shape: a name, an optional
// superclass, and a property list.
type ClassDeclaration struct {
	Token      token.Token // the CLASS token
	Doc        string
	Name       *Identifier
	Superclass *Identifier // nil means the implicit top class
	Properties []*PropertyDeclaration
}

func (cd *ClassDeclaration) statementNode()       {}
func (cd *ClassDeclaration) TokenLiteral() string { return cd.Token.Literal }
func (cd *ClassDeclaration) String() string {
	var out bytes.Buffer
	out.WriteString("class " + cd.Name.Value)
	if cd.Superclass != nil {
		out.WriteString(" extends " + cd.Superclass.Value)
	}
	out.WriteString(" {")
	for _, p := range cd.Properties {
		out.WriteString("\n  " + p.String())
	}
	out.WriteString("\n}")
	return out.String()
}

// PropertyDeclaration is one declared property inside a class body.
type PropertyDeclaration struct {
	Token   token.Token // the property name token
	Doc     string
	Name    *Identifier
	Type    *TypeAnnotation
	Default Expression // nil if no default
	IsConst bool
	IsFixed bool
	IsLocal bool
	// IsAmend marks the `name { ... }` form; Default then holds an
	// AmendExpression over the inherited value.
	IsAmend bool
	Header  Range
}

func (pd *PropertyDeclaration) statementNode()       {}
func (pd *PropertyDeclaration) TokenLiteral() string { return pd.Token.Literal }
func (pd *PropertyDeclaration) String() string {
	var out bytes.Buffer
	if pd.IsLocal {
		out.WriteString("local ")
	}
	if pd.IsConst {
		out.WriteString("const ")
	}
	if pd.IsFixed {
		out.WriteString("fixed ")
	}
	out.WriteString(pd.Name.Value)
	if pd.Type != nil {
		out.WriteString(": " + pd.Type.String())
	}
	if pd.Default != nil {
		out.WriteString(" = " + pd.Default.String())
	}
	return out.String()
}

// TypeAnnotation names a declared type, optionally nullable (`Int?`).
type TypeAnnotation struct {
	Token    token.Token
	Name     string
	Nullable bool
}

func (ta *TypeAnnotation) String() string {
	if ta.Nullable {
		return ta.Name + "?"
	}
	return ta.Name
}

// ---- object literal bodies --------------------------------------------------

var nextSiteID atomic.Uint64

// NewSiteID hands out a process-unique identifier for one syntactic object
// body. Shape-legality results are cached against this identifier, so the same
// literal re-evaluated in a loop does not re-run static checks.
func NewSiteID() uint64 {
	return nextSiteID.Add(1)
}

// ObjectBody is the `{ ... }` member fragment of an object literal or
// amendment expression.
type ObjectBody struct {
	Token   token.Token // the LBRACE token
	SiteID  uint64
	Members []ObjectMember
	// Parameters are the names of positional parameters for function-shaped
	// bodies. Only legal when amending a Function value.
	Parameters []string
}

func (ob *ObjectBody) String() string {
	var out bytes.Buffer
	out.WriteString("{")
	if len(ob.Parameters) > 0 {
		out.WriteString(" " + strings.Join(ob.Parameters, ", ") + " ->")
	}
	for _, m := range ob.Members {
		out.WriteString(" " + m.String())
	}
	out.WriteString(" }")
	return out.String()
}

// ObjectMember is one member inside an ObjectBody: a named property, an
// auto-indexed element, or an explicitly keyed entry.
type ObjectMember interface {
	Node
	objectMemberNode()
}

type PropertyMember struct {
	Token   token.Token // the property name token
	Doc     string
	Name    *Identifier
	Type    *TypeAnnotation
	Value   Expression
	IsLocal bool
	Header  Range
	Body    Range
}

func (pm *PropertyMember) objectMemberNode()    {}
func (pm *PropertyMember) TokenLiteral() string { return pm.Token.Literal }
func (pm *PropertyMember) String() string {
	var out bytes.Buffer
	if pm.IsLocal {
		out.WriteString("local ")
	}
	out.WriteString(pm.Name.Value)
	if pm.Type != nil {
		out.WriteString(": " + pm.Type.String())
	}
	out.WriteString(" = " + pm.Value.String())
	return out.String()
}

type ElementMember struct {
	Token token.Token // first token of the element expression
	Value Expression
	Body  Range
}

func (em *ElementMember) objectMemberNode()    {}
func (em *ElementMember) TokenLiteral() string { return em.Token.Literal }
func (em *ElementMember) String() string       { return em.Value.String() }

type EntryMember struct {
	Token token.Token // the LBRACKET token
	Key   Expression
	Value Expression
	Body  Range
}

func (en *EntryMember) objectMemberNode()    {}
func (en *EntryMember) TokenLiteral() string { return en.Token.Literal }
func (en *EntryMember) String() string {
	return "[" + en.Key.String() + "] = " + en.Value.String()
}

// ---- expressions ------------------------------------------------------------

type Identifier struct {
	Token token.Token
	Value string
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) TokenLiteral() string { return i.Token.Literal }
func (i *Identifier) String() string       { return i.Value }

type IntegerLiteral struct {
	Token token.Token
	Value int64
}

func (il *IntegerLiteral) expressionNode()      {}
func (il *IntegerLiteral) TokenLiteral() string { return il.Token.Literal }
func (il *IntegerLiteral) String() string       { return il.Token.Literal }

type FloatLiteral struct {
	Token token.Token
	Value float64
}

func (fl *FloatLiteral) expressionNode()      {}
func (fl *FloatLiteral) TokenLiteral() string { return fl.Token.Literal }
func (fl *FloatLiteral) String() string       { return fl.Token.Literal }

type StringLiteral struct {
	Token token.Token
	Value string
}

func (sl *StringLiteral) expressionNode()      {}
func (sl *StringLiteral) TokenLiteral() string { return sl.Token.Literal }
func (sl *StringLiteral) String() string       { return strconv.Quote(sl.Value) }

type BooleanLiteral struct {
	Token token.Token
	Value bool
}

func (bl *BooleanLiteral) expressionNode()      {}
func (bl *BooleanLiteral) TokenLiteral() string { return bl.Token.Literal }
func (bl *BooleanLiteral) String() string       { return bl.Token.Literal }

type NullLiteral struct {
	Token token.Token
}

func (nl *NullLiteral) expressionNode()      {}
func (nl *NullLiteral) TokenLiteral() string { return nl.Token.Literal }
func (nl *NullLiteral) String() string       { return "null" }

// MemberAccess reads a named member of the target value: `target.name`.
type MemberAccess struct {
	Token  token.Token // the PERIOD token
	Target Expression
	Name   *Identifier
}

func (ma *MemberAccess) expressionNode()      {}
func (ma *MemberAccess) TokenLiteral() string { return ma.Token.Literal }
func (ma *MemberAccess) String() string {
	return ma.Target.String() + "." + ma.Name.Value
}

// Subscript reads an indexed/keyed member of the target value: `target[k]`.
type Subscript struct {
	Token  token.Token // the LBRACKET token
	Target Expression
	Index  Expression
}

func (s *Subscript) expressionNode()      {}
func (s *Subscript) TokenLiteral() string { return s.Token.Literal }
func (s *Subscript) String() string {
	return s.Target.String() + "[" + s.Index.String() + "]"
}

// NewExpression instantiates a class prototype with a member fragment:
// `new Listing { ... }`. A nil Class means `new { ... }` (Dynamic).
type NewExpression struct {
	Token token.Token // the NEW token
	Class *Identifier
	Body  *ObjectBody
}

func (ne *NewExpression) expressionNode()      {}
func (ne *NewExpression) TokenLiteral() string { return ne.Token.Literal }
func (ne *NewExpression) String() string {
	var out bytes.Buffer
	out.WriteString("new ")
	if ne.Class != nil {
		out.WriteString(ne.Class.Value + " ")
	}
	out.WriteString(ne.Body.String())
	return out.String()
}

// AmendExpression amends the parent value with a member fragment:
// `parent { ... }`.
type AmendExpression struct {
	Token  token.Token // the LBRACE token
	Parent Expression
	Body   *ObjectBody
}

func (ae *AmendExpression) expressionNode()      {}
func (ae *AmendExpression) TokenLiteral() string { return ae.Token.Literal }
func (ae *AmendExpression) String() string {
	return ae.Parent.String() + " " + ae.Body.String()
}
