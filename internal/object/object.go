package object

import (
	"fmt"
	"strconv"

	"gopkl/internal/ast"
)

const (
	NULL_OBJ    = "NULL"
	BOOLEAN_OBJ = "BOOLEAN"
	INT_OBJ     = "INT"
	FLOAT_OBJ   = "FLOAT"
	STRING_OBJ  = "STRING"

	DYNAMIC_OBJ = "DYNAMIC"
	LISTING_OBJ = "LISTING"
	MAPPING_OBJ = "MAPPING"
	TYPED_OBJ   = "TYPED"

	CLASS_OBJ    = "CLASS"
	MODULE_OBJ   = "MODULE"
	FUNCTION_OBJ = "FUNCTION"
	ERROR_OBJ    = "ERROR"
)

var (
	NULL  = &Null{}
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
)

type ObjectType string

type Object interface {
	Type() ObjectType
	Inspect() string
}

type Boolean struct {
	Value bool
}

func (b *Boolean) Type() ObjectType { return BOOLEAN_OBJ }
func (b *Boolean) Inspect() string  { return fmt.Sprintf("%t", b.Value) }

type Int struct {
	Value int64
}

func (i *Int) Type() ObjectType { return INT_OBJ }
func (i *Int) Inspect() string  { return strconv.FormatInt(i.Value, 10) }

type Float struct {
	Value float64
}

func (f *Float) Type() ObjectType { return FLOAT_OBJ }
func (f *Float) Inspect() string  { return strconv.FormatFloat(f.Value, 'g', -1, 64) }

type String struct {
	Value string
}

func (s *String) Type() ObjectType { return STRING_OBJ }
func (s *String) Inspect() string  { return strconv.Quote(s.Value) }

// Null is the null sentinel. Default, when set, is the statically-known
// default value for the declared type of the slot holding this null; amending
// a null retries amendment against that default.
type Null struct {
	Default Object
}

func (n *Null) Type() ObjectType { return NULL_OBJ }
func (n *Null) Inspect() string  { return "null" }

// TypedNull returns a null carrying the default value amendment should
// retry against.
func TypedNull(defaultValue Object) *Null {
	return &Null{Default: defaultValue}
}

func NativeBoolToBooleanObject(input bool) *Boolean {
	if input {
		return TRUE
	}
	return FALSE
}

// Module is a loaded, evaluated unit of source text. Value holds the object
// the module evaluates to (its amendable surface); Env the module-level
// bindings (imports, classes, local properties).
type Module struct {
	Name    string
	URI     string
	Src     string
	Env     *Environment
	Program *ast.Module
	Value   Object
}

func (m *Module) Type() ObjectType { return MODULE_OBJ }
func (m *Module) Inspect() string  { return "module " + m.Name }

// Error is a runtime evaluation failure carried as a value so expression
// evaluation can short-circuit without panicking.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Type() ObjectType { return ERROR_OBJ }
func (e *Error) Inspect() string {
	if e.Code != "" {
		return "ERROR[" + e.Code + "]: " + e.Message
	}
	return "ERROR: " + e.Message
}
