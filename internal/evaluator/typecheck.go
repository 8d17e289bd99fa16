package evaluator

import (
	"gopkl/internal/ast"
	"gopkl/internal/object"
)

// checkType enforces a declared type annotation against an evaluated value.
// The check runs at read time, after the member body has been forced; unread
// members are never checked.
func (e *Evaluator) checkType(val object.Object, t *ast.TypeAnnotation, env *object.Environment) error {
	if t == nil {
		return nil
	}
	if _, isNull := val.(*object.Null); isNull {
		if t.Nullable {
			return nil
		}
		return object.NewDefinitionError(object.ErrTypeMismatch,
			"expected a value of type %s, got null", t.Name)
	}

	switch t.Name {
	case "Any":
		return nil
	case "Int":
		if val.Type() == object.INT_OBJ {
			return nil
		}
	case "Float":
		// Ints widen to Float.
		if val.Type() == object.FLOAT_OBJ || val.Type() == object.INT_OBJ {
			return nil
		}
	case "Number":
		if val.Type() == object.INT_OBJ || val.Type() == object.FLOAT_OBJ {
			return nil
		}
	case "String":
		if val.Type() == object.STRING_OBJ {
			return nil
		}
	case "Boolean":
		if val.Type() == object.BOOLEAN_OBJ {
			return nil
		}
	case "Dynamic":
		if val.Type() == object.DYNAMIC_OBJ {
			return nil
		}
	case "Listing":
		if val.Type() == object.LISTING_OBJ {
			return nil
		}
	case "Mapping":
		if val.Type() == object.MAPPING_OBJ {
			return nil
		}
	default:
		return e.checkClassType(val, t, env)
	}
	return object.NewDefinitionError(object.ErrTypeMismatch,
		"expected a value of type %s, got %s", t.Name, val.Type())
}

// checkClassType resolves a user-declared class by name and requires the
// value to be an instance of it or of a subclass.
func (e *Evaluator) checkClassType(val object.Object, t *ast.TypeAnnotation, env *object.Environment) error {
	bound, ok := env.Get(t.Name)
	if !ok {
		return object.NewDefinitionError(object.ErrTypeMismatch,
			"unknown type %s", t.Name)
	}
	class, ok := bound.(*object.Class)
	if !ok {
		return object.NewDefinitionError(object.ErrTypeMismatch,
			"%s does not name a class", t.Name)
	}
	typed, ok := val.(*object.Typed)
	if !ok || !typed.Class.IsSubclassOf(class) {
		got := string(val.Type())
		if ok {
			got = typed.Class.Name
		}
		return object.NewDefinitionError(object.ErrTypeMismatch,
			"expected a value of type %s, got %s", t.Name, got)
	}
	return nil
}
