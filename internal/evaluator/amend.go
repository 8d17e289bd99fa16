package evaluator

import (
	"gopkl/internal/ast"
	"gopkl/internal/object"
)

// kindFunction extends the ClassKind space inside the site cache so function
// amendments get their own verdict slot per site.
const kindFunction object.ClassKind = -1

// AmendBody evaluates an object body against env and amends parent with the
// resulting fragment. env is the lexical frame of the amendment expression;
// member bodies capture it and are not evaluated here.
func (e *Evaluator) AmendBody(parent object.Object, body *ast.ObjectBody, env *object.Environment) (object.Object, error) {
	frag, err := e.buildFragment(body, env)
	if err != nil {
		return nil, err
	}
	return e.Amend(parent, frag)
}

// Amend produces a child of parent carrying the fragment's members as its
// delta. The parent's variant decides which member kinds are legal; parent
// itself is never mutated.
func (e *Evaluator) Amend(parent object.Object, frag *object.Fragment) (object.Object, error) {
	switch p := parent.(type) {
	case *object.Null:
		// A typed null remembers the default value of its slot; amendment
		// retries against that default. A bare null has nothing to amend.
		if p.Default != nil {
			return e.Amend(p.Default, frag)
		}
		return nil, object.NewDefinitionError(object.ErrNotAmendable,
			"cannot amend null: the value has no default to amend")
	case *object.Class:
		return e.amendClass(p, frag)
	case *object.Dynamic:
		return e.amendDynamic(p, frag)
	case *object.Listing:
		return e.amendListing(p, frag)
	case *object.Mapping:
		return e.amendMapping(p, frag)
	case *object.Typed:
		return e.amendTyped(p, p.Class, frag)
	case *object.Function:
		return e.amendFunction(p, frag)
	case *object.Module:
		return e.Amend(p.Value, frag)
	default:
		return nil, object.NewDefinitionError(object.ErrNotAmendable,
			"a value of type %s cannot be amended", parent.Type())
	}
}

// amendClass instantiates a class prototype: `new Listing { ... }` amends the
// Listing class itself.
func (e *Evaluator) amendClass(class *object.Class, frag *object.Fragment) (object.Object, error) {
	switch class.Kind {
	case object.KindDynamic:
		return e.amendDynamic(nil, frag)
	case object.KindListing:
		return e.amendListing(nil, frag)
	case object.KindMapping:
		return e.amendMapping(nil, frag)
	default:
		return e.amendTyped(nil, class, frag)
	}
}

func (e *Evaluator) amendDynamic(parent *object.Dynamic, frag *object.Fragment) (object.Object, error) {
	if frag.IsEmpty() {
		if parent != nil {
			return parent, nil
		}
		return object.EmptyDynamic, nil
	}
	if len(frag.Parameters) > 0 {
		return nil, object.NewDefinitionError(object.ErrIllegalMemberKind,
			"a Dynamic cannot take parameters")
	}

	parentLen := int64(0)
	if parent != nil {
		parentLen = parent.Length
	}

	// `name { ... }` elements whose name the parent already defines amend
	// that property instead of appending an element. Reclassify before
	// counting so the new length only covers genuine elements.
	members := make([]*object.Member, 0, len(frag.Members))
	elements := int64(0)
	for _, m := range frag.Members {
		if m.Kind == object.MemberElement {
			if name, ok := amendTargetName(m); ok && parent != nil {
				if _, _, defined := object.FindMember(parent, object.NameKey(name)); defined {
					amended := *m
					amended.Key = object.NameKey(name)
					amended.Kind = object.MemberProperty
					amended.IsAmend = true
					members = append(members, &amended)
					continue
				}
			}
			elements++
		}
		members = append(members, m)
	}
	newLen := parentLen + elements

	table := object.NewMemberTable()
	elemIdx := parentLen
	for _, m := range members {
		switch m.Kind {
		case object.MemberProperty:
			if err := table.Add(m); err != nil {
				return nil, err
			}
		case object.MemberElement:
			rebased := *m
			rebased.Key = object.IndexKey(elemIdx)
			elemIdx++
			if err := table.Add(&rebased); err != nil {
				return nil, err
			}
		case object.MemberEntry:
			// Int keys inside the element range override elements; everything
			// else is a keyed entry.
			if m.Key.EntryType == object.INT_OBJ && m.Key.Index >= 0 && m.Key.Index < newLen {
				rebased := *m
				rebased.Key = object.IndexKey(m.Key.Index)
				rebased.Kind = object.MemberElement
				if err := table.Add(&rebased); err != nil {
					return nil, err
				}
			} else if err := table.Add(m); err != nil {
				return nil, err
			}
		}
	}
	return &object.Dynamic{Parent: parent, Members: table, Length: newLen}, nil
}

func (e *Evaluator) amendListing(parent *object.Listing, frag *object.Fragment) (object.Object, error) {
	if frag.IsEmpty() {
		if parent != nil {
			return parent, nil
		}
		return object.EmptyListing, nil
	}

	// Member kinds are fixed per literal site, so this verdict is cached.
	err := e.sites.validate(shapeKey{site: frag.SiteID, kind: object.KindListing}, func() error {
		if len(frag.Parameters) > 0 {
			return object.NewDefinitionError(object.ErrIllegalMemberKind,
				"a Listing cannot take parameters")
		}
		for _, m := range frag.Members {
			if m.Kind == object.MemberProperty && !m.IsLocal && m.Key.Name != object.DefaultName {
				return object.NewDefinitionError(object.ErrIllegalMemberKind,
					"a Listing cannot contain the property %q; only elements, index overrides, and %q are allowed",
					m.Key.Name, object.DefaultName)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	parentLen := int64(0)
	if parent != nil {
		parentLen = parent.Length
	}
	newLen := parentLen + int64(frag.ElementCount())

	table := object.NewMemberTable()
	elemIdx := parentLen
	for _, m := range frag.Members {
		switch m.Kind {
		case object.MemberProperty:
			if err := table.Add(m); err != nil {
				return nil, err
			}
		case object.MemberElement:
			rebased := *m
			rebased.Key = object.IndexKey(elemIdx)
			elemIdx++
			if err := table.Add(&rebased); err != nil {
				return nil, err
			}
		case object.MemberEntry:
			// Index overrides depend on the parent's length, so they are
			// checked on every amendment, never cached.
			if m.Key.EntryType != object.INT_OBJ {
				return nil, object.NewDefinitionError(object.ErrIllegalMemberKind,
					"a Listing can only be keyed by element index, not by %s", m.Key)
			}
			idx := m.Key.Index
			if idx < 0 {
				return nil, object.NewDefinitionError(object.ErrNegativeIndex,
					"element index %d is negative", idx)
			}
			if idx >= newLen {
				return nil, object.NewDefinitionError(object.ErrIndexOutOfRange,
					"element index %d is out of range 0..%d", idx, newLen)
			}
			rebased := *m
			rebased.Key = object.IndexKey(idx)
			rebased.Kind = object.MemberElement
			if err := table.Add(&rebased); err != nil {
				return nil, err
			}
		}
	}
	return &object.Listing{Parent: parent, Members: table, Length: newLen}, nil
}

func (e *Evaluator) amendMapping(parent *object.Mapping, frag *object.Fragment) (object.Object, error) {
	if frag.IsEmpty() {
		if parent != nil {
			return parent, nil
		}
		return object.EmptyMapping, nil
	}

	err := e.sites.validate(shapeKey{site: frag.SiteID, kind: object.KindMapping}, func() error {
		if len(frag.Parameters) > 0 {
			return object.NewDefinitionError(object.ErrIllegalMemberKind,
				"a Mapping cannot take parameters")
		}
		for _, m := range frag.Members {
			switch m.Kind {
			case object.MemberElement:
				return object.NewDefinitionError(object.ErrIllegalMemberKind,
					"a Mapping cannot contain elements; write [key] = value")
			case object.MemberProperty:
				if !m.IsLocal && m.Key.Name != object.DefaultName {
					return object.NewDefinitionError(object.ErrIllegalMemberKind,
						"a Mapping cannot contain the property %q; only entries and %q are allowed",
						m.Key.Name, object.DefaultName)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	table := object.NewMemberTable()
	for _, m := range frag.Members {
		if err := table.Add(m); err != nil {
			return nil, err
		}
	}
	return &object.Mapping{Parent: parent, Members: table}, nil
}

func (e *Evaluator) amendTyped(parent *object.Typed, class *object.Class, frag *object.Fragment) (object.Object, error) {
	if frag.IsEmpty() {
		if parent != nil {
			return parent, nil
		}
		return &object.Typed{Class: class, Members: object.NewMemberTable()}, nil
	}

	// Legality against a typed shape depends only on the site and the class,
	// so the whole verdict is cacheable, const/fixed rules included.
	err := e.sites.validate(shapeKey{site: frag.SiteID, kind: object.KindTyped, class: class}, func() error {
		if len(frag.Parameters) > 0 {
			return object.NewDefinitionError(object.ErrIllegalMemberKind,
				"a %s cannot take parameters", class.Name)
		}
		for _, m := range frag.Members {
			switch m.Kind {
			case object.MemberEntry:
				return object.NewDefinitionError(object.ErrIllegalMemberKind,
					"a %s cannot contain entries", class.Name)
			case object.MemberElement:
				name, ok := amendTargetName(m)
				if !ok {
					return object.NewDefinitionError(object.ErrIllegalMemberKind,
						"a %s cannot contain elements", class.Name)
				}
				prop, found := class.Property(name)
				if !found {
					return unknownPropertyError(class, name)
				}
				if prop.IsConst {
					return object.NewDefinitionError(object.ErrConstProperty,
						"cannot amend const property %q of %s", name, class.Name)
				}
			case object.MemberProperty:
				if m.IsLocal {
					continue
				}
				prop, found := class.Property(m.Key.Name)
				if !found {
					return unknownPropertyError(class, m.Key.Name)
				}
				if prop.IsConst {
					return object.NewDefinitionError(object.ErrConstProperty,
						"cannot assign to const property %q of %s", m.Key.Name, class.Name)
				}
				if prop.IsFixed && !m.IsAmend {
					return object.NewDefinitionError(object.ErrFixedProperty,
						"fixed property %q of %s can be amended but not reassigned", m.Key.Name, class.Name)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	table := object.NewMemberTable()
	for _, m := range frag.Members {
		entry := m
		if m.Kind == object.MemberElement {
			// `name { ... }` parsed as an element; reclassify as a property
			// amendment of the named class property.
			name, _ := amendTargetName(m)
			amended := *m
			amended.Key = object.NameKey(name)
			amended.Kind = object.MemberProperty
			amended.IsAmend = true
			entry = &amended
		}
		if err := table.Add(entry); err != nil {
			return nil, err
		}
	}
	return &object.Typed{Class: class, Parent: parent, Members: table}, nil
}

// amendTargetName recognizes the `name { ... }` member form: an element whose
// value amends a bare identifier.
func amendTargetName(m *object.Member) (string, bool) {
	ae, ok := m.Body.(*ast.AmendExpression)
	if !ok {
		return "", false
	}
	ident, ok := ae.Parent.(*ast.Identifier)
	if !ok {
		return "", false
	}
	return ident.Value, true
}

func unknownPropertyError(class *object.Class, name string) error {
	names := class.PropertyNames()
	if len(names) == 0 {
		return object.NewDefinitionError(object.ErrUnknownProperty,
			"%s has no property named %q", class.Name, name)
	}
	return object.NewDefinitionError(object.ErrUnknownProperty,
		"%s has no property named %q; declared properties are %v", class.Name, name, names)
}

// amendFunction wraps a function with default-argument substitutions. The
// fragment may restate the parameter list, but never with a different count.
func (e *Evaluator) amendFunction(fn *object.Function, frag *object.Fragment) (object.Object, error) {
	if frag.IsEmpty() {
		return fn, nil
	}

	err := e.sites.validate(shapeKey{site: frag.SiteID, kind: kindFunction}, func() error {
		if len(frag.Parameters) > 0 && len(frag.Parameters) != len(fn.Parameters) {
			return object.NewDefinitionError(object.ErrParameterCount,
				"function %s takes %d parameters, amendment declares %d",
				fn.Name, len(fn.Parameters), len(frag.Parameters))
		}
		for _, m := range frag.Members {
			if m.Kind != object.MemberProperty {
				return object.NewDefinitionError(object.ErrIllegalMemberKind,
					"a function amendment can only assign parameters by name")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	params := make(map[string]bool, len(fn.Parameters))
	for _, p := range fn.Parameters {
		params[p] = true
	}
	defaults := object.NewMemberTable()
	for _, m := range frag.Members {
		if !params[m.Key.Name] {
			return nil, object.NewDefinitionError(object.ErrUnknownProperty,
				"function %s has no parameter named %q", fn.Name, m.Key.Name)
		}
		if err := defaults.Add(m); err != nil {
			return nil, err
		}
	}
	return &object.Function{
		Name:       fn.Name,
		Parameters: fn.Parameters,
		Body:       fn.Body,
		Wrapped:    fn,
		Defaults:   defaults,
	}, nil
}

// buildFragment lowers an ObjectBody to a member fragment. Entry keys are
// evaluated eagerly so duplicates surface here; member values stay lazy.
func (e *Evaluator) buildFragment(body *ast.ObjectBody, env *object.Environment) (*object.Fragment, error) {
	members := make([]*object.Member, 0, len(body.Members))
	elemIdx := int64(0)
	for _, m := range body.Members {
		switch node := m.(type) {
		case *ast.PropertyMember:
			members = append(members, &object.Member{
				Key:     object.NameKey(node.Name.Value),
				Kind:    object.MemberProperty,
				Body:    node.Value,
				Env:     env,
				Type:    node.Type,
				IsLocal: node.IsLocal,
				Doc:     node.Doc,
				Header:  node.Header,
				BodyPos: node.Body,
			})
		case *ast.ElementMember:
			members = append(members, &object.Member{
				Key:     object.IndexKey(elemIdx),
				Kind:    object.MemberElement,
				Body:    node.Value,
				Env:     env,
				BodyPos: node.Body,
			})
			elemIdx++
		case *ast.EntryMember:
			keyVal := e.Eval(node.Key, env)
			if isError(keyVal) {
				return nil, errorValueToErr(keyVal)
			}
			key, err := object.EntryKey(keyVal)
			if err != nil {
				return nil, object.NewDefinitionError(object.ErrIllegalMemberKind,
					"illegal entry key: %v", err)
			}
			members = append(members, &object.Member{
				Key:     key,
				Kind:    object.MemberEntry,
				Body:    node.Value,
				Env:     env,
				BodyPos: node.Body,
			})
		}
	}
	return object.NewFragment(body.SiteID, members, body.Parameters)
}
