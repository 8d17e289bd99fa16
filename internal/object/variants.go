package object

import (
	"bytes"
	"strings"
	"sync"
)

// memoTable caches evaluated member values on the object that read them.
// Objects are immutable after construction and shared read-only across
// concurrent evaluations, so first-read memoization is the only mutation and
// takes a lock.
type memoTable struct {
	mu     sync.Mutex
	values map[MemberKey]Object
}

func (m *memoTable) load(key MemberKey) (Object, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *memoTable) store(key MemberKey, value Object) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[MemberKey]Object)
	}
	m.values[key] = value
}

// Dynamic is the open-shape object variant: named properties, auto-indexed
// elements, and explicit entries are all legal.
type Dynamic struct {
	Parent  *Dynamic
	Members *MemberTable
	// Length is the cumulative element count, parent's elements included.
	Length int64

	memo memoTable
}

func (d *Dynamic) Type() ObjectType { return DYNAMIC_OBJ }
func (d *Dynamic) Inspect() string  { return inspectMembers("new Dynamic", d.Members, d.Parent) }

// Listing is the ordered, index-keyed variant. Indices are contiguous
// non-negative integers continuing from the parent's length.
type Listing struct {
	Parent  *Listing
	Members *MemberTable
	Length  int64

	memo memoTable
}

func (l *Listing) Type() ObjectType { return LISTING_OBJ }
func (l *Listing) Inspect() string  { return inspectMembers("new Listing", l.Members, l.Parent) }

// Mapping is the key-keyed variant; only entries (and the reserved default
// patch) are legal.
type Mapping struct {
	Parent  *Mapping
	Members *MemberTable

	memo memoTable
}

func (m *Mapping) Type() ObjectType { return MAPPING_OBJ }
func (m *Mapping) Inspect() string  { return inspectMembers("new Mapping", m.Members, m.Parent) }

// Typed is the closed-shape variant backed by a declared class. Every
// non-local member name must exist as a property on the class chain.
type Typed struct {
	Class   *Class
	Parent  *Typed
	Members *MemberTable

	memo memoTable
}

func (t *Typed) Type() ObjectType { return TYPED_OBJ }
func (t *Typed) Inspect() string  { return inspectMembers("new "+t.Class.Name, t.Members, t.Parent) }

// Function is a value with a fixed parameter count. Amending a function
// wraps it with default-argument substitutions; Wrapped points at the
// original and Defaults holds the substituted members by parameter name.
type Function struct {
	Name       string
	Parameters []string
	Body       Member
	Wrapped    *Function
	Defaults   *MemberTable
}

func (f *Function) Type() ObjectType { return FUNCTION_OBJ }
func (f *Function) Inspect() string {
	return "fn " + f.Name + "(" + strings.Join(f.Parameters, ", ") + ")"
}

// The empty singletons: what an empty-bodied literal evaluates to for the
// builtin prototype classes.
var (
	EmptyDynamic = &Dynamic{Members: NewMemberTable()}
	EmptyListing = &Listing{Members: NewMemberTable()}
	EmptyMapping = &Mapping{Members: NewMemberTable()}
)

// FindMember resolves a member definition on obj, chaining to the parent for
// anything not overridden locally. The second result is the object whose
// delta table defined the member.
func FindMember(obj Object, key MemberKey) (*Member, Object, bool) {
	switch o := obj.(type) {
	case *Dynamic:
		for cur := o; cur != nil; cur = cur.Parent {
			if m, ok := cur.Members.Get(key); ok {
				return m, cur, true
			}
		}
	case *Listing:
		for cur := o; cur != nil; cur = cur.Parent {
			if m, ok := cur.Members.Get(key); ok {
				return m, cur, true
			}
		}
	case *Mapping:
		for cur := o; cur != nil; cur = cur.Parent {
			if m, ok := cur.Members.Get(key); ok {
				return m, cur, true
			}
		}
	case *Typed:
		for cur := o; cur != nil; cur = cur.Parent {
			if m, ok := cur.Members.Get(key); ok {
				return m, cur, true
			}
		}
	}
	return nil, nil, false
}

// MemberKeys returns every member key visible on obj: its own delta plus all
// inherited keys, deduplicated, own definitions first.
func MemberKeys(obj Object) []MemberKey {
	var tables []*MemberTable
	switch o := obj.(type) {
	case *Dynamic:
		for cur := o; cur != nil; cur = cur.Parent {
			tables = append(tables, cur.Members)
		}
	case *Listing:
		for cur := o; cur != nil; cur = cur.Parent {
			tables = append(tables, cur.Members)
		}
	case *Mapping:
		for cur := o; cur != nil; cur = cur.Parent {
			tables = append(tables, cur.Members)
		}
	case *Typed:
		for cur := o; cur != nil; cur = cur.Parent {
			tables = append(tables, cur.Members)
		}
	default:
		return nil
	}

	seen := make(map[MemberKey]bool)
	var keys []MemberKey
	for _, t := range tables {
		for _, k := range t.Keys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// Memo exposes the per-object value cache to the evaluator.
func Memo(obj Object, key MemberKey) (Object, bool) {
	switch o := obj.(type) {
	case *Dynamic:
		return o.memo.load(key)
	case *Listing:
		return o.memo.load(key)
	case *Mapping:
		return o.memo.load(key)
	case *Typed:
		return o.memo.load(key)
	}
	return nil, false
}

func StoreMemo(obj Object, key MemberKey, value Object) {
	switch o := obj.(type) {
	case *Dynamic:
		o.memo.store(key, value)
	case *Listing:
		o.memo.store(key, value)
	case *Mapping:
		o.memo.store(key, value)
	case *Typed:
		o.memo.store(key, value)
	}
}

// inspectMembers renders an object without forcing lazy member bodies: keys
// only, parent deltas elided.
func inspectMembers(prefix string, members *MemberTable, parent Object) string {
	var out bytes.Buffer
	out.WriteString(prefix)
	out.WriteString(" {")
	keys := members.Keys()
	for i, k := range keys {
		if i > 0 {
			out.WriteString(";")
		}
		out.WriteString(" " + k.String())
	}
	if parent != nil {
		switch p := parent.(type) {
		case *Dynamic:
			if p != nil && p.Members.Len() > 0 {
				out.WriteString(" ...")
			}
		case *Listing:
			if p != nil && p.Members.Len() > 0 {
				out.WriteString(" ...")
			}
		case *Mapping:
			if p != nil && p.Members.Len() > 0 {
				out.WriteString(" ...")
			}
		case *Typed:
			if p != nil && p.Members.Len() > 0 {
				out.WriteString(" ...")
			}
		}
	}
	out.WriteString(" }")
	return out.String()
}
