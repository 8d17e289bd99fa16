package object

import (
	"fmt"
	"strconv"

	"gopkl/internal/ast"
)

// KeyKind discriminates the three member-key spaces: named properties,
// integer element indices, and mapping entry keys.
type KeyKind int

const (
	KeyName KeyKind = iota
	KeyIndex
	KeyEntry
)

// DefaultName is the reserved member name used for member-predicate default
// patches on Listing and Mapping amendments.
const DefaultName = "default"

// MemberKey identifies one member of an object. Keys are comparable and used
// directly as map keys in member tables.
type MemberKey struct {
	Kind KeyKind
	// Name is the property name (KeyName) or the canonical textual form of
	// an entry key (KeyEntry).
	Name string
	// Index is the element index; only meaningful for KeyIndex.
	Index int64
	// EntryType records the runtime type of an entry key so that ["1"] and
	// [1] stay distinct mapping keys.
	EntryType ObjectType
}

func NameKey(name string) MemberKey {
	return MemberKey{Kind: KeyName, Name: name, Index: -1}
}

func IndexKey(index int64) MemberKey {
	return MemberKey{Kind: KeyIndex, Index: index}
}

// EntryKey builds a mapping-entry key from a primitive value. Only hashable
// primitives may key an entry.
func EntryKey(key Object) (MemberKey, error) {
	switch k := key.(type) {
	case *String:
		return MemberKey{Kind: KeyEntry, Name: k.Value, Index: -1, EntryType: STRING_OBJ}, nil
	case *Int:
		return MemberKey{Kind: KeyEntry, Name: k.Inspect(), Index: k.Value, EntryType: INT_OBJ}, nil
	case *Boolean:
		return MemberKey{Kind: KeyEntry, Name: k.Inspect(), Index: -1, EntryType: BOOLEAN_OBJ}, nil
	default:
		return MemberKey{}, fmt.Errorf("value of type %s cannot key an entry", key.Type())
	}
}

func (k MemberKey) IsIndex() bool { return k.Kind == KeyIndex }

func (k MemberKey) String() string {
	switch k.Kind {
	case KeyIndex:
		return "[" + strconv.FormatInt(k.Index, 10) + "]"
	case KeyEntry:
		if k.EntryType == STRING_OBJ {
			return "[" + strconv.Quote(k.Name) + "]"
		}
		return "[" + k.Name + "]"
	default:
		return k.Name
	}
}

// MemberKind records which syntactic form produced a member. Elements carry
// fragment-relative indices until the amendment engine rebases them onto the
// parent's length; entries carry absolute keys.
type MemberKind int

const (
	MemberProperty MemberKind = iota
	MemberElement
	MemberEntry
)

// Member is one lazily-evaluated definition inside an object. Members are
// immutable once constructed and shared structurally between objects that
// inherit them; evaluated values are memoized per object, never on the
// member itself.
type Member struct {
	Key     MemberKey
	Kind    MemberKind
	Body    ast.Expression
	Env     *Environment // the frame captured at the declaration site
	Type    *ast.TypeAnnotation
	IsLocal bool
	// IsAmend marks the `name { ... }` definition form: the member's value is
	// the inherited value for Key amended by Body (an AmendExpression).
	IsAmend bool
	Doc     string
	Header  ast.Range
	BodyPos ast.Range
}

// MemberTable is an insertion-ordered mapping from member key to definition.
// Iteration order is the declaration order, which keeps rendering and
// diagnostics deterministic; lookup order is irrelevant to semantics.
type MemberTable struct {
	members map[MemberKey]*Member
	keys    []MemberKey
}

func NewMemberTable() *MemberTable {
	return &MemberTable{members: make(map[MemberKey]*Member)}
}

// Add inserts a member definition. A key already present is a definition
// error: duplicate keys within one literal are illegal.
func (t *MemberTable) Add(m *Member) error {
	if _, exists := t.members[m.Key]; exists {
		return NewDefinitionError(ErrDuplicateMember,
			"duplicate definition of member %s", m.Key)
	}
	t.members[m.Key] = m
	t.keys = append(t.keys, m.Key)
	return nil
}

func (t *MemberTable) Get(key MemberKey) (*Member, bool) {
	m, ok := t.members[key]
	return m, ok
}

func (t *MemberTable) Keys() []MemberKey {
	return t.keys
}

func (t *MemberTable) Len() int {
	return len(t.keys)
}

// Fragment is the member set contributed by one evaluation of an object
// body, before it has been validated against a parent and merged. Element
// members hold fragment-relative indices 0..n-1.
type Fragment struct {
	SiteID     uint64
	Members    []*Member
	Parameters []string

	byKey map[MemberKey]*Member
}

// NewFragment assembles a fragment, rejecting duplicate keys up front.
func NewFragment(siteID uint64, members []*Member, parameters []string) (*Fragment, error) {
	byKey := make(map[MemberKey]*Member, len(members))
	for _, m := range members {
		if _, exists := byKey[m.Key]; exists {
			return nil, NewDefinitionError(ErrDuplicateMember,
				"duplicate definition of member %s", m.Key)
		}
		byKey[m.Key] = m
	}
	return &Fragment{SiteID: siteID, Members: members, Parameters: parameters, byKey: byKey}, nil
}

func (f *Fragment) Get(key MemberKey) (*Member, bool) {
	m, ok := f.byKey[key]
	return m, ok
}

// IsEmpty reports whether the fragment declares nothing at all, the
// degenerate `{}` case that skips legality checks entirely.
func (f *Fragment) IsEmpty() bool {
	return len(f.Members) == 0 && len(f.Parameters) == 0
}

// ElementCount returns how many auto-indexed elements the fragment appends.
func (f *Fragment) ElementCount() int {
	n := 0
	for _, m := range f.Members {
		if m.Kind == MemberElement {
			n++
		}
	}
	return n
}
