package object

import "testing"

func TestEntryKeyDistinctness(t *testing.T) {
	strKey, err := EntryKey(&String{Value: "1"})
	if err != nil {
		t.Fatalf("EntryKey(string): %v", err)
	}
	intKey, err := EntryKey(&Int{Value: 1})
	if err != nil {
		t.Fatalf("EntryKey(int): %v", err)
	}
	if strKey == intKey {
		t.Errorf("entry keys [\"1\"] and [1] must be distinct")
	}

	again, _ := EntryKey(&Int{Value: 1})
	if intKey != again {
		t.Errorf("equal entry keys compare unequal")
	}
}

func TestEntryKeyRejectsNonHashable(t *testing.T) {
	if _, err := EntryKey(EmptyDynamic); err == nil {
		t.Errorf("expected error keying an entry with an object")
	}
}

func TestMemberTableDuplicate(t *testing.T) {
	table := NewMemberTable()
	if err := table.Add(&Member{Key: NameKey("a")}); err != nil {
		t.Fatalf("first add failed: %v", err)
	}
	err := table.Add(&Member{Key: NameKey("a")})
	if err == nil {
		t.Fatalf("expected duplicate-member error")
	}
	de, ok := AsDefinitionError(err)
	if !ok || de.Code != ErrDuplicateMember {
		t.Errorf("expected %s, got %v", ErrDuplicateMember, err)
	}
}

func TestFragmentDuplicate(t *testing.T) {
	_, err := NewFragment(1, []*Member{
		{Key: IndexKey(0), Kind: MemberEntry},
		{Key: IndexKey(0), Kind: MemberEntry},
	}, nil)
	if err == nil {
		t.Fatalf("expected duplicate-member error")
	}
}

func TestClassPropertyChain(t *testing.T) {
	animal := NewClass("Animal", nil)
	animal.AddProperty(&Property{Name: "name"})
	bird := NewClass("Bird", animal)
	bird.AddProperty(&Property{Name: "wingspan"})

	if !bird.HasProperty("name") {
		t.Errorf("inherited property not visible")
	}
	if !bird.HasProperty("wingspan") {
		t.Errorf("own property not visible")
	}
	if bird.HasProperty("gills") {
		t.Errorf("undeclared property reported present")
	}
	if !bird.IsSubclassOf(animal) {
		t.Errorf("Bird should be a subclass of Animal")
	}
	if animal.IsSubclassOf(bird) {
		t.Errorf("Animal should not be a subclass of Bird")
	}
}

func TestFindMemberChainsToParent(t *testing.T) {
	base := &Listing{Members: NewMemberTable(), Length: 2}
	base.Members.Add(&Member{Key: IndexKey(0), Kind: MemberElement})
	base.Members.Add(&Member{Key: IndexKey(1), Kind: MemberElement})

	child := &Listing{Parent: base, Members: NewMemberTable(), Length: 2}
	child.Members.Add(&Member{Key: IndexKey(0), Kind: MemberEntry})

	m, owner, ok := FindMember(child, IndexKey(0))
	if !ok || owner != Object(child) {
		t.Fatalf("override should resolve on the child, got owner=%v", owner)
	}
	if m.Kind != MemberEntry {
		t.Errorf("resolved wrong member")
	}

	_, owner, ok = FindMember(child, IndexKey(1))
	if !ok || owner != Object(base) {
		t.Fatalf("inherited index should resolve on the parent")
	}
}

func TestMemoPerObject(t *testing.T) {
	obj := &Dynamic{Members: NewMemberTable()}
	key := NameKey("x")

	if _, ok := Memo(obj, key); ok {
		t.Fatalf("fresh object has a memoized value")
	}
	StoreMemo(obj, key, &Int{Value: 9})
	v, ok := Memo(obj, key)
	if !ok || v.(*Int).Value != 9 {
		t.Errorf("memoized value lost")
	}

	// a sibling amendment of the same literal must not see the memo
	sibling := &Dynamic{Members: obj.Members}
	if _, ok := Memo(sibling, key); ok {
		t.Errorf("memo leaked across objects")
	}
}

func TestEnvironmentFallthrough(t *testing.T) {
	outer := NewEnvironment()
	outer.Define("a", &Int{Value: 1})
	inner := NewEnclosedEnvironment(outer)
	inner.Define("b", &Int{Value: 2})

	if v, ok := inner.Get("a"); !ok || v.(*Int).Value != 1 {
		t.Errorf("outer binding not visible from inner env")
	}
	if _, err := outer.Define("a", &Int{Value: 3}); err == nil {
		t.Errorf("redefinition should fail")
	}
}
