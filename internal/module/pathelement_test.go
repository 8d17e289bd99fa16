package module

import "testing"

func TestSortPathElements(t *testing.T) {
	elements := []PathElement{
		{Name: "zoo", IsDirectory: true},
		{Name: "b.pkl"},
		{Name: "aardvark", IsDirectory: true},
		{Name: "a.pkl"},
	}
	SortPathElements(elements)
	want := []PathElement{
		{Name: "a.pkl"},
		{Name: "b.pkl"},
		{Name: "aardvark", IsDirectory: true},
		{Name: "zoo", IsDirectory: true},
	}
	for i, e := range elements {
		if e != want[i] {
			t.Errorf("element %d = %v, want %v", i, e, want[i])
		}
	}
}
