package module

import "sort"

// PathElement is one entry returned by directory or archive listing.
type PathElement struct {
	Name        string
	IsDirectory bool
}

// Less orders path elements directories-last, then lexicographically by
// name.
func (p PathElement) Less(other PathElement) bool {
	if p.IsDirectory != other.IsDirectory {
		return !p.IsDirectory
	}
	return p.Name < other.Name
}

// SortPathElements sorts elements in listing order.
func SortPathElements(elements []PathElement) {
	sort.Slice(elements, func(i, j int) bool {
		return elements[i].Less(elements[j])
	})
}
