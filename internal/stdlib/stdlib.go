// Package stdlib carries the embedded standard-library modules served under
// the pkl: scheme.
package stdlib

import (
	"embed"
	"fmt"
	"sort"
	"strings"
)

//go:embed *.pkl
var files embed.FS

// Source returns the text of the named stdlib module, e.g. "base" for
// pkl:base.
func Source(name string) (string, error) {
	data, err := files.ReadFile(name + ".pkl")
	if err != nil {
		return "", fmt.Errorf("no standard-library module named %q", name)
	}
	return string(data), nil
}

// Has reports whether a stdlib module with the given name exists.
func Has(name string) bool {
	_, err := files.ReadFile(name + ".pkl")
	return err == nil
}

// Names lists the embedded module names in sorted order.
func Names() []string {
	entries, err := files.ReadDir(".")
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".pkl"))
	}
	sort.Strings(names)
	return names
}
