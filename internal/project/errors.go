package project

import "fmt"

// Diagnostic codes for dependency resolution failures.
const (
	ErrInvalidManifest      = "project/invalid-manifest"
	ErrInvalidLockFile      = "project/invalid-lock-file"
	ErrUnresolvedDependency = "project/unresolved-dependency"
	ErrOutOfDate            = "project/dependency-out-of-date"
)

// PackageLoadError is a dependency manifest/lock-file problem: drift, a
// missing entry, or an out-of-date resolution. Declared and Resolved carry
// the two package URIs involved so a stale lock file can be diagnosed.
type PackageLoadError struct {
	Code     string
	Message  string
	Declared string
	Resolved string
}

func (e *PackageLoadError) Error() string {
	return e.Code + ": " + e.Message
}

func newPackageLoadError(code, format string, a ...interface{}) *PackageLoadError {
	return &PackageLoadError{Code: code, Message: fmt.Sprintf(format, a...)}
}

// AsPackageLoadError unwraps err as a *PackageLoadError if it is one.
func AsPackageLoadError(err error) (*PackageLoadError, bool) {
	pe, ok := err.(*PackageLoadError)
	return pe, ok
}
