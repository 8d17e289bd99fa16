package module

import "fmt"

// Diagnostic codes for resolution failures.
const (
	ErrNotFound         = "module/not-found"
	ErrIo               = "module/io"
	ErrClosed           = "module/resolver-closed"
	ErrChecksumMismatch = "package/checksum-mismatch"
)

// IoError is a resolution failure attributed to the URI that failed: a
// missing file, a network error, a bad archive. Never retried by this
// package.
type IoError struct {
	Code string
	URI  string
	Err  error
}

func (e *IoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: cannot resolve %q: %v", e.Code, e.URI, e.Err)
	}
	return fmt.Sprintf("%s: cannot resolve %q", e.Code, e.URI)
}

func (e *IoError) Unwrap() error { return e.Err }

func notFound(uri string) *IoError {
	return &IoError{Code: ErrNotFound, URI: uri}
}

func ioError(uri string, err error) *IoError {
	return &IoError{Code: ErrIo, URI: uri, Err: err}
}

// AsIoError unwraps err as an *IoError if it is one.
func AsIoError(err error) (*IoError, bool) {
	ie, ok := err.(*IoError)
	return ie, ok
}
