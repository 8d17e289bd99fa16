package object

import "fmt"

// Diagnostic codes for amendment-shape violations. Codes are stable strings
// so tooling can pattern-match on error kind rather than message text.
const (
	ErrDuplicateMember   = "amend/duplicate-member"
	ErrIndexOutOfRange   = "amend/index-out-of-range"
	ErrNegativeIndex     = "amend/negative-index"
	ErrIllegalMemberKind = "amend/illegal-member-kind"
	ErrUnknownProperty   = "amend/unknown-property"
	ErrConstProperty     = "amend/const-property"
	ErrFixedProperty     = "amend/fixed-property"
	ErrParameterCount    = "amend/parameter-count"
	ErrNotAmendable      = "amend/not-amendable"
	ErrTypeMismatch      = "amend/type-mismatch"
	ErrUndefinedMember   = "amend/undefined-member"
)

// DefinitionError is a statically-detectable amendment-shape violation:
// wrong member kind for the variant, duplicate key, out-of-range index,
// wrong parameter count. Always fatal to the offending expression.
type DefinitionError struct {
	Code    string
	Message string
}

func (e *DefinitionError) Error() string {
	return e.Code + ": " + e.Message
}

func NewDefinitionError(code string, format string, a ...interface{}) *DefinitionError {
	return &DefinitionError{Code: code, Message: fmt.Sprintf(format, a...)}
}

// AsDefinitionError unwraps err as a *DefinitionError if it is one.
func AsDefinitionError(err error) (*DefinitionError, bool) {
	de, ok := err.(*DefinitionError)
	return de, ok
}
