package security

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Diagnostic codes for policy rejections.
const (
	ErrModuleDenied   = "security/module-denied"
	ErrResourceDenied = "security/resource-denied"
)

// SecurityError is a module or resource access rejected by policy. It always
// names the offending URI.
type SecurityError struct {
	Code string
	URI  string
}

func (e *SecurityError) Error() string {
	switch e.Code {
	case ErrResourceDenied:
		return fmt.Sprintf("%s: resource %q is not allowed by the security policy", e.Code, e.URI)
	default:
		return fmt.Sprintf("%s: module %q is not allowed by the security policy", e.Code, e.URI)
	}
}

// AsSecurityError unwraps err as a *SecurityError if it is one.
func AsSecurityError(err error) (*SecurityError, bool) {
	se, ok := err.(*SecurityError)
	return se, ok
}

// Manager authorizes module and resource URIs. Resolvers consult it before
// I/O where the URI shape suffices, and again after redirects or symlink
// resolution reveal the realized location.
type Manager interface {
	CheckModule(uri string) error
	CheckResource(uri string) error
}

// Policy is the on-disk shape of a security policy document.
type Policy struct {
	AllowedModules   []string `yaml:"allowedModules"`
	AllowedResources []string `yaml:"allowedResources"`
}

// policyManager matches URIs against allow-list patterns anchored at the
// start of the URI.
type policyManager struct {
	modules   []*regexp.Regexp
	resources []*regexp.Regexp
}

// NewManager compiles an allow-list policy. Patterns are regular expressions
// matched against the beginning of the URI; an empty resource list falls back
// to the module list.
func NewManager(policy Policy) (Manager, error) {
	modules, err := compilePatterns(policy.AllowedModules)
	if err != nil {
		return nil, err
	}
	resourcePatterns := policy.AllowedResources
	if len(resourcePatterns) == 0 {
		resourcePatterns = policy.AllowedModules
	}
	resources, err := compilePatterns(resourcePatterns)
	if err != nil {
		return nil, err
	}
	return &policyManager{modules: modules, resources: resources}, nil
}

// LoadPolicy reads a YAML policy document and builds a manager from it.
func LoadPolicy(path string) (Manager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading security policy %s: %w", path, err)
	}
	var policy Policy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("parsing security policy %s: %w", path, err)
	}
	return NewManager(policy)
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("^(?:" + p + ")")
		if err != nil {
			return nil, fmt.Errorf("invalid allow-list pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

func (m *policyManager) CheckModule(uri string) error {
	for _, re := range m.modules {
		if re.MatchString(uri) {
			return nil
		}
	}
	return &SecurityError{Code: ErrModuleDenied, URI: uri}
}

func (m *policyManager) CheckResource(uri string) error {
	for _, re := range m.resources {
		if re.MatchString(uri) {
			return nil
		}
	}
	return &SecurityError{Code: ErrResourceDenied, URI: uri}
}

// allowAll authorizes everything; the default for trusted local evaluation.
type allowAll struct{}

func (allowAll) CheckModule(string) error   { return nil }
func (allowAll) CheckResource(string) error { return nil }

// AllowAll returns a manager that authorizes every URI.
func AllowAll() Manager { return allowAll{} }
