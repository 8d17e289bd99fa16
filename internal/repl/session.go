package repl

import (
	"fmt"
	"net/url"
	"strings"

	"gopkl/internal/evaluator"
	"gopkl/internal/module"
	"gopkl/internal/object"
	"gopkl/internal/security"
)

// itName binds the value of a bare expression submitted to the session.
const itName = "it"

// Session evaluates each submission as a synthetic module amending the
// previous submission, so every input sees the accumulated state through
// ordinary amendment semantics. The session registers itself as the repl:
// scheme; its keys are non-cacheable, so submissions re-evaluate instead of
// hitting the resolution caches.
type Session struct {
	eval    *evaluator.Evaluator
	sources map[string]string
	seq     int
	// lastURI is the module the next declaration amends; empty at start.
	lastURI string
}

func NewSession(eval *evaluator.Evaluator, engine *module.Engine) *Session {
	s := &Session{eval: eval, sources: make(map[string]string)}
	engine.Register(sessionFactory{session: s})
	return s
}

// Eval evaluates one submission and returns the resulting value. A
// declaration becomes part of the session state; a bare expression is
// evaluated against it and discarded.
func (s *Session) Eval(input string) (object.Object, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}

	name := declaredName(input)
	stmt := input
	if name == "" {
		name = itName
		stmt = fmt.Sprintf("%s = %s", itName, input)
	}

	s.seq++
	uri := fmt.Sprintf("repl:input/%d", s.seq)
	var src strings.Builder
	if s.lastURI != "" {
		fmt.Fprintf(&src, "amends %q\n\n", s.lastURI)
	}
	src.WriteString(stmt)
	src.WriteString("\n")
	s.sources[uri] = src.String()

	mod, err := s.eval.LoadModule(uri, "")
	if err != nil {
		delete(s.sources, uri)
		return nil, err
	}
	value, err := s.eval.ReadMember(mod.Value, object.NameKey(name))
	if err != nil {
		// Imports and classes bind in the module environment rather than
		// its amendable surface.
		bound, ok := mod.Env.Get(name)
		if !ok {
			delete(s.sources, uri)
			return nil, err
		}
		value = bound
	}
	if name != itName {
		s.lastURI = uri
	}
	return value, nil
}

// declaredName returns the property, class, or import name a declaration
// binds, or empty when the input is a bare expression.
func declaredName(input string) string {
	word := leadingWord(input)
	switch word {
	case "new", "null", "true", "false", "":
		return ""
	case "import":
		rest := strings.TrimSpace(strings.TrimPrefix(input, "import"))
		if i := strings.LastIndex(rest, " as "); i >= 0 {
			return strings.TrimSpace(rest[i+4:])
		}
		ref := strings.Trim(rest, `"`)
		if i := strings.LastIndexAny(ref, "/:"); i >= 0 {
			ref = ref[i+1:]
		}
		return strings.TrimSuffix(ref, ".pkl")
	case "class":
		rest := strings.TrimSpace(strings.TrimPrefix(input, "class"))
		return leadingWord(rest)
	}

	// A leading identifier followed by '=' or '{' is a property
	// declaration or a property amend; anything else is an expression.
	rest := strings.TrimSpace(input[len(word):])
	if strings.HasPrefix(rest, "=") && !strings.HasPrefix(rest, "==") {
		return word
	}
	if strings.HasPrefix(rest, "{") || strings.HasPrefix(rest, ":") {
		return word
	}
	return ""
}

func leadingWord(s string) string {
	for i, r := range s {
		if !isIdentRune(r, i == 0) {
			return s[:i]
		}
	}
	return s
}

func isIdentRune(r rune, first bool) bool {
	if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
		return true
	}
	return !first && r >= '0' && r <= '9'
}

// sessionFactory serves repl: URIs with the session's pending source.
type sessionFactory struct {
	session *Session
}

func (f sessionFactory) Create(uri *url.URL) (module.Key, bool) {
	if uri.Scheme != "repl" {
		return nil, false
	}
	return &sessionKey{session: f.session, uri: uri.String()}, true
}

type sessionKey struct {
	session *Session
	uri     string
}

func (k *sessionKey) URI() string               { return k.uri }
func (k *sessionKey) Scheme() string            { return "repl" }
func (k *sessionKey) IsLocal() bool             { return false }
func (k *sessionKey) HasHierarchicalURIs() bool { return false }
func (k *sessionKey) IsCacheable() bool         { return false }
func (k *sessionKey) CachedPath() string        { return "" }

func (k *sessionKey) Resolve(sec security.Manager) (module.Resolved, error) {
	return &sessionResolved{key: k}, nil
}

type sessionResolved struct {
	key *sessionKey
}

func (r *sessionResolved) URI() string { return r.key.uri }

func (r *sessionResolved) LoadSource() (string, error) {
	src, ok := r.key.session.sources[r.key.uri]
	if !ok {
		return "", fmt.Errorf("no session input at %s", r.key.uri)
	}
	return src, nil
}
