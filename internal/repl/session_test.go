package repl

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"gopkl/internal/evaluator"
	"gopkl/internal/module"
	"gopkl/internal/object"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := module.NewEngine(module.Options{Logger: logger})
	eval := evaluator.New(module.NewLoader(engine), logger)
	return NewSession(eval, engine)
}

func evalLine(t *testing.T, s *Session, input string) object.Object {
	t.Helper()
	value, err := s.Eval(input)
	if err != nil {
		t.Fatalf("Eval(%q): %v", input, err)
	}
	return value
}

func TestSessionRemembersDeclarations(t *testing.T) {
	s := newTestSession(t)

	v := evalLine(t, s, `x = 1`)
	if n, ok := v.(*object.Int); !ok || n.Value != 1 {
		t.Fatalf("x = %s", v.Inspect())
	}
	v = evalLine(t, s, `y = x`)
	if n, ok := v.(*object.Int); !ok || n.Value != 1 {
		t.Fatalf("y = %s", v.Inspect())
	}
}

func TestSessionEvaluatesBareExpressions(t *testing.T) {
	s := newTestSession(t)
	evalLine(t, s, `x = 41`)

	v := evalLine(t, s, `x`)
	if n, ok := v.(*object.Int); !ok || n.Value != 41 {
		t.Fatalf("bare identifier = %s", v.Inspect())
	}
	v = evalLine(t, s, `new Listing { 10 20 30 } [1]`)
	if n, ok := v.(*object.Int); !ok || n.Value != 20 {
		t.Fatalf("subscript = %s", v.Inspect())
	}

	// Bare expressions are not remembered: the session state still holds
	// only the declaration.
	v = evalLine(t, s, `x`)
	if n, ok := v.(*object.Int); !ok || n.Value != 41 {
		t.Fatalf("after expressions, x = %s", v.Inspect())
	}
}

func TestSessionAmendsEarlierDeclaration(t *testing.T) {
	s := newTestSession(t)
	evalLine(t, s, `server = new { port = 8080 host = "localhost" }`)

	evalLine(t, s, `server { port = 443 }`)
	port, err := s.Eval(`server.port`)
	if err != nil {
		t.Fatalf("reading port: %v", err)
	}
	if n, ok := port.(*object.Int); !ok || n.Value != 443 {
		t.Fatalf("port = %s", port.Inspect())
	}
	host, err := s.Eval(`server.host`)
	if err != nil {
		t.Fatalf("reading host: %v", err)
	}
	if str, ok := host.(*object.String); !ok || str.Value != "localhost" {
		t.Fatalf("host = %s", host.Inspect())
	}
}

func TestSessionReportsErrors(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.Eval(`nope`); err == nil {
		t.Fatal("expected an unbound identifier error")
	}
	if _, err := s.Eval(`x = = 1`); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestSessionPipedInput(t *testing.T) {
	s := newTestSession(t)
	var out strings.Builder
	in := strings.NewReader("x = 1\nsrv = new {\nport = 80\n}\nsrv.port\n")
	if err := runPiped(s, in, &out); err != nil {
		t.Fatalf("runPiped: %v", err)
	}
	if !strings.Contains(out.String(), "80") {
		t.Errorf("output missing evaluated value: %q", out.String())
	}
}

func TestDeclaredName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`x = 1`, "x"},
		{`server { port = 443 }`, "server"},
		{`port: Int = 8080`, "port"},
		{`class Bird { }`, "Bird"},
		{`import "pkl:base"`, "base"},
		{`import "lib/util.pkl" as u`, "u"},
		{`new Dynamic { }`, ""},
		{`server.port`, ""},
		{`42`, ""},
		{`null`, ""},
	}
	for _, tt := range tests {
		if got := declaredName(tt.input); got != tt.want {
			t.Errorf("declaredName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
