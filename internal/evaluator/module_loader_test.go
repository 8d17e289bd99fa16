package evaluator

import (
	"strings"
	"testing"

	"gopkl/internal/object"
)

func TestModuleAmendsTemplate(t *testing.T) {
	e, _ := newTestEvaluator(map[string]string{
		"template.pkl": `
module template

host = "localhost"
port = 1234
`,
		"child.pkl": `
amends "template.pkl"

port = 5678
`,
	})
	mod, err := e.LoadModule("child.pkl", "")
	if err != nil {
		t.Fatalf("loading child: %v", err)
	}
	wantString(t, readProperty(t, e, mod.Value, "host"), "localhost")
	wantInt(t, readProperty(t, e, mod.Value, "port"), 5678)
}

func TestModuleAmendObjectProperty(t *testing.T) {
	e, _ := newTestEvaluator(map[string]string{
		"template.pkl": `
module template

server = new { port = 8080 host = "localhost" }
`,
		"child.pkl": `
amends "template.pkl"

server { port = 443 }
`,
	})
	mod, err := e.LoadModule("child.pkl", "")
	if err != nil {
		t.Fatalf("loading child: %v", err)
	}
	server := readProperty(t, e, mod.Value, "server")
	wantInt(t, readProperty(t, e, server, "port"), 443)
	wantString(t, readProperty(t, e, server, "host"), "localhost")
}

func TestImportBindsModule(t *testing.T) {
	e, _ := newTestEvaluator(map[string]string{
		"lib.pkl": `
module lib

greeting = "hello"
`,
		"main.pkl": `
module main

import "lib.pkl"
import "lib.pkl" as other

g = lib.greeting
`,
	})
	mod, err := e.LoadModule("main.pkl", "")
	if err != nil {
		t.Fatalf("loading main: %v", err)
	}
	wantString(t, readProperty(t, e, mod.Value, "g"), "hello")

	// Both bindings refer to the same evaluated module.
	a, _ := mod.Env.Get("lib")
	b, _ := mod.Env.Get("other")
	if a != b {
		t.Errorf("expected one evaluated module per canonical URI")
	}
}

func TestNonCacheableSourceReloads(t *testing.T) {
	loader := newFakeLoader(map[string]string{
		"input.pkl": `x = 1`,
	})
	loader.cacheable = map[string]bool{"input.pkl": false}
	e := New(loader, nil)

	first, err := e.LoadModule("input.pkl", "")
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.LoadModule("input.pkl", "")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Errorf("non-cacheable sources must be re-evaluated on every load")
	}
	if loader.loads["input.pkl"] != 2 {
		t.Errorf("expected 2 loads, got %d", loader.loads["input.pkl"])
	}
}

func TestImportCycleDetected(t *testing.T) {
	e, _ := newTestEvaluator(map[string]string{
		"a.pkl": `import "b.pkl"` + "\n" + `x = 1`,
		"b.pkl": `import "a.pkl"` + "\n" + `y = 2`,
	})
	_, err := e.LoadModule("a.pkl", "")
	if err == nil {
		t.Fatal("expected an import cycle error")
	}
	if !strings.Contains(err.Error(), "cycle") {
		t.Errorf("error should mention the cycle, got %v", err)
	}
}

func TestParseErrorsAggregate(t *testing.T) {
	e, _ := newTestEvaluator(nil)
	_, err := e.EvalModuleSource("broken", "test:broken", `x = = =`)
	if err == nil {
		t.Fatal("expected parse errors")
	}
}

func TestSiblingAmendmentsDoNotShareValues(t *testing.T) {
	e, mod := evalTestModule(t, `
module test

base = new { x = 0 }
a = base { x = 1 }
b = base { x = 2 }
`)
	a := readProperty(t, e, mod.Value, "a")
	b := readProperty(t, e, mod.Value, "b")
	wantInt(t, readProperty(t, e, a, "x"), 1)
	wantInt(t, readProperty(t, e, b, "x"), 2)
	wantInt(t, readProperty(t, e, readProperty(t, e, mod.Value, "base"), "x"), 0)
}

func TestSelfAndLexicalFallthrough(t *testing.T) {
	e, mod := evalTestModule(t, `
module test

a = 1
b = a
c = self.a
conf = new { server = new { port = 8080 } }
p = conf.server.port
idx = new Listing { 10 20 30 } [1]
`)
	wantInt(t, readProperty(t, e, mod.Value, "b"), 1)
	wantInt(t, readProperty(t, e, mod.Value, "c"), 1)
	wantInt(t, readProperty(t, e, mod.Value, "p"), 8080)
	wantInt(t, readProperty(t, e, mod.Value, "idx"), 20)
}

func TestMemoizedMemberReadIsStable(t *testing.T) {
	e, mod := evalTestModule(t, `
module test

d = new { x = new { y = 1 } }
`)
	d := readProperty(t, e, mod.Value, "d")
	first := readProperty(t, e, d, "x")
	second := readProperty(t, e, d, "x")
	if first != second {
		t.Errorf("repeated reads must return the memoized value")
	}
	if _, ok := object.Memo(d, object.NameKey("x")); !ok {
		t.Errorf("evaluated member not memoized on the object")
	}
}
