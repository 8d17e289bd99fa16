package module

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync/atomic"
	"testing"

	"gopkl/internal/security"
)

func allowURLPrefix(t *testing.T, prefixes ...string) security.Manager {
	t.Helper()
	var patterns []string
	for _, p := range prefixes {
		patterns = append(patterns, regexp.QuoteMeta(p))
	}
	sec, err := security.NewManager(security.Policy{AllowedModules: patterns})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return sec
}

func TestURLFetchesAndMemoizesBody(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("x = 1"))
	}))
	defer server.Close()

	engine := newTestEngine(t, Options{
		Security:   allowURLPrefix(t, server.URL),
		HTTPClient: server.Client(),
	})
	uri := server.URL + "/main.pkl"
	for i := 0; i < 3; i++ {
		key, err := engine.KeyFor(uri)
		if err != nil {
			t.Fatalf("KeyFor: %v", err)
		}
		resolved, err := engine.Resolve(key)
		if err != nil {
			t.Fatalf("Resolve %d: %v", i, err)
		}
		src, err := engine.LoadSource(key, resolved)
		if err != nil {
			t.Fatalf("LoadSource %d: %v", i, err)
		}
		if src != "x = 1" {
			t.Fatalf("source = %q", src)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server hit %d times, want 1", got)
	}
}

func TestURLRedirectBecomesCanonical(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("moved = true"))
	}))
	defer target.Close()
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL+"/real.pkl", http.StatusMovedPermanently)
	}))
	defer source.Close()

	engine := newTestEngine(t, Options{
		Security:   allowURLPrefix(t, source.URL, target.URL),
		HTTPClient: http.DefaultClient,
	})
	key, err := engine.KeyFor(source.URL + "/main.pkl")
	if err != nil {
		t.Fatalf("KeyFor: %v", err)
	}
	resolved, err := engine.Resolve(key)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := target.URL + "/real.pkl"; resolved.URI() != want {
		t.Errorf("canonical URI = %q, want %q", resolved.URI(), want)
	}
}

func TestURLRedirectOutsideAllowListDenied(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("moved = true"))
	}))
	defer target.Close()
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL+"/real.pkl", http.StatusMovedPermanently)
	}))
	defer source.Close()

	// Only the nominal host is allowed; following the redirect must fail.
	engine := newTestEngine(t, Options{
		Security:   allowURLPrefix(t, source.URL),
		HTTPClient: http.DefaultClient,
	})
	key, err := engine.KeyFor(source.URL + "/main.pkl")
	if err != nil {
		t.Fatalf("KeyFor: %v", err)
	}
	_, err = engine.Resolve(key)
	se, ok := security.AsSecurityError(err)
	if !ok {
		t.Fatalf("got %v, want a security error", err)
	}
	if se.Code != security.ErrModuleDenied {
		t.Errorf("code = %s, want %s", se.Code, security.ErrModuleDenied)
	}
}

func TestURLNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	engine := newTestEngine(t, Options{
		Security:   allowURLPrefix(t, server.URL),
		HTTPClient: server.Client(),
	})
	key, err := engine.KeyFor(server.URL + "/missing.pkl")
	if err != nil {
		t.Fatalf("KeyFor: %v", err)
	}
	_, err = engine.Resolve(key)
	ie, ok := AsIoError(err)
	if !ok || ie.Code != ErrNotFound {
		t.Fatalf("got %v, want %s", err, ErrNotFound)
	}
}

func TestURLServerErrorIsIoError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	engine := newTestEngine(t, Options{
		Security:   allowURLPrefix(t, server.URL),
		HTTPClient: server.Client(),
	})
	key, err := engine.KeyFor(server.URL + "/main.pkl")
	if err != nil {
		t.Fatalf("KeyFor: %v", err)
	}
	_, err = engine.Resolve(key)
	ie, ok := AsIoError(err)
	if !ok || ie.Code != ErrIo {
		t.Fatalf("got %v, want %s", err, ErrIo)
	}
}
