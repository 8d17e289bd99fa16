package module

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		entry, err := w.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := entry.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func TestHTTPPackageResolverFetchesArchiveOnce(t *testing.T) {
	archive := zipBytes(t, map[string]string{
		"Bird.pkl":         "wings = 2",
		"raptors/Owl.pkl":  "nocturnal = true",
		"raptors/Hawk.pkl": "nocturnal = false",
	})
	var fetches atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Write(archive)
	}))
	defer server.Close()

	resolver := NewHTTPPackageResolver(server.Client())
	resolver.ArchiveURL = func(packageURI string) (string, error) {
		return server.URL + "/birds.zip", nil
	}

	pkg := "package://example.com/birds@1.2.3"
	checksums := map[string]string{"sha256": sha256Hex(archive)}
	data, err := resolver.Bytes(pkg, "Bird.pkl", checksums)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if string(data) != "wings = 2" {
		t.Errorf("asset = %q", data)
	}
	if _, err := resolver.Bytes(pkg, "raptors/Owl.pkl", checksums); err != nil {
		t.Fatalf("second asset: %v", err)
	}
	if got := fetches.Load(); got != 1 {
		t.Errorf("archive fetched %d times, want 1", got)
	}

	ok, err := resolver.HasElement(pkg, "raptors/Hawk.pkl", checksums)
	if err != nil || !ok {
		t.Errorf("HasElement = %v, %v", ok, err)
	}
	if _, err := resolver.Bytes(pkg, "Missing.pkl", checksums); err == nil {
		t.Error("expected missing asset to fail")
	}

	elements, err := resolver.ListElements(pkg, "raptors", checksums)
	if err != nil {
		t.Fatalf("ListElements: %v", err)
	}
	if len(elements) != 2 || elements[0].Name != "Hawk.pkl" || elements[1].Name != "Owl.pkl" {
		t.Errorf("elements = %v", elements)
	}
}

func TestHTTPPackageResolverRejectsTamperedArchive(t *testing.T) {
	archive := zipBytes(t, map[string]string{"Bird.pkl": "wings = 2"})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer server.Close()

	resolver := NewHTTPPackageResolver(server.Client())
	resolver.ArchiveURL = func(packageURI string) (string, error) {
		return server.URL + "/birds.zip", nil
	}
	checksums := map[string]string{"sha256": sha256Hex([]byte("not the archive"))}
	_, err := resolver.Bytes("package://example.com/birds@1.2.3", "Bird.pkl", checksums)
	ie, ok := AsIoError(err)
	if !ok || ie.Code != ErrChecksumMismatch {
		t.Fatalf("got %v, want %s", err, ErrChecksumMismatch)
	}
}

func TestHTTPPackageResolverMissingArchive(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	resolver := NewHTTPPackageResolver(server.Client())
	resolver.ArchiveURL = func(packageURI string) (string, error) {
		return server.URL + "/gone.zip", nil
	}
	_, err := resolver.Bytes("package://example.com/gone@0.1.0", "a.pkl", nil)
	ie, ok := AsIoError(err)
	if !ok || ie.Code != ErrNotFound {
		t.Fatalf("got %v, want %s", err, ErrNotFound)
	}
}

func TestArchiveURLConvention(t *testing.T) {
	got, err := archiveURL("package://example.com/birds@1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	if want := "https://example.com/birds@1.2.3.zip"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if _, err := archiveURL("https://example.com/birds"); err == nil {
		t.Error("expected non-package URIs to be rejected")
	}
}
