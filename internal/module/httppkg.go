package module

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"sync"
)

// HTTPPackageResolver fetches package archives over HTTPS and serves assets
// out of them. An archive for "package://example.com/birds@1.2.3" is
// expected at "https://example.com/birds@1.2.3.zip"; each archive is
// downloaded at most once per resolver and verified against the lock
// file's pinned archive checksum before any asset is read from it.
type HTTPPackageResolver struct {
	client *http.Client

	// ArchiveURL maps a package URI to the location of its zip archive.
	// Defaults to the https convention above.
	ArchiveURL func(packageURI string) (string, error)

	mu       sync.Mutex
	archives map[string]*archiveEntry
}

type archiveEntry struct {
	once     sync.Once
	reader   *zip.Reader
	fetchErr error
}

func NewHTTPPackageResolver(client *http.Client) *HTTPPackageResolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPPackageResolver{
		client:     client,
		ArchiveURL: archiveURL,
		archives:   make(map[string]*archiveEntry),
	}
}

func (r *HTTPPackageResolver) archive(packageURI string, checksums map[string]string) (*zip.Reader, error) {
	r.mu.Lock()
	entry, ok := r.archives[packageURI]
	if !ok {
		entry = &archiveEntry{}
		r.archives[packageURI] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		entry.reader, entry.fetchErr = r.fetch(packageURI, checksums)
	})
	return entry.reader, entry.fetchErr
}

func (r *HTTPPackageResolver) fetch(packageURI string, checksums map[string]string) (*zip.Reader, error) {
	location, err := r.ArchiveURL(packageURI)
	if err != nil {
		return nil, err
	}
	resp, err := r.client.Get(location)
	if err != nil {
		return nil, ioError(packageURI, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, notFound(packageURI)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &IoError{
			Code: ErrIo,
			URI:  packageURI,
			Err:  fmt.Errorf("unexpected status %s fetching %s", resp.Status, location),
		}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ioError(packageURI, err)
	}
	if want := checksums["sha256"]; want != "" {
		sum := sha256.Sum256(data)
		got := hex.EncodeToString(sum[:])
		if got != want {
			return nil, &IoError{
				Code: ErrChecksumMismatch,
				URI:  packageURI,
				Err:  fmt.Errorf("expected sha256 %s, got %s", want, got),
			}
		}
	}
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, ioError(packageURI, err)
	}
	return reader, nil
}

// archiveURL rewrites a package: URI into the https location of its zip.
func archiveURL(packageURI string) (string, error) {
	rest, ok := strings.CutPrefix(packageURI, "package://")
	if !ok {
		return "", fmt.Errorf("not a package URI: %q", packageURI)
	}
	return "https://" + rest + ".zip", nil
}

// DependencyMetadata fetches the metadata document published next to the
// archive (same location, .json suffix).
func (r *HTTPPackageResolver) DependencyMetadata(packageURI string) ([]byte, error) {
	location, err := r.ArchiveURL(packageURI)
	if err != nil {
		return nil, err
	}
	location = strings.TrimSuffix(location, ".zip") + ".json"
	resp, err := r.client.Get(location)
	if err != nil {
		return nil, ioError(packageURI, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, notFound(packageURI)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &IoError{
			Code: ErrIo,
			URI:  packageURI,
			Err:  fmt.Errorf("unexpected status %s fetching %s", resp.Status, location),
		}
	}
	return io.ReadAll(resp.Body)
}

func (r *HTTPPackageResolver) Bytes(packageURI, asset string, checksums map[string]string) ([]byte, error) {
	archive, err := r.archive(packageURI, checksums)
	if err != nil {
		return nil, err
	}
	f, err := archive.Open(asset)
	if err != nil {
		return nil, os.ErrNotExist
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (r *HTTPPackageResolver) HasElement(packageURI, asset string, checksums map[string]string) (bool, error) {
	archive, err := r.archive(packageURI, checksums)
	if err != nil {
		return false, err
	}
	_, err = archive.Open(asset)
	return err == nil, nil
}

func (r *HTTPPackageResolver) ListElements(packageURI, dir string, checksums map[string]string) ([]PathElement, error) {
	archive, err := r.archive(packageURI, checksums)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var elements []PathElement
	for _, f := range archive.File {
		rel := path.Clean(f.Name)
		if f.FileInfo().IsDir() {
			rel = strings.TrimSuffix(rel, "/")
		}
		parent := path.Dir(rel)
		if parent == "." {
			parent = ""
		}
		if parent != dir {
			continue
		}
		name := path.Base(rel)
		if seen[name] {
			continue
		}
		seen[name] = true
		elements = append(elements, PathElement{
			Name:        name,
			IsDirectory: f.FileInfo().IsDir(),
		})
	}
	SortPathElements(elements)
	return elements, nil
}
