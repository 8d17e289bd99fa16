package module

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"gopkl/internal/security"
)

// urlKey serves http: and https: module URIs. The response body is read
// during Resolve, so a module fetched over the network is transferred at
// most once per evaluation.
type urlKey struct {
	client *http.Client
	uri    *url.URL
}

func urlFactory(client *http.Client) Factory {
	return FactoryFunc(func(uri *url.URL) (Key, bool) {
		if uri.Scheme != "http" && uri.Scheme != "https" {
			return nil, false
		}
		return &urlKey{client: client, uri: uri}, true
	})
}

func (k *urlKey) URI() string               { return k.uri.String() }
func (k *urlKey) Scheme() string            { return k.uri.Scheme }
func (k *urlKey) IsLocal() bool             { return false }
func (k *urlKey) HasHierarchicalURIs() bool { return true }
func (k *urlKey) IsCacheable() bool         { return true }

func (k *urlKey) CachedPath() string {
	return path.Join(k.uri.Scheme, k.uri.Host, strings.TrimPrefix(k.uri.Path, "/"))
}

func (k *urlKey) Resolve(sec security.Manager) (Resolved, error) {
	nominal := k.uri.String()
	if err := sec.CheckModule(nominal); err != nil {
		return nil, err
	}
	resp, err := k.client.Get(nominal)
	if err != nil {
		return nil, ioError(nominal, err)
	}
	defer resp.Body.Close()

	// The server may have redirected; the canonical URI is wherever the
	// content actually came from, and it must pass the allow-list too.
	canonical := nominal
	if resp.Request != nil && resp.Request.URL != nil {
		canonical = resp.Request.URL.String()
	}
	if canonical != nominal {
		if err := sec.CheckModule(canonical); err != nil {
			return nil, err
		}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, notFound(canonical)
	case resp.StatusCode != http.StatusOK:
		return nil, &IoError{
			Code: ErrIo,
			URI:  canonical,
			Err:  fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ioError(canonical, err)
	}
	return &urlResolved{uri: canonical, body: string(body)}, nil
}

type urlResolved struct {
	uri  string
	body string
}

func (r *urlResolved) URI() string                { return r.uri }
func (r *urlResolved) LoadSource() (string, error) { return r.body, nil }
