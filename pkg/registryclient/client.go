// Package registryclient implements the narrow slice of the Docker
// Registry HTTP API v2 this runtime needs: anonymous bearer token
// acquisition, manifest (including multi-platform index) resolution, and
// blob streaming.
package registryclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"

	digest "github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go/v1"

	"jcontainer/pkg/imageref"
	"jcontainer/pkg/log"
)

// acceptHeader enumerates the two Docker manifest media types and their
// two OCI equivalents.
const acceptHeader = "application/vnd.docker.distribution.manifest.v2+json," +
	"application/vnd.docker.distribution.manifest.list.v2+json," +
	specs.MediaTypeImageManifest + "," +
	specs.MediaTypeImageIndex

// Client fetches tokens, manifests, and blobs from a single registry.
type Client struct {
	httpClient *http.Client
}

// New returns a Client using http.DefaultClient's transport settings.
func New() *Client {
	return &Client{httpClient: http.DefaultClient}
}

// token acquires a bearer token scoped to pull ref's repository.
func (c *Client) token(ref imageref.Ref) (string, error) {
	url := fmt.Sprintf(
		"https://auth.docker.io/token?service=registry.docker.io&scope=repository:%s:pull",
		ref.Repository(),
	)

	resp, err := c.httpClient.Get(url)
	if err != nil {
		return "", fmt.Errorf("registry-error: token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("registry-error: token request returned %d", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("registry-error: decode token response: %w", err)
	}
	if body.Token == "" {
		return "", fmt.Errorf("registry-error: empty token in response")
	}
	return body.Token, nil
}

// registryURL returns the base URL to use for v2 API calls against ref's
// registry.
func (c *Client) registryURL(ref imageref.Ref) string {
	return "https://" + ref.Registry
}

// Manifest fetches and resolves the single-platform manifest for ref,
// following a multi-platform index redirection if necessary. Recursion
// depth is capped at one level: the second fetch is decoded as a manifest
// without checking whether it is itself an index.
func (c *Client) Manifest(ref imageref.Ref) (specs.Manifest, error) {
	tok, err := c.token(ref)
	if err != nil {
		return specs.Manifest{}, err
	}

	raw, err := c.fetchManifest(ref, ref.Tag, tok)
	if err != nil {
		return specs.Manifest{}, err
	}

	if isIndex(raw) {
		var index specs.Index
		if err := json.Unmarshal(raw, &index); err != nil {
			return specs.Manifest{}, fmt.Errorf("registry-error: decode manifest index: %w", err)
		}
		d, err := selectPlatform(index)
		if err != nil {
			return specs.Manifest{}, err
		}
		raw, err = c.fetchManifest(ref, d.Digest.String(), tok)
		if err != nil {
			return specs.Manifest{}, err
		}
	}

	var manifest specs.Manifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return specs.Manifest{}, fmt.Errorf("registry-error: decode manifest: %w", err)
	}
	return manifest, nil
}

func (c *Client) fetchManifest(ref imageref.Ref, reference, token string) ([]byte, error) {
	url := fmt.Sprintf("%s/v2/%s/manifests/%s", c.registryURL(ref), ref.Repository(), reference)

	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("registry-error: build manifest request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry-error: manifest request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry-error: manifest request returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("registry-error: read manifest body: %w", err)
	}
	return body, nil
}

// Blob opens a streaming reader for the given digest. The caller must
// close the returned io.ReadCloser. Redirects (registries commonly 307
// to a CDN) are followed automatically by http.Client.
func (c *Client) Blob(ref imageref.Ref, d digest.Digest) (io.ReadCloser, error) {
	tok, err := c.token(ref)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v2/%s/blobs/%s", c.registryURL(ref), ref.Repository(), d.String())
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("registry-error: build blob request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry-error: blob request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("registry-error: blob request returned %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// isIndex reports whether raw looks like a manifest index/list: either
// its mediaType says so, or it carries a top-level "manifests" array.
func isIndex(raw []byte) bool {
	var probe struct {
		MediaType string          `json:"mediaType"`
		Manifests json.RawMessage `json:"manifests"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	if probe.MediaType == specs.MediaTypeImageIndex ||
		probe.MediaType == "application/vnd.docker.distribution.manifest.list.v2+json" {
		return true
	}
	return len(probe.Manifests) > 0
}

// selectPlatform picks the index entry matching linux/<runtime arch>,
// normalizing amd64<->x86_64 and arm64<->aarch64, falling back to the
// first entry with a warning if nothing matches.
func selectPlatform(index specs.Index) (specs.Descriptor, error) {
	if len(index.Manifests) == 0 {
		return specs.Descriptor{}, fmt.Errorf("registry-error: manifest index has no entries")
	}

	want := normalizeArch(runtime.GOARCH)
	for _, m := range index.Manifests {
		if m.Platform == nil {
			continue
		}
		if m.Platform.OS == "linux" && normalizeArch(m.Platform.Architecture) == want {
			return m, nil
		}
	}

	logger := log.WithComponent("registryclient")
	logger.Warn().
		Str("want", "linux/"+want).
		Msg("no manifest entry matched; falling back to the first entry")
	return index.Manifests[0], nil
}

func normalizeArch(arch string) string {
	switch arch {
	case "amd64", "x86_64":
		return "amd64"
	case "arm64", "aarch64":
		return "arm64"
	default:
		return arch
	}
}
