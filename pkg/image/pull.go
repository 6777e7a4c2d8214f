// Package image implements the pull → cache → extract pipeline that
// turns an image reference into a ready rootfs directory.
package image

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
	digest "github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go/v1"

	"jcontainer/pkg/imageref"
	"jcontainer/pkg/layer"
	"jcontainer/pkg/log"
)

const completeMarker = ".complete"

// registryClient is the slice of *registryclient.Client that Manager
// needs; narrowing it to an interface lets tests substitute a fake
// instead of hitting a real registry.
type registryClient interface {
	Manifest(ref imageref.Ref) (specs.Manifest, error)
	Blob(ref imageref.Ref, d digest.Digest) (io.ReadCloser, error)
}

// Manager pulls images into a per-reference cache directory tree under
// a single cache root.
type Manager struct {
	cacheRoot string
	client    registryClient
}

// NewManager returns a Manager rooted at cacheRoot, using client to
// reach the registry.
func NewManager(cacheRoot string, client registryClient) *Manager {
	return &Manager{cacheRoot: cacheRoot, client: client}
}

// Pull resolves ref to a rootfs directory, pulling and extracting it if
// not already cached. Returns the absolute path to the rootfs.
func (m *Manager) Pull(ref imageref.Ref) (string, error) {
	imageDir, err := securejoin.SecureJoin(m.cacheRoot, filepath.Join(ref.Namespace, ref.Image, ref.Tag))
	if err != nil {
		return "", fmt.Errorf("image: resolve cache path for %s: %w", ref.FullName(), err)
	}

	rootfs := filepath.Join(imageDir, "rootfs")
	complete := filepath.Join(imageDir, completeMarker)

	if isCacheHit(complete, rootfs) {
		logger := log.WithComponent("image")
		logger.Info().Str("ref", ref.FullName()).Msg("cache hit")
		return rootfs, nil
	}

	if err := os.RemoveAll(imageDir); err != nil {
		return "", fmt.Errorf("image: clear partial cache for %s: %w", ref.FullName(), err)
	}

	manifest, err := m.client.Manifest(ref)
	if err != nil {
		return "", err
	}

	layersDir := filepath.Join(imageDir, "layers")
	if err := os.MkdirAll(layersDir, 0o755); err != nil {
		return "", fmt.Errorf("image: create layers dir: %w", err)
	}
	if err := os.MkdirAll(rootfs, 0o755); err != nil {
		return "", fmt.Errorf("image: create rootfs dir: %w", err)
	}

	for i, l := range manifest.Layers {
		if err := m.pullLayer(ref, l, layersDir, rootfs, i); err != nil {
			return "", err
		}
	}

	if err := os.Remove(layersDir); err != nil {
		return "", fmt.Errorf("image: remove empty layers dir: %w", err)
	}
	if err := os.WriteFile(complete, nil, 0o644); err != nil {
		return "", fmt.Errorf("image: write completion marker: %w", err)
	}

	logger := log.WithComponent("image")
	logger.Info().Str("ref", ref.FullName()).Int("layers", len(manifest.Layers)).Msg("pulled")
	return rootfs, nil
}

func (m *Manager) pullLayer(ref imageref.Ref, desc specs.Descriptor, layersDir, rootfs string, index int) error {
	tmpPath := filepath.Join(layersDir, fmt.Sprintf("%d.tar.gz", index))

	blob, err := m.client.Blob(ref, desc.Digest)
	if err != nil {
		return err
	}
	defer blob.Close()

	tmp, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("image: create layer tempfile: %w", err)
	}
	_, copyErr := io.Copy(tmp, blob)
	closeErr := tmp.Close()
	if copyErr != nil {
		return fmt.Errorf("image: download layer %s: %w", desc.Digest, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("image: download layer %s: %w", desc.Digest, closeErr)
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return fmt.Errorf("image: reopen layer %s: %w", desc.Digest, err)
	}
	extractErr := layer.Extract(f, rootfs)
	f.Close()
	if extractErr != nil {
		return fmt.Errorf("image: extract layer %s: %w", desc.Digest, extractErr)
	}

	if err := os.Remove(tmpPath); err != nil {
		return fmt.Errorf("image: remove layer tarball %s: %w", desc.Digest, err)
	}
	return nil
}

func isCacheHit(complete, rootfs string) bool {
	if _, err := os.Stat(complete); err != nil {
		return false
	}
	info, err := os.Stat(rootfs)
	return err == nil && info.IsDir()
}
