package image

import (
	"archive/tar"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	digest "github.com/opencontainers/go-digest"
	specs "github.com/opencontainers/image-spec/specs-go/v1"

	"jcontainer/pkg/imageref"
)

type fakeClient struct {
	manifest    specs.Manifest
	manifestErr error
	blobs       map[digest.Digest][]byte
}

func (f *fakeClient) Manifest(ref imageref.Ref) (specs.Manifest, error) {
	return f.manifest, f.manifestErr
}

func (f *fakeClient) Blob(ref imageref.Ref, d digest.Digest) (io.ReadCloser, error) {
	b, ok := f.blobs[d]
	if !ok {
		return nil, errors.New("no such blob")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func buildTestLayer(t *testing.T, name, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(body))}); err != nil {
		t.Fatalf("write header: %v", err)
	}
	if _, err := tw.Write([]byte(body)); err != nil {
		t.Fatalf("write body: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

func TestPullCacheHit(t *testing.T) {
	cacheRoot := t.TempDir()
	ref, _ := imageref.Parse("myns/myimage:latest")
	imageDir := filepath.Join(cacheRoot, "myns", "myimage", "latest")

	if err := os.MkdirAll(filepath.Join(imageDir, "rootfs"), 0o755); err != nil {
		t.Fatalf("seed rootfs: %v", err)
	}
	if err := os.WriteFile(filepath.Join(imageDir, completeMarker), nil, 0o644); err != nil {
		t.Fatalf("seed marker: %v", err)
	}

	client := &fakeClient{manifestErr: errors.New("should not be called on cache hit")}
	mgr := NewManager(cacheRoot, client)

	rootfs, err := mgr.Pull(ref)
	if err != nil {
		t.Fatalf("Pull() error: %v", err)
	}
	if rootfs != filepath.Join(imageDir, "rootfs") {
		t.Errorf("rootfs = %q, want %q", rootfs, filepath.Join(imageDir, "rootfs"))
	}
}

func TestPullExtractsLayersAndMarksComplete(t *testing.T) {
	cacheRoot := t.TempDir()
	ref, _ := imageref.Parse("myns/myimage:latest")

	layerBytes := buildTestLayer(t, "hello.txt", "hi")
	d := digest.Digest("sha256:abc")

	client := &fakeClient{
		manifest: specs.Manifest{Layers: []specs.Descriptor{{Digest: d}}},
		blobs:    map[digest.Digest][]byte{d: layerBytes},
	}
	mgr := NewManager(cacheRoot, client)

	rootfs, err := mgr.Pull(ref)
	if err != nil {
		t.Fatalf("Pull() error: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(rootfs, "hello.txt"))
	if err != nil {
		t.Fatalf("read extracted file: %v", err)
	}
	if string(got) != "hi" {
		t.Errorf("content = %q, want %q", got, "hi")
	}

	imageDir := filepath.Join(cacheRoot, "myns", "myimage", "latest")
	if _, err := os.Stat(filepath.Join(imageDir, completeMarker)); err != nil {
		t.Errorf("expected completion marker, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(imageDir, "layers")); !os.IsNotExist(err) {
		t.Errorf("expected layers dir to be removed, stat err = %v", err)
	}
}

func TestPullClearsPartialTreeBeforeRetrying(t *testing.T) {
	cacheRoot := t.TempDir()
	ref, _ := imageref.Parse("myns/myimage:latest")
	imageDir := filepath.Join(cacheRoot, "myns", "myimage", "latest")

	if err := os.MkdirAll(imageDir, 0o755); err != nil {
		t.Fatalf("seed partial dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(imageDir, "stale.txt"), []byte("leftover"), 0o644); err != nil {
		t.Fatalf("seed stale file: %v", err)
	}

	client := &fakeClient{manifestErr: errors.New("registry unreachable")}
	mgr := NewManager(cacheRoot, client)

	if _, err := mgr.Pull(ref); err == nil {
		t.Fatal("expected Pull() to fail when manifest fetch fails")
	}

	if _, err := os.Stat(imageDir); !os.IsNotExist(err) {
		t.Errorf("expected stale partial tree to be cleared, stat err = %v", err)
	}
}
