package layer

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

type tarEntry struct {
	name     string
	typeflag byte
	mode     int64
	linkname string
	body     string
}

func buildLayer(t *testing.T, entries []tarEntry) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, e := range entries {
		hdr := &tar.Header{
			Name:     e.name,
			Typeflag: e.typeflag,
			Mode:     e.mode,
			Linkname: e.linkname,
			Size:     int64(len(e.body)),
		}
		if hdr.Typeflag == 0 && hdr.Linkname == "" {
			hdr.Typeflag = tar.TypeReg
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write header %s: %v", e.name, err)
		}
		if e.body != "" {
			if _, err := tw.Write([]byte(e.body)); err != nil {
				t.Fatalf("write body %s: %v", e.name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar writer: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip writer: %v", err)
	}
	return &buf
}

func TestExtractSimple(t *testing.T) {
	rootfs := t.TempDir()
	layer := buildLayer(t, []tarEntry{
		{name: "hello.txt", mode: 0o644, body: "Hello, World!"},
	})

	if err := Extract(layer, rootfs); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(rootfs, "hello.txt"))
	if err != nil {
		t.Fatalf("read extracted file: %v", err)
	}
	if string(got) != "Hello, World!" {
		t.Errorf("content = %q, want %q", got, "Hello, World!")
	}
}

func TestExtractWhiteoutDeletesSibling(t *testing.T) {
	rootfs := t.TempDir()
	if err := os.WriteFile(filepath.Join(rootfs, "deleteme.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	layer := buildLayer(t, []tarEntry{
		{name: ".wh.deleteme.txt", mode: 0o644},
	})

	if err := Extract(layer, rootfs); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(rootfs, "deleteme.txt")); !os.IsNotExist(err) {
		t.Errorf("expected deleteme.txt to be gone, stat err = %v", err)
	}
}

func TestExtractOpaqueWhiteout(t *testing.T) {
	rootfs := t.TempDir()
	if err := os.MkdirAll(filepath.Join(rootfs, "etc"), 0o755); err != nil {
		t.Fatalf("seed dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(rootfs, "etc", "old.conf"), []byte("a"), 0o644); err != nil {
		t.Fatalf("seed old.conf: %v", err)
	}
	if err := os.WriteFile(filepath.Join(rootfs, "etc", "other.conf"), []byte("b"), 0o644); err != nil {
		t.Fatalf("seed other.conf: %v", err)
	}

	layer := buildLayer(t, []tarEntry{
		{name: "etc/.wh..wh..opq", mode: 0o644},
	})

	if err := Extract(layer, rootfs); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(rootfs, "etc"))
	if err != nil {
		t.Fatalf("stat etc: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected etc/ to be empty, got %d entries", len(entries))
	}
}

func TestExtractPermissionsMapping(t *testing.T) {
	rootfs := t.TempDir()
	layer := buildLayer(t, []tarEntry{
		{name: "script.sh", mode: 0o755, body: "#!/bin/sh\n"},
	})

	if err := Extract(layer, rootfs); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	info, err := os.Stat(filepath.Join(rootfs, "script.sh"))
	if err != nil {
		t.Fatalf("stat script.sh: %v", err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("perm = %o, want %o", info.Mode().Perm(), 0o755)
	}
}

func TestExtractPathTraversalSkipped(t *testing.T) {
	rootfs := t.TempDir()
	layer := buildLayer(t, []tarEntry{
		{name: "../../etc/passwd", mode: 0o644, body: "root:x:0:0"},
	})

	if err := Extract(layer, rootfs); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(filepath.Dir(rootfs)), "etc", "passwd")); !os.IsNotExist(err) {
		t.Errorf("expected traversal entry to be skipped, stat err = %v", err)
	}
}

func TestExtractSymlinkNotChmoded(t *testing.T) {
	rootfs := t.TempDir()
	if err := os.WriteFile(filepath.Join(rootfs, "target"), []byte("x"), 0o644); err != nil {
		t.Fatalf("seed target: %v", err)
	}
	if err := os.Chmod(filepath.Join(rootfs, "target"), 0o644); err != nil {
		t.Fatalf("chmod target: %v", err)
	}
	layer := buildLayer(t, []tarEntry{
		{name: "link", typeflag: tar.TypeSymlink, linkname: "target", mode: 0o777},
	})

	if err := Extract(layer, rootfs); err != nil {
		t.Fatalf("Extract() error: %v", err)
	}

	target, err := os.Readlink(filepath.Join(rootfs, "link"))
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if target != "target" {
		t.Errorf("link target = %q, want %q", target, "target")
	}

	// A chmod through the symlink would have changed the file it points at.
	info, err := os.Stat(filepath.Join(rootfs, "target"))
	if err != nil {
		t.Fatalf("stat target: %v", err)
	}
	if info.Mode().Perm() != 0o644 {
		t.Errorf("target perm = %o, want %o", info.Mode().Perm(), 0o644)
	}
}

func TestTarModeToPerm(t *testing.T) {
	if got := tarModeToPerm(0o755); got != 0o755 {
		t.Errorf("tarModeToPerm(0755) = %o, want 0755", got)
	}
	if got := tarModeToPerm(0o640); got != 0o640 {
		t.Errorf("tarModeToPerm(0640) = %o, want 0640", got)
	}
}
