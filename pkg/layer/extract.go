// Package layer applies a single gzipped tar layer onto a rootfs,
// honoring the OCI whiteout and opaque-whiteout conventions.
package layer

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

const (
	opaqueWhiteout = ".wh..wh..opq"
	whiteoutPrefix = ".wh."
)

// Extract reads a gzipped tar stream and applies it onto rootfs in tar
// order.
func Extract(r io.Reader, rootfs string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("layer: open gzip stream: %w", err)
	}
	defer gz.Close()

	rootfs = filepath.Clean(rootfs)
	tr := tar.NewReader(gz)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("layer: read tar entry: %w", err)
		}
		if err := applyEntry(tr, hdr, rootfs); err != nil {
			return err
		}
	}
}

func applyEntry(tr *tar.Reader, hdr *tar.Header, rootfs string) error {
	name := normalizeName(hdr.Name)
	if name == "" {
		return nil
	}

	target, ok := containedJoin(rootfs, name)
	if !ok {
		return nil
	}

	base := filepath.Base(target)

	if base == opaqueWhiteout {
		return emptyDir(filepath.Dir(target))
	}
	if strings.HasPrefix(base, whiteoutPrefix) {
		sibling := filepath.Join(filepath.Dir(target), strings.TrimPrefix(base, whiteoutPrefix))
		return os.RemoveAll(sibling)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("layer: create parent of %s: %w", name, err)
	}

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("layer: mkdir %s: %w", name, err)
		}
		applyMode(target, hdr.Mode)
		return nil

	case tar.TypeSymlink:
		os.RemoveAll(target)
		if err := os.Symlink(hdr.Linkname, target); err != nil {
			return fmt.Errorf("layer: symlink %s: %w", name, err)
		}
		return nil

	case tar.TypeLink:
		linkTarget, ok := containedJoin(rootfs, normalizeName(hdr.Linkname))
		if !ok {
			return nil
		}
		if _, err := os.Lstat(linkTarget); err != nil {
			return nil
		}
		os.Remove(target)
		if err := os.Link(linkTarget, target); err != nil {
			return fmt.Errorf("layer: hardlink %s: %w", name, err)
		}
		return nil

	default:
		f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("layer: create %s: %w", name, err)
		}
		_, copyErr := io.Copy(f, tr)
		closeErr := f.Close()
		if copyErr != nil {
			return fmt.Errorf("layer: write %s: %w", name, copyErr)
		}
		if closeErr != nil {
			return fmt.Errorf("layer: close %s: %w", name, closeErr)
		}
		applyMode(target, hdr.Mode)
		return nil
	}
}

// normalizeName strips a leading "./" and reports "" for names that
// carry no content of their own.
func normalizeName(name string) string {
	name = strings.TrimPrefix(name, "./")
	if name == "" || name == "." {
		return ""
	}
	return name
}

// containedJoin joins name onto rootfs and reports whether the cleaned
// result still lies under rootfs. Deliberately does not resolve
// symlinks along the path; the same check guards hardlink target
// resolution below.
func containedJoin(rootfs, name string) (string, bool) {
	target := filepath.Clean(filepath.Join(rootfs, name))
	if target == rootfs {
		return target, true
	}
	if strings.HasPrefix(target, rootfs+string(filepath.Separator)) {
		return target, true
	}
	return "", false
}

// emptyDir deletes every child of dir, recursively, without removing
// dir itself.
func emptyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("layer: read dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return fmt.Errorf("layer: empty dir %s: %w", dir, err)
		}
	}
	return nil
}

// applyMode translates a tar entry's mode to POSIX permission bits and
// applies it. Best-effort: failure is ignored.
func applyMode(path string, tarMode int64) {
	os.Chmod(path, tarModeToPerm(tarMode))
}

// tarModeToPerm maps the canonical 9 permission bits a tar header
// carries (owner/group/other × read/write/execute) onto an os.FileMode.
// Tar already encodes these as the same bit values POSIX uses, but the
// mapping is spelled out explicitly rather than relying on that
// coincidence.
func tarModeToPerm(tarMode int64) os.FileMode {
	const (
		ownerRead  = 0o400
		ownerWrite = 0o200
		ownerExec  = 0o100
		groupRead  = 0o040
		groupWrite = 0o020
		groupExec  = 0o010
		otherRead  = 0o004
		otherWrite = 0o002
		otherExec  = 0o001
	)
	bits := []int64{ownerRead, ownerWrite, ownerExec, groupRead, groupWrite, groupExec, otherRead, otherWrite, otherExec}
	var perm os.FileMode
	for _, b := range bits {
		if tarMode&b != 0 {
			perm |= os.FileMode(b)
		}
	}
	return perm
}
