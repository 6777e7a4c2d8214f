// Package imageref parses textual image references into their component
// parts: registry, namespace, image, and tag.
package imageref

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultRegistry is the public default hub used when a reference
	// names no registry.
	DefaultRegistry = "registry-1.docker.io"
	// DefaultNamespace is used when a reference names no namespace.
	DefaultNamespace = "library"
	// DefaultTag is used when a reference names no tag.
	DefaultTag = "latest"
)

// Ref is an immutable parsed image reference.
type Ref struct {
	Registry  string
	Namespace string
	Image     string
	Tag       string
}

// Parse parses s into a Ref, applying the following defaulting rules:
// the rightmost colon is a tag separator iff no slash follows it; a
// leading path segment is a registry iff it contains a dot or colon,
// otherwise it's a namespace; deeper namespace segments are joined with
// "/".
func Parse(s string) (Ref, error) {
	if s == "" {
		return Ref{}, errors.New("image reference is empty")
	}

	rest, tag := splitTag(s)

	parts := strings.Split(rest, "/")
	var registry, namespace, image string

	switch len(parts) {
	case 0:
		return Ref{}, fmt.Errorf("invalid image reference %q", s)
	case 1:
		registry = DefaultRegistry
		namespace = DefaultNamespace
		image = parts[0]
	default:
		first := parts[0]
		if strings.ContainsAny(first, ".:") {
			registry = first
			namespace = strings.Join(parts[1:len(parts)-1], "/")
		} else {
			registry = DefaultRegistry
			namespace = strings.Join(parts[:len(parts)-1], "/")
		}
		if namespace == "" {
			namespace = DefaultNamespace
		}
		image = parts[len(parts)-1]
	}

	if image == "" {
		return Ref{}, fmt.Errorf("invalid image reference %q: empty image name", s)
	}

	return Ref{Registry: registry, Namespace: namespace, Image: image, Tag: tag}, nil
}

// splitTag finds the rightmost colon that is a tag separator (one with no
// slash after it) and splits s into the remainder and the tag, applying
// DefaultTag if none is present.
func splitTag(s string) (rest, tag string) {
	idx := strings.LastIndex(s, ":")
	if idx == -1 || strings.Contains(s[idx+1:], "/") {
		return s, DefaultTag
	}
	return s[:idx], s[idx+1:]
}

// FullName renders ref back into a single string such that
// Parse(ref.FullName()) produces an equivalent Ref.
func (r Ref) FullName() string {
	return fmt.Sprintf("%s/%s/%s:%s", r.Registry, r.Namespace, r.Image, r.Tag)
}

// Repository returns the "<namespace>/<image>" path used in registry API
// URLs.
func (r Ref) Repository() string {
	return r.Namespace + "/" + r.Image
}
