package kpkg

import (
	"fmt"
	"os"
)

// Package is a fully validated container: header, manifest, and the
// opaque binary payload. Binary is a sub-slice of the input buffer, not
// a copy; callers that outlive the buffer must copy it themselves.
type Package struct {
	Header   Header
	Manifest *Manifest
	Binary   []byte
}

// Load validates a whole container held in buf. Header errors propagate
// unchanged; manifest errors are tagged with the region they occurred
// in so callers can tell a framing failure from a content failure. Any
// error means "reject the package".
func Load(buf []byte) (*Package, error) {
	h, err := ParseHeader(buf)
	if err != nil {
		return nil, err
	}

	// Region bounds were validated by ParseHeader; slicing cannot read
	// past the buffer. The manifest region is handed to the validator
	// even when zero-length so the empty-manifest check still fires.
	manifestBytes := buf[h.ManifestOffset : h.ManifestOffset+uint64(h.ManifestSize)]
	m, err := ParseManifest(manifestBytes)
	if err != nil {
		return nil, fmt.Errorf("manifest region: %w", err)
	}

	binary := buf[h.BinaryOffset : h.BinaryOffset+h.BinarySize]

	return &Package{Header: h, Manifest: m, Binary: binary}, nil
}

// LoadFile reads path and validates it as a container. All I/O happens
// before validation starts.
func LoadFile(path string) (*Package, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Load(buf)
}

// BuildContainer composes a container from raw manifest and binary
// bytes using the writer layout: header, manifest at HeaderSize, binary
// immediately after. It is the format-level inverse of Load and does
// not validate the manifest; callers that want a loadable container
// validate first.
func BuildContainer(manifest, binary []byte) []byte {
	h := Header{
		Version:        CurrentVersion,
		ManifestSize:   uint32(len(manifest)),
		BinarySize:     uint64(len(binary)),
		ManifestOffset: HeaderSize,
		BinaryOffset:   HeaderSize + uint64(len(manifest)),
	}
	out := make([]byte, 0, HeaderSize+len(manifest)+len(binary))
	out = append(out, EncodeHeader(h)...)
	out = append(out, manifest...)
	out = append(out, binary...)
	return out
}
