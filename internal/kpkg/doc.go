// Package kpkg implements the KPKG container format: a fixed 40-byte
// binary header framing a TOML manifest region and an opaque binary
// payload region. The package is the security boundary for untrusted
// containers — every byte is validated before it is trusted.
//
// # Container Layout
//
// All integers are little-endian; the header is zero-padded to exactly
// HeaderSize (40) bytes:
//
//	offset 0   magic "KPKG" (4 bytes)
//	offset 4   version (u16)
//	offset 6   manifest_size (u32)
//	offset 10  binary_size (u64)
//	offset 18  binary_offset (u64)
//	offset 26  manifest_offset (u64)
//	offset 34  reserved, zero-filled
//
// Bytes after the binary region are ignored (forward-compatible
// trailer space).
//
// # Manifest Schema
//
// The manifest is a strict TOML document. Unknown keys are rejected at
// every nesting level:
//
//	name = "demo"
//	version = "0.1.0"
//
//	[capabilities.memory]
//	max_bytes = 8388608
//
//	[capabilities.files.read]
//	paths = ["/etc/config"]
//
//	[capabilities.network.connect]
//	hosts = ["api.example.com:443"]
//
// # Usage
//
// Load a whole container:
//
//	pkg, err := kpkg.Load(buf)
//	if err != nil {
//	    // reject the package; never proceed with defaults
//	}
//
// Or validate a bare manifest:
//
//	m, err := kpkg.ParseManifest(data)
//
// # Error Handling
//
// Every failure maps to one sentinel from the closed set in errors.go
// (ErrTruncated, ErrInvalidMagic, ErrMalformedLayout, ErrNotUTF8,
// ErrEmptyManifest, ErrSyntax, ErrUnknownField, ErrMissingField,
// ErrEmptyField, ErrBadType), so callers can match on kind with
// errors.Is rather than on message text.
package kpkg
