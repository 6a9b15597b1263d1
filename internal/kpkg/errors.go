package kpkg

import (
	"errors"
	"fmt"
)

// Sentinel errors for the kpkg package. The set is closed: every error
// returned by this package unwraps to exactly one of these.
var (
	// ErrTruncated indicates the buffer is shorter than a fixed region requires
	ErrTruncated = errors.New("truncated input")

	// ErrInvalidMagic indicates the buffer does not start with the KPKG magic
	ErrInvalidMagic = errors.New("invalid KPKG magic")

	// ErrMalformedLayout indicates header offsets/sizes violate a bounds or
	// non-overlap invariant
	ErrMalformedLayout = errors.New("malformed container layout")

	// ErrNotUTF8 indicates the manifest region is not valid UTF-8
	ErrNotUTF8 = errors.New("manifest is not valid UTF-8")

	// ErrEmptyManifest indicates the manifest region is empty or whitespace-only
	ErrEmptyManifest = errors.New("manifest is empty")

	// ErrSyntax indicates the manifest is not a well-formed TOML document
	ErrSyntax = errors.New("manifest TOML is invalid")

	// ErrUnknownField indicates a key outside the manifest schema
	ErrUnknownField = errors.New("unknown field")

	// ErrMissingField indicates a required field is absent
	ErrMissingField = errors.New("missing required field")

	// ErrEmptyField indicates a required field is present but blank
	ErrEmptyField = errors.New("field must be non-empty")

	// ErrBadType indicates a field holds a value of the wrong type
	ErrBadType = errors.New("wrong type for field")
)

// TruncatedError reports a buffer shorter than a fixed region requires.
type TruncatedError struct {
	Need int
	Got  int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("truncated input: need %d bytes, got %d", e.Need, e.Got)
}

func (e *TruncatedError) Unwrap() error { return ErrTruncated }

// LayoutError reports the first header cross-check that failed.
type LayoutError struct {
	Check string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("malformed container layout: %s", e.Check)
}

func (e *LayoutError) Unwrap() error { return ErrMalformedLayout }

// SyntaxError reports a TOML parse failure with the position the
// underlying parser provides (line 0 when unknown).
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("manifest TOML is invalid: line %d: %s", e.Line, e.Msg)
	}
	return fmt.Sprintf("manifest TOML is invalid: %s", e.Msg)
}

func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// UnknownFieldError names the offending key as a dotted path from the
// document root, e.g. "capabilities.files.writable".
type UnknownFieldError struct {
	Key string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", e.Key)
}

func (e *UnknownFieldError) Unwrap() error { return ErrUnknownField }

// TypeError reports a schema field holding a value of the wrong type.
type TypeError struct {
	Key  string
	Want string
	Got  string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("wrong type for field %q: want %s, got %s", e.Key, e.Want, e.Got)
}

func (e *TypeError) Unwrap() error { return ErrBadType }
