package kpkg

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// HeaderSize is the exact length of the container header in bytes.
// Shared by reader and writer: extending the layout means changing this
// constant consciously, never shifting offsets silently.
const HeaderSize = 40

// Magic is the 4-byte literal every container starts with.
var Magic = [4]byte{'K', 'P', 'K', 'G'}

// CurrentVersion is the container version the writer emits.
const CurrentVersion uint16 = 1

// Header is the fixed-layout container header. All fields are stored
// little-endian, tightly packed, zero-padded to HeaderSize.
type Header struct {
	Version        uint16
	ManifestSize   uint32
	BinarySize     uint64
	BinaryOffset   uint64
	ManifestOffset uint64
}

// ParseHeader reads and validates the fixed header at the start of buf.
// It performs framing validation only: magic, then bounds and
// non-overlap cross-checks of the declared regions against len(buf).
// The version field is read but not validated; version gating is caller
// policy. Trailing bytes beyond the binary region are permitted.
func ParseHeader(buf []byte) (Header, error) {
	var h Header
	if len(buf) < HeaderSize {
		return h, &TruncatedError{Need: HeaderSize, Got: len(buf)}
	}
	if !bytes.Equal(buf[0:4], Magic[:]) {
		return h, ErrInvalidMagic
	}

	h.Version = binary.LittleEndian.Uint16(buf[4:6])
	h.ManifestSize = binary.LittleEndian.Uint32(buf[6:10])
	h.BinarySize = binary.LittleEndian.Uint64(buf[10:18])
	h.BinaryOffset = binary.LittleEndian.Uint64(buf[18:26])
	h.ManifestOffset = binary.LittleEndian.Uint64(buf[26:34])

	if err := h.validate(uint64(len(buf))); err != nil {
		return Header{}, err
	}
	return h, nil
}

// validate cross-checks the declared regions against the buffer length.
// All comparisons are overflow-safe: untrusted u64 fields are never
// added together before being bounded.
func (h Header) validate(bufLen uint64) error {
	if h.ManifestOffset < HeaderSize {
		return &LayoutError{Check: fmt.Sprintf(
			"manifest_offset %d overlaps header (must be >= %d)", h.ManifestOffset, HeaderSize)}
	}
	if h.ManifestOffset > bufLen || uint64(h.ManifestSize) > bufLen-h.ManifestOffset {
		return &LayoutError{Check: fmt.Sprintf(
			"manifest region (offset %d, size %d) exceeds buffer length %d",
			h.ManifestOffset, h.ManifestSize, bufLen)}
	}
	manifestEnd := h.ManifestOffset + uint64(h.ManifestSize)
	if h.BinaryOffset < manifestEnd {
		return &LayoutError{Check: fmt.Sprintf(
			"binary_offset %d overlaps manifest region ending at %d", h.BinaryOffset, manifestEnd)}
	}
	if h.BinaryOffset > bufLen || h.BinarySize > bufLen-h.BinaryOffset {
		return &LayoutError{Check: fmt.Sprintf(
			"binary region (offset %d, size %d) exceeds buffer length %d",
			h.BinaryOffset, h.BinarySize, bufLen)}
	}
	return nil
}

// EncodeHeader serializes h into exactly HeaderSize bytes.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], Magic[:])
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	binary.LittleEndian.PutUint32(buf[6:10], h.ManifestSize)
	binary.LittleEndian.PutUint64(buf[10:18], h.BinarySize)
	binary.LittleEndian.PutUint64(buf[18:26], h.BinaryOffset)
	binary.LittleEndian.PutUint64(buf[26:34], h.ManifestOffset)
	return buf
}
