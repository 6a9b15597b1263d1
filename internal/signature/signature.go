// Package signature implements detached Ed25519 signatures over whole
// container files. Keys and signatures are stored as raw bytes: a
// 32-byte seed for the private key, a 32-byte public key, a 64-byte
// signature.
package signature

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
)

// Raw file sizes in bytes.
const (
	SeedSize      = ed25519.SeedSize
	PublicKeySize = ed25519.PublicKeySize
	SignatureSize = ed25519.SignatureSize
)

// Sentinel errors for the signature package
var (
	// ErrKeySize indicates a key file with the wrong length
	ErrKeySize = errors.New("wrong key file size")

	// ErrSignatureSize indicates a signature file with the wrong length
	ErrSignatureSize = errors.New("wrong signature file size")
)

// GenerateKeypair creates a fresh keypair and writes the raw seed and
// public key to the given paths. The private key file is written 0600.
func GenerateKeypair(privPath, pubPath string) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate keypair: %w", err)
	}
	if err := os.WriteFile(privPath, priv.Seed(), 0o600); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}
	if err := os.WriteFile(pubPath, pub, 0o644); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}
	return nil
}

// LoadSigningKey reads a raw 32-byte seed file.
func LoadSigningKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing key file %s: %w", path, err)
	}
	if len(data) != SeedSize {
		return nil, fmt.Errorf("%w: expected %d bytes for signing key, got %d", ErrKeySize, SeedSize, len(data))
	}
	return ed25519.NewKeyFromSeed(data), nil
}

// LoadPublicKey reads a raw 32-byte public key file.
func LoadPublicKey(path string) (ed25519.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key file %s: %w", path, err)
	}
	if len(data) != PublicKeySize {
		return nil, fmt.Errorf("%w: expected %d bytes for public key, got %d", ErrKeySize, PublicKeySize, len(data))
	}
	return ed25519.PublicKey(data), nil
}

// LoadSignature reads a raw 64-byte signature file.
func LoadSignature(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signature file %s: %w", path, err)
	}
	if len(data) != SignatureSize {
		return nil, fmt.Errorf("%w: expected %d bytes for signature, got %d", ErrSignatureSize, SignatureSize, len(data))
	}
	return data, nil
}

// SaveSignature writes a signature as raw bytes.
func SaveSignature(path string, sig []byte) error {
	if err := os.WriteFile(path, sig, 0o644); err != nil {
		return fmt.Errorf("failed to write signature file %s: %w", path, err)
	}
	return nil
}

// SignFile signs the full contents of path.
func SignFile(path string, key ed25519.PrivateKey) ([]byte, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return ed25519.Sign(key, contents), nil
}

// VerifyFile checks a detached signature over the full contents of
// path. A failed verification is a false return, not an error; errors
// are reserved for I/O failures.
func VerifyFile(path string, pub ed25519.PublicKey, sig []byte) (bool, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return ed25519.Verify(pub, contents, sig), nil
}
