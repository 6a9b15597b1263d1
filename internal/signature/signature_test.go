package signature

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generate(t *testing.T) (privPath, pubPath string) {
	t.Helper()
	dir := t.TempDir()
	privPath = filepath.Join(dir, "key")
	pubPath = filepath.Join(dir, "key.pub")
	require.NoError(t, GenerateKeypair(privPath, pubPath))
	return privPath, pubPath
}

func TestGenerateKeypair(t *testing.T) {
	privPath, pubPath := generate(t)

	priv, err := os.ReadFile(privPath)
	require.NoError(t, err)
	assert.Len(t, priv, SeedSize)

	pub, err := os.ReadFile(pubPath)
	require.NoError(t, err)
	assert.Len(t, pub, PublicKeySize)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(privPath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

func TestSignAndVerify(t *testing.T) {
	privPath, pubPath := generate(t)
	target := filepath.Join(t.TempDir(), "test.kpkg")
	require.NoError(t, os.WriteFile(target, []byte("KPKG container bytes"), 0o644))

	key, err := LoadSigningKey(privPath)
	require.NoError(t, err)
	pub, err := LoadPublicKey(pubPath)
	require.NoError(t, err)

	sig, err := SignFile(target, key)
	require.NoError(t, err)
	require.Len(t, sig, SignatureSize)

	ok, err := VerifyFile(target, pub, sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerify_TamperedFile(t *testing.T) {
	privPath, pubPath := generate(t)
	target := filepath.Join(t.TempDir(), "test.kpkg")
	require.NoError(t, os.WriteFile(target, []byte("original"), 0o644))

	key, err := LoadSigningKey(privPath)
	require.NoError(t, err)
	sig, err := SignFile(target, key)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(target, []byte("tampered"), 0o644))

	pub, err := LoadPublicKey(pubPath)
	require.NoError(t, err)
	ok, err := VerifyFile(target, pub, sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerify_WrongKey(t *testing.T) {
	privPath, _ := generate(t)
	_, otherPubPath := generate(t)
	target := filepath.Join(t.TempDir(), "test.kpkg")
	require.NoError(t, os.WriteFile(target, []byte("contents"), 0o644))

	key, err := LoadSigningKey(privPath)
	require.NoError(t, err)
	sig, err := SignFile(target, key)
	require.NoError(t, err)

	otherPub, err := LoadPublicKey(otherPubPath)
	require.NoError(t, err)
	ok, err := VerifyFile(target, otherPub, sig)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSignatureRoundTripThroughFile(t *testing.T) {
	privPath, pubPath := generate(t)
	dir := t.TempDir()
	target := filepath.Join(dir, "test.kpkg")
	sigPath := filepath.Join(dir, "test.kpkg.sig")
	require.NoError(t, os.WriteFile(target, []byte("contents"), 0o644))

	key, err := LoadSigningKey(privPath)
	require.NoError(t, err)
	sig, err := SignFile(target, key)
	require.NoError(t, err)
	require.NoError(t, SaveSignature(sigPath, sig))

	loaded, err := LoadSignature(sigPath)
	require.NoError(t, err)
	assert.Equal(t, sig, loaded)

	pub, err := LoadPublicKey(pubPath)
	require.NoError(t, err)
	ok, err := VerifyFile(target, pub, loaded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLoad_WrongSizes(t *testing.T) {
	dir := t.TempDir()
	short := filepath.Join(dir, "short")
	require.NoError(t, os.WriteFile(short, []byte("too short"), 0o644))

	_, err := LoadSigningKey(short)
	assert.ErrorIs(t, err, ErrKeySize)

	_, err = LoadPublicKey(short)
	assert.ErrorIs(t, err, ErrKeySize)

	_, err = LoadSignature(short)
	assert.ErrorIs(t, err, ErrSignatureSize)
}
