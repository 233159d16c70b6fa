package anchor

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	payerrors "github.com/mrz1836/paytoken/internal/errors"
)

func TestKeyManager_Load(t *testing.T) {
	t.Run("generates new key if none exists", func(t *testing.T) {
		dir := t.TempDir()
		km := NewKeyManager(dir)
		assert.False(t, km.Exists())

		require.NoError(t, km.Load(context.Background()))
		assert.True(t, km.Exists())

		data, err := os.ReadFile(filepath.Join(dir, KeyFileName))
		require.NoError(t, err)
		decoded, err := hex.DecodeString(string(data))
		require.NoError(t, err)
		assert.Len(t, decoded, ed25519.PrivateKeySize)

		info, err := os.Stat(filepath.Join(dir, KeyFileName))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("reloads the same key after restart", func(t *testing.T) {
		dir := t.TempDir()
		first := NewKeyManager(dir)
		require.NoError(t, first.Load(context.Background()))
		k1, err := first.PrivateKey()
		require.NoError(t, err)

		second := NewKeyManager(dir)
		require.NoError(t, second.Load(context.Background()))
		k2, err := second.PrivateKey()
		require.NoError(t, err)

		assert.Equal(t, k1, k2)
	})

	t.Run("rejects wrong-size key file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, KeyFileName), []byte("abcd"), 0o600))

		err := NewKeyManager(dir).Load(context.Background())
		require.ErrorIs(t, err, payerrors.ErrInvalidKey)
	})
}

func TestKeyManager_NotLoaded(t *testing.T) {
	km := NewKeyManager(t.TempDir())

	_, err := km.PrivateKey()
	require.ErrorIs(t, err, ErrKeyNotLoaded)

	_, err = km.NewSigner()
	require.ErrorIs(t, err, ErrKeyNotLoaded)
}

func TestSigner(t *testing.T) {
	ctx := context.Background()
	km := NewKeyManager(t.TempDir())
	require.NoError(t, km.Load(ctx))
	signer, err := km.NewSigner()
	require.NoError(t, err)

	sig, err := signer.Sign(ctx, []byte("binding"))
	require.NoError(t, err)
	require.NoError(t, signer.Verify(ctx, []byte("binding"), sig))
	require.ErrorIs(t, signer.Verify(ctx, []byte("other"), sig), payerrors.ErrInvalidSignature)

	pub, err := ParsePublicKeyHex(signer.PublicKeyHex())
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(pub, []byte("binding"), sig))
}

func TestParsePublicKeyHex(t *testing.T) {
	_, err := ParsePublicKeyHex("  ")
	require.ErrorIs(t, err, payerrors.ErrTrustAnchorMissing)

	_, err = ParsePublicKeyHex("nothex")
	require.ErrorIs(t, err, payerrors.ErrInvalidKey)

	_, err = ParsePublicKeyHex("abcd")
	require.ErrorIs(t, err, payerrors.ErrInvalidKey)
}

func TestPublicKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "anchor.pub")

	_, err := ReadPublicKeyFile(path)
	require.ErrorIs(t, err, payerrors.ErrTrustAnchorMissing)

	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	require.NoError(t, WritePublicKeyFile(path, pub))

	got, err := ReadPublicKeyFile(path)
	require.NoError(t, err)
	assert.Equal(t, pub, got)
}
