package secp

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	payerrors "github.com/mrz1836/paytoken/internal/errors"
)

func TestGenerate(t *testing.T) {
	key, err := Generate()
	require.NoError(t, err)

	assert.Len(t, key.Bytes(), PrivateKeySize)
	assert.Len(t, key.PublicKey().Hex(), 66, "compressed public key is 33 bytes")
}

func TestParsePrivateKeyHex(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		key, err := Generate()
		require.NoError(t, err)

		parsed, err := ParsePrivateKeyHex(key.Hex())
		require.NoError(t, err)
		assert.Equal(t, key.PublicKey().Hex(), parsed.PublicKey().Hex())
	})

	t.Run("rejects wrong length", func(t *testing.T) {
		_, err := ParsePrivateKeyHex("abcd")
		require.ErrorIs(t, err, payerrors.ErrInvalidKey)
	})

	t.Run("rejects zero scalar", func(t *testing.T) {
		_, err := ParsePrivateKeyHex(strings.Repeat("00", PrivateKeySize))
		require.ErrorIs(t, err, payerrors.ErrInvalidKey)
	})

	t.Run("rejects non-hex", func(t *testing.T) {
		_, err := ParsePrivateKeyHex("zz")
		require.ErrorIs(t, err, payerrors.ErrInvalidKey)
	})
}

func TestParsePublicKeyHex(t *testing.T) {
	key, err := Generate()
	require.NoError(t, err)

	pub, err := ParsePublicKeyHex(key.PublicKey().Hex())
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey().Hex(), pub.Hex())

	_, err = ParsePublicKeyHex("02" + strings.Repeat("00", 10))
	require.ErrorIs(t, err, payerrors.ErrInvalidKey)
}

func TestSigner_SignVerify(t *testing.T) {
	ctx := context.Background()
	key, err := Generate()
	require.NoError(t, err)
	signer := NewSigner(key)

	msg := []byte(`{"senderId":"alice","amount":50}`)

	t.Run("signature verifies", func(t *testing.T) {
		sig, err := signer.Sign(ctx, msg)
		require.NoError(t, err)
		require.NoError(t, signer.Verify(ctx, msg, sig))
		require.NoError(t, key.PublicKey().Verify(ctx, msg, sig))
	})

	t.Run("signing is deterministic", func(t *testing.T) {
		first, err := signer.Sign(ctx, msg)
		require.NoError(t, err)
		second, err := signer.Sign(ctx, msg)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("tampered message fails", func(t *testing.T) {
		sig, err := signer.Sign(ctx, msg)
		require.NoError(t, err)
		err = signer.Verify(ctx, []byte(`{"senderId":"alice","amount":51}`), sig)
		require.ErrorIs(t, err, payerrors.ErrInvalidSignature)
	})

	t.Run("other key fails", func(t *testing.T) {
		other, err := Generate()
		require.NoError(t, err)
		sig, err := signer.Sign(ctx, msg)
		require.NoError(t, err)
		err = other.PublicKey().Verify(ctx, msg, sig)
		require.ErrorIs(t, err, payerrors.ErrInvalidSignature)
	})

	t.Run("garbage signature fails", func(t *testing.T) {
		require.ErrorIs(t, signer.Verify(ctx, msg, []byte{0x01, 0x02}), payerrors.ErrInvalidSignature)
		require.ErrorIs(t, signer.Verify(ctx, msg, nil), payerrors.ErrInvalidSignature)
	})

	assert.Equal(t, key.PublicKey().Hex(), signer.PublicKeyHex())
}
