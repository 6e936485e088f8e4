package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSeed = "b37a61f467d0d226b671bfc8a842fb3036f7be8b55beaa66c168154053b40a0d"

func TestNewSignerRejectsBadKeys(t *testing.T) {
	_, err := NewSigner("not-hex")
	require.Error(t, err)

	_, err = NewSigner("abcd")
	require.Error(t, err)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	s, err := NewSigner("0x" + testSeed)
	require.NoError(t, err)

	msg := []byte("signing message")
	sig := s.Sign(msg)
	assert.True(t, strings.HasPrefix(sig, "0x"))
	assert.True(t, s.Verify(msg, sig))
	assert.False(t, s.Verify([]byte("tampered"), sig))
	assert.False(t, s.Verify(msg, "0xdeadbeef"))
}

func TestPublicKeyHexStable(t *testing.T) {
	a, err := NewSigner(testSeed)
	require.NoError(t, err)
	b, err := NewSigner("0x" + testSeed)
	require.NoError(t, err)

	assert.Equal(t, a.PublicKeyHex(), b.PublicKeyHex())
	assert.Len(t, a.PublicKeyHex(), 2+64)
}

func TestEncryptDecryptKey(t *testing.T) {
	blob, err := EncryptKey(testSeed, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testSeed, got)

	_, err = DecryptKey(blob, "wrong")
	require.Error(t, err)
}

func TestLoadKeyPrecedence(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testSeed})
	require.NoError(t, err)
	assert.Equal(t, testSeed, got)

	_, err = LoadKey(KeyConfig{})
	require.Error(t, err)
}
