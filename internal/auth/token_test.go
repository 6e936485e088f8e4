package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	v, err := NewVerifier("test-secret", "tradeleague")
	require.NoError(t, err)

	tok, err := v.IssueToken("user-1", time.Minute)
	require.NoError(t, err)

	userID, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestVerifyRejectsExpired(t *testing.T) {
	v, err := NewVerifier("test-secret", "tradeleague")
	require.NoError(t, err)

	tok, err := v.IssueToken("user-1", -time.Minute)
	require.NoError(t, err)

	_, err = v.Verify(tok)
	require.Error(t, err)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	a, err := NewVerifier("secret-a", "tradeleague")
	require.NoError(t, err)
	b, err := NewVerifier("secret-b", "tradeleague")
	require.NoError(t, err)

	tok, err := a.IssueToken("user-1", time.Minute)
	require.NoError(t, err)

	_, err = b.Verify(tok)
	require.Error(t, err)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	v, err := NewVerifier("test-secret", "tradeleague")
	require.NoError(t, err)

	_, err = v.Verify("not.a.token")
	require.Error(t, err)
}
